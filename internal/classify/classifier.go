// internal/classify/classifier.go
package classify

import (
	"path"
	"strings"

	"github-file-miner/internal/model"
)

// Classify reports whether path is interesting under rules.
//
// Tier-1 extensions always match. Tier-2 extensions match only when the
// lowercased file stem contains one of the keywords.
func Classify(p string, rules Rules) bool {
	ext := Extension(p)
	if _, ok := rules.Tier1Extensions[ext]; ok {
		return true
	}
	if _, ok := rules.Tier2Extensions[ext]; !ok {
		return false
	}
	stem := Stem(p)
	for _, kw := range rules.Keywords {
		if strings.Contains(stem, kw) {
			return true
		}
	}
	return false
}

// Extension returns the lowercased text after the last '.' in p, or "".
func Extension(p string) string {
	i := strings.LastIndexByte(p, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(p[i+1:])
}

// Stem returns the lowercased file name of p without its extension.
func Stem(p string) string {
	name := path.Base(p)
	if name == "." || name == "/" {
		return ""
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

// ClassifyTree returns every blob in entries that matches rules. Trees,
// submodule commits and entries without a path or URL are ignored.
func ClassifyTree(entries []model.FileEntry, rules Rules) []model.FileEntry {
	var hits []model.FileEntry
	for _, e := range entries {
		if e.Kind != "blob" || e.Path == "" || e.URL == "" {
			continue
		}
		if Classify(e.Path, rules) {
			hits = append(hits, e)
		}
	}
	return hits
}
