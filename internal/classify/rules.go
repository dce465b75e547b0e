// internal/classify/rules.go
package classify

import (
	"bytes"
	"errors"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	custom_errors "github-file-miner/internal/errors"
)

// Rules is the two-tier heuristic rule set.
type Rules struct {
	Tier1Extensions map[string]struct{}
	Tier2Extensions map[string]struct{}
	Keywords        []string
}

type rulesFile struct {
	Tier1Extensions []string `yaml:"tier1_extensions"`
	Tier2Extensions []string `yaml:"tier2_extensions"`
	Keywords        []string `yaml:"keywords"`
}

// NewRules builds a rule set, lowercasing every value.
func NewRules(tier1, tier2, keywords []string) Rules {
	r := Rules{
		Tier1Extensions: toSet(tier1),
		Tier2Extensions: toSet(tier2),
	}
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		r.Keywords = append(r.Keywords, k)
	}
	return r
}

// LoadRules reads a YAML heuristics file. Unknown keys, an empty file or a
// file with no extensions at all are configuration errors.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, &custom_errors.ErrInvalidRules{Path: path, Reason: err.Error()}
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f rulesFile
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return Rules{}, &custom_errors.ErrInvalidRules{Path: path, Reason: "file is empty"}
		}
		return Rules{}, &custom_errors.ErrInvalidRules{Path: path, Reason: err.Error()}
	}

	r := NewRules(f.Tier1Extensions, f.Tier2Extensions, f.Keywords)
	if len(r.Tier1Extensions) == 0 && len(r.Tier2Extensions) == 0 {
		return Rules{}, &custom_errors.ErrInvalidRules{Path: path, Reason: "no extensions configured"}
	}
	if len(r.Tier2Extensions) > 0 && len(r.Keywords) == 0 {
		return Rules{}, &custom_errors.ErrInvalidRules{Path: path, Reason: "tier2_extensions require keywords"}
	}
	return r, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			set[strings.TrimPrefix(v, ".")] = struct{}{}
		}
	}
	return set
}
