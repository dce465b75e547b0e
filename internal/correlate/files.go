// internal/correlate/files.go
package correlate

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"sort"
	"strings"

	"github-file-miner/internal/model"
)

// Hit is one line of the hits file: an interesting path and the API blob
// URL it was found under.
type Hit struct {
	Path    string
	BlobURL string
	Owner   string
	Repo    string
}

// NewHit builds a Hit from a classified tree entry.
func NewHit(path, blobURL string) (Hit, error) {
	owner, repo, err := repoFromAPIURL(blobURL)
	if err != nil {
		return Hit{}, err
	}
	return Hit{Path: path, BlobURL: blobURL, Owner: owner, Repo: repo}, nil
}

// ParseHitLine parses a "<path>, <blob url>" line.
func ParseHitLine(line string) (Hit, error) {
	line = strings.TrimRight(line, "\r\n")
	i := strings.LastIndex(line, ", ")
	if i <= 0 {
		return Hit{}, fmt.Errorf("no separator in hit line %q", line)
	}
	return NewHit(line[:i], strings.TrimSpace(line[i+2:]))
}

// repoFromAPIURL extracts owner and repository from an API URL of the form
// ".../repos/<owner>/<repo>/...".
func repoFromAPIURL(raw string) (owner, repo string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("parse blob url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "repos" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("no repository in blob url %q", raw)
}

// WriteHits writes hits in the line format read by ReadHits.
func WriteHits(w io.Writer, hits []Hit) error {
	bw := bufio.NewWriter(w)
	for _, h := range hits {
		if _, err := fmt.Fprintf(bw, "%s, %s\n", h.Path, h.BlobURL); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadHits reads a hits file. Unparseable lines are logged and skipped.
func ReadHits(r io.Reader, logger *slog.Logger) ([]Hit, error) {
	var hits []Hit
	err := scanLines(r, func(n int, line string) {
		h, err := ParseHitLine(line)
		if err != nil {
			logger.Warn("Skipping hit line", "line", n, "error", err)
			return
		}
		hits = append(hits, h)
	})
	return hits, err
}

// WriteURLs writes one raw-content URL per line.
func WriteURLs(w io.Writer, urls []string) error {
	bw := bufio.NewWriter(w)
	for _, u := range urls {
		if _, err := fmt.Fprintln(bw, u); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ParseRawURL splits a raw-content URL into its "owner/repo" project and
// the file path relative to the branch root.
func ParseRawURL(raw string) (project, path string, ok bool) {
	rest, found := strings.CutPrefix(strings.TrimSpace(raw), RawContentBase)
	if !found {
		return "", "", false
	}
	parts := strings.SplitN(rest, "/", 4)
	if len(parts) < 4 || parts[0] == "" || parts[1] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[0] + "/" + parts[1], parts[3], true
}

// ProjectHits groups interesting hits by "owner/repo".
type ProjectHits map[string][]model.InterestingHit

// Projects returns the project names in sorted order.
func (p ProjectHits) Projects() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadURLs reads a URL file into hits grouped by project. Duplicate URLs
// are kept once; unparseable lines are logged and skipped.
func ReadURLs(r io.Reader, logger *slog.Logger) (ProjectHits, error) {
	hits := make(ProjectHits)
	seen := make(map[string]struct{})
	err := scanLines(r, func(n int, line string) {
		raw := strings.TrimSpace(line)
		if raw == "" {
			return
		}
		project, path, ok := ParseRawURL(raw)
		if !ok {
			logger.Warn("Skipping url line", "line", n, "url", raw)
			return
		}
		if _, dup := seen[raw]; dup {
			return
		}
		seen[raw] = struct{}{}
		hits[project] = append(hits[project], model.InterestingHit{Path: path, RawURL: raw})
	})
	return hits, err
}

func scanLines(r io.Reader, fn func(n int, line string)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fn(n, line)
	}
	return sc.Err()
}
