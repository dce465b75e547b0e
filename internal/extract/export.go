// internal/extract/export.go
package extract

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	custom_errors "github-file-miner/internal/errors"
)

// CommitRecord is the part of one exported commit the extractor uses.
type CommitRecord struct {
	ExternalID string
	Author     string
	UpdatedOn  time.Time
	Files      []string
}

// exportRecord mirrors a git-history export item. "commit" holds the hash
// and "Commit" the committer identity; the decoder matches exact keys first.
type exportRecord struct {
	Data struct {
		Hash      string `json:"commit"`
		Committer string `json:"Commit"`
		Files     []struct {
			File string `json:"file"`
		} `json:"files"`
	} `json:"data"`
	UpdatedOn float64 `json:"updated_on"`
}

// ParseExport decodes a commit-history export, preserving array order.
func ParseExport(project, path string, data []byte) ([]CommitRecord, error) {
	var raw []exportRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &custom_errors.ErrMalformedExport{Project: project, Path: path, Err: err}
	}
	records := make([]CommitRecord, len(raw))
	for i, r := range raw {
		files := make([]string, len(r.Data.Files))
		for j, f := range r.Data.Files {
			files[j] = f.File
		}
		records[i] = CommitRecord{
			ExternalID: r.Data.Hash,
			Author:     r.Data.Committer,
			UpdatedOn:  epoch(r.UpdatedOn),
			Files:      files,
		}
	}
	return records, nil
}

func epoch(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9)).UTC().Truncate(time.Microsecond)
}

// Segment recovers each record's changed-file list from the raw export text
// by splitting on the "files" key and then on each "file" key. Both come
// from the same document in a single left-to-right pass, so segment i
// belongs to record i as long as every record carries exactly one "files"
// key. Verify checks that assumption against the decoded records.
func Segment(raw []byte) [][]string {
	parts := strings.Split(string(raw), `"files":`)
	if len(parts) < 2 {
		return nil
	}
	segments := make([][]string, 0, len(parts)-1)
	for _, part := range parts[1:] {
		entries := strings.Split(part, `"file":`)[1:]
		files := make([]string, 0, len(entries))
		for _, e := range entries {
			v := e
			if i := strings.IndexByte(v, ','); i >= 0 {
				v = v[:i]
			}
			v = strings.TrimSpace(v)
			if len(v) >= 2 {
				v = v[1 : len(v)-1]
			}
			files = append(files, v)
		}
		segments = append(segments, files)
	}
	return segments
}

// Verify fails with ErrSegmentMismatch when the raw segmentation does not
// line up with the decoded records one to one.
func Verify(project string, records []CommitRecord, segments [][]string) error {
	if len(records) != len(segments) {
		return &custom_errors.ErrSegmentMismatch{
			Project:  project,
			Records:  len(records),
			Segments: len(segments),
			Record:   -1,
		}
	}
	for i := range records {
		if len(records[i].Files) != len(segments[i]) {
			return &custom_errors.ErrSegmentMismatch{
				Project:  project,
				Records:  len(records),
				Segments: len(segments),
				Record:   i,
			}
		}
	}
	return nil
}
