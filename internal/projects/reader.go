// internal/projects/reader.go
package projects

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"

	custom_errors "github-file-miner/internal/errors"
	"github-file-miner/internal/model"
)

// Column order of the GHTorrent projects dump.
const (
	colID = iota
	colURL
	colOwnerID
	colName
	colDescriptor
	colLanguage
	colCreatedAt
	colForkedFrom
	colDeleted
	colUpdatedAt
	numColumns
)

// ReadFile reads every project in the CSV file at path.
func ReadFile(path string, logger *slog.Logger) ([]model.Project, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open projects file: %w", err)
	}
	defer f.Close()
	return Read(f, logger)
}

// Read parses projects from r in file order. Rows that cannot be parsed are
// logged and skipped.
func Read(r io.Reader, logger *slog.Logger) ([]model.Project, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var projects []model.Project
	line := 0
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				logger.Error("Skipping unreadable project row", "line", parseErr.Line, "error", err)
				continue
			}
			return nil, fmt.Errorf("read projects: %w", err)
		}
		p, err := parseRecord(line, record)
		if err != nil {
			logger.Error("Skipping project row", "error", err)
			continue
		}
		projects = append(projects, p)
	}
	return projects, nil
}

// Active filters projects down to those that are neither forks nor deleted.
func Active(projects []model.Project) []model.Project {
	active := make([]model.Project, 0, len(projects))
	for _, p := range projects {
		if p.Active() {
			active = append(active, p)
		}
	}
	return active
}

func parseRecord(line int, record []string) (model.Project, error) {
	if len(record) != numColumns {
		return model.Project{}, &custom_errors.ErrInvalidProjectRecord{
			Line:   line,
			Reason: fmt.Sprintf("expected %d fields, got %d", numColumns, len(record)),
		}
	}
	for i, v := range record {
		if v == `\N` {
			record[i] = ""
		}
	}

	id, err := parseID(record[colID])
	if err != nil {
		return model.Project{}, &custom_errors.ErrInvalidProjectRecord{Line: line, Reason: "id: " + err.Error()}
	}
	ownerID, err := parseID(record[colOwnerID])
	if err != nil {
		return model.Project{}, &custom_errors.ErrInvalidProjectRecord{Line: line, Reason: "owner_id: " + err.Error()}
	}
	forkedFrom, err := parseID(record[colForkedFrom])
	if err != nil {
		return model.Project{}, &custom_errors.ErrInvalidProjectRecord{Line: line, Reason: "forked_from: " + err.Error()}
	}
	if strings.TrimSpace(record[colURL]) == "" || strings.TrimSpace(record[colName]) == "" {
		return model.Project{}, &custom_errors.ErrInvalidProjectRecord{Line: line, Reason: "url and name are required"}
	}

	return model.Project{
		ID:         id,
		URL:        strings.TrimSpace(record[colURL]),
		OwnerID:    ownerID,
		Name:       strings.TrimSpace(record[colName]),
		Descriptor: record[colDescriptor],
		Language:   record[colLanguage],
		CreatedAt:  record[colCreatedAt],
		ForkedFrom: forkedFrom,
		Deleted:    parseBool(record[colDeleted]),
		UpdatedAt:  record[colUpdatedAt],
	}, nil
}

// parseID accepts integers, dump-style floats ("12.0") and empty values (zero).
func parseID(v string) (int64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %q", v)
	}
	return int64(f), nil
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "0", "0.0", "false", "f", "n":
		return false
	default:
		return true
	}
}
