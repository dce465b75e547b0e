// internal/extract/extractor_test.go
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github-file-miner/internal/correlate"
	custom_errors "github-file-miner/internal/errors"
	"github-file-miner/internal/model"
)

type commitFixture struct {
	hash   string
	author string
	ts     float64
	files  []string
}

// exportJSON renders commits the way the history exporter writes them:
// indented, keys sorted, one "files" list per record.
func exportJSON(commits ...commitFixture) string {
	var b strings.Builder
	b.WriteString("[\n")
	for i, c := range commits {
		b.WriteString("    {\n        \"backend_name\": \"Git\",\n        \"data\": {\n")
		fmt.Fprintf(&b, "            \"Author\": %q,\n", c.author)
		fmt.Fprintf(&b, "            \"Commit\": %q,\n", c.author)
		fmt.Fprintf(&b, "            \"commit\": %q,\n", c.hash)
		b.WriteString("            \"files\": [")
		for j, f := range c.files {
			if j > 0 {
				b.WriteString(",")
			}
			fmt.Fprintf(&b, "\n                {\n                    \"action\": \"M\",\n                    \"added\": \"1\",\n                    \"file\": %q,\n                    \"indexes\": [\"a\", \"b\"],\n                    \"removed\": \"0\"\n                }", f)
		}
		if len(c.files) > 0 {
			b.WriteString("\n            ")
		}
		b.WriteString("],\n")
		b.WriteString("            \"message\": \"touch \\\"files\\\": list\"\n        },\n")
		fmt.Fprintf(&b, "        \"updated_on\": %v\n    }", c.ts)
		if i < len(commits)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("]\n")
	return b.String()
}

func writeExport(t *testing.T, dir, owner, repo, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, correlate.ExportFileName(owner, repo)), []byte(body), 0o644))
}

func hitsFor(project string, paths ...string) []model.InterestingHit {
	owner, repo, _ := correlate.SplitProject(project)
	hits := make([]model.InterestingHit, len(paths))
	for i, p := range paths {
		hits[i] = model.InterestingHit{Path: p, RawURL: correlate.RawContentBase + owner + "/" + repo + "/master/" + p}
	}
	return hits
}

func newTestExtractor(dir string, concurrency int) *Extractor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewExtractor(NewAllocator(), Options{
		ExportsDir:      dir,
		AvoidFrameworks: true,
		VerifySegments:  true,
		Concurrency:     concurrency,
	}, logger)
}

func TestParseExportAndSegment(t *testing.T) {
	body := exportJSON(
		commitFixture{"c1", "Jane Doe <jane@x.com>", 1500000200, []string{"a.yml", "b.go"}},
		commitFixture{"c2", "John <john@x.com>", 1500000100, nil},
		commitFixture{"c3", "Jane Doe <jane@x.com>", 1500000300.5, []string{"deploy/app.yaml"}},
	)

	records, err := ParseExport("alice/tool", "alice_tool.json", []byte(body))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "c1", records[0].ExternalID)
	assert.Equal(t, "Jane Doe <jane@x.com>", records[0].Author)
	assert.Equal(t, []string{"a.yml", "b.go"}, records[0].Files)
	assert.Empty(t, records[1].Files)
	assert.Equal(t, time.Unix(1500000300, 500000000).UTC(), records[2].UpdatedOn)

	segments := Segment([]byte(body))
	require.Len(t, segments, 3, "escaped markers inside messages are not segment boundaries")
	assert.Equal(t, [][]string{{"a.yml", "b.go"}, {}, {"deploy/app.yaml"}}, segments)
	assert.NoError(t, Verify("alice/tool", records, segments))
}

func TestVerify(t *testing.T) {
	records := []CommitRecord{{Files: []string{"a"}}, {Files: nil}}
	var mismatch *custom_errors.ErrSegmentMismatch

	err := Verify("p", records, [][]string{{"a"}})
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, -1, mismatch.Record)
	assert.Equal(t, 2, mismatch.Records)
	assert.Equal(t, 1, mismatch.Segments)

	err = Verify("p", records, [][]string{{"a"}, {"b"}})
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 1, mismatch.Record)
}

func TestParseExport_Malformed(t *testing.T) {
	_, err := ParseExport("alice/tool", "alice_tool.json", []byte(`{"not":"an array"}`))
	var malformed *custom_errors.ErrMalformedExport
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, "alice/tool", malformed.Project)
}

func TestRun_SingleProject(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "alice", "tool", exportJSON(
		commitFixture{"c1", "Jane Doe <jane@x.com>", 1500000200, []string{"a.yml", "b.go"}},
		commitFixture{"c2", "John <john@x.com>", 1500000100, nil},
		commitFixture{"c3", "Jane Doe <jane@x.com>", 1500000300, []string{"a.yml", "deploy/app.yaml", "c.go"}},
	))
	hits := correlate.ProjectHits{"alice/tool": hitsFor("alice/tool", "a.yml", "deploy/app.yaml")}

	rows, err := newTestExtractor(dir, 2).Run(context.Background(), hits)
	require.NoError(t, err)

	require.Len(t, rows.Commits, 3)
	assert.Equal(t, 2, rows.Commits[0].ChangedFileCount)
	assert.Equal(t, 0, rows.Commits[1].ChangedFileCount)
	assert.Equal(t, 3, rows.Commits[2].ChangedFileCount)

	require.Len(t, rows.Repositories, 1)
	repo := rows.Repositories[0]
	assert.Equal(t, int64(1), repo.ID)
	assert.Equal(t, "tool", repo.Name)
	assert.Equal(t, "alice", repo.Founder)
	assert.Equal(t, "https://www.github.com/alice/tool", repo.URL)
	assert.Equal(t, 3, repo.NumberCommits)
	assert.Equal(t, time.Unix(1500000100, 0).UTC(), repo.FirstCommitAt)
	assert.Equal(t, time.Unix(1500000300, 0).UTC(), repo.LastCommitAt)

	t.Run("author dedup", func(t *testing.T) {
		require.Len(t, rows.People, 2)
		assert.Equal(t, model.Person{ID: 1, Name: "Jane Doe", Email: "jane@x.com"}, rows.People[0])
		assert.Equal(t, rows.People[0].ID, rows.Commits[0].PersonID)
		assert.Equal(t, rows.People[0].ID, rows.Commits[2].PersonID)
		assert.Equal(t, rows.People[1].ID, rows.Commits[1].PersonID)
	})

	t.Run("interesting files link to their commit", func(t *testing.T) {
		require.Len(t, rows.InterestingFiles, 3)
		assert.Equal(t, model.InterestingFile{
			ID:           1,
			Name:         "a.yml",
			URL:          "https://raw.githubusercontent.com/alice/tool/master/a.yml",
			CommitID:     rows.Commits[0].ID,
			RepositoryID: 1,
		}, rows.InterestingFiles[0])
		assert.Equal(t, rows.Commits[2].ID, rows.InterestingFiles[1].CommitID)
		assert.Equal(t, "deploy/app.yaml", rows.InterestingFiles[2].Name)
		assert.Equal(t, int64(3), rows.InterestingFiles[2].ID)
	})
}

func TestRun_IDMonotonicity(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "alice", "a", exportJSON(
		commitFixture{"a1", "Jane Doe <jane@x.com>", 10, []string{"x.yml"}},
		commitFixture{"a2", "Jane Doe <jane@x.com>", 20, nil},
	))
	writeExport(t, dir, "bob", "empty", "[]")
	writeExport(t, dir, "carol", "c", exportJSON(
		commitFixture{"c1", "Jane Doe <jane@x.com>", 30, []string{"x.yml"}},
		commitFixture{"c2", "Carol <carol@x.com>", 40, nil},
	))
	hits := correlate.ProjectHits{
		"carol/c":     hitsFor("carol/c", "x.yml"),
		"bob/empty":   hitsFor("bob/empty", "x.yml"),
		"alice/a":     hitsFor("alice/a", "x.yml"),
		"dave/absent": hitsFor("dave/absent", "x.yml"),
	}

	rows, err := newTestExtractor(dir, 3).Run(context.Background(), hits)
	require.NoError(t, err)

	require.Len(t, rows.Repositories, 3)
	assert.Equal(t, []string{"a", "empty", "c"}, []string{rows.Repositories[0].Name, rows.Repositories[1].Name, rows.Repositories[2].Name})
	for i, r := range rows.Repositories {
		assert.Equal(t, int64(i+1), r.ID)
	}
	assert.Equal(t, 0, rows.Repositories[1].NumberCommits)
	assert.True(t, rows.Repositories[1].FirstCommitAt.IsZero())

	require.Len(t, rows.Commits, 4)
	for i, c := range rows.Commits {
		assert.Equal(t, int64(i+1), c.ID, "commit ids increase by one across repositories")
	}
	assert.Equal(t, int64(1), rows.Commits[1].RepositoryID)
	assert.Equal(t, int64(3), rows.Commits[2].RepositoryID, "the zero-commit repository keeps its id")

	require.Len(t, rows.People, 2, "authors are deduplicated across repositories")
	assert.Equal(t, rows.Commits[0].PersonID, rows.Commits[2].PersonID)

	require.Len(t, rows.InterestingFiles, 2)
	assert.Equal(t, int64(1), rows.InterestingFiles[0].CommitID)
	assert.Equal(t, int64(3), rows.InterestingFiles[1].CommitID)
	assert.Equal(t, int64(3), rows.InterestingFiles[1].RepositoryID)
}

func TestRun_MissingProjects(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "alice", "tool", exportJSON(commitFixture{"c1", "A <a@x>", 1, []string{"a.yml"}}))
	hits := correlate.ProjectHits{
		"alice/tool":        hitsFor("alice/tool", "a.yml"),
		"bob/web-Framework": hitsFor("bob/web-Framework", "a.yml", "b.yml"),
		"carol/site":        hitsFor("carol/site", "a.yml"),
	}

	rows, err := newTestExtractor(dir, 1).Run(context.Background(), hits)
	require.NoError(t, err)

	assert.Equal(t, []model.MissingProject{
		{Project: "bob/web-Framework", Issue: model.IssueFrameworkType, HitCount: 2},
		{Project: "carol/site", Issue: model.IssueNotChecked, HitCount: 1},
	}, rows.Missing)
	require.Len(t, rows.Repositories, 1)
	assert.Equal(t, "tool", rows.Repositories[0].Name)
	assert.Len(t, rows.Commits, 1)
	assert.Len(t, rows.InterestingFiles, 1)

	var buf bytes.Buffer
	require.NoError(t, WriteMissingReport(&buf, rows.Missing))
	assert.Equal(t, "project,issue,hit_count\nbob/web-Framework,framework-type,2\ncarol/site,not-checked,1\n", buf.String())
}

func TestRun_UnusableExportIsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeExport(t, dir, "alice", "broken", `[{"data": {"commit": "c1", "Commit": "A <a@x>"}, "updated_on": 1}]`)
	writeExport(t, dir, "bob", "garbage", `not json`)
	writeExport(t, dir, "carol", "ok", exportJSON(commitFixture{"c1", "A <a@x>", 1, nil}))
	hits := correlate.ProjectHits{
		"alice/broken": hitsFor("alice/broken", "a.yml"),
		"bob/garbage":  hitsFor("bob/garbage", "a.yml"),
		"carol/ok":     hitsFor("carol/ok", "a.yml"),
	}

	rows, err := newTestExtractor(dir, 2).Run(context.Background(), hits)
	require.NoError(t, err)

	require.Len(t, rows.Repositories, 1)
	assert.Equal(t, int64(1), rows.Repositories[0].ID, "failed projects consume no ids")
	assert.Equal(t, int64(1), rows.Commits[0].ID)
	assert.Empty(t, rows.Missing)
}

func TestRun_DeterministicAcrossConcurrency(t *testing.T) {
	dir := t.TempDir()
	hits := correlate.ProjectHits{}
	for i := 0; i < 12; i++ {
		repo := fmt.Sprintf("r%02d", i)
		writeExport(t, dir, "owner", repo, exportJSON(
			commitFixture{repo + "-1", fmt.Sprintf("Dev%d <d%d@x>", i%3, i%3), float64(100 + i), []string{"a.yml"}},
			commitFixture{repo + "-2", "Shared <s@x>", float64(200 + i), []string{"b.go"}},
		))
		hits["owner/"+repo] = hitsFor("owner/"+repo, "a.yml")
	}

	serial, err := newTestExtractor(dir, 1).Run(context.Background(), hits)
	require.NoError(t, err)
	parallel, err := newTestExtractor(dir, 8).Run(context.Background(), hits)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
	assert.Len(t, serial.People, 4)
}

func TestAllocator_Person(t *testing.T) {
	a := NewAllocator()

	p, created := a.Person("Jane Doe <jane@x.com>")
	assert.True(t, created)
	assert.Equal(t, model.Person{ID: 1, Name: "Jane Doe", Email: "jane@x.com"}, p)

	p, created = a.Person("Jane Doe <jane@x.com>")
	assert.False(t, created)
	assert.Equal(t, int64(1), p.ID)

	p, created = a.Person("<>")
	assert.True(t, created)
	assert.Equal(t, model.Person{ID: 2, Name: "unknown", Email: "unknown"}, p)

	p, created = a.Person("")
	assert.False(t, created, "empty and <> authors share the unknown person")
	assert.Equal(t, int64(2), p.ID)

	assert.Equal(t, int64(1), a.NextCommit())
	assert.Equal(t, int64(2), a.NextCommit())
	assert.Equal(t, int64(1), a.NextRepository())
	assert.Equal(t, int64(1), a.NextInterestingFile())
}
