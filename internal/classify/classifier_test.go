// internal/classify/classifier_test.go
package classify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custom_errors "github-file-miner/internal/errors"
	"github-file-miner/internal/model"
)

func TestClassify(t *testing.T) {
	rules := NewRules([]string{"yaml", "YML"}, []string{"prod", "txt"}, []string{"Docker", "makefile"})

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"tier1 extension regardless of keywords", "src/app.yaml", true},
		{"tier1 extension is case insensitive", "deploy/Values.YML", true},
		{"no extension", "bin/run", false},
		{"tier2 with keyword in stem", "config/Dockerfile.prod", true},
		{"tier2 without keyword", "config/settings.prod", false},
		{"tier2 keyword only in directory", "docker/notes.txt", false},
		{"tier2 top-level file", "makefile.txt", true},
		{"unknown extension", "main.go", false},
		{"dot in directory only", "v1.2/run", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.path, rules))
		})
	}
}

func TestExtensionAndStem(t *testing.T) {
	assert.Equal(t, "yaml", Extension("src/app.YAML"))
	assert.Equal(t, "", Extension("bin/run"))
	assert.Equal(t, "gz", Extension("dist/app.tar.gz"))

	assert.Equal(t, "dockerfile", Stem("config/Dockerfile.prod"))
	assert.Equal(t, "app.tar", Stem("dist/app.tar.gz"))
	assert.Equal(t, "makefile", Stem("Makefile"))
	assert.Equal(t, "", Stem(""))
}

func TestClassifyTree(t *testing.T) {
	rules := NewRules([]string{"yaml"}, nil, nil)
	entries := []model.FileEntry{
		{Path: "conf.yaml", URL: "u1", Kind: "tree"},
		{Path: "conf/app.yaml", URL: "u2", Kind: "blob"},
		{Path: "vendor/lib.yaml", URL: "u3", Kind: "commit"},
		{Path: "nourl.yaml", Kind: "blob"},
		{Path: "main.go", URL: "u4", Kind: "blob"},
	}

	hits := ClassifyTree(entries, rules)
	require.Len(t, hits, 1)
	assert.Equal(t, "conf/app.yaml", hits[0].Path)
}

func TestLoadRules(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	t.Run("loads all three collections", func(t *testing.T) {
		p := write("ok.yaml", "tier1_extensions: [yml, .YAML]\ntier2_extensions: [prod]\nkeywords: [docker, Docker]\n")
		rules, err := LoadRules(p)
		require.NoError(t, err)
		assert.Contains(t, rules.Tier1Extensions, "yaml")
		assert.Contains(t, rules.Tier1Extensions, "yml")
		assert.Contains(t, rules.Tier2Extensions, "prod")
		assert.Equal(t, []string{"docker"}, rules.Keywords)
	})

	t.Run("rejects unknown keys", func(t *testing.T) {
		p := write("unknown.yaml", "level-one_exts: [yml]\n")
		_, err := LoadRules(p)
		var rulesErr *custom_errors.ErrInvalidRules
		assert.ErrorAs(t, err, &rulesErr)
	})

	t.Run("rejects empty file", func(t *testing.T) {
		_, err := LoadRules(write("empty.yaml", ""))
		assert.Error(t, err)
	})

	t.Run("rejects tier2 without keywords", func(t *testing.T) {
		_, err := LoadRules(write("nokw.yaml", "tier2_extensions: [prod]\n"))
		assert.Error(t, err)
	})

	t.Run("rejects missing file", func(t *testing.T) {
		_, err := LoadRules(filepath.Join(dir, "absent.yaml"))
		assert.Error(t, err)
	})
}
