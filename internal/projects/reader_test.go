// internal/projects/reader_test.go
package projects

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `1,"https://api.github.com/repos/alice/tool",10,"tool","desc","Go","2015-01-01 00:00:00",\N,0,"2016-01-01 00:00:00"
2.0,"https://api.github.com/repos/bob/fork",20.0,"fork","","Go","2015-01-01",1,0,""
3,"https://api.github.com/repos/carol/gone",30,"gone","","","",0,1,""
4,"https://api.github.com/repos/dave/short",40
x,"https://api.github.com/repos/erin/bad",50,"bad","","","",0,0,""
6,"https://api.github.com/repos/frank/ok",60,"ok","with ""quotes""","Python","",0.0,false,""
`

func TestRead(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	projects, err := Read(strings.NewReader(sampleCSV), logger)
	require.NoError(t, err)
	require.Len(t, projects, 4, "short and non-numeric rows are skipped")

	assert.Equal(t, int64(1), projects[0].ID)
	assert.Equal(t, int64(10), projects[0].OwnerID)
	assert.Equal(t, "tool", projects[0].Name)
	assert.Equal(t, int64(0), projects[0].ForkedFrom)

	assert.Equal(t, int64(2), projects[1].ID)
	assert.Equal(t, int64(20), projects[1].OwnerID)
	assert.Equal(t, int64(1), projects[1].ForkedFrom)

	assert.True(t, projects[2].Deleted)
	assert.Equal(t, `with "quotes"`, projects[3].Descriptor)

	active := Active(projects)
	require.Len(t, active, 2)
	assert.Equal(t, "tool", active[0].Name)
	assert.Equal(t, "ok", active[1].Name)
}

func TestParseID(t *testing.T) {
	n, err := parseID("12.0")
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	n, err = parseID(" ")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = parseID("1.5")
	assert.Error(t, err)
}
