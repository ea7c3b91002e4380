package streamlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLastMessageIDAbsentFile(t *testing.T) {
	id, ok, err := LastMessageID(filepath.Join(t.TempDir(), "missing.ndjson"))
	require.NoError(t, err)
	require.False(t, ok)
	require.Zero(t, id)
}

func TestLastMessageIDFindsMostRecentCreateOrUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channel.ndjson")
	lines := []string{
		`{"t":"c","i":1,"ct":"first","ca":100,"a":7}`,
		`{"t":"c","i":2,"ct":"second","ca":200,"a":7}`,
		`{"t":"u","i":1,"ct":"edited"}`,
		`{"t":"d","i":2}`,
	}
	writeLines(t, path, lines)

	id, ok, err := LastMessageID(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), id) // last c/u line is the update to id 1
}

func TestLastMessageIDToleratesTrailingPartialLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channel.ndjson")
	writeLines(t, path, []string{`{"t":"c","i":5,"ca":500,"a":1}`})

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"t":"c","i":6,"ct":"trunc`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	id, ok, err := LastMessageID(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(5), id)
}

func TestLastMessageIDScansAcrossChunkBoundary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "channel.ndjson")
	// The only c/u line comes first, followed by well over one 64KiB scan
	// window of delete lines, so the scan has to cross a chunk boundary.
	padLine := `{"t":"d","i":0,"ct":"` + strings.Repeat("x", 2000) + `"}`
	lines := []string{`{"t":"c","i":999,"ca":999000,"a":1}`}
	for i := 0; i < 40; i++ {
		lines = append(lines, padLine)
	}
	writeLines(t, path, lines)

	id, ok, err := LastMessageID(path)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(999), id)
}

func writeLines(t *testing.T, path string, lines []string) {
	t.Helper()
	var data []byte
	for _, l := range lines {
		data = append(data, []byte(l)...)
		data = append(data, '\n')
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
}
