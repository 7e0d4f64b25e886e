package csrio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrv0/spmv/internal/fileformat"
	"github.com/qrv0/spmv/internal/gen"
	"github.com/qrv0/spmv/internal/sparse"
)

const example = `3 3 3
0 1 3 3
0 1 2
2.0 3.0 1.0
`

func TestReadExample(t *testing.T) {
	m, err := Read(strings.NewReader(example))
	require.NoError(t, err)
	assert.Equal(t, []uint32{0, 1, 3, 3}, m.RowPtr)
	assert.Equal(t, []uint32{0, 1, 2}, m.ColIdx)
	assert.Equal(t, []float32{2, 3, 1}, m.Values)

	// Layout across lines does not matter.
	m2, err := Read(strings.NewReader(strings.Join(strings.Fields(example), "\n")))
	require.NoError(t, err)
	assert.Equal(t, m, m2)
}

func TestReadErrors(t *testing.T) {
	for name, in := range map[string]string{
		"empty":       "",
		"truncated":   "3 3 3\n0 1 3 3\n0 1\n",
		"negative":    "-1 3 0\n",
		"not a float": "1 1 1\n0 1\n0\nabc\n",
		"trailing":    "1 1 1\n0 1\n0\n1.5 7\n",
	} {
		_, err := Read(strings.NewReader(in))
		assert.ErrorIs(t, err, ErrFormat, name)
	}

	_, err := Read(strings.NewReader("1 1 1\n0 1\n4\n1\n"))
	assert.ErrorIs(t, err, sparse.ErrInvalidCSR)
}

func TestWriteReadRoundTrip(t *testing.T) {
	coo, err := gen.New(5).Matrix(200, 30_000)
	require.NoError(t, err)
	m := sparse.FromCOO(coo)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, m))
	got, err := Read(&buf)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestSaveLoadByExtension(t *testing.T) {
	coo, err := gen.New(6).Matrix(150, 40_000)
	require.NoError(t, err)
	m := sparse.FromCOO(coo)
	dir := t.TempDir()

	for _, name := range []string{"m.csr", "m.csr.zst", "m.csr.lz4", "m.csrb"} {
		path := filepath.Join(dir, name)
		require.NoError(t, Save(path, m), name)
		got, err := Load(path)
		require.NoError(t, err, name)
		assert.Equal(t, m, got, name)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "m.csr"))
	require.NoError(t, err)
	zst, err := os.ReadFile(filepath.Join(dir, "m.csr.zst"))
	require.NoError(t, err)
	assert.Less(t, len(zst), len(raw))
	assert.True(t, IsContainer(filepath.Join(dir, "m.csrb")))
	assert.False(t, IsContainer(filepath.Join(dir, "m.csr")))
}

func TestLoadSniffsContent(t *testing.T) {
	coo, err := gen.New(7).Matrix(50, 100_000)
	require.NoError(t, err)
	m := sparse.FromCOO(coo)
	dir := t.TempDir()

	zpath := filepath.Join(dir, "a.zst")
	require.NoError(t, Save(zpath, m))
	renamed := filepath.Join(dir, "a.dat")
	require.NoError(t, os.Rename(zpath, renamed))
	got, err := Load(renamed)
	require.NoError(t, err)
	assert.Equal(t, m, got)

	cpath := filepath.Join(dir, "b.csrb")
	require.NoError(t, fileformat.WriteMatrix(cpath, m, fileformat.FlagCompZSTD))
	other := filepath.Join(dir, "b.bin")
	require.NoError(t, os.Rename(cpath, other))
	got, err = Load(other)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csr"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadCorruptContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.csrb")
	raw := append(fileformat.Magic[:], 1, 0, 0, 0, 0xff, 0xff, 0xff, 0xff, 0, 0, 0, 0)
	require.NoError(t, os.WriteFile(path, raw, 0o644))
	_, err := Load(path)
	assert.ErrorIs(t, err, fileformat.ErrCorrupt)
}

func TestCodecFor(t *testing.T) {
	assert.Equal(t, ZSTD, CodecFor("x.csr.ZST"))
	assert.Equal(t, LZ4, CodecFor("x.lz4"))
	assert.Equal(t, Raw, CodecFor("x.csr"))
	assert.Equal(t, "zstd", ZSTD.String())
}
