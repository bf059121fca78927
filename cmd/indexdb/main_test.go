package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/indexdb"
)

// writeIndex writes an index with a "symbols" dictionary and a "refs" table
// referencing each symbol at line i+1.
func writeIndex(t *testing.T, path string, symbols ...string) {
	t.Helper()
	idx := indexdb.New()
	d := idx.AddDictionary("symbols")
	refs, err := idx.AddTable("refs", []indexdb.Column{{Name: "sym", Dictionary: "symbols"}, {Name: "line"}})
	require.NoError(t, err)
	for i, s := range symbols {
		id, err := d.InsertString(s)
		require.NoError(t, err)
		require.NoError(t, refs.Add(indexdb.Row{id, indexdb.ID(i + 1)}))
	}
	require.NoError(t, idx.WriteFile(path))
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(context.Background(), append([]string{"indexdb", "--log-level", "error"}, args...), &out, &errOut)
	return out.String(), err
}

func TestInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.idx")
	writeIndex(t, path, "foo", "bar")

	out, err := runCLI(t, "info", path)
	require.NoError(t, err)
	assert.Contains(t, out, "symbols")
	assert.Contains(t, out, "refs")
	assert.Contains(t, out, "sym->symbols, line")
}

func TestInfoRejectsUnknownFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk")
	require.NoError(t, os.WriteFile(path, []byte("not an index"), 0o644))

	_, err := runCLI(t, "info", path)
	require.ErrorIs(t, err, indexdb.ErrCorruptData)
}

func TestMissingArgs(t *testing.T) {
	_, err := runCLI(t, "info")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "usage")
}

func TestDump(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.idx")
	writeIndex(t, path, "foo", "bar")

	out, err := runCLI(t, "dump", "--table", "refs", path)
	require.NoError(t, err)
	assert.Equal(t, "refs\tbar\t2\nrefs\tfoo\t1\n", out)

	out, err = runCLI(t, "dump", "--table", "refs", "--raw", path)
	require.NoError(t, err)
	assert.Equal(t, "refs\t1\t2\nrefs\t2\t1\n", out)

	out, err = runCLI(t, "dump", "--dict", "symbols", path)
	require.NoError(t, err)
	assert.Equal(t, "symbols\t1\tbar\nsymbols\t2\tfoo\n", out)
}

func TestGrep(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.idx")
	writeIndex(t, path, "ReadFile", "readAll", "write")

	out, err := runCLI(t, "grep", path, "read")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 2)

	out, err = runCLI(t, "grep", path, "Read")
	require.NoError(t, err)
	assert.Equal(t, "symbols\t1\tReadFile\n", out)

	_, err = runCLI(t, "grep", path, "(")
	require.Error(t, err)
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.idx")
	b := filepath.Join(dir, "b.idx")
	c := filepath.Join(dir, "c.idx")
	out := filepath.Join(dir, "out.idx")
	writeIndex(t, a, "foo", "bar")
	writeIndex(t, b, "baz")
	writeIndex(t, c, "foo")

	_, err := runCLI(t, "merge", "--output", out, "--concurrency", "2", a, b, c)
	require.NoError(t, err)

	idx, err := indexdb.Open(out)
	require.NoError(t, err)
	defer idx.Close()

	d, ok := idx.Dictionary("symbols")
	require.True(t, ok)
	strs, err := d.Strings()
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", "baz", "foo"}, strs)

	refs, ok := idx.Table("refs")
	require.True(t, ok)
	// (foo,1) occurs in a and c.
	assert.Equal(t, 3, refs.Len())
}

func TestArchiveCommands(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.idx")
	b := filepath.Join(dir, "b.idx")
	ar := filepath.Join(dir, "all.iar")
	writeIndex(t, a, "foo")
	writeIndex(t, b, "bar")

	_, err := runCLI(t, "archive", "create", "--output", ar, "--hash", "blake3", a, "second="+b)
	require.NoError(t, err)

	out, err := runCLI(t, "archive", "list", ar)
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^a\s+\d+\s+\d+\s+blake3:`, out)
	assert.Regexp(t, `(?m)^second\s`, out)
	assert.Contains(t, out, "blake3:")

	out, err = runCLI(t, "archive", "verify", ar)
	require.NoError(t, err)
	assert.Equal(t, "a\tok\nsecond\tok\n", out)

	out, err = runCLI(t, "dump", "--entry", "second", "--dict", "symbols", ar)
	require.NoError(t, err)
	assert.Equal(t, "second:symbols\t1\tbar\n", out)

	_, err = runCLI(t, "dump", "--entry", "missing", ar)
	require.ErrorIs(t, err, indexdb.ErrNotFound)

	ext := filepath.Join(dir, "ext")
	_, err = runCLI(t, "archive", "extract", "--dir", ext, ar, "second")
	require.NoError(t, err)
	want, err := os.ReadFile(b)
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(ext, "second.idx"))
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = runCLI(t, "archive", "create", "--output", ar, "--hash", "md5", a)
	require.Error(t, err)
}

func TestMergeArchiveEntries(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.idx")
	b := filepath.Join(dir, "b.idx")
	ar := filepath.Join(dir, "all.iar")
	out := filepath.Join(dir, "out.idx")
	writeIndex(t, a, "foo")
	writeIndex(t, b, "bar")

	_, err := runCLI(t, "archive", "create", "--output", ar, a, b)
	require.NoError(t, err)
	_, err = runCLI(t, "merge", "-o", out, ar)
	require.NoError(t, err)

	idx, err := indexdb.Open(out)
	require.NoError(t, err)
	defer idx.Close()
	d, _ := idx.Dictionary("symbols")
	strs, err := d.Strings()
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", "foo"}, strs)
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.idx")
	b := filepath.Join(dir, "b.idx")
	writeIndex(t, a, "foo")
	writeIndex(t, b, "bar")

	cfg := filepath.Join(dir, "indexdb.toml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
[producer]
command = "cp"
args = ["{in}", "{out}"]
workers = 2
`), 0o644))

	merged := filepath.Join(dir, "merged.idx")
	_, err := runCLI(t, "--config", cfg, "build", "-o", merged, a, b)
	require.NoError(t, err)

	idx, err := indexdb.Open(merged)
	require.NoError(t, err)
	d, _ := idx.Dictionary("symbols")
	strs, err := d.Strings()
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", "foo"}, strs)
	require.NoError(t, idx.Close())

	ar := filepath.Join(dir, "units.iar")
	_, err = runCLI(t, "--config", cfg, "build", "--archive", "-o", ar, a, b)
	require.NoError(t, err)
	archive, err := indexdb.OpenArchive(ar)
	require.NoError(t, err)
	assert.Equal(t, 2, archive.Len())
	assert.Equal(t, 1, archive.IndexOf("b.idx"))

	_, err = runCLI(t, "--config", cfg, "build", "--command", "false", "-o", merged, a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 1")
}

func TestBuildArchiveEntryNames(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a", "x.idx")
	b := filepath.Join(dir, "b", "x.idx")
	require.NoError(t, os.MkdirAll(filepath.Dir(a), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(b), 0o755))
	writeIndex(t, a, "foo")
	writeIndex(t, b, "bar")

	names, err := entryNames([]string{a, b})
	require.NoError(t, err)
	assert.Equal(t, []string{"a/x.idx", "b/x.idx"}, names)

	names, err = entryNames([]string{a})
	require.NoError(t, err)
	assert.Equal(t, []string{"x.idx"}, names)

	_, err = entryNames([]string{a, filepath.Join(dir, "a", ".", "x.idx")})
	require.Error(t, err)

	cfg := filepath.Join(dir, "indexdb.toml")
	require.NoError(t, os.WriteFile(cfg, []byte(`
[producer]
command = "cp"
args = ["{in}", "{out}"]
`), 0o644))

	ar := filepath.Join(dir, "units.iar")
	_, err = runCLI(t, "--config", cfg, "build", "--archive", "-o", ar, a, b)
	require.NoError(t, err)
	archive, err := indexdb.OpenArchive(ar)
	require.NoError(t, err)
	assert.Equal(t, 0, archive.IndexOf("a/x.idx"))
	assert.Equal(t, 1, archive.IndexOf("b/x.idx"))

	ext := filepath.Join(dir, "ext")
	_, err = runCLI(t, "archive", "extract", "--dir", ext, ar)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(ext, "a", "x.idx"))
	assert.FileExists(t, filepath.Join(ext, "b", "x.idx"))

	_, err = extractPath(ext, "../escape")
	require.Error(t, err)
}

func TestBuildWithoutProducer(t *testing.T) {
	_, err := runCLI(t, "build", "-o", filepath.Join(t.TempDir(), "x.idx"), "unit")
	require.Error(t, err)
}

func TestPublishFlow(t *testing.T) {
	dir := t.TempDir()
	storeDir := filepath.Join(dir, "store")
	cfg := filepath.Join(dir, "indexdb.toml")
	require.NoError(t, os.WriteFile(cfg, []byte(fmt.Sprintf(`
[store]
kind = "local"
root = %q
compression = "zstd"
`, storeDir)), 0o644))

	ar := filepath.Join(dir, "all.iar")
	a := filepath.Join(dir, "a.idx")
	writeIndex(t, a, "foo")
	_, err := runCLI(t, "archive", "create", "-o", ar, a)
	require.NoError(t, err)

	var keys []string
	for range 3 {
		out, err := runCLI(t, "-c", cfg, "publish", "--name", "proj", "--verify", ar)
		require.NoError(t, err)
		assert.Contains(t, out, "1 entries")
		keys = append(keys, strings.Fields(out)[0])
	}

	out, err := runCLI(t, "-c", cfg, "releases", "--name", "proj")
	require.NoError(t, err)
	assert.Contains(t, out, "* "+keys[2])
	assert.Contains(t, out, "  "+keys[0])

	fetched := filepath.Join(dir, "fetched.iar")
	out, err = runCLI(t, "-c", cfg, "fetch", "--name", "proj", "-o", fetched)
	require.NoError(t, err)
	assert.Contains(t, out, keys[2])
	want, err := os.ReadFile(ar)
	require.NoError(t, err)
	got, err := os.ReadFile(fetched)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	out, err = runCLI(t, "-c", cfg, "prune", "--name", "proj", "--keep", "1")
	require.NoError(t, err)
	assert.Equal(t, "deleted "+keys[0]+"\ndeleted "+keys[1]+"\n", out)
}

func TestInvalidLogLevel(t *testing.T) {
	_, err := runCLI(t, "--log-level", "loud", "info", "x")
	require.Error(t, err)
}
