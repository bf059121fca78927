package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/indexdb/blobstore"
)

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
[store]
kind = "s3"
bucket = "indexes"
prefix = "chromium/"
commit_table = "indexdb-commits"
compression = "zstd"

[merge]
concurrency = 3
memory_limit_bytes = 1024

[producer]
command = "indexer"
args = ["--in", "{in}", "--out", "{out}"]
workers = 2
timeout_sec = 90

[log]
level = "debug"
json = true
`))
	require.NoError(t, err)

	assert.Equal(t, "s3", c.Store.Kind)
	assert.Equal(t, "indexes", c.Store.Bucket)
	assert.Equal(t, "chromium/", c.Store.Prefix)
	assert.Equal(t, "indexdb-commits", c.Store.CommitTable)
	assert.Equal(t, "zstd", c.Store.Compression)
	assert.Equal(t, 3, c.Merge.Concurrency)
	assert.Equal(t, int64(1024), c.Merge.MemoryLimitBytes)
	assert.Equal(t, "indexer", c.Producer.Command)
	assert.Equal(t, []string{"--in", "{in}", "--out", "{out}"}, c.Producer.Args)
	assert.Equal(t, 2, c.Producer.Workers)
	assert.Equal(t, 90.0, c.Producer.Timeout().Seconds())
	assert.Equal(t, "debug", c.Log.Level)
	assert.True(t, c.Log.JSON)
}

func TestParse_Defaults(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)

	assert.Equal(t, Default(), c)
	assert.Equal(t, "local", c.Store.Kind)
	assert.Equal(t, ".", c.Store.Root)
	assert.Equal(t, "none", c.Store.Compression)
	assert.Positive(t, c.Merge.Concurrency)
	assert.Positive(t, c.Producer.Workers)
	assert.Equal(t, "info", c.Log.Level)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		toml string
	}{
		{"syntax", `[store`},
		{"unknown kind", "[store]\nkind = \"ftp\""},
		{"s3 without bucket", "[store]\nkind = \"s3\""},
		{"minio without endpoint", "[store]\nkind = \"minio\"\nbucket = \"b\""},
		{"commit table on local", "[store]\ncommit_table = \"t\""},
		{"bad compression", "[store]\ncompression = \"brotli\""},
		{"negative io limit", "[store]\nio_limit_bytes_per_sec = -1"},
		{"negative memory", "[merge]\nmemory_limit_bytes = -1"},
		{"negative timeout", "[producer]\ntimeout_sec = -5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.toml))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "indexdb.toml")
	require.NoError(t, os.WriteFile(path, []byte("[store]\nkind = \"memory\"\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", c.Store.Kind)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	root := filepath.Join(t.TempDir(), "store")
	s, err := OpenStore(ctx, StoreConfig{Kind: "local", Root: root})
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, "CURRENT", []byte("archives/a.iar")))
	got, err := blobstore.Get(ctx, s, "CURRENT")
	require.NoError(t, err)
	assert.Equal(t, "archives/a.iar", string(got))

	m, err := OpenStore(ctx, StoreConfig{Kind: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &blobstore.MemoryStore{}, m)

	_, err = OpenStore(ctx, StoreConfig{Kind: "ftp"})
	assert.Error(t, err)
}
