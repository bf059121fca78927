package indexdb

import (
	"bytes"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/indexdb/testutil"
)

func TestDictionary(t *testing.T) {
	t.Run("InsertAndFreeze", func(t *testing.T) {
		d := newDictionary("symbols")

		var ids []ID
		for _, s := range []string{"foo", "bar", "foo", "baz"} {
			id, err := d.InsertString(s)
			require.NoError(t, err)
			ids = append(ids, id)
		}
		assert.Equal(t, []ID{1, 2, 1, 3}, ids)
		assert.Equal(t, 3, d.Len())

		id, ok := d.Find([]byte("baz"))
		require.True(t, ok)
		assert.Equal(t, ID(3), id)

		remap, err := d.Freeze()
		require.NoError(t, err)
		// bar < baz < foo
		assert.Equal(t, []ID{NoID, 3, 1, 2}, remap)

		strs, err := d.Strings()
		require.NoError(t, err)
		assert.Equal(t, []string{"bar", "baz", "foo"}, strs)

		id, ok = d.Find([]byte("foo"))
		require.True(t, ok)
		assert.Equal(t, ID(3), id)

		_, ok = d.Find([]byte("qux"))
		assert.False(t, ok)

		b, ok := d.Lookup(2)
		require.True(t, ok)
		assert.Equal(t, "baz", string(b))
	})

	t.Run("Lifecycle", func(t *testing.T) {
		d := newDictionary("d")
		_, err := d.Begin()
		require.ErrorIs(t, err, ErrContractViolation)
		_, err = d.LowerBound([]byte("x"))
		require.ErrorIs(t, err, ErrContractViolation)

		_, err = d.Freeze()
		require.NoError(t, err)
		_, err = d.InsertString("late")
		require.ErrorIs(t, err, ErrContractViolation)
		_, err = d.Freeze()
		require.ErrorIs(t, err, ErrContractViolation)
	})

	t.Run("Empty", func(t *testing.T) {
		d := newDictionary("d")
		_, err := d.Freeze()
		require.NoError(t, err)

		c, err := d.Begin()
		require.NoError(t, err)
		assert.False(t, c.Valid())
		assert.Equal(t, 0, d.Len())

		_, ok := d.Lookup(1)
		assert.False(t, ok)
	})

	t.Run("LookupOutOfRange", func(t *testing.T) {
		d := newDictionary("d")
		_, err := d.InsertString("a")
		require.NoError(t, err)

		_, ok := d.Lookup(NoID)
		assert.False(t, ok)
		_, ok = d.Lookup(2)
		assert.False(t, ok)
		b, ok := d.Lookup(1)
		require.True(t, ok)
		assert.Equal(t, "a", string(b))
	})

	t.Run("EmptyEntry", func(t *testing.T) {
		d := newDictionary("d")
		_, err := d.InsertString("")
		require.NoError(t, err)
		_, err = d.InsertString("a")
		require.NoError(t, err)
		_, err = d.Freeze()
		require.NoError(t, err)

		strs, err := d.Strings()
		require.NoError(t, err)
		assert.Equal(t, []string{"", "a"}, strs)
	})
}

func TestDictionary_Cursor(t *testing.T) {
	d := newDictionary("d")
	for _, s := range []string{"b", "d", "f"} {
		_, err := d.InsertString(s)
		require.NoError(t, err)
	}
	_, err := d.Freeze()
	require.NoError(t, err)

	tests := []struct {
		key    string
		wantID ID
		valid  bool
	}{
		{"a", 1, true},
		{"b", 1, true},
		{"c", 2, true},
		{"f", 3, true},
		{"g", 0, false},
	}
	for _, tt := range tests {
		c, err := d.LowerBound([]byte(tt.key))
		require.NoError(t, err)
		require.Equal(t, tt.valid, c.Valid(), tt.key)
		if tt.valid {
			assert.Equal(t, tt.wantID, c.ID(), tt.key)
		}
	}

	c, err := d.LowerBound([]byte("e"))
	require.NoError(t, err)
	assert.Equal(t, "f", string(c.Bytes()))
	require.True(t, c.Prev())
	assert.Equal(t, "d", string(c.Bytes()))
	require.True(t, c.Prev())
	require.False(t, c.Prev())
	assert.Equal(t, "b", string(c.Bytes()))

	var got []string
	for _, b := range c.All() {
		got = append(got, string(b))
	}
	assert.Equal(t, []string{"b", "d", "f"}, got)
	assert.Equal(t, "b", string(c.Bytes()), "All does not move the cursor")
}

func TestDictionary_FreezeMatchesSort(t *testing.T) {
	rng := testutil.NewRNG(42)
	d := newDictionary("d")

	provisional := make(map[string]ID)
	for range 500 {
		b := rng.Bytes(rng.Intn(12))
		b = bytes.ReplaceAll(b, []byte{0}, []byte{1})
		id, err := d.Insert(b)
		require.NoError(t, err)
		provisional[string(b)] = id
	}

	remap, err := d.Freeze()
	require.NoError(t, err)

	want := make([]string, 0, len(provisional))
	for s := range provisional {
		want = append(want, s)
	}
	slices.Sort(want)

	got, err := d.Strings()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	for s, old := range provisional {
		id, ok := d.Find([]byte(s))
		require.True(t, ok)
		assert.Equal(t, id, remap[old])
	}
}

func TestDictionary_Thaw(t *testing.T) {
	d := newDictionary("d")
	for _, s := range []string{"m", "a", "z"} {
		_, err := d.InsertString(s)
		require.NoError(t, err)
	}
	_, err := d.Freeze()
	require.NoError(t, err)

	d.thaw()
	require.False(t, d.Frozen())

	id, ok := d.Find([]byte("m"))
	require.True(t, ok)
	assert.Equal(t, ID(2), id, "thaw keeps frozen IDs")

	id, err = d.InsertString("b")
	require.NoError(t, err)
	assert.Equal(t, ID(4), id)

	remap, err := d.Freeze()
	require.NoError(t, err)
	assert.Equal(t, []ID{NoID, 1, 3, 4, 2}, remap)
}

func TestDictionary_Match(t *testing.T) {
	d := newDictionary("d")
	for _, s := range []string{"ReadFile", "readAll", "WriteFile"} {
		_, err := d.InsertString(s)
		require.NoError(t, err)
	}

	_, err := d.Match(MustPattern("read"))
	require.ErrorIs(t, err, ErrContractViolation)

	_, err = d.Freeze()
	require.NoError(t, err)

	// ReadFile < WriteFile < readAll
	ids, err := d.Match(MustPattern("read"))
	require.NoError(t, err)
	assert.Equal(t, []ID{1, 3}, ids)

	ids, err = d.Match(MustPattern("File$"))
	require.NoError(t, err)
	assert.Equal(t, []ID{1, 2}, ids)

	ids, err = d.Match(MustPattern(""))
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}
