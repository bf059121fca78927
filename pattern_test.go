package indexdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPattern(t *testing.T) {
	tests := []struct {
		expr  string
		input string
		want  bool
	}{
		{"read", "ReadFile", true},
		{"read", "READ", true},
		{"Read", "readFile", false},
		{"Read", "ReadFile", true},
		{"^File", "ReadFile", false},
		{"file$", "ReadFile", true},
		{"", "anything", true},
		{"ü", "Ü", true},
	}
	for _, tt := range tests {
		p, err := NewPattern(tt.expr)
		require.NoError(t, err)
		assert.Equal(t, tt.want, p.Match([]byte(tt.input)), "%q ~ %q", tt.expr, tt.input)
	}
}

func TestPattern_Properties(t *testing.T) {
	p := MustPattern("Foo.*")
	assert.Equal(t, "Foo.*", p.String())
	assert.True(t, p.CaseSensitive())
	assert.False(t, p.Empty())

	assert.False(t, MustPattern("foo").CaseSensitive())
	assert.True(t, MustPattern("").Empty())

	var nilPattern *Pattern
	assert.True(t, nilPattern.Empty())
	assert.True(t, nilPattern.Match([]byte("x")))
}

func TestPattern_Invalid(t *testing.T) {
	_, err := NewPattern("a(")
	require.Error(t, err)
	assert.Panics(t, func() { MustPattern("[") })
}
