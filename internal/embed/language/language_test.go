package language

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableLookup(t *testing.T) {
	table := DefaultTable()

	tests := []struct {
		discriminator string
		kind          Kind
		ok            bool
	}{
		{"CSharp", Primary, true},
		{"csharp", Primary, true},
		{"Basic", Secondary, true},
		{"BASIC", Secondary, true},
		{"FSharp", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		kind, ok := table.Lookup(tt.discriminator)
		assert.Equal(t, tt.ok, ok, tt.discriminator)
		assert.Equal(t, tt.kind, kind, tt.discriminator)
	}

	assert.Equal(t, []Kind{Primary, Secondary}, table.Kinds())
}

func TestDefaultPrefixes(t *testing.T) {
	table := DefaultTable()

	cs := table.GlobalPrefix(Primary)
	assert.True(t, strings.HasPrefix(cs, "using System;\n"))
	assert.Contains(t, cs, "using System.Xml.Linq;\n")

	vb := table.GlobalPrefix(Secondary)
	assert.True(t, strings.HasPrefix(vb, "Imports System\n"))
	assert.Empty(t, table.GlobalSuffix(Secondary))
	assert.Empty(t, table.GlobalPrefix("missing"))
}

func TestNewTableValidation(t *testing.T) {
	_, err := NewTable(Profile{Kind: Primary})
	assert.ErrorIs(t, err, ErrInvalidProfile)

	_, err = NewTable(CSharp(), CSharp())
	assert.ErrorIs(t, err, ErrDuplicateKind)

	other := VisualBasic()
	other.Discriminators = []string{"csharp"}
	_, err = NewTable(CSharp(), other)
	assert.ErrorIs(t, err, ErrDuplicateDiscriminator)
}

func TestTableCopiesSlices(t *testing.T) {
	p := CSharp()
	table, err := NewTable(p)
	require.NoError(t, err)

	p.References[0] = "mutated"
	got, ok := table.Profile(Primary)
	require.True(t, ok)
	assert.Equal(t, "mscorlib", got.References[0])
}

func TestWrapUnwrap(t *testing.T) {
	p := Profile{Kind: Primary, ID: "x", GlobalPrefix: "using System;\n", GlobalSuffix: "\n// end"}

	wrapped := p.Wrap("x = 1")
	assert.Equal(t, "using System;\nx = 1\n// end", wrapped)

	snippet, ok := p.Unwrap(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "x = 1", snippet)

	snippet, ok = p.Unwrap("using Sysxem;\nx = 1\n// end")
	assert.False(t, ok)
	assert.Equal(t, "x = 1", snippet)

	snippet, ok = p.Unwrap("short")
	assert.False(t, ok)
	assert.Empty(t, snippet)
}
