package reference

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/embedsync/internal/embed/language"
	"github.com/dshills/embedsync/internal/logging"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, nil, 0o644))
}

func TestResolverFindsWithExtension(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "System.dll"))
	touch(t, filepath.Join(dir, "mscorlib.dll"))

	r := NewResolver(WithSearchPaths(filepath.Join(dir, "missing"), dir))
	set, errs := r.Resolve([]string{"mscorlib", "System", "System.Web"})

	assert.Equal(t, []string{"mscorlib", "System"}, set.Names())
	assert.Equal(t, filepath.Join(dir, "System.dll"), set.Descriptors()[1].Path)

	require.Len(t, errs, 1)
	var resErr *ResolutionError
	require.True(t, errors.As(errs[0], &resErr))
	assert.Equal(t, "System.Web", resErr.Name)
	assert.ErrorIs(t, errs[0], ErrNotFound)
	assert.Contains(t, resErr.Error(), "System.Web.dll")
}

func TestResolverAbsolutePath(t *testing.T) {
	dir := t.TempDir()
	lib := filepath.Join(dir, "lib", "custom.so")
	touch(t, lib)

	r := NewResolver()
	set, errs := r.Resolve([]string{lib, filepath.Join(dir, "nope.so")})
	assert.Equal(t, 1, set.Len())
	assert.Len(t, errs, 1)
}

func TestSetIsImmutable(t *testing.T) {
	descs := []Descriptor{{Name: "a", Path: "/a"}}
	s := NewSet(descs...)
	descs[0].Name = "changed"

	got := s.Descriptors()
	got[0].Name = "changed again"
	assert.Equal(t, []string{"a"}, s.Names())

	var nilSet *Set
	assert.Zero(t, nilSet.Len())
	assert.Nil(t, nilSet.Names())
}

func TestCatalogSharesSetPerKind(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "System.dll"))

	var logs bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.LevelWarn, Output: &logs})
	c := NewCatalog(NewResolver(WithSearchPaths(dir)), logger)

	profile := language.Profile{Kind: language.Primary, ID: "csharp", References: []string{"System", "Missing"}}
	first := c.ForProfile(profile)
	second := c.ForProfile(profile)

	assert.Same(t, first, second)
	assert.Equal(t, []string{"System"}, first.Names())
	assert.Contains(t, logs.String(), `reference "Missing" not found`)
}
