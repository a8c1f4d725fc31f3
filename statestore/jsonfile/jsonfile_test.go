package jsonfile

import (
	"os"
	"testing"

	"github.com/jean-emmanuel/mentat/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	entries := []transport.Entry{
		{Path: []string{"a"}, Values: []any{1.0}},
		{Path: []string{"b"}, Values: []any{"hi"}},
		{Path: []string{"sub", "c"}, Values: []any{0.1, 0.2}},
	}
	require.NoError(t, s.Save("s1", entries))

	got, err := s.Load("s1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, entries, got)
}

func TestLoadIgnoresComments(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	raw := `["a snapshot comment", ["x", 1]]`
	require.NoError(t, writeRaw(s.path("commented"), raw))

	got, err := s.Load("commented")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"x"}, got[0].Path)
}

func TestLoadStringValueWithoutResolver(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, writeRaw(s.path("greeting"), `[["b", "hi"]]`))

	got, err := s.Load("greeting")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"b"}, got[0].Path)
	assert.Equal(t, []any{"hi"}, got[0].Values)
}

func TestLoadWithResolverDisambiguatesSubmodulePath(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)
	// Resolver knows "sub.greeting" is a parameter path, so the candidate
	// ["sub", "greeting"] should stop consuming there even though the
	// value itself is also a string.
	s.Resolver = func(candidate []string) bool {
		return len(candidate) == 2 && candidate[0] == "sub" && candidate[1] == "greeting"
	}

	require.NoError(t, writeRaw(s.path("nested"), `[["sub", "greeting", "hello"]]`))

	got, err := s.Load("nested")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"sub", "greeting"}, got[0].Path)
	assert.Equal(t, []any{"hello"}, got[0].Values)
}

func TestLoadRejectsMalformedElement(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	require.NoError(t, writeRaw(s.path("bad"), `[42]`))

	_, err = s.Load("bad")
	assert.Error(t, err)
}

func writeRaw(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o644)
}
