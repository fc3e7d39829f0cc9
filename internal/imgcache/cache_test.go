package imgcache

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))))
}

func TestCache_ImageSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "icon.png")
	writePNG(t, path, 64, 32)

	c := New(4, nil)
	w, h, err := c.ImageSize(path)
	require.NoError(t, err)
	assert.Equal(t, 64, w)
	assert.Equal(t, 32, h)

	_, _, err = c.ImageSize(path)
	require.NoError(t, err)
	hits, misses := c.Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	e := c.Entries()[0]
	assert.Equal(t, "png", e.Format)
	assert.Equal(t, path, e.Path)
}

func TestCache_StaleModTimeRedecodes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "icon.png")
	writePNG(t, path, 10, 10)

	c := New(4, nil)
	_, _, err := c.ImageSize(path)
	require.NoError(t, err)

	writePNG(t, path, 20, 5)
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	w, h, err := c.ImageSize(path)
	require.NoError(t, err)
	assert.Equal(t, 20, w)
	assert.Equal(t, 5, h)
	assert.Equal(t, 1, c.Len())
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 3)
	for i := range paths {
		paths[i] = filepath.Join(dir, string(rune('a'+i))+".png")
		writePNG(t, paths[i], i+1, i+1)
	}

	c := New(2, nil)
	for _, p := range paths[:2] {
		_, _, err := c.ImageSize(p)
		require.NoError(t, err)
	}
	// Touch a so b becomes the oldest.
	_, _, err := c.ImageSize(paths[0])
	require.NoError(t, err)
	_, _, err = c.ImageSize(paths[2])
	require.NoError(t, err)

	var got []string
	for _, e := range c.Entries() {
		got = append(got, e.Path)
	}
	assert.Equal(t, []string{paths[0], paths[2]}, got)
}

func TestCache_Errors(t *testing.T) {
	dir := t.TempDir()
	c := New(0, nil)
	assert.Equal(t, DefaultMaxEntries, c.Cap())

	_, _, err := c.ImageSize(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	text := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(text, []byte("not an image"), 0o600))
	_, _, err = c.ImageSize(text)
	assert.ErrorIs(t, err, ErrUndecodable)
	assert.Zero(t, c.Len())
}

func TestCache_SaveLoadKeepsOrder(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "cache", "images.db")
	ctx := context.Background()

	c := New(8, nil)
	base := time.Unix(1700000000, 0)
	for i, name := range []string{"/a.png", "/b.png", "/c.png"} {
		c.Add(Entry{Path: name, Width: i + 1, Height: 2 * (i + 1), Format: "png", ModTime: base.Add(time.Duration(i) * time.Second)})
	}
	require.NoError(t, c.Save(ctx, db))

	info, err := os.Stat(filepath.Dir(db))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())

	loaded := New(8, nil)
	n, err := loaded.Load(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	entries := loaded.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "/a.png", entries[0].Path)
	assert.Equal(t, "/c.png", entries[2].Path)
	assert.Equal(t, 3, entries[2].Width)
	assert.True(t, entries[1].ModTime.Equal(base.Add(time.Second)))

	// A smaller cache keeps the most recent entries.
	small := New(2, nil)
	_, err = small.Load(ctx, db)
	require.NoError(t, err)
	var paths []string
	for _, e := range small.Entries() {
		paths = append(paths, e.Path)
	}
	assert.Equal(t, []string{"/b.png", "/c.png"}, paths)
}

func TestCache_LoadMissingDatabase(t *testing.T) {
	c := New(4, nil)
	n, err := c.Load(context.Background(), filepath.Join(t.TempDir(), "none.db"))
	require.NoError(t, err)
	assert.Zero(t, n)
}
