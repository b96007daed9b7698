package blobstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

func TestDetectKind(t *testing.T) {
	req := require.New(t)
	req.Equal(KindImage, DetectKind(pngHeader))
	req.Equal(KindFile, DetectKind([]byte("plain text notes")))
	req.Equal(KindAudio, DetectKind([]byte("ID3\x03\x00\x00\x00\x00\x00\x00")))
}

func TestChunk(t *testing.T) {
	req := require.New(t)
	ids := []string{"a", "b", "c", "d", "e"}

	req.Equal([][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunk(ids, 2))
	req.Equal([][]string{{"a", "b", "c", "d", "e"}}, chunk(ids, 100))
	req.Empty(chunk(nil, 10))
}

func TestDisk(t *testing.T) {
	ctx := context.Background()

	t.Run("should store a file and serve it under /uploads", func(t *testing.T) {
		req := require.New(t)
		dir := t.TempDir()
		store, err := NewDisk(dir, "http://localhost:8080/")
		req.NoError(err)

		obj, err := store.Upload(ctx, "cat.png", pngHeader)

		req.NoError(err)
		req.True(strings.HasSuffix(obj.PublicID, ".png"))
		req.Equal("http://localhost:8080/uploads/"+obj.PublicID, obj.URL)
		data, err := os.ReadFile(filepath.Join(dir, obj.PublicID))
		req.NoError(err)
		req.Equal(pngHeader, data)
	})

	t.Run("should treat already deleted ids as deleted", func(t *testing.T) {
		req := require.New(t)
		dir := t.TempDir()
		store, err := NewDisk(dir, "http://localhost:8080")
		req.NoError(err)
		obj, err := store.Upload(ctx, "notes.txt", []byte("hello"))
		req.NoError(err)

		req.NoError(store.DeleteMany(ctx, []string{obj.PublicID, "never-existed.txt"}))
		req.NoError(store.DeleteMany(ctx, []string{obj.PublicID}))

		_, err = os.Stat(filepath.Join(dir, obj.PublicID))
		req.True(os.IsNotExist(err))
	})

	t.Run("should refuse ids that escape the upload dir", func(t *testing.T) {
		req := require.New(t)
		store, err := NewDisk(t.TempDir(), "http://localhost:8080")
		req.NoError(err)

		err = store.DeleteMany(ctx, []string{"../etc/passwd"})

		var partial *PartialFailureError
		req.ErrorAs(err, &partial)
		req.Equal([]string{"../etc/passwd"}, partial.Failed)
	})
}
