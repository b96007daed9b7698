//go:generate go run go.uber.org/mock/mockgen -source=blobstore.go -destination=../mocks/mock_blobstore.go -package=mocks
package blobstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Attachment kinds.
const (
	KindImage = "image"
	KindVideo = "video"
	KindAudio = "audio"
	KindFile  = "file"
)

// Object is a stored blob.
type Object struct {
	PublicID string
	URL      string
}

// BlobStore keeps attachment objects outside the database.
type BlobStore interface {
	Upload(ctx context.Context, name string, data []byte) (Object, error)
	// DeleteMany removes the objects. Ids that no longer exist count as deleted.
	DeleteMany(ctx context.Context, ids []string) error
}

// PartialFailureError lists the ids a bulk delete could not remove.
type PartialFailureError struct {
	Failed []string
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("failed to delete %d blob(s): %s", len(e.Failed), strings.Join(e.Failed, ", "))
}

// DetectKind classifies content by sniffing its leading bytes.
func DetectKind(data []byte) string {
	mtype := mimetype.Detect(data)
	for m := mtype; m != nil; m = m.Parent() {
		switch {
		case strings.HasPrefix(m.String(), "image/"):
			return KindImage
		case strings.HasPrefix(m.String(), "video/"):
			return KindVideo
		case strings.HasPrefix(m.String(), "audio/"):
			return KindAudio
		}
	}
	return KindFile
}

// chunk splits ids into batches of at most size.
func chunk(ids []string, size int) [][]string {
	var batches [][]string
	for size < len(ids) {
		ids, batches = ids[size:], append(batches, ids[:size:size])
	}
	if len(ids) > 0 {
		batches = append(batches, ids)
	}
	return batches
}
