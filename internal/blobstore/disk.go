package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Disk stores blobs as files under one directory, served at <baseURL>/uploads/.
type Disk struct {
	dir     string
	baseURL string
}

func NewDisk(dir, baseURL string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir: %w", err)
	}
	return &Disk{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (d *Disk) Upload(ctx context.Context, name string, data []byte) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	ext := filepath.Ext(name)
	if ext == "" {
		ext = mimetype.Detect(data).Extension()
	}
	id := uuid.NewString() + ext

	if err := os.WriteFile(filepath.Join(d.dir, id), data, 0o644); err != nil {
		return Object{}, fmt.Errorf("failed to save file: %w", err)
	}
	return Object{PublicID: id, URL: d.baseURL + "/uploads/" + id}, nil
}

func (d *Disk) DeleteMany(ctx context.Context, ids []string) error {
	var failed []string
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Ids are file names; anything with a path component is not ours.
		if id == "" || filepath.Base(id) != id {
			failed = append(failed, id)
			continue
		}
		err := os.Remove(filepath.Join(d.dir, id))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			logrus.WithError(err).WithField("publicID", id).Warn("Failed to delete blob")
			failed = append(failed, id)
		}
	}
	if len(failed) > 0 {
		return &PartialFailureError{Failed: failed}
	}
	return nil
}
