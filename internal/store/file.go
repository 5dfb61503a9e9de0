package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/ariefcatur/go-realtime-shop/internal/orders"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FileBackend keeps the document as one JSON file. Saves go through a
// temp file + rename so a concurrent reader sees either the old or the new
// document, never a partial write.
type FileBackend struct {
	Path string
	Log  logrus.FieldLogger
}

func (f *FileBackend) Load(_ context.Context) (*orders.Document, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return orders.NewDocument(), nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read store file %s", f.Path)
	}
	return decode(raw, f.Log, f.Path), nil
}

func (f *FileBackend) Save(_ context.Context, doc *orders.Document) error {
	b, err := encode(doc)
	if err != nil {
		return errors.Wrap(err, "encode store document")
	}
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create store dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.Path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp store file")
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // no-op after a successful rename

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp store file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "sync temp store file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp store file")
	}
	if err := os.Rename(tmpName, f.Path); err != nil {
		return errors.Wrapf(err, "replace store file %s", f.Path)
	}
	return nil
}
