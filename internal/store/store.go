// Package store persists the shop document and provides the single
// exclusive section every read-modify-write transaction runs under.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/ariefcatur/go-realtime-shop/internal/orders"
	"github.com/sirupsen/logrus"
)

// Backend loads and saves the whole document. Load must return a usable
// document when none exists yet or the stored one cannot be decoded, and
// must not write.
// Save is a full overwrite and must be atomic with respect to Load.
type Backend interface {
	Load(ctx context.Context) (*orders.Document, error)
	Save(ctx context.Context, doc *orders.Document) error
}

// ErrNoChange returned from an Update callback ends the transaction
// without saving and without reporting an error.
var ErrNoChange = errors.New("store: no change")

type Store struct {
	mu      sync.Mutex
	backend Backend
}

func New(b Backend) *Store {
	return &Store{backend: b}
}

// Update runs fn on a freshly loaded document while holding the exclusive
// section and persists the result. When fn returns an error nothing is saved;
// ErrNoChange is swallowed.
// fn must not retain doc or perform external I/O.
func (s *Store) Update(ctx context.Context, fn func(doc *orders.Document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.backend.Load(ctx)
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		if errors.Is(err, ErrNoChange) {
			return nil
		}
		return err
	}
	return s.backend.Save(ctx, doc)
}

// Init persists the document once so it exists before the first reader.
func (s *Store) Init(ctx context.Context) error {
	return s.Update(ctx, func(*orders.Document) error { return nil })
}

// View returns the last persisted document without taking the section.
// The caller owns the returned value.
func (s *Store) View(ctx context.Context) (*orders.Document, error) {
	return s.backend.Load(ctx)
}

// decode turns raw bytes into a document. Corrupt content falls back to an
// empty document: the shop stays available and the loss is only logged.
func decode(raw []byte, log logrus.FieldLogger, source string) *orders.Document {
	doc := orders.NewDocument()
	if err := json.Unmarshal(raw, doc); err != nil {
		if log != nil {
			log.WithError(err).WithField("source", source).Warn("store document corrupt, starting from empty document")
		}
		return orders.NewDocument()
	}
	doc.Normalize()
	return doc
}

func encode(doc *orders.Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}
