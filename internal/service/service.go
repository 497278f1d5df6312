// Package service holds the listing and request lifecycle engines. Every
// mutation takes the acting identity explicitly and enforces ownership itself.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/punchamoorthee/trash2cash/internal/domain"
	"github.com/punchamoorthee/trash2cash/internal/store"
)

// Option customizes a service.
type Option func(*base)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithMaxImageBytes caps the decoded size of inline images. Zero means no cap.
func WithMaxImageBytes(n int64) Option {
	return func(b *base) { b.maxImageBytes = n }
}

type base struct {
	store         store.Store
	now           func() time.Time
	newID         func() string
	maxImageBytes int64
}

func newBase(st store.Store, opts []Option) base {
	b := base{store: st, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b base) clock() time.Time {
	return b.now().UTC()
}

// storeErr converts access-layer failures into domain error kinds. Errors that
// already carry a kind pass through untouched.
func storeErr(err error, entity, id string) error {
	switch {
	case err == nil:
		return nil
	case domain.IsKind(err):
		return err
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrNotFound)
	case errors.Is(err, store.ErrDuplicate), errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%s %s: %w", entity, id, domain.ErrConflict)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	default:
		log.Printf("store error on %s %s: %v", entity, id, err)
		return fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
}

func requireOwner(actor domain.Actor, l *domain.Listing) error {
	if actor.ID == "" || l.OwnerID != actor.ID {
		return fmt.Errorf("%w: listing %s belongs to another account", domain.ErrUnauthorized, l.ID)
	}
	return nil
}

func requireRequester(actor domain.Actor, r *domain.Request) error {
	if actor.ID == "" || r.RequesterID != actor.ID {
		return fmt.Errorf("%w: request %s was raised by another account", domain.ErrUnauthorized, r.ID)
	}
	return nil
}

func isConflict(err error) bool {
	return errors.Is(err, domain.ErrConflict)
}
