// Package store is the access layer over the listings and requests collections.
package store

import (
	"context"
	"errors"

	"github.com/punchamoorthee/trash2cash/internal/domain"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	ErrConflict  = errors.New("concurrent update")
)

// Queries are the reads and writes available both on a Store and inside a transaction.
// Lock* variants hold the row until the surrounding transaction ends.
type Queries interface {
	InsertListing(ctx context.Context, l *domain.Listing) error
	GetListing(ctx context.Context, id string) (*domain.Listing, error)
	LockListing(ctx context.Context, id string) (*domain.Listing, error)
	FindListings(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, error)
	GetListingsByIDs(ctx context.Context, ids []string) (map[string]domain.Listing, error)
	UpdateListing(ctx context.Context, l *domain.Listing) error
	DeleteListing(ctx context.Context, id string) error

	InsertRequest(ctx context.Context, r *domain.Request) error
	GetRequest(ctx context.Context, id string) (*domain.Request, error)
	LockRequest(ctx context.Context, id string) (*domain.Request, error)
	FindRequests(ctx context.Context, f domain.RequestFilter) ([]domain.Request, error)
	UpdateRequest(ctx context.Context, r *domain.Request) error
	DeleteRequest(ctx context.Context, id string) error
	DeleteRequestsForListing(ctx context.Context, listingID string) (int64, error)
}

// Store runs Queries directly or as one atomic unit through Tx.
// If fn returns an error nothing it wrote is kept.
type Store interface {
	Queries
	Tx(ctx context.Context, fn func(q Queries) error) error
	Ping(ctx context.Context) error
	Close()
}
