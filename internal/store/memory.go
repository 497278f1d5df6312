package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/punchamoorthee/trash2cash/internal/domain"
)

var (
	_ Store   = (*Memory)(nil)
	_ Queries = (*memState)(nil)
)

// Memory keeps both collections in process. Transactions work on a copy of the
// state that replaces the live state only when fn succeeds.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

type memState struct {
	listings map[string]domain.Listing
	requests map[string]domain.Request
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{state: &memState{
		listings: make(map[string]domain.Listing),
		requests: make(map[string]domain.Request),
	}}
}

func (m *Memory) Tx(ctx context.Context, fn func(q Queries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(work); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *Memory) Ping(ctx context.Context) error { return ctx.Err() }

func (m *Memory) Close() {}

func (m *Memory) InsertListing(ctx context.Context, l *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.InsertListing(ctx, l)
}

func (m *Memory) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetListing(ctx, id)
}

func (m *Memory) LockListing(ctx context.Context, id string) (*domain.Listing, error) {
	return m.GetListing(ctx, id)
}

func (m *Memory) FindListings(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.FindListings(ctx, f)
}

func (m *Memory) GetListingsByIDs(ctx context.Context, ids []string) (map[string]domain.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetListingsByIDs(ctx, ids)
}

func (m *Memory) UpdateListing(ctx context.Context, l *domain.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.UpdateListing(ctx, l)
}

func (m *Memory) DeleteListing(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeleteListing(ctx, id)
}

func (m *Memory) InsertRequest(ctx context.Context, r *domain.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.InsertRequest(ctx, r)
}

func (m *Memory) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetRequest(ctx, id)
}

func (m *Memory) LockRequest(ctx context.Context, id string) (*domain.Request, error) {
	return m.GetRequest(ctx, id)
}

func (m *Memory) FindRequests(ctx context.Context, f domain.RequestFilter) ([]domain.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.FindRequests(ctx, f)
}

func (m *Memory) UpdateRequest(ctx context.Context, r *domain.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.UpdateRequest(ctx, r)
}

func (m *Memory) DeleteRequest(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeleteRequest(ctx, id)
}

func (m *Memory) DeleteRequestsForListing(ctx context.Context, listingID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeleteRequestsForListing(ctx, listingID)
}

func (s *memState) clone() *memState {
	c := &memState{
		listings: make(map[string]domain.Listing, len(s.listings)),
		requests: make(map[string]domain.Request, len(s.requests)),
	}
	for k, v := range s.listings {
		c.listings[k] = v
	}
	for k, v := range s.requests {
		c.requests[k] = v
	}
	return c
}

func (s *memState) InsertListing(_ context.Context, l *domain.Listing) error {
	if _, ok := s.listings[l.ID]; ok {
		return fmt.Errorf("listing %s: %w", l.ID, ErrDuplicate)
	}
	s.listings[l.ID] = *l
	return nil
}

func (s *memState) GetListing(_ context.Context, id string) (*domain.Listing, error) {
	l, ok := s.listings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (s *memState) LockListing(ctx context.Context, id string) (*domain.Listing, error) {
	return s.GetListing(ctx, id)
}

func (s *memState) FindListings(_ context.Context, f domain.ListingFilter) ([]domain.Listing, error) {
	out := make([]domain.Listing, 0)
	for _, l := range s.listings {
		if f.OwnerID != "" && l.OwnerID != f.OwnerID {
			continue
		}
		if f.OwnerRole != "" && l.OwnerRole != f.OwnerRole {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memState) GetListingsByIDs(_ context.Context, ids []string) (map[string]domain.Listing, error) {
	out := make(map[string]domain.Listing, len(ids))
	for _, id := range ids {
		if l, ok := s.listings[id]; ok {
			out[id] = l
		}
	}
	return out, nil
}

func (s *memState) UpdateListing(_ context.Context, l *domain.Listing) error {
	if _, ok := s.listings[l.ID]; !ok {
		return ErrNotFound
	}
	s.listings[l.ID] = *l
	return nil
}

// DeleteListing also drops the listing's requests, matching the ON DELETE CASCADE
// foreign key of the Postgres schema.
func (s *memState) DeleteListing(ctx context.Context, id string) error {
	if _, ok := s.listings[id]; !ok {
		return ErrNotFound
	}
	if _, err := s.DeleteRequestsForListing(ctx, id); err != nil {
		return err
	}
	delete(s.listings, id)
	return nil
}

func (s *memState) InsertRequest(_ context.Context, r *domain.Request) error {
	if _, ok := s.listings[r.ListingID]; !ok {
		return ErrNotFound
	}
	if _, ok := s.requests[r.ID]; ok {
		return fmt.Errorf("request %s: %w", r.ID, ErrDuplicate)
	}
	for _, existing := range s.requests {
		if existing.ListingID == r.ListingID && existing.RequesterID == r.RequesterID {
			return fmt.Errorf("request for listing %s by %s: %w", r.ListingID, r.RequesterID, ErrDuplicate)
		}
	}
	s.requests[r.ID] = *r
	return nil
}

func (s *memState) GetRequest(_ context.Context, id string) (*domain.Request, error) {
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *memState) LockRequest(ctx context.Context, id string) (*domain.Request, error) {
	return s.GetRequest(ctx, id)
}

func (s *memState) FindRequests(_ context.Context, f domain.RequestFilter) ([]domain.Request, error) {
	out := make([]domain.Request, 0)
	for _, r := range s.requests {
		if f.ListingID != "" && r.ListingID != f.ListingID {
			continue
		}
		if f.RequesterID != "" && r.RequesterID != f.RequesterID {
			continue
		}
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memState) UpdateRequest(_ context.Context, r *domain.Request) error {
	if _, ok := s.requests[r.ID]; !ok {
		return ErrNotFound
	}
	s.requests[r.ID] = *r
	return nil
}

func (s *memState) DeleteRequest(_ context.Context, id string) error {
	if _, ok := s.requests[id]; !ok {
		return ErrNotFound
	}
	delete(s.requests, id)
	return nil
}

func (s *memState) DeleteRequestsForListing(_ context.Context, listingID string) (int64, error) {
	var n int64
	for id, r := range s.requests {
		if r.ListingID == listingID {
			delete(s.requests, id)
			n++
		}
	}
	return n, nil
}
