package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/trash2cash/internal/domain"
)

//go:embed schema.sql
var schema string

var _ Store = (*Postgres)(nil)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres stores listings and requests in two tables of one database.
type Postgres struct {
	pgQueries
	pool *pgxpool.Pool
}

type pgQueries struct {
	db dbtx
}

const listingColumns = `id, owner_id, owner_role, title, description, price, waste_type, image_url, status, created_at, updated_at`

const requestColumns = `id, listing_id, requester_id, type, status, pickup_location, contact_number, created_at, accepted_at, picked_up_at, paid_at`

// NewPostgres opens a pool against connString and verifies it with a ping.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return NewPostgresFromPool(pool), nil
}

// NewPostgresFromPool wraps an existing pool.
func NewPostgresFromPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pgQueries: pgQueries{db: pool}, pool: pool}
}

// Migrate creates the tables and indexes if they do not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Pool exposes the underlying pool for bulk loaders.
func (p *Postgres) Pool() *pgxpool.Pool { return p.pool }

func (p *Postgres) Ping(ctx context.Context) error { return p.pool.Ping(ctx) }

func (p *Postgres) Close() { p.pool.Close() }

// Tx runs fn at RepeatableRead. Rows read through Lock* stay locked until commit,
// so two writers on the same listing are serialized and the loser sees ErrConflict.
func (p *Postgres) Tx(ctx context.Context, fn func(q Queries) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(pgQueries{db: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", mapErr(err))
	}
	return nil
}

func (q pgQueries) InsertListing(ctx context.Context, l *domain.Listing) error {
	_, err := q.db.Exec(ctx,
		"INSERT INTO listings ("+listingColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)",
		l.ID, l.OwnerID, l.OwnerRole, l.Title, l.Description, l.Price, l.WasteType, l.ImageURL, l.Status, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("listing insert failed: %w", mapErr(err))
	}
	return nil
}

func (q pgQueries) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	return q.getListing(ctx, "SELECT "+listingColumns+" FROM listings WHERE id = $1", id)
}

func (q pgQueries) LockListing(ctx context.Context, id string) (*domain.Listing, error) {
	return q.getListing(ctx, "SELECT "+listingColumns+" FROM listings WHERE id = $1 FOR UPDATE", id)
}

func (q pgQueries) getListing(ctx context.Context, sql, id string) (*domain.Listing, error) {
	l, err := scanListing(q.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("listing query failed: %w", mapErr(err))
	}
	return l, nil
}

func (q pgQueries) FindListings(ctx context.Context, f domain.ListingFilter) ([]domain.Listing, error) {
	query := "SELECT " + listingColumns + " FROM listings WHERE TRUE"
	args := []any{}
	idx := 1

	if f.OwnerID != "" {
		query += fmt.Sprintf(" AND owner_id = $%d", idx)
		args = append(args, f.OwnerID)
		idx++
	}
	if f.OwnerRole != "" {
		query += fmt.Sprintf(" AND owner_role = $%d", idx)
		args = append(args, f.OwnerRole)
		idx++
	}
	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing query failed: %w", mapErr(err))
	}
	defer rows.Close()

	listings := make([]domain.Listing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("listing scan failed: %w", err)
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (q pgQueries) GetListingsByIDs(ctx context.Context, ids []string) (map[string]domain.Listing, error) {
	out := make(map[string]domain.Listing, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.db.Query(ctx, "SELECT "+listingColumns+" FROM listings WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("listing batch query failed: %w", mapErr(err))
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("listing scan failed: %w", err)
		}
		out[l.ID] = *l
	}
	return out, rows.Err()
}

func (q pgQueries) UpdateListing(ctx context.Context, l *domain.Listing) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE listings SET
			title = $2, description = $3, price = $4, waste_type = $5,
			image_url = $6, status = $7, updated_at = $8
		WHERE id = $1`,
		l.ID, l.Title, l.Description, l.Price, l.WasteType, l.ImageURL, l.Status, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("listing update failed: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q pgQueries) DeleteListing(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, "DELETE FROM listings WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("listing delete failed: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q pgQueries) InsertRequest(ctx context.Context, r *domain.Request) error {
	_, err := q.db.Exec(ctx,
		"INSERT INTO requests ("+requestColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)",
		r.ID, r.ListingID, r.RequesterID, r.Type, r.Status, r.PickupLocation, r.ContactNumber,
		r.CreatedAt, r.AcceptedAt, r.PickedUpAt, r.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("request insert failed: %w", mapErr(err))
	}
	return nil
}

func (q pgQueries) GetRequest(ctx context.Context, id string) (*domain.Request, error) {
	return q.getRequest(ctx, "SELECT "+requestColumns+" FROM requests WHERE id = $1", id)
}

func (q pgQueries) LockRequest(ctx context.Context, id string) (*domain.Request, error) {
	return q.getRequest(ctx, "SELECT "+requestColumns+" FROM requests WHERE id = $1 FOR UPDATE", id)
}

func (q pgQueries) getRequest(ctx context.Context, sql, id string) (*domain.Request, error) {
	r, err := scanRequest(q.db.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("request query failed: %w", mapErr(err))
	}
	return r, nil
}

func (q pgQueries) FindRequests(ctx context.Context, f domain.RequestFilter) ([]domain.Request, error) {
	query := "SELECT " + requestColumns + " FROM requests WHERE TRUE"
	args := []any{}
	idx := 1

	if f.ListingID != "" {
		query += fmt.Sprintf(" AND listing_id = $%d", idx)
		args = append(args, f.ListingID)
		idx++
	}
	if f.RequesterID != "" {
		query += fmt.Sprintf(" AND requester_id = $%d", idx)
		args = append(args, f.RequesterID)
		idx++
	}
	if f.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("request query failed: %w", mapErr(err))
	}
	defer rows.Close()

	requests := make([]domain.Request, 0)
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("request scan failed: %w", err)
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

func (q pgQueries) UpdateRequest(ctx context.Context, r *domain.Request) error {
	tag, err := q.db.Exec(ctx, `
		UPDATE requests SET
			status = $2, pickup_location = $3, contact_number = $4,
			accepted_at = $5, picked_up_at = $6, paid_at = $7
		WHERE id = $1`,
		r.ID, r.Status, r.PickupLocation, r.ContactNumber, r.AcceptedAt, r.PickedUpAt, r.PaidAt,
	)
	if err != nil {
		return fmt.Errorf("request update failed: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q pgQueries) DeleteRequest(ctx context.Context, id string) error {
	tag, err := q.db.Exec(ctx, "DELETE FROM requests WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("request delete failed: %w", mapErr(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q pgQueries) DeleteRequestsForListing(ctx context.Context, listingID string) (int64, error) {
	tag, err := q.db.Exec(ctx, "DELETE FROM requests WHERE listing_id = $1", listingID)
	if err != nil {
		return 0, fmt.Errorf("request cascade delete failed: %w", mapErr(err))
	}
	return tag.RowsAffected(), nil
}

func scanListing(row pgx.Row) (*domain.Listing, error) {
	var l domain.Listing
	err := row.Scan(&l.ID, &l.OwnerID, &l.OwnerRole, &l.Title, &l.Description, &l.Price,
		&l.WasteType, &l.ImageURL, &l.Status, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func scanRequest(row pgx.Row) (*domain.Request, error) {
	var r domain.Request
	err := row.Scan(&r.ID, &r.ListingID, &r.RequesterID, &r.Type, &r.Status, &r.PickupLocation,
		&r.ContactNumber, &r.CreatedAt, &r.AcceptedAt, &r.PickedUpAt, &r.PaidAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// mapErr translates Postgres error codes into the store's sentinel errors.
func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505": // unique_violation
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrDuplicate)
	case "23503": // foreign_key_violation
		return ErrNotFound
	case "22003", "22001": // numeric_value_out_of_range, string_data_right_truncation
		return fmt.Errorf("%s: %w", pgErr.Message, domain.ErrValidation)
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return ErrConflict
	}
	return err
}
