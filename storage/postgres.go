package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/toftmakemore/makemoreV2/models"
)

// PersistenceError wraps a failed store write so callers can distinguish it
// from source-data problems.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// =============================================================================
// Tenants
// =============================================================================

func (s *PostgresStore) GetActiveTenants(ctx context.Context) ([]models.Tenant, error) {
	query := `
		SELECT id, dealer_id, name, source_id, facebook_page_id, page_token, active, created_at
		FROM tenants
		WHERE active = TRUE AND dealer_id <> ''
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []models.Tenant
	for rows.Next() {
		var t models.Tenant
		if err := rows.Scan(&t.ID, &t.DealerID, &t.Name, &t.SourceID, &t.FacebookPageID, &t.PageToken, &t.Active, &t.CreatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// GetExcludedVehicleIDs returns the tenant's excludeCars id set. Excluded
// vehicles are dropped from the fetched inventory before any diffing.
func (s *PostgresStore) GetExcludedVehicleIDs(ctx context.Context, tenantID uuid.UUID) (map[string]bool, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT vehicle_id FROM excluded_vehicles WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	excluded := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		excluded[id] = true
	}
	return excluded, rows.Err()
}

// =============================================================================
// Snapshots
// =============================================================================

// SaveSnapshot replaces the tenant's snapshot for the given day. Re-running
// the same day overwrites rather than accumulates.
func (s *PostgresStore) SaveSnapshot(ctx context.Context, tenantID uuid.UUID, day time.Time, vehicles []models.Vehicle) error {
	day = truncateDay(day)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &PersistenceError{Op: "snapshot begin", Err: err}
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM snapshots WHERE tenant_id = $1 AND snapshot_day = $2`, tenantID, day); err != nil {
		return &PersistenceError{Op: "snapshot delete", Err: err}
	}

	batch := &pgx.Batch{}
	for i := range vehicles {
		v := &vehicles[i]
		fields, images := marshalVehicleJSON(v)
		batch.Queue(`
			INSERT INTO snapshots (tenant_id, snapshot_day, vehicle_id, url, price_int, created_date, headline, fields, images, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			tenantID, day, v.ID, v.URL, v.PriceInt, v.CreatedDate, v.Headline, fields, images, v.Data)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return &PersistenceError{Op: "snapshot insert", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &PersistenceError{Op: "snapshot commit", Err: err}
	}
	return nil
}

// GetSnapshot returns the tenant's inventory as of the given day, or nil if
// no snapshot exists for that day.
func (s *PostgresStore) GetSnapshot(ctx context.Context, tenantID uuid.UUID, day time.Time) ([]models.Vehicle, error) {
	query := `
		SELECT vehicle_id, url, price_int, created_date, headline, fields, images, data
		FROM snapshots
		WHERE tenant_id = $1 AND snapshot_day = $2
		ORDER BY vehicle_id`

	rows, err := s.pool.Query(ctx, query, tenantID, truncateDay(day))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanVehicles(rows)
}

// GetLatestSnapshotDay returns the most recent snapshot day strictly before
// the given day, or zero time when the tenant has no earlier snapshot.
func (s *PostgresStore) GetLatestSnapshotDay(ctx context.Context, tenantID uuid.UUID, before time.Time) (time.Time, error) {
	var day time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT snapshot_day FROM snapshots
		WHERE tenant_id = $1 AND snapshot_day < $2
		ORDER BY snapshot_day DESC
		LIMIT 1`, tenantID, truncateDay(before)).Scan(&day)
	if err == pgx.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return day, nil
}

// =============================================================================
// Category sets
// =============================================================================

// ReplaceCategorySet swaps the full contents of a named category set inside
// one transaction, so readers never observe a half-old, half-new state.
// Items without an id or url are skipped, not fatal; the skip count is
// returned for the caller to surface.
func (s *PostgresStore) ReplaceCategorySet(ctx context.Context, tenantID uuid.UUID, collection string, vehicles []models.Vehicle) (int, error) {
	if !models.ValidCollections[collection] {
		return 0, fmt.Errorf("unknown collection: %s", collection)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, &PersistenceError{Op: "category begin", Err: err}
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM category_sets WHERE tenant_id = $1 AND collection = $2`, tenantID, collection); err != nil {
		return 0, &PersistenceError{Op: "category delete", Err: err}
	}

	skipped := 0
	batch := &pgx.Batch{}
	for i := range vehicles {
		v := &vehicles[i]
		if v.ID == "" || strings.TrimSpace(v.URL) == "" {
			skipped++
			continue
		}
		fields, images := marshalVehicleJSON(v)
		batch.Queue(`
			INSERT INTO category_sets (tenant_id, collection, vehicle_id, url, price_int, previous_price, created_date, headline, fields, images, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (tenant_id, collection, vehicle_id) DO UPDATE SET
				url = EXCLUDED.url,
				price_int = EXCLUDED.price_int,
				previous_price = EXCLUDED.previous_price,
				headline = EXCLUDED.headline,
				fields = EXCLUDED.fields,
				images = EXCLUDED.images,
				data = EXCLUDED.data`,
			tenantID, collection, v.ID, v.URL, v.PriceInt, v.PreviousPrice, v.CreatedDate, v.Headline, fields, images, v.Data)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return skipped, &PersistenceError{Op: "category insert", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return skipped, &PersistenceError{Op: "category commit", Err: err}
	}
	return skipped, nil
}

func (s *PostgresStore) GetCategorySet(ctx context.Context, tenantID uuid.UUID, collection string) ([]models.Vehicle, error) {
	query := `
		SELECT vehicle_id, url, price_int, previous_price, created_date, headline, fields, images, data
		FROM category_sets
		WHERE tenant_id = $1 AND collection = $2
		ORDER BY vehicle_id`

	rows, err := s.pool.Query(ctx, query, tenantID, collection)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		var fields, images []byte
		if err := rows.Scan(&v.ID, &v.URL, &v.PriceInt, &v.PreviousPrice, &v.CreatedDate, &v.Headline, &fields, &images, &v.Data); err != nil {
			return nil, err
		}
		unmarshalVehicleJSON(&v, fields, images)
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}

func (s *PostgresStore) CountCategorySet(ctx context.Context, tenantID uuid.UUID, collection string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM category_sets WHERE tenant_id = $1 AND collection = $2`,
		tenantID, collection).Scan(&count)
	return count, err
}

// =============================================================================
// AutoPost configs
// =============================================================================

func (s *PostgresStore) GetActiveAutoPosts(ctx context.Context, tenantID uuid.UUID) ([]models.AutoPostConfig, error) {
	query := `
		SELECT id, tenant_id, active, collection_name, design_uuids, channels,
			use_auto_interval, manual_interval, cars_count, last_updated, created_at
		FROM auto_posts
		WHERE tenant_id = $1 AND active = TRUE
		ORDER BY created_at DESC`

	rows, err := s.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var configs []models.AutoPostConfig
	for rows.Next() {
		var c models.AutoPostConfig
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Active, &c.CollectionName, &c.DesignUUIDs, &c.Channels,
			&c.UseAutoInterval, &c.ManualInterval, &c.CarsCount, &c.LastUpdated, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Normalize()
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// UpdateAutoPostCount stores the current member count of the config's
// category set, for display.
func (s *PostgresStore) UpdateAutoPostCount(ctx context.Context, id uuid.UUID, count int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE auto_posts SET cars_count = $2, last_updated = NOW() WHERE id = $1`, id, count)
	if err != nil {
		return &PersistenceError{Op: "auto_posts update", Err: err}
	}
	return nil
}

// =============================================================================
// Scheduled posts
// =============================================================================

// SaveScheduledPosts persists a generator batch. Pending posts created by the
// same autopost config earlier the same day are replaced, which keeps a
// re-triggered run idempotent.
func (s *PostgresStore) SaveScheduledPosts(ctx context.Context, posts []models.PostUnit) error {
	if len(posts) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &PersistenceError{Op: "posts begin", Err: err}
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM scheduled_posts
		WHERE auto_post_id = $1 AND status = $2 AND created_at::date = $3::date`,
		posts[0].AutoPostID, models.PostStatusPending, posts[0].CreatedAt); err != nil {
		return &PersistenceError{Op: "posts delete", Err: err}
	}

	batch := &pgx.Batch{}
	for i := range posts {
		p := &posts[i]
		children, err := json.Marshal(p.Children)
		if err != nil {
			return &PersistenceError{Op: "posts marshal", Err: err}
		}
		batch.Queue(`
			INSERT INTO scheduled_posts (id, tenant_id, auto_post_id, type, subject, text, channels,
				collection_name, posting_type, children, scheduled_date, status, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
			p.ID, p.TenantID, p.AutoPostID, p.Type, p.Subject, p.Text, p.Channels,
			p.CollectionName, p.PostingType, children, p.ScheduledDate, p.Status, p.CreatedAt)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return &PersistenceError{Op: "posts insert", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return &PersistenceError{Op: "posts commit", Err: err}
	}
	return nil
}

// =============================================================================
// Timeline
// =============================================================================

func (s *PostgresStore) InsertTimelineEntries(ctx context.Context, entries []models.TimelineEntry) error {
	if len(entries) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range entries {
		e := &entries[i]
		batch.Queue(`
			INSERT INTO timeline (id, tenant_id, vehicle_id, headline, post_type, collection_name, scheduled_date, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, e.TenantID, e.VehicleID, e.Headline, e.PostType, e.CollectionName, e.ScheduledDate, e.CreatedAt)
	}

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return &PersistenceError{Op: "timeline insert", Err: err}
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func marshalVehicleJSON(v *models.Vehicle) ([]byte, []byte) {
	fields, _ := json.Marshal(v.Fields)
	images, _ := json.Marshal(v.Images)
	return fields, images
}

func unmarshalVehicleJSON(v *models.Vehicle, fields, images []byte) {
	if len(fields) > 0 {
		json.Unmarshal(fields, &v.Fields)
	}
	if len(images) > 0 {
		json.Unmarshal(images, &v.Images)
	}
}

func scanVehicles(rows pgx.Rows) ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	for rows.Next() {
		var v models.Vehicle
		var fields, images []byte
		if err := rows.Scan(&v.ID, &v.URL, &v.PriceInt, &v.CreatedDate, &v.Headline, &fields, &images, &v.Data); err != nil {
			return nil, err
		}
		unmarshalVehicleJSON(&v, fields, images)
		vehicles = append(vehicles, v)
	}
	return vehicles, rows.Err()
}
