package repositories

import (
	"context"
	"database/sql"
	"delivery-batch-service/internal/domain"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// Initialize the Postgres schema. Every statement is idempotent.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createMerchantsQuery := `
	CREATE TABLE IF NOT EXISTS merchants (
		merchant_id BIGINT PRIMARY KEY,
		name TEXT NOT NULL,
		address TEXT NOT NULL DEFAULT '',
		lat DOUBLE PRECISION NOT NULL,
		lon DOUBLE PRECISION NOT NULL
	);
	`

	createBatchesQuery := `
	CREATE TABLE IF NOT EXISTS batches (
		batch_id TEXT PRIMARY KEY,
		zone_id BIGINT NOT NULL,
		status TEXT NOT NULL,
		total_distance_meters DOUBLE PRECISION NOT NULL DEFAULT 0,
		estimated_duration_seconds BIGINT NOT NULL DEFAULT 0,
		savings_percentage DOUBLE PRECISION NOT NULL DEFAULT 0,
		driver_id BIGINT,
		created_at TIMESTAMPTZ NOT NULL,
		assigned_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`

	createOrdersQuery := `
	CREATE TABLE IF NOT EXISTS orders (
		order_id BIGINT PRIMARY KEY,
		merchant_id BIGINT NOT NULL REFERENCES merchants(merchant_id),
		zone_id BIGINT NOT NULL,
		delivery_lat DOUBLE PRECISION NOT NULL,
		delivery_lon DOUBLE PRECISION NOT NULL,
		delivery_address TEXT NOT NULL DEFAULT '',
		window_start TIMESTAMPTZ,
		window_end TIMESTAMPTZ,
		item_count INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL,
		batch_id TEXT REFERENCES batches(batch_id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	`

	createBatchOrdersQuery := `
	CREATE TABLE IF NOT EXISTS batch_orders (
		batch_id TEXT NOT NULL REFERENCES batches(batch_id) ON DELETE CASCADE,
		order_id BIGINT NOT NULL REFERENCES orders(order_id),
		position INTEGER NOT NULL,
		PRIMARY KEY (batch_id, order_id)
	);
	`

	createIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_orders_unbatched
	ON orders(zone_id, created_at)
	WHERE batch_id IS NULL AND status = 'confirmed';
	`

	statements := []string{
		createMerchantsQuery,
		createBatchesQuery,
		createOrdersQuery,
		createBatchOrdersQuery,
		createIndexQuery,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

type MerchantSeed struct {
	MerchantID int64   `json:"merchant_id"`
	Name       string  `json:"name"`
	Address    string  `json:"address"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
}

type OrderSeed struct {
	OrderID         int64      `json:"order_id"`
	MerchantID      int64      `json:"merchant_id"`
	ZoneID          int64      `json:"zone_id"`
	DeliveryLat     float64    `json:"delivery_lat"`
	DeliveryLon     float64    `json:"delivery_lon"`
	DeliveryAddress string     `json:"delivery_address"`
	WindowStart     *time.Time `json:"window_start,omitempty"`
	WindowEnd       *time.Time `json:"window_end,omitempty"`
	ItemCount       int        `json:"item_count"`
}

type SeedFile struct {
	Merchants []MerchantSeed `json:"merchants"`
	Orders    []OrderSeed    `json:"orders"`
}

// Validate checks a seed file before anything is written.
func (f SeedFile) Validate() error {
	merchants := make(map[int64]struct{}, len(f.Merchants))
	for i, m := range f.Merchants {
		if m.MerchantID <= 0 {
			return fmt.Errorf("invalid merchant_id at index %d: %d", i+1, m.MerchantID)
		}
		if strings.TrimSpace(m.Name) == "" {
			return fmt.Errorf("merchant at index %d: name cannot be empty", i+1)
		}
		if !(domain.Coordinates{Lat: m.Lat, Lon: m.Lon}).IsValid() {
			return fmt.Errorf("merchant at index %d: coordinates out of range", i+1)
		}
		merchants[m.MerchantID] = struct{}{}
	}

	for i, o := range f.Orders {
		if o.OrderID <= 0 {
			return fmt.Errorf("invalid order_id at index %d: %d", i+1, o.OrderID)
		}
		if _, ok := merchants[o.MerchantID]; !ok {
			return fmt.Errorf("order at index %d: unknown merchant_id %d", i+1, o.MerchantID)
		}
		if !(domain.Coordinates{Lat: o.DeliveryLat, Lon: o.DeliveryLon}).IsValid() {
			return fmt.Errorf("order at index %d: delivery coordinates out of range", i+1)
		}
		if (o.WindowStart == nil) != (o.WindowEnd == nil) {
			return fmt.Errorf("order at index %d: window needs both start and end", i+1)
		}
		if o.WindowStart != nil && o.WindowEnd.Before(*o.WindowStart) {
			return fmt.Errorf("order at index %d: window ends before it starts", i+1)
		}
	}
	return nil
}

// Populate the database with merchants and confirmed orders from a JSON file.
func SeedFromJSON(ctx context.Context, db *sql.DB, jsonPath string) error {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("seed orders: read %q: %w", jsonPath, err)
	}

	var data SeedFile
	if err := json.Unmarshal(bytes, &data); err != nil {
		return fmt.Errorf("seed orders: parse json: %w", err)
	}
	if err := data.Validate(); err != nil {
		return fmt.Errorf("seed orders: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed orders: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	merchantStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO merchants (merchant_id, name, address, lat, lon)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (merchant_id) DO UPDATE
	SET name = EXCLUDED.name,
		address = EXCLUDED.address,
		lat = EXCLUDED.lat,
		lon = EXCLUDED.lon;
	`)
	if err != nil {
		return fmt.Errorf("seed orders: prepare merchant insert: %w", err)
	}
	defer merchantStmt.Close()

	for _, m := range data.Merchants {
		if _, err := merchantStmt.ExecContext(ctx, m.MerchantID, strings.TrimSpace(m.Name), m.Address, m.Lat, m.Lon); err != nil {
			return fmt.Errorf("seed orders: insert merchant_id=%d: %w", m.MerchantID, err)
		}
	}

	orderStmt, err := tx.PrepareContext(ctx, `
	INSERT INTO orders (
		order_id, merchant_id, zone_id,
		delivery_lat, delivery_lon, delivery_address,
		window_start, window_end, item_count, status
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'confirmed')
	ON CONFLICT (order_id) DO NOTHING;
	`)
	if err != nil {
		return fmt.Errorf("seed orders: prepare order insert: %w", err)
	}
	defer orderStmt.Close()

	for _, o := range data.Orders {
		items := o.ItemCount
		if items <= 0 {
			items = 1
		}
		if _, err := orderStmt.ExecContext(ctx,
			o.OrderID, o.MerchantID, o.ZoneID,
			o.DeliveryLat, o.DeliveryLon, o.DeliveryAddress,
			o.WindowStart, o.WindowEnd, items,
		); err != nil {
			return fmt.Errorf("seed orders: insert order_id=%d: %w", o.OrderID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed orders: commit tx: %w", err)
	}

	return nil
}
