package repositories

import (
	"context"
	"database/sql"
	"delivery-batch-service/internal/domain"
	"delivery-batch-service/internal/platform/obs"
	"errors"
	"fmt"
	"time"
)

// Postgres-backed implementation of the OrderRepository and BatchRepository
// ports. Orders are claimed with a conditional UPDATE so that two processes
// can never put the same order in two batches.
type PostgresStore struct{ DB *sql.DB }

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

const selectOrders = `
	SELECT
		o.order_id, o.merchant_id, m.name, o.zone_id,
		m.lat, m.lon, m.address,
		o.delivery_lat, o.delivery_lon, o.delivery_address,
		o.window_start, o.window_end, o.item_count, o.status, o.batch_id
	FROM orders o
	JOIN merchants m ON m.merchant_id = o.merchant_id
`

func (s *PostgresStore) GetOrders(ctx context.Context, ids []int64) (_ []domain.Order, err error) {
	defer obs.Time(ctx, "store.GetOrders")(&err)

	if s.DB == nil {
		return nil, errors.New("postgres store: DB is nil")
	}
	if len(ids) == 0 {
		return []domain.Order{}, nil
	}

	rows, err := s.DB.QueryContext(ctx, selectOrders+`
	WHERE o.order_id = ANY($1::bigint[])
	ORDER BY o.order_id;
	`, ids)
	if err != nil {
		return nil, fmt.Errorf("get orders: query orders table: %w", err)
	}
	return scanOrders(rows, "get orders")
}

func (s *PostgresStore) ListUnbatchedOrders(ctx context.Context, zoneID *int64, limit int) (_ []domain.Order, err error) {
	defer obs.Time(ctx, "store.ListUnbatchedOrders")(&err)

	if s.DB == nil {
		return nil, errors.New("postgres store: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, selectOrders+`
	WHERE o.status = 'confirmed'
		AND o.batch_id IS NULL
		AND ($1::bigint IS NULL OR o.zone_id = $1)
	ORDER BY o.created_at, o.order_id
	LIMIT $2;
	`, zoneID, limit)
	if err != nil {
		return nil, fmt.Errorf("list unbatched orders: query orders table: %w", err)
	}
	return scanOrders(rows, "list unbatched orders")
}

func (s *PostgresStore) ListZonesWithUnbatchedOrders(ctx context.Context, minOrders int) (_ []int64, err error) {
	defer obs.Time(ctx, "store.ListZonesWithUnbatchedOrders")(&err)

	if s.DB == nil {
		return nil, errors.New("postgres store: DB is nil")
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT zone_id
	FROM orders
	WHERE status = 'confirmed' AND batch_id IS NULL
	GROUP BY zone_id
	HAVING COUNT(*) >= $1
	ORDER BY zone_id;
	`, minOrders)
	if err != nil {
		return nil, fmt.Errorf("list zones: query orders table: %w", err)
	}
	defer rows.Close()

	zones := make([]int64, 0, 16)
	for rows.Next() {
		var z int64
		if err := rows.Scan(&z); err != nil {
			return nil, fmt.Errorf("list zones: scan row: %w", err)
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list zones: row iteration: %w", err)
	}
	return zones, nil
}

func (s *PostgresStore) CreateBatch(ctx context.Context, batch *domain.Batch) (err error) {
	defer obs.Time(ctx, "store.CreateBatch")(&err)

	if s.DB == nil {
		return errors.New("postgres store: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create batch: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertBatch(ctx, tx, batch); err != nil {
		return fmt.Errorf("create batch: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create batch: commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetBatch(ctx context.Context, id string) (_ *domain.Batch, err error) {
	defer obs.Time(ctx, "store.GetBatch")(&err)

	if s.DB == nil {
		return nil, errors.New("postgres store: DB is nil")
	}

	var (
		b           domain.Batch
		status      string
		durSeconds  int64
		driverID    sql.NullInt64
		assignedAt  sql.NullTime
		completedAt sql.NullTime
	)
	err = s.DB.QueryRowContext(ctx, `
	SELECT
		batch_id, zone_id, status,
		total_distance_meters, estimated_duration_seconds, savings_percentage,
		driver_id, created_at, assigned_at, completed_at, updated_at
	FROM batches
	WHERE batch_id = $1;
	`, id).Scan(
		&b.ID, &b.ZoneID, &status,
		&b.TotalDistanceMeters, &durSeconds, &b.SavingsPercentage,
		&driverID, &b.CreatedAt, &assignedAt, &completedAt, &b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get batch %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get batch %s: query batches table: %w", id, err)
	}

	b.Status = domain.BatchStatus(status)
	b.EstimatedDuration = time.Duration(durSeconds) * time.Second
	if driverID.Valid {
		d := driverID.Int64
		b.DriverID = &d
	}
	if assignedAt.Valid {
		t := assignedAt.Time
		b.AssignedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		b.CompletedAt = &t
	}

	rows, err := s.DB.QueryContext(ctx, `
	SELECT order_id FROM batch_orders WHERE batch_id = $1 ORDER BY position;
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get batch %s: query batch_orders table: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var oid int64
		if err := rows.Scan(&oid); err != nil {
			return nil, fmt.Errorf("get batch %s: scan row: %w", id, err)
		}
		b.OrderIDs = append(b.OrderIDs, oid)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get batch %s: row iteration: %w", id, err)
	}

	return &b, nil
}

func (s *PostgresStore) ReplaceBatchOrders(ctx context.Context, batch *domain.Batch, added, removed []int64) (err error) {
	defer obs.Time(ctx, "store.ReplaceBatchOrders")(&err)

	if s.DB == nil {
		return errors.New("postgres store: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("replace batch orders: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	UPDATE batches
	SET total_distance_meters = $2,
		estimated_duration_seconds = $3,
		savings_percentage = $4,
		updated_at = $5
	WHERE batch_id = $1;
	`,
		batch.ID, batch.TotalDistanceMeters, int64(batch.EstimatedDuration/time.Second),
		batch.SavingsPercentage, batch.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("replace batch orders: update batch %s: %w", batch.ID, err)
	}
	if err := expectRows(res, 1); err != nil {
		return fmt.Errorf("replace batch orders %s: %w", batch.ID, domain.ErrNotFound)
	}

	if len(removed) > 0 {
		if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET batch_id = NULL, status = 'confirmed'
		WHERE batch_id = $1 AND order_id = ANY($2::bigint[]);
		`, batch.ID, removed); err != nil {
			return fmt.Errorf("replace batch orders: release orders: %w", err)
		}
	}

	if err := claimOrders(ctx, tx, batch.ID, added); err != nil {
		return fmt.Errorf("replace batch orders: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM batch_orders WHERE batch_id = $1;`, batch.ID); err != nil {
		return fmt.Errorf("replace batch orders: clear membership: %w", err)
	}
	if err := writeMembership(ctx, tx, batch.ID, batch.OrderIDs); err != nil {
		return fmt.Errorf("replace batch orders: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("replace batch orders: commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateBatchStatus(ctx context.Context, batch *domain.Batch) (err error) {
	defer obs.Time(ctx, "store.UpdateBatchStatus")(&err)

	if s.DB == nil {
		return errors.New("postgres store: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("update batch status: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
	UPDATE batches
	SET status = $2, driver_id = $3, assigned_at = $4, completed_at = $5, updated_at = $6
	WHERE batch_id = $1;
	`, batch.ID, string(batch.Status), batch.DriverID, batch.AssignedAt, batch.CompletedAt, batch.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update batch status: update batch %s: %w", batch.ID, err)
	}
	if err := expectRows(res, 1); err != nil {
		return fmt.Errorf("update batch status %s: %w", batch.ID, domain.ErrNotFound)
	}

	if batch.Status == domain.BatchStatusCancelled {
		if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET batch_id = NULL, status = 'confirmed' WHERE batch_id = $1;
		`, batch.ID); err != nil {
			return fmt.Errorf("update batch status: release orders: %w", err)
		}
	} else if st, ok := domain.OrderStatusFor(batch.Status); ok {
		if _, err := tx.ExecContext(ctx, `
		UPDATE orders SET status = $2 WHERE batch_id = $1;
		`, batch.ID, string(st)); err != nil {
			return fmt.Errorf("update batch status: cascade order status: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("update batch status: commit tx: %w", err)
	}
	return nil
}

func (s *PostgresStore) DissolveBatch(ctx context.Context, id string) (err error) {
	defer obs.Time(ctx, "store.DissolveBatch")(&err)

	if s.DB == nil {
		return errors.New("postgres store: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dissolve batch: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
	UPDATE orders SET batch_id = NULL, status = 'confirmed' WHERE batch_id = $1;
	`, id); err != nil {
		return fmt.Errorf("dissolve batch: release orders: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE batch_id = $1;`, id)
	if err != nil {
		return fmt.Errorf("dissolve batch: delete batch %s: %w", id, err)
	}
	if err := expectRows(res, 1); err != nil {
		return fmt.Errorf("dissolve batch %s: %w", id, domain.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dissolve batch: commit tx: %w", err)
	}
	return nil
}

// MergeBatches deletes the pending source batches, releases their orders and
// inserts merged with its orders claimed, all in one transaction.
func (s *PostgresStore) MergeBatches(ctx context.Context, sourceIDs []string, merged *domain.Batch) (err error) {
	defer obs.Time(ctx, "store.MergeBatches")(&err)

	if s.DB == nil {
		return errors.New("postgres store: DB is nil")
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("merge batches: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
	UPDATE orders SET batch_id = NULL, status = 'confirmed'
	WHERE batch_id = ANY($1::text[]);
	`, sourceIDs); err != nil {
		return fmt.Errorf("merge batches: release orders: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
	DELETE FROM batches WHERE batch_id = ANY($1::text[]) AND status = 'pending';
	`, sourceIDs)
	if err != nil {
		return fmt.Errorf("merge batches: delete source batches: %w", err)
	}
	if err := expectRows(res, int64(len(sourceIDs))); err != nil {
		return fmt.Errorf("merge batches: %w: source batches changed: %w", domain.ErrConflict, err)
	}

	if err := insertBatch(ctx, tx, merged); err != nil {
		return fmt.Errorf("merge batches: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("merge batches: commit tx: %w", err)
	}
	return nil
}

// insertBatch writes the batch row, claims its orders and records membership.
func insertBatch(ctx context.Context, tx *sql.Tx, batch *domain.Batch) error {
	_, err := tx.ExecContext(ctx, `
	INSERT INTO batches (
		batch_id, zone_id, status,
		total_distance_meters, estimated_duration_seconds, savings_percentage,
		driver_id, created_at, assigned_at, completed_at, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
	`,
		batch.ID, batch.ZoneID, string(batch.Status),
		batch.TotalDistanceMeters, int64(batch.EstimatedDuration/time.Second), batch.SavingsPercentage,
		batch.DriverID, batch.CreatedAt, batch.AssignedAt, batch.CompletedAt, batch.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert batch %s: %w", batch.ID, err)
	}

	if err := claimOrders(ctx, tx, batch.ID, batch.OrderIDs); err != nil {
		return err
	}
	return writeMembership(ctx, tx, batch.ID, batch.OrderIDs)
}

// claimOrders assigns ids to the batch only where the order is still
// confirmed and unbatched. A short count means another writer won.
func claimOrders(ctx context.Context, tx *sql.Tx, batchID string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	res, err := tx.ExecContext(ctx, `
	UPDATE orders
	SET batch_id = $1, status = 'batched'
	WHERE order_id = ANY($2::bigint[])
		AND batch_id IS NULL
		AND status = 'confirmed';
	`, batchID, ids)
	if err != nil {
		return fmt.Errorf("claim orders: %w", err)
	}
	if err := expectRows(res, int64(len(ids))); err != nil {
		return fmt.Errorf("claim orders for batch %s: %w: %w", batchID, domain.ErrConflict, err)
	}
	return nil
}

func writeMembership(ctx context.Context, tx *sql.Tx, batchID string, ids []int64) error {
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO batch_orders (batch_id, order_id, position) VALUES ($1, $2, $3);
	`)
	if err != nil {
		return fmt.Errorf("write membership: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, id := range ids {
		if _, err := stmt.ExecContext(ctx, batchID, id, i); err != nil {
			return fmt.Errorf("write membership: insert order_id=%d: %w", id, err)
		}
	}
	return nil
}

func expectRows(res sql.Result, want int64) error {
	got, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if got != want {
		return fmt.Errorf("affected %d rows, want %d", got, want)
	}
	return nil
}

func scanOrders(rows *sql.Rows, op string) ([]domain.Order, error) {
	defer rows.Close()

	orders := make([]domain.Order, 0, 64)
	for rows.Next() {
		var (
			o           domain.Order
			status      string
			windowStart sql.NullTime
			windowEnd   sql.NullTime
			batchID     sql.NullString
		)
		err := rows.Scan(
			&o.ID, &o.MerchantID, &o.MerchantName, &o.ZoneID,
			&o.Pickup.Lat, &o.Pickup.Lon, &o.PickupAddress,
			&o.Delivery.Lat, &o.Delivery.Lon, &o.DeliveryAddress,
			&windowStart, &windowEnd, &o.ItemCount, &status, &batchID,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: scan row: %w", op, err)
		}

		o.Status = domain.OrderStatus(status)
		if windowStart.Valid && windowEnd.Valid {
			o.Window = &domain.TimeWindow{Start: windowStart.Time, End: windowEnd.Time}
		}
		if batchID.Valid {
			id := batchID.String
			o.BatchID = &id
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: row iteration: %w", op, err)
	}
	return orders, nil
}
