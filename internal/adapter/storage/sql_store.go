package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/shirt-tracker/internal/core/domain"
	"github.com/rl1809/shirt-tracker/internal/port"
)

var _ port.Store = (*SQLStore)(nil)

const selectShirt = `
	SELECT s.id, s.serial_number, s.color, s.size, s.type, s.status, s.shipment_id, sh.tracking_code
	FROM shirts s
	LEFT JOIN shipments sh ON sh.id = s.shipment_id`

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

// SQLStore implements the entity repository on database/sql.
// A store returned to a WithTx callback is bound to that transaction.
type SQLStore struct {
	db      *sql.DB
	q       querier
	dialect Dialect
}

func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, q: db, dialect: dialect}
}

func (s *SQLStore) Dialect() Dialect {
	return s.dialect
}

func (s *SQLStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLStore) WithTx(ctx context.Context, fn func(repo port.DatabaseRepository) error) error {
	if s.db == nil {
		// already inside a transaction
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLStore{q: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *SQLStore) FindShirt(ctx context.Context, id string) (*domain.Shirt, error) {
	return s.findShirtWhere(ctx, "s.id = ?", id)
}

func (s *SQLStore) FindShirtBySerial(ctx context.Context, serial string) (*domain.Shirt, error) {
	return s.findShirtWhere(ctx, "s.serial_number = ?", serial)
}

func (s *SQLStore) findShirtWhere(ctx context.Context, cond string, arg any) (*domain.Shirt, error) {
	row := s.q.QueryRowContext(ctx, s.dialect.rebind(selectShirt+" WHERE "+cond), arg)

	shirt, err := scanShirt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query shirt: %w", err)
	}
	return shirt, nil
}

func (s *SQLStore) ListShirts(ctx context.Context, offset, limit int) ([]domain.Shirt, error) {
	rows, err := s.q.QueryContext(ctx,
		s.dialect.rebind(selectShirt+" ORDER BY s.id LIMIT ? OFFSET ?"), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query shirts: %w", err)
	}
	return collectShirts(rows)
}

func (s *SQLStore) CreateShirt(ctx context.Context, input domain.ShirtInput) (*domain.Shirt, error) {
	serial := strings.TrimSpace(input.SerialNumber)
	if serial == "" {
		serial = domain.NewSerialNumber()
	}

	shirt := domain.Shirt{
		ID:           uuid.NewString(),
		SerialNumber: serial,
		Color:        input.Color,
		Size:         input.Size,
		Type:         input.Type,
		Status:       domain.ShirtStatusInStock,
	}

	_, err := s.q.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO shirts (id, serial_number, color, size, type, status)
		VALUES (?, ?, ?, ?, ?, ?)`),
		shirt.ID, shirt.SerialNumber, shirt.Color,
		string(shirt.Size), string(shirt.Type), string(shirt.Status),
	)
	if err != nil {
		if s.dialect.uniqueViolated(err) {
			return nil, domain.ErrDuplicateSerial
		}
		return nil, fmt.Errorf("insert shirt: %w", err)
	}

	return &shirt, nil
}

func (s *SQLStore) UpdateShirtStatus(ctx context.Context, serial string, status domain.ShirtStatus) (*domain.Shirt, error) {
	shirt, err := s.FindShirtBySerial(ctx, serial)
	if err != nil || shirt == nil {
		return nil, err
	}

	_, err = s.q.ExecContext(ctx, s.dialect.rebind(`UPDATE shirts SET status = ? WHERE id = ?`),
		string(status), shirt.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("update shirt status: %w", err)
	}

	return s.FindShirt(ctx, shirt.ID)
}

func (s *SQLStore) AttachShirtToShipment(ctx context.Context, serial, shipmentID string) (*domain.Shirt, error) {
	shirt, err := s.FindShirtBySerial(ctx, serial)
	if err != nil || shirt == nil {
		return nil, err
	}

	status := domain.StatusAfterAttach(shirt.Status)
	_, err = s.q.ExecContext(ctx, s.dialect.rebind(`UPDATE shirts SET shipment_id = ?, status = ? WHERE id = ?`),
		shipmentID, string(status), shirt.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("attach shirt to shipment: %w", err)
	}

	return s.FindShirt(ctx, shirt.ID)
}

func (s *SQLStore) FindShipment(ctx context.Context, id string) (*domain.Shipment, error) {
	var (
		shipment  domain.Shipment
		createdAt timeValue
	)
	err := s.q.QueryRowContext(ctx, s.dialect.rebind(`
		SELECT id, tracking_code, created_at
		FROM shipments WHERE id = ?`), id,
	).Scan(&shipment.ID, &shipment.TrackingCode, &createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query shipment: %w", err)
	}
	shipment.CreatedAt = createdAt.Time

	shirts, err := s.shirtsByShipment(ctx, []string{shipment.ID})
	if err != nil {
		return nil, err
	}
	shipment.Shirts = shirts[shipment.ID]
	return &shipment, nil
}

func (s *SQLStore) ListShipments(ctx context.Context, offset, limit int) ([]domain.Shipment, error) {
	rows, err := s.q.QueryContext(ctx, s.dialect.rebind(`
		SELECT id, tracking_code, created_at
		FROM shipments ORDER BY id LIMIT ? OFFSET ?`), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("query shipments: %w", err)
	}

	shipments := make([]domain.Shipment, 0)
	ids := make([]string, 0)
	for rows.Next() {
		var (
			shipment  domain.Shipment
			createdAt timeValue
		)
		if err := rows.Scan(&shipment.ID, &shipment.TrackingCode, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan shipment: %w", err)
		}
		shipment.CreatedAt = createdAt.Time
		shipments = append(shipments, shipment)
		ids = append(ids, shipment.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shipments: %w", err)
	}

	shirts, err := s.shirtsByShipment(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range shipments {
		shipments[i].Shirts = shirts[shipments[i].ID]
	}
	return shipments, nil
}

func (s *SQLStore) shirtsByShipment(ctx context.Context, ids []string) (map[string][]domain.Shirt, error) {
	grouped := make(map[string][]domain.Shirt, len(ids))
	if len(ids) == 0 {
		return grouped, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")

	rows, err := s.q.QueryContext(ctx,
		s.dialect.rebind(selectShirt+" WHERE s.shipment_id IN ("+placeholders+") ORDER BY s.id"), args...)
	if err != nil {
		return nil, fmt.Errorf("query shipment shirts: %w", err)
	}

	shirts, err := collectShirts(rows)
	if err != nil {
		return nil, err
	}
	for _, shirt := range shirts {
		grouped[*shirt.ShipmentID] = append(grouped[*shirt.ShipmentID], shirt)
	}
	return grouped, nil
}

func (s *SQLStore) CreateShipment(ctx context.Context, input domain.ShipmentInput) (*domain.Shipment, error) {
	shipment := domain.Shipment{
		ID:           uuid.NewString(),
		TrackingCode: strings.TrimSpace(input.TrackingCode),
		CreatedAt:    time.Now().UTC().Truncate(time.Microsecond),
		Shirts:       []domain.Shirt{},
	}

	_, err := s.q.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO shipments (id, tracking_code, created_at)
		VALUES (?, ?, ?)`),
		shipment.ID, shipment.TrackingCode, shipment.CreatedAt,
	)
	if err != nil {
		if s.dialect.uniqueViolated(err) {
			return nil, domain.ErrDuplicateTrackingCode
		}
		return nil, fmt.Errorf("insert shipment: %w", err)
	}

	return &shipment, nil
}

func (s *SQLStore) CountShirtsByStatus(ctx context.Context) (map[domain.ShirtStatus]int, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT status, COUNT(*) FROM shirts GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count shirts: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ShirtStatus]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan shirt count: %w", err)
		}
		counts[domain.ShirtStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shirt counts: %w", err)
	}
	return counts, nil
}

func (s *SQLStore) CountShipments(ctx context.Context) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM shipments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count shipments: %w", err)
	}
	return n, nil
}

func scanShirt(row rowScanner) (*domain.Shirt, error) {
	var (
		shirt                    domain.Shirt
		size, typ, status        string
		shipmentID, trackingCode sql.NullString
	)
	err := row.Scan(&shirt.ID, &shirt.SerialNumber, &shirt.Color, &size, &typ, &status, &shipmentID, &trackingCode)
	if err != nil {
		return nil, err
	}

	shirt.Size = domain.ShirtSize(size)
	shirt.Type = domain.ShirtType(typ)
	shirt.Status = domain.ShirtStatus(status)
	if shipmentID.Valid {
		id := shipmentID.String
		shirt.ShipmentID = &id
		if trackingCode.Valid {
			shirt.Shipment = &domain.ShipmentSummary{ID: id, TrackingCode: trackingCode.String}
		}
	}
	return &shirt, nil
}

func collectShirts(rows *sql.Rows) ([]domain.Shirt, error) {
	defer rows.Close()

	shirts := make([]domain.Shirt, 0)
	for rows.Next() {
		shirt, err := scanShirt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan shirt: %w", err)
		}
		shirts = append(shirts, *shirt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shirts: %w", err)
	}
	return shirts, nil
}
