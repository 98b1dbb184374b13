package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/Chamal1120/globalbooks-soa/errdefs"
	"github.com/Chamal1120/globalbooks-soa/models"
)

// Open connects to Postgres and verifies the connection.
func Open(dsn string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established")
	return db, nil
}

const uniqueViolation = "23505"

// PostgresOrderStore persists orders. The version column backs the
// compare-and-swap merge used by the concurrent confirmation consumers.
type PostgresOrderStore struct {
	db *sql.DB
}

func NewPostgresOrderStore(db *sql.DB) (*PostgresOrderStore, error) {
	createTableQuery := `
	CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		idempotency_key TEXT NOT NULL UNIQUE,
		customer_id TEXT NOT NULL,
		items JSONB NOT NULL,
		payment_status VARCHAR(20) NOT NULL,
		shipping_status VARCHAR(20) NOT NULL,
		payment_task_published BOOLEAN NOT NULL DEFAULT FALSE,
		version BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(createTableQuery); err != nil {
		return nil, fmt.Errorf("failed to create orders table: %w", err)
	}
	return &PostgresOrderStore{db: db}, nil
}

func (s *PostgresOrderStore) Create(ctx context.Context, order *models.Order) error {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal items: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`INSERT INTO orders (idempotency_key, customer_id, items, payment_status, shipping_status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, version, created_at, updated_at`,
		order.IdempotencyKey, order.CustomerID, items, order.PaymentStatus, order.ShippingStatus,
	).Scan(&order.ID, &order.Version, &order.CreatedAt, &order.UpdatedAt)
	if err == nil {
		return nil
	}

	// A competing consumer won the insert race; adopt its row.
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		existing, getErr := s.GetByIdempotencyKey(ctx, order.IdempotencyKey)
		if getErr != nil {
			return getErr
		}
		*order = *existing
		return nil
	}

	return errdefs.Transient(fmt.Errorf("failed to create order: %w", err))
}

const orderColumns = `id, idempotency_key, customer_id, items, payment_status, shipping_status, payment_task_published, version, created_at, updated_at`

func (s *PostgresOrderStore) scanOrder(row *sql.Row) (*models.Order, error) {
	var order models.Order
	var items []byte
	err := row.Scan(&order.ID, &order.IdempotencyKey, &order.CustomerID, &items,
		&order.PaymentStatus, &order.ShippingStatus, &order.PaymentTaskPublished,
		&order.Version, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errdefs.NotFoundf("order")
		}
		return nil, errdefs.Transient(fmt.Errorf("failed to get order: %w", err))
	}
	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal items: %w", err)
	}
	return &order, nil
}

func (s *PostgresOrderStore) GetByID(ctx context.Context, id int64) (*models.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return s.scanOrder(row)
}

func (s *PostgresOrderStore) GetByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE idempotency_key = $1`, key)
	return s.scanOrder(row)
}

func (s *PostgresOrderStore) MarkPaymentTaskPublished(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET payment_task_published = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
	if err != nil {
		return errdefs.Transient(fmt.Errorf("failed to mark payment task published: %w", err))
	}
	return nil
}

func (s *PostgresOrderStore) ApplyPaymentStatus(ctx context.Context, id int64, to models.PaymentStatus) (bool, error) {
	for {
		order, err := s.GetByID(ctx, id)
		if err != nil {
			return false, err
		}
		if !order.PaymentStatus.CanAdvance(to) {
			return false, nil
		}

		res, err := s.db.ExecContext(ctx,
			`UPDATE orders SET payment_status = $1, version = version + 1, updated_at = CURRENT_TIMESTAMP
			 WHERE id = $2 AND version = $3`,
			to, id, order.Version)
		if err != nil {
			return false, errdefs.Transient(fmt.Errorf("failed to update payment status: %w", err))
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return true, nil
		}
		// Lost the version race against the other confirmation stream;
		// re-read and re-check.
	}
}

func (s *PostgresOrderStore) ApplyShippingStatus(ctx context.Context, id int64, to models.ShippingStatus) (bool, error) {
	for {
		order, err := s.GetByID(ctx, id)
		if err != nil {
			return false, err
		}
		if !order.ShippingStatus.CanAdvance(to) {
			return false, nil
		}

		res, err := s.db.ExecContext(ctx,
			`UPDATE orders SET shipping_status = $1, version = version + 1, updated_at = CURRENT_TIMESTAMP
			 WHERE id = $2 AND version = $3`,
			to, id, order.Version)
		if err != nil {
			return false, errdefs.Transient(fmt.Errorf("failed to update shipping status: %w", err))
		}
		if n, _ := res.RowsAffected(); n == 1 {
			return true, nil
		}
	}
}

// PostgresPaymentStore persists payments for the payments processor.
type PostgresPaymentStore struct {
	db *sql.DB
}

func NewPostgresPaymentStore(db *sql.DB) (*PostgresPaymentStore, error) {
	createTableQuery := `
	CREATE TABLE IF NOT EXISTS payments (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL UNIQUE,
		amount DECIMAL(10, 2) NOT NULL,
		status VARCHAR(20) NOT NULL,
		transaction_id VARCHAR(255),
		confirmation_sent BOOLEAN NOT NULL DEFAULT FALSE,
		shipping_task_sent BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(createTableQuery); err != nil {
		return nil, fmt.Errorf("failed to create payments table: %w", err)
	}
	return &PostgresPaymentStore{db: db}, nil
}

func (s *PostgresPaymentStore) Create(ctx context.Context, payment *models.Payment) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO payments (order_id, amount, status)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		payment.OrderID, payment.Amount, payment.Status,
	).Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt)
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		existing, getErr := s.GetByOrderID(ctx, payment.OrderID)
		if getErr != nil {
			return getErr
		}
		*payment = *existing
		return nil
	}

	return errdefs.Transient(fmt.Errorf("failed to create payment: %w", err))
}

func (s *PostgresPaymentStore) GetByOrderID(ctx context.Context, orderID int64) (*models.Payment, error) {
	var payment models.Payment
	err := s.db.QueryRowContext(ctx,
		`SELECT id, order_id, amount, status, COALESCE(transaction_id, ''), confirmation_sent, shipping_task_sent, created_at, updated_at
		 FROM payments WHERE order_id = $1`, orderID,
	).Scan(&payment.ID, &payment.OrderID, &payment.Amount, &payment.Status, &payment.TransactionID,
		&payment.ConfirmationSent, &payment.ShippingTaskSent, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errdefs.NotFoundf("payment for order %d", orderID)
		}
		return nil, errdefs.Transient(fmt.Errorf("failed to get payment: %w", err))
	}
	return &payment, nil
}

func (s *PostgresPaymentStore) SetStatus(ctx context.Context, id int64, status models.PaymentState, transactionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE payments SET status = $1, transaction_id = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`,
		status, transactionID, id)
	if err != nil {
		return errdefs.Transient(fmt.Errorf("failed to update payment status: %w", err))
	}
	return nil
}

func (s *PostgresPaymentStore) MarkConfirmationSent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE payments SET confirmation_sent = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
	if err != nil {
		return errdefs.Transient(fmt.Errorf("failed to mark confirmation sent: %w", err))
	}
	return nil
}

func (s *PostgresPaymentStore) MarkShippingTaskSent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE payments SET shipping_task_sent = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
	if err != nil {
		return errdefs.Transient(fmt.Errorf("failed to mark shipping task sent: %w", err))
	}
	return nil
}

// PostgresShipmentStore persists shipments for the shipping processor.
type PostgresShipmentStore struct {
	db *sql.DB
}

func NewPostgresShipmentStore(db *sql.DB) (*PostgresShipmentStore, error) {
	createTableQuery := `
	CREATE TABLE IF NOT EXISTS shipments (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL UNIQUE,
		address TEXT NOT NULL,
		status VARCHAR(20) NOT NULL,
		tracking_number VARCHAR(64),
		confirmation_sent BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(createTableQuery); err != nil {
		return nil, fmt.Errorf("failed to create shipments table: %w", err)
	}
	return &PostgresShipmentStore{db: db}, nil
}

func (s *PostgresShipmentStore) Create(ctx context.Context, shipment *models.Shipment) error {
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO shipments (order_id, address, status)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		shipment.OrderID, shipment.Address, shipment.Status,
	).Scan(&shipment.ID, &shipment.CreatedAt, &shipment.UpdatedAt)
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		existing, getErr := s.GetByOrderID(ctx, shipment.OrderID)
		if getErr != nil {
			return getErr
		}
		*shipment = *existing
		return nil
	}

	return errdefs.Transient(fmt.Errorf("failed to create shipment: %w", err))
}

func (s *PostgresShipmentStore) GetByOrderID(ctx context.Context, orderID int64) (*models.Shipment, error) {
	var shipment models.Shipment
	err := s.db.QueryRowContext(ctx,
		`SELECT id, order_id, address, status, COALESCE(tracking_number, ''), confirmation_sent, created_at, updated_at
		 FROM shipments WHERE order_id = $1`, orderID,
	).Scan(&shipment.ID, &shipment.OrderID, &shipment.Address, &shipment.Status,
		&shipment.TrackingNumber, &shipment.ConfirmationSent, &shipment.CreatedAt, &shipment.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errdefs.NotFoundf("shipment for order %d", orderID)
		}
		return nil, errdefs.Transient(fmt.Errorf("failed to get shipment: %w", err))
	}
	return &shipment, nil
}

func (s *PostgresShipmentStore) SetStatus(ctx context.Context, id int64, status models.ShipmentState, trackingNumber string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE shipments SET status = $1, tracking_number = $2, updated_at = CURRENT_TIMESTAMP WHERE id = $3`,
		status, trackingNumber, id)
	if err != nil {
		return errdefs.Transient(fmt.Errorf("failed to update shipment status: %w", err))
	}
	return nil
}

func (s *PostgresShipmentStore) MarkConfirmationSent(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE shipments SET confirmation_sent = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = $1`, id)
	if err != nil {
		return errdefs.Transient(fmt.Errorf("failed to mark confirmation sent: %w", err))
	}
	return nil
}
