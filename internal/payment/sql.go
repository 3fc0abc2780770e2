package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS payment_details (
	payment_detail_id INTEGER PRIMARY KEY AUTOINCREMENT,
	card_owner_name   TEXT NOT NULL,
	card_number       TEXT NOT NULL,
	expiration_date   TEXT NOT NULL,
	security_code     TEXT NOT NULL
)`

const postgresSchema = `
CREATE TABLE IF NOT EXISTS payment_details (
	payment_detail_id SERIAL PRIMARY KEY,
	card_owner_name   TEXT NOT NULL,
	card_number       TEXT NOT NULL,
	expiration_date   TEXT NOT NULL,
	security_code     TEXT NOT NULL
)`

const pgUniqueViolation = pq.ErrorCode("23505")

func init() {
	sqlx.BindDriver(DriverSQLite, sqlx.QUESTION)
}

// detailRow is the stored form; dates are kept as RFC 3339 text so both
// drivers round-trip them identically.
type detailRow struct {
	ID             int    `db:"payment_detail_id"`
	CardOwnerName  string `db:"card_owner_name"`
	CardNumber     string `db:"card_number"`
	ExpirationDate string `db:"expiration_date"`
	SecurityCode   string `db:"security_code"`
}

func toRow(d PaymentDetail) detailRow {
	return detailRow{
		ID:             d.PaymentDetailID,
		CardOwnerName:  d.CardOwnerName,
		CardNumber:     d.CardNumber,
		ExpirationDate: d.ExpirationDate.UTC().Format(time.RFC3339),
		SecurityCode:   d.SecurityCode,
	}
}

func (r detailRow) detail() (PaymentDetail, error) {
	exp, err := time.Parse(time.RFC3339, r.ExpirationDate)
	if err != nil {
		return PaymentDetail{}, fmt.Errorf("payment detail %d: expiration date: %w", r.ID, err)
	}
	return PaymentDetail{
		PaymentDetailID: r.ID,
		CardOwnerName:   r.CardOwnerName,
		CardNumber:      r.CardNumber,
		ExpirationDate:  exp,
		SecurityCode:    r.SecurityCode,
	}, nil
}

// SQLStore persists records through database/sql using SQLite or Postgres.
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

// OpenSQLStore connects to dsn with driver and ensures the schema exists.
func OpenSQLStore(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	driver = strings.ToLower(driver)
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	if driver == DriverSQLite {
		// One connection: SQLite serializes writers and ":memory:" is per
		// connection.
		db.SetMaxOpenConns(1)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) migrate(ctx context.Context) error {
	schema := sqliteSchema
	if s.driver == DriverPostgres {
		schema = postgresSchema
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// List returns all records ordered by id.
func (s *SQLStore) List(ctx context.Context) ([]PaymentDetail, error) {
	var rows []detailRow
	query := `SELECT * FROM payment_details ORDER BY payment_detail_id`
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list payment details: %w", err)
	}

	out := make([]PaymentDetail, 0, len(rows))
	for _, r := range rows {
		d, err := r.detail()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Get returns the record with id, or ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, id int) (PaymentDetail, error) {
	var row detailRow
	query := s.db.Rebind(`SELECT * FROM payment_details WHERE payment_detail_id = ?`)
	err := s.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return PaymentDetail{}, ErrNotFound
	}
	if err != nil {
		return PaymentDetail{}, fmt.Errorf("get payment detail %d: %w", id, err)
	}
	return row.detail()
}

// Create inserts d. A client-supplied id that is already taken yields
// ErrConflict; a zero id is assigned by the database.
func (s *SQLStore) Create(ctx context.Context, d *PaymentDetail) error {
	row := toRow(*d)

	if d.PaymentDetailID != 0 {
		query := `
			INSERT INTO payment_details (payment_detail_id, card_owner_name, card_number, expiration_date, security_code)
			VALUES (:payment_detail_id, :card_owner_name, :card_number, :expiration_date, :security_code)
		`
		if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("create payment detail: %w", err)
		}
		return s.syncSequence(ctx)
	}

	query := s.db.Rebind(`
		INSERT INTO payment_details (card_owner_name, card_number, expiration_date, security_code)
		VALUES (?, ?, ?, ?)
		RETURNING payment_detail_id
	`)
	var id int
	err := s.db.QueryRowxContext(ctx, query,
		row.CardOwnerName,
		row.CardNumber,
		row.ExpirationDate,
		row.SecurityCode,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("create payment detail: %w", err)
	}
	d.PaymentDetailID = id
	return nil
}

// syncSequence moves the Postgres id sequence past explicitly inserted ids.
// SQLite's AUTOINCREMENT already tracks the largest id.
func (s *SQLStore) syncSequence(ctx context.Context) error {
	if s.driver != DriverPostgres {
		return nil
	}
	query := `
		SELECT setval(
			pg_get_serial_sequence('payment_details', 'payment_detail_id'),
			(SELECT MAX(payment_detail_id) FROM payment_details)
		)
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("sync payment detail id sequence: %w", err)
	}
	return nil
}

// isUniqueViolation reports primary key or unique constraint failures from
// either driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}

// Update replaces the record with d's id, or returns ErrNotFound.
func (s *SQLStore) Update(ctx context.Context, d PaymentDetail) error {
	query := `
		UPDATE payment_details
		SET card_owner_name = :card_owner_name,
			card_number = :card_number,
			expiration_date = :expiration_date,
			security_code = :security_code
		WHERE payment_detail_id = :payment_detail_id
	`
	res, err := s.db.NamedExecContext(ctx, query, toRow(d))
	if err != nil {
		return fmt.Errorf("update payment detail %d: %w", d.PaymentDetailID, err)
	}
	return requireAffected(res)
}

// Delete removes id, or returns ErrNotFound.
func (s *SQLStore) Delete(ctx context.Context, id int) error {
	query := s.db.Rebind(`DELETE FROM payment_details WHERE payment_detail_id = ?`)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete payment detail %d: %w", id, err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Store = (*SQLStore)(nil)
