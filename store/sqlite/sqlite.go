/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (lending.Store, score.Store,
  lending.IdentityService) using SQLite. In production, the same patterns
  apply to PostgreSQL - only minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  lending.InventoryStore:   Per-book copy counts
  lending.BorrowStore:      Loan records
  lending.ReservationStore: Queue entries
  score.Store:              Append-only score event log
  lending.IdentityService:  Ban checks against the users table

APPEND-ONLY ENFORCEMENT:
  score_events has no UPDATE or DELETE paths; corrections are
  compensating events. Borrows and reservations are updated through
  status transitions only and never deleted.

KEY TABLES:
  book_inventory: Copy counts per book
  borrows:        Loan records, full history
  reservations:   Queue entries, full history
  score_events:   Immutable reputation ledger
  users:          Membership records with optional ban window

CONCURRENCY:
  The engine serializes per-book mutations above this layer; a
  sync.RWMutex here guards the connection against SQLite's single-writer
  limitation. With PostgreSQL, database-level concurrency control would
  take over.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/lending.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := lending.NewService(store, score.NewLedger(store), cfg, store, notifier)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - lending/store.go: Interface definitions
  - score/ledger.go: Score ledger built on score.Store
  - lending/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/shelfline/lending-engine/lending"
	"github.com/shelfline/lending-engine/score"
)

const dateLayout = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sqlx.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Copy counts per book
	CREATE TABLE IF NOT EXISTS book_inventory (
		book_id TEXT PRIMARY KEY,
		total_copies INTEGER NOT NULL,
		available_copies INTEGER NOT NULL,
		CHECK (available_copies >= 0 AND available_copies <= total_copies)
	);

	-- Loan records (full history, status transitions only)
	CREATE TABLE IF NOT EXISTS borrows (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		book_id TEXT NOT NULL,
		start_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		returned_date TEXT,
		status TEXT NOT NULL,
		reservation_id TEXT NOT NULL DEFAULT '',
		pickup_deadline TEXT,
		collected_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_borrows_user_status
		ON borrows(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_borrows_book_status
		ON borrows(book_id, status);
	-- Due-soon scan (hot path for the scheduler)
	CREATE INDEX IF NOT EXISTS idx_borrows_due
		ON borrows(due_date) WHERE status = 'active';
	-- Grace-window sweep
	CREATE INDEX IF NOT EXISTS idx_borrows_holds
		ON borrows(pickup_deadline)
		WHERE status = 'active' AND pickup_deadline IS NOT NULL AND collected_at IS NULL;

	-- Queue entries (full history)
	CREATE TABLE IF NOT EXISTS reservations (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		book_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		pickup_window_start TEXT NOT NULL,
		duration_days INTEGER NOT NULL,
		status TEXT NOT NULL,
		position INTEGER NOT NULL,
		priority_class INTEGER NOT NULL,
		hold_expires_at TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reservations_book_open
		ON reservations(book_id, position)
		WHERE status IN ('pending', 'confirmed');
	CREATE INDEX IF NOT EXISTS idx_reservations_user
		ON reservations(user_id);

	-- Reputation ledger (append-only, no UPDATE/DELETE paths)
	CREATE TABLE IF NOT EXISTS score_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		delta TEXT NOT NULL,
		reason TEXT NOT NULL,
		reference_id TEXT,
		idempotency_key TEXT UNIQUE,
		occurred_at TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_score_events_user
		ON score_events(user_id, occurred_at);
	CREATE INDEX IF NOT EXISTS idx_score_events_idempotency
		ON score_events(idempotency_key) WHERE idempotency_key IS NOT NULL;

	-- Membership records
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		banned_until TEXT,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// INVENTORY STORE (lending.InventoryStore interface)
// =============================================================================

type inventoryRow struct {
	BookID          string `db:"book_id"`
	TotalCopies     uint   `db:"total_copies"`
	AvailableCopies uint   `db:"available_copies"`
}

func (s *Store) GetInventory(ctx context.Context, bookID lending.BookID) (*lending.BookInventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row inventoryRow
	err := s.db.GetContext(ctx, &row,
		"SELECT book_id, total_copies, available_copies FROM book_inventory WHERE book_id = ?",
		bookID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get inventory: %w", err)
	}
	inv := rowToInventory(row)
	return &inv, nil
}

func (s *Store) SaveInventory(ctx context.Context, inv lending.BookInventory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO book_inventory (book_id, total_copies, available_copies)
		VALUES (?, ?, ?)
		ON CONFLICT(book_id) DO UPDATE SET
			total_copies = excluded.total_copies,
			available_copies = excluded.available_copies
	`
	_, err := s.db.ExecContext(ctx, query, inv.BookID, inv.TotalCopies, inv.AvailableCopies)
	if err != nil {
		return fmt.Errorf("failed to save inventory: %w", err)
	}
	return nil
}

func (s *Store) ListInventory(ctx context.Context) ([]lending.BookInventory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []inventoryRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT book_id, total_copies, available_copies FROM book_inventory ORDER BY book_id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list inventory: %w", err)
	}

	result := make([]lending.BookInventory, 0, len(rows))
	for _, row := range rows {
		result = append(result, rowToInventory(row))
	}
	return result, nil
}

func rowToInventory(row inventoryRow) lending.BookInventory {
	return lending.BookInventory{
		BookID:          lending.BookID(row.BookID),
		TotalCopies:     row.TotalCopies,
		AvailableCopies: row.AvailableCopies,
	}
}

// =============================================================================
// BORROW STORE (lending.BorrowStore interface)
// =============================================================================

type borrowRow struct {
	ID             string         `db:"id"`
	UserID         string         `db:"user_id"`
	BookID         string         `db:"book_id"`
	StartDate      string         `db:"start_date"`
	DueDate        string         `db:"due_date"`
	ReturnedDate   sql.NullString `db:"returned_date"`
	Status         string         `db:"status"`
	ReservationID  string         `db:"reservation_id"`
	PickupDeadline sql.NullString `db:"pickup_deadline"`
	CollectedAt    sql.NullString `db:"collected_at"`
	CreatedAt      string         `db:"created_at"`
}

const borrowColumns = `id, user_id, book_id, start_date, due_date, returned_date,
	status, reservation_id, pickup_deadline, collected_at, created_at`

func (s *Store) SaveBorrow(ctx context.Context, b lending.Borrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO borrows (` + borrowColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		b.ID, b.UserID, b.BookID,
		b.StartDate.Time.Format(dateLayout),
		b.DueDate.Time.Format(dateLayout),
		nullDate(b.ReturnedDate),
		b.Status, b.ReservationID,
		nullDate(b.PickupDeadline),
		nullDate(b.CollectedAt),
		b.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save borrow: %w", err)
	}
	return nil
}

func (s *Store) UpdateBorrow(ctx context.Context, b lending.Borrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE borrows SET
			start_date = ?, due_date = ?, returned_date = ?, status = ?,
			pickup_deadline = ?, collected_at = ?
		WHERE id = ?
	`
	_, err := s.db.ExecContext(ctx, query,
		b.StartDate.Time.Format(dateLayout),
		b.DueDate.Time.Format(dateLayout),
		nullDate(b.ReturnedDate),
		b.Status,
		nullDate(b.PickupDeadline),
		nullDate(b.CollectedAt),
		b.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update borrow: %w", err)
	}
	return nil
}

func (s *Store) GetBorrow(ctx context.Context, id lending.BorrowID) (*lending.Borrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row borrowRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+borrowColumns+" FROM borrows WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get borrow: %w", err)
	}
	b := rowToBorrow(row)
	return &b, nil
}

func (s *Store) ActiveBorrowsByUser(ctx context.Context, userID lending.UserID) ([]lending.Borrow, error) {
	return s.queryBorrows(ctx,
		"SELECT "+borrowColumns+" FROM borrows WHERE user_id = ? AND status = 'active' ORDER BY id",
		userID)
}

func (s *Store) ActiveBorrowsByBook(ctx context.Context, bookID lending.BookID) ([]lending.Borrow, error) {
	return s.queryBorrows(ctx,
		"SELECT "+borrowColumns+" FROM borrows WHERE book_id = ? AND status = 'active' ORDER BY id",
		bookID)
}

func (s *Store) ActiveBorrowByUserAndBook(ctx context.Context, userID lending.UserID, bookID lending.BookID) (*lending.Borrow, error) {
	borrows, err := s.queryBorrows(ctx,
		"SELECT "+borrowColumns+" FROM borrows WHERE user_id = ? AND book_id = ? AND status = 'active' LIMIT 1",
		userID, bookID)
	if err != nil {
		return nil, err
	}
	if len(borrows) == 0 {
		return nil, nil
	}
	return &borrows[0], nil
}

func (s *Store) BorrowsByUser(ctx context.Context, userID lending.UserID) ([]lending.Borrow, error) {
	return s.queryBorrows(ctx,
		"SELECT "+borrowColumns+" FROM borrows WHERE user_id = ? ORDER BY created_at DESC",
		userID)
}

func (s *Store) UncollectedHolds(ctx context.Context) ([]lending.Borrow, error) {
	return s.queryBorrows(ctx,
		`SELECT `+borrowColumns+` FROM borrows
		 WHERE status = 'active' AND pickup_deadline IS NOT NULL AND collected_at IS NULL
		   AND reservation_id != ''
		 ORDER BY pickup_deadline ASC`)
}

func (s *Store) BorrowsDueBetween(ctx context.Context, from, to lending.Date) ([]lending.Borrow, error) {
	return s.queryBorrows(ctx,
		`SELECT `+borrowColumns+` FROM borrows
		 WHERE status = 'active' AND due_date >= ? AND due_date <= ?
		 ORDER BY due_date ASC`,
		from.Time.Format(dateLayout), to.Time.Format(dateLayout))
}

func (s *Store) queryBorrows(ctx context.Context, query string, args ...any) ([]lending.Borrow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []borrowRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query borrows: %w", err)
	}

	borrows := make([]lending.Borrow, 0, len(rows))
	for _, row := range rows {
		borrows = append(borrows, rowToBorrow(row))
	}
	return borrows, nil
}

func rowToBorrow(row borrowRow) lending.Borrow {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	return lending.Borrow{
		ID:             lending.BorrowID(row.ID),
		UserID:         lending.UserID(row.UserID),
		BookID:         lending.BookID(row.BookID),
		StartDate:      parseDate(row.StartDate),
		DueDate:        parseDate(row.DueDate),
		ReturnedDate:   parseNullDate(row.ReturnedDate),
		Status:         lending.BorrowStatus(row.Status),
		ReservationID:  lending.ReservationID(row.ReservationID),
		PickupDeadline: parseNullDate(row.PickupDeadline),
		CollectedAt:    parseNullDate(row.CollectedAt),
		CreatedAt:      createdAt,
	}
}

// =============================================================================
// RESERVATION STORE (lending.ReservationStore interface)
// =============================================================================

type reservationRow struct {
	ID                string         `db:"id"`
	UserID            string         `db:"user_id"`
	BookID            string         `db:"book_id"`
	CreatedAt         string         `db:"created_at"`
	PickupWindowStart string         `db:"pickup_window_start"`
	DurationDays      int            `db:"duration_days"`
	Status            string         `db:"status"`
	Position          uint           `db:"position"`
	PriorityClass     int            `db:"priority_class"`
	HoldExpiresAt     sql.NullString `db:"hold_expires_at"`
	UpdatedAt         string         `db:"updated_at"`
}

const reservationColumns = `id, user_id, book_id, created_at, pickup_window_start,
	duration_days, status, position, priority_class, hold_expires_at, updated_at`

func (s *Store) SaveReservation(ctx context.Context, r lending.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO reservations (` + reservationColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.UserID, r.BookID,
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.PickupWindowStart.Time.Format(dateLayout),
		r.DurationDays, r.Status, r.Position, r.PriorityClass,
		nullDate(r.HoldExpiresAt),
		r.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save reservation: %w", err)
	}
	return nil
}

func (s *Store) UpdateReservation(ctx context.Context, r lending.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE reservations SET
			pickup_window_start = ?, duration_days = ?, status = ?,
			position = ?, hold_expires_at = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := s.db.ExecContext(ctx, query,
		r.PickupWindowStart.Time.Format(dateLayout),
		r.DurationDays, r.Status, r.Position,
		nullDate(r.HoldExpiresAt),
		r.UpdatedAt.UTC().Format(time.RFC3339),
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	return nil
}

func (s *Store) GetReservation(ctx context.Context, id lending.ReservationID) (*lending.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row reservationRow
	err := s.db.GetContext(ctx, &row,
		"SELECT "+reservationColumns+" FROM reservations WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}
	r := rowToReservation(row)
	return &r, nil
}

func (s *Store) OpenReservationsByBook(ctx context.Context, bookID lending.BookID) ([]lending.Reservation, error) {
	return s.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE book_id = ? AND status IN ('pending', 'confirmed')
		 ORDER BY position ASC`,
		bookID)
}

func (s *Store) OpenReservationByUserAndBook(ctx context.Context, userID lending.UserID, bookID lending.BookID) (*lending.Reservation, error) {
	reservations, err := s.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE user_id = ? AND book_id = ? AND status IN ('pending', 'confirmed')
		 LIMIT 1`,
		userID, bookID)
	if err != nil {
		return nil, err
	}
	if len(reservations) == 0 {
		return nil, nil
	}
	return &reservations[0], nil
}

func (s *Store) ReservationsByUser(ctx context.Context, userID lending.UserID) ([]lending.Reservation, error) {
	return s.queryReservations(ctx,
		"SELECT "+reservationColumns+" FROM reservations WHERE user_id = ? ORDER BY created_at DESC",
		userID)
}

func (s *Store) queryReservations(ctx context.Context, query string, args ...any) ([]lending.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []reservationRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to query reservations: %w", err)
	}

	reservations := make([]lending.Reservation, 0, len(rows))
	for _, row := range rows {
		reservations = append(reservations, rowToReservation(row))
	}
	return reservations, nil
}

func rowToReservation(row reservationRow) lending.Reservation {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)
	return lending.Reservation{
		ID:                lending.ReservationID(row.ID),
		UserID:            lending.UserID(row.UserID),
		BookID:            lending.BookID(row.BookID),
		CreatedAt:         createdAt,
		PickupWindowStart: parseDate(row.PickupWindowStart),
		DurationDays:      row.DurationDays,
		Status:            lending.ReservationStatus(row.Status),
		Position:          row.Position,
		PriorityClass:     row.PriorityClass,
		HoldExpiresAt:     parseNullDate(row.HoldExpiresAt),
		UpdatedAt:         updatedAt,
	}
}

// =============================================================================
// SCORE EVENT STORE (score.Store interface)
// =============================================================================

type scoreEventRow struct {
	ID             string         `db:"id"`
	UserID         string         `db:"user_id"`
	Delta          string         `db:"delta"`
	Reason         string         `db:"reason"`
	ReferenceID    sql.NullString `db:"reference_id"`
	IdempotencyKey sql.NullString `db:"idempotency_key"`
	OccurredAt     string         `db:"occurred_at"`
	CreatedAt      string         `db:"created_at"`
}

func (s *Store) AppendEvent(ctx context.Context, e score.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO score_events
		(id, user_id, delta, reason, reference_id, idempotency_key, occurred_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.UserID,
		e.Delta.Value.String(),
		e.Reason,
		nullString(e.ReferenceID),
		nullString(e.IdempotencyKey),
		e.OccurredAt.UTC().Format(time.RFC3339),
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return score.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append score event: %w", err)
	}
	return nil
}

func (s *Store) EventsByUser(ctx context.Context, userID score.UserID) ([]score.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []scoreEventRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, user_id, delta, reason, reference_id, idempotency_key, occurred_at, created_at
		 FROM score_events
		 WHERE user_id = ?
		 ORDER BY occurred_at ASC, created_at ASC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query score events: %w", err)
	}

	events := make([]score.Event, 0, len(rows))
	for _, row := range rows {
		delta, err := decimal.NewFromString(row.Delta)
		if err != nil {
			return nil, fmt.Errorf("corrupt delta %q on event %s: %w", row.Delta, row.ID, err)
		}
		occurredAt, _ := time.Parse(time.RFC3339, row.OccurredAt)
		createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
		events = append(events, score.Event{
			ID:             score.EventID(row.ID),
			UserID:         score.UserID(row.UserID),
			Delta:          score.Points{Value: delta},
			Reason:         score.Reason(row.Reason),
			ReferenceID:    row.ReferenceID.String,
			IdempotencyKey: row.IdempotencyKey.String,
			OccurredAt:     occurredAt,
			CreatedAt:      createdAt,
		})
	}
	return events, nil
}

func (s *Store) EventExists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM score_events WHERE idempotency_key = ?", idempotencyKey)
	return count > 0, err
}

// =============================================================================
// USER STORE (lending.IdentityService interface)
// =============================================================================

// User represents a membership record.
type User struct {
	ID          lending.UserID
	Name        string
	Email       string
	BannedUntil *lending.Date
	CreatedAt   time.Time
}

// SaveUser upserts a user record.
func (s *Store) SaveUser(ctx context.Context, u User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO users (id, name, email, banned_until, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			banned_until = excluded.banned_until
	`
	createdAt := u.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.Name, u.Email,
		nullDate(u.BannedUntil),
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetUser returns the user, or nil if unknown.
func (s *Store) GetUser(ctx context.Context, id lending.UserID) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var row struct {
		ID          string         `db:"id"`
		Name        string         `db:"name"`
		Email       sql.NullString `db:"email"`
		BannedUntil sql.NullString `db:"banned_until"`
		CreatedAt   string         `db:"created_at"`
	}
	err := s.db.GetContext(ctx, &row,
		"SELECT id, name, email, banned_until, created_at FROM users WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	return &User{
		ID:          lending.UserID(row.ID),
		Name:        row.Name,
		Email:       row.Email.String,
		BannedUntil: parseNullDate(row.BannedUntil),
		CreatedAt:   createdAt,
	}, nil
}

// ListUsers returns all users ordered by id.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []struct {
		ID          string         `db:"id"`
		Name        string         `db:"name"`
		Email       sql.NullString `db:"email"`
		BannedUntil sql.NullString `db:"banned_until"`
		CreatedAt   string         `db:"created_at"`
	}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT id, name, email, banned_until, created_at FROM users ORDER BY id ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]User, 0, len(rows))
	for _, row := range rows {
		createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
		users = append(users, User{
			ID:          lending.UserID(row.ID),
			Name:        row.Name,
			Email:       row.Email.String,
			BannedUntil: parseNullDate(row.BannedUntil),
			CreatedAt:   createdAt,
		})
	}
	return users, nil
}

// BanUser sets the user's ban window end date. A nil until lifts the ban.
func (s *Store) BanUser(ctx context.Context, id lending.UserID, until *lending.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET banned_until = ? WHERE id = ?", nullDate(until), id)
	if err != nil {
		return fmt.Errorf("failed to ban user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %s: %w", id, lending.ErrNotFound)
	}
	return nil
}

// IsBanned reports whether the user's ban window covers today. Unknown
// users are not banned; the engine treats membership checks as a
// separate concern.
func (s *Store) IsBanned(ctx context.Context, id lending.UserID) (bool, error) {
	u, err := s.GetUser(ctx, id)
	if err != nil {
		return false, err
	}
	if u == nil || u.BannedUntil == nil {
		return false, nil
	}
	return lending.Today().BeforeOrEqual(*u.BannedUntil), nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"book_inventory", "borrows", "reservations", "score_events", "users"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nullDate(d *lending.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.Time.Format(dateLayout), Valid: true}
}

func parseDate(v string) lending.Date {
	d, _ := lending.ParseDate(v)
	return d
}

func parseNullDate(v sql.NullString) *lending.Date {
	if !v.Valid || v.String == "" {
		return nil
	}
	d := parseDate(v.String)
	return &d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
