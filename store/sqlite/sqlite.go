/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements fees.Store and fees.EventStore using SQLite. In production the
  same patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  fee_accounts:        One row per student per academic year
  fee_particulars:     Named fee lines with their own paid-state
  installments:        The payment schedule, ordered by number
  installment_shares:  Proportional particular split of each installment
  payments:            Recorded payments (receipt number unique)
  payment_links:       Which installments a payment landed on
  discount_rules:      Percentage discount configuration
  events:              Calendar events, soft-deleted via deleted_at

MONEY:
  All amounts are stored as TEXT and parsed with shopspring/decimal.
  Never store money as REAL.

ATOMICITY:
  ApplyPayment wraps the payment row, its links, the installment and share
  updates, particular updates, and account totals in one database/sql
  transaction. The unique receipt_number index makes client retries fail
  cleanly with ErrDuplicateReceipt.

SOFT DELETE:
  Events are never removed; DeleteEvent stamps deleted_at and range
  queries filter it. The row stays for audit.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  multiple readers don't block and crash recovery improves.

USAGE:
  store, err := sqlite.New("./data/school.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - fees/store.go: Interface definitions
  - fees/store/memory.go: In-memory implementation for testing
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

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/campus/school-engine/calendar"
	"github.com/campus/school-engine/fees"
)

// Store implements fees.Store and fees.EventStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
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
	CREATE TABLE IF NOT EXISTS fee_accounts (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		structure_name TEXT NOT NULL,
		academic_year TEXT,
		original_amount TEXT NOT NULL,
		discount_amount TEXT NOT NULL DEFAULT '0',
		final_amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_student
		ON fee_accounts(student_id);

	CREATE TABLE IF NOT EXISTS fee_particulars (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES fee_accounts(id),
		name TEXT NOT NULL,
		amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL DEFAULT '0',
		status TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_particulars_account
		ON fee_particulars(account_id);

	CREATE TABLE IF NOT EXISTS installments (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES fee_accounts(id),
		number INTEGER NOT NULL,
		amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL DEFAULT '0',
		late_fee TEXT NOT NULL DEFAULT '0',
		due_date TEXT NOT NULL,
		paid_date TEXT,
		early_payment_eligible INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		UNIQUE(account_id, number)
	);

	-- Hot path: schedule loads ordered by number
	CREATE INDEX IF NOT EXISTS idx_installments_account_number
		ON installments(account_id, number);

	CREATE TABLE IF NOT EXISTS installment_shares (
		id TEXT PRIMARY KEY,
		installment_id TEXT NOT NULL REFERENCES installments(id),
		particular_id TEXT NOT NULL REFERENCES fee_particulars(id),
		amount TEXT NOT NULL,
		paid_amount TEXT NOT NULL DEFAULT '0',
		UNIQUE(installment_id, particular_id)
	);

	CREATE INDEX IF NOT EXISTS idx_shares_installment
		ON installment_shares(installment_id);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES fee_accounts(id),
		amount TEXT NOT NULL,
		method TEXT NOT NULL,
		receipt_number TEXT NOT NULL UNIQUE,
		note TEXT,
		paid_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_account
		ON payments(account_id, paid_at DESC);

	CREATE TABLE IF NOT EXISTS payment_links (
		payment_id TEXT NOT NULL REFERENCES payments(id),
		installment_id TEXT NOT NULL REFERENCES installments(id),
		amount TEXT NOT NULL,
		PRIMARY KEY (payment_id, installment_id)
	);

	CREATE TABLE IF NOT EXISTS discount_rules (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		name TEXT,
		percentage TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT,
		start_time TEXT,
		end_time TEXT,
		all_day INTEGER NOT NULL DEFAULT 0,
		color TEXT,
		deleted_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_events_range
		ON events(start_date, end_date) WHERE deleted_at IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// FEE STORE
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, account fees.Account, particulars []fees.Particular, installments []fees.Installment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	createdAt := account.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO fee_accounts
			(id, student_id, structure_name, academic_year, original_amount,
			 discount_amount, final_amount, paid_amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID, account.StudentID, account.StructureName, account.AcademicYear,
		account.OriginalAmount.String(), account.DiscountAmount.String(),
		account.FinalAmount.String(), account.PaidAmount.String(),
		string(account.Status), createdAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("inserting account: %w", err)
	}

	for _, p := range particulars {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO fee_particulars (id, account_id, name, amount, paid_amount, status)
			VALUES (?, ?, ?, ?, ?, ?)`,
			p.ID, p.AccountID, p.Name, p.Amount.String(), p.PaidAmount.String(), string(p.Status))
		if err != nil {
			return fmt.Errorf("inserting particular %s: %w", p.Name, err)
		}
	}

	for _, inst := range installments {
		if err := insertInstallment(ctx, tx, inst); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func insertInstallment(ctx context.Context, tx *sql.Tx, inst fees.Installment) error {
	var paidDate any
	if inst.PaidDate != nil {
		paidDate = inst.PaidDate.String()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO installments
			(id, account_id, number, amount, paid_amount, late_fee, due_date,
			 paid_date, early_payment_eligible, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID, inst.AccountID, inst.Number, inst.Amount.String(),
		inst.PaidAmount.String(), inst.LateFee.String(), inst.DueDate.String(),
		paidDate, boolToInt(inst.EarlyPaymentEligible), string(inst.Status))
	if err != nil {
		return fmt.Errorf("inserting installment %d: %w", inst.Number, err)
	}

	for _, share := range inst.Shares {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO installment_shares (id, installment_id, particular_id, amount, paid_amount)
			VALUES (?, ?, ?, ?, ?)`,
			share.ID, share.InstallmentID, share.ParticularID,
			share.Amount.String(), share.PaidAmount.String())
		if err != nil {
			return fmt.Errorf("inserting share: %w", err)
		}
	}
	return nil
}

func (s *Store) AccountByStudent(ctx context.Context, studentID string) (fees.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, student_id, structure_name, academic_year, original_amount,
		       discount_amount, final_amount, paid_amount, status, created_at
		FROM fee_accounts WHERE student_id = ?`, studentID)

	var a fees.Account
	var original, discount, final, paid, createdAt string
	var status string
	err := row.Scan(&a.ID, &a.StudentID, &a.StructureName, &a.AcademicYear,
		&original, &discount, &final, &paid, &status, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fees.Account{}, fees.ErrAccountNotFound
	}
	if err != nil {
		return fees.Account{}, err
	}

	if a.OriginalAmount, err = decimal.NewFromString(original); err != nil {
		return fees.Account{}, fmt.Errorf("parsing original_amount: %w", err)
	}
	if a.DiscountAmount, err = decimal.NewFromString(discount); err != nil {
		return fees.Account{}, fmt.Errorf("parsing discount_amount: %w", err)
	}
	if a.FinalAmount, err = decimal.NewFromString(final); err != nil {
		return fees.Account{}, fmt.Errorf("parsing final_amount: %w", err)
	}
	if a.PaidAmount, err = decimal.NewFromString(paid); err != nil {
		return fees.Account{}, fmt.Errorf("parsing paid_amount: %w", err)
	}
	a.Status = fees.Status(status)
	a.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return a, nil
}

func (s *Store) Installments(ctx context.Context, accountID string) ([]fees.Installment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, number, amount, paid_amount, late_fee, due_date,
		       paid_date, early_payment_eligible, status
		FROM installments WHERE account_id = ? ORDER BY number ASC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var installments []fees.Installment
	for rows.Next() {
		var inst fees.Installment
		var amount, paid, lateFee, dueDate, status string
		var paidDate sql.NullString
		var eligible int
		if err := rows.Scan(&inst.ID, &inst.AccountID, &inst.Number, &amount, &paid,
			&lateFee, &dueDate, &paidDate, &eligible, &status); err != nil {
			return nil, err
		}

		if inst.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing installment amount: %w", err)
		}
		if inst.PaidAmount, err = decimal.NewFromString(paid); err != nil {
			return nil, fmt.Errorf("parsing installment paid_amount: %w", err)
		}
		if inst.LateFee, err = decimal.NewFromString(lateFee); err != nil {
			return nil, fmt.Errorf("parsing installment late_fee: %w", err)
		}
		if inst.DueDate, err = calendar.ParseDate(dueDate); err != nil {
			return nil, err
		}
		if paidDate.Valid {
			d, err := calendar.ParseDate(paidDate.String)
			if err != nil {
				return nil, err
			}
			inst.PaidDate = &d
		}
		inst.EarlyPaymentEligible = eligible != 0
		inst.Status = fees.Status(status)
		installments = append(installments, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range installments {
		shares, err := s.loadShares(ctx, installments[i].ID)
		if err != nil {
			return nil, err
		}
		installments[i].Shares = shares
	}
	return installments, nil
}

func (s *Store) loadShares(ctx context.Context, installmentID string) ([]fees.ParticularShare, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, installment_id, particular_id, amount, paid_amount
		FROM installment_shares WHERE installment_id = ?`, installmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shares []fees.ParticularShare
	for rows.Next() {
		var sh fees.ParticularShare
		var amount, paid string
		if err := rows.Scan(&sh.ID, &sh.InstallmentID, &sh.ParticularID, &amount, &paid); err != nil {
			return nil, err
		}
		if sh.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing share amount: %w", err)
		}
		if sh.PaidAmount, err = decimal.NewFromString(paid); err != nil {
			return nil, fmt.Errorf("parsing share paid_amount: %w", err)
		}
		shares = append(shares, sh)
	}
	return shares, rows.Err()
}

func (s *Store) Particulars(ctx context.Context, accountID string) ([]fees.Particular, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, name, amount, paid_amount, status
		FROM fee_particulars WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var particulars []fees.Particular
	for rows.Next() {
		var p fees.Particular
		var amount, paid, status string
		if err := rows.Scan(&p.ID, &p.AccountID, &p.Name, &amount, &paid, &status); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing particular amount: %w", err)
		}
		if p.PaidAmount, err = decimal.NewFromString(paid); err != nil {
			return nil, fmt.Errorf("parsing particular paid_amount: %w", err)
		}
		p.Status = fees.Status(status)
		particulars = append(particulars, p)
	}
	return particulars, rows.Err()
}

func (s *Store) Payments(ctx context.Context, accountID string) ([]fees.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, amount, method, receipt_number, COALESCE(note, ''), paid_at
		FROM payments WHERE account_id = ? ORDER BY paid_at DESC`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []fees.Payment
	for rows.Next() {
		var p fees.Payment
		var amount, method, paidAt string
		if err := rows.Scan(&p.ID, &p.AccountID, &amount, &method, &p.ReceiptNumber, &p.Note, &paidAt); err != nil {
			return nil, err
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, fmt.Errorf("parsing payment amount: %w", err)
		}
		p.Method = fees.PaymentMethod(method)
		p.PaidAt, _ = time.Parse(time.RFC3339, paidAt)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (s *Store) ApplyPayment(ctx context.Context, rec fees.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO payments (id, account_id, amount, method, receipt_number, note, paid_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Payment.ID, rec.Payment.AccountID, rec.Payment.Amount.String(),
		string(rec.Payment.Method), rec.Payment.ReceiptNumber, rec.Payment.Note,
		rec.Payment.PaidAt.UTC().Format(time.RFC3339))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: payments.receipt_number") {
			return fees.ErrDuplicateReceipt
		}
		return fmt.Errorf("inserting payment: %w", err)
	}

	for _, link := range rec.Links {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payment_links (payment_id, installment_id, amount)
			VALUES (?, ?, ?)`,
			link.PaymentID, link.InstallmentID, link.Amount.String())
		if err != nil {
			return fmt.Errorf("inserting payment link: %w", err)
		}
	}

	for _, inst := range rec.Installments {
		var paidDate any
		if inst.PaidDate != nil {
			paidDate = inst.PaidDate.String()
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE installments SET paid_amount = ?, status = ?, paid_date = ?
			WHERE id = ?`,
			inst.PaidAmount.String(), string(inst.Status), paidDate, inst.ID)
		if err != nil {
			return fmt.Errorf("updating installment %d: %w", inst.Number, err)
		}

		for _, share := range inst.Shares {
			_, err = tx.ExecContext(ctx, `
				UPDATE installment_shares SET paid_amount = ? WHERE id = ?`,
				share.PaidAmount.String(), share.ID)
			if err != nil {
				return fmt.Errorf("updating share: %w", err)
			}
		}
	}

	for _, p := range rec.Particulars {
		_, err = tx.ExecContext(ctx, `
			UPDATE fee_particulars SET paid_amount = ?, status = ? WHERE id = ?`,
			p.PaidAmount.String(), string(p.Status), p.ID)
		if err != nil {
			return fmt.Errorf("updating particular %s: %w", p.Name, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE fee_accounts SET paid_amount = ?, status = ? WHERE id = ?`,
		rec.Account.PaidAmount.String(), string(rec.Account.Status), rec.Account.ID)
	if err != nil {
		return fmt.Errorf("updating account: %w", err)
	}

	return tx.Commit()
}

func (s *Store) DiscountRules(ctx context.Context) ([]fees.DiscountRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, COALESCE(name, ''), percentage FROM discount_rules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []fees.DiscountRule
	for rows.Next() {
		var r fees.DiscountRule
		var typ, percentage string
		if err := rows.Scan(&r.ID, &typ, &r.Name, &percentage); err != nil {
			return nil, err
		}
		if r.Percentage, err = decimal.NewFromString(percentage); err != nil {
			return nil, fmt.Errorf("parsing rule percentage: %w", err)
		}
		r.Type = fees.DiscountType(typ)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (s *Store) SaveDiscountRule(ctx context.Context, rule fees.DiscountRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO discount_rules (id, type, name, percentage) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET type = excluded.type, name = excluded.name,
			percentage = excluded.percentage`,
		rule.ID, string(rule.Type), rule.Name, rule.Percentage.String())
	return err
}

// =============================================================================
// EVENT STORE
// =============================================================================

func (s *Store) CreateEvent(ctx context.Context, e calendar.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var endDate any
	if !e.End.IsZero() {
		endDate = e.End.String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, title, start_date, end_date, start_time, end_time, all_day, color)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Title, e.Start.String(), endDate, e.StartTime, e.EndTime,
		boolToInt(e.AllDay), e.Color)
	return err
}

func (s *Store) Event(ctx context.Context, id string) (calendar.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, start_date, end_date, start_time, end_time, all_day, color
		FROM events WHERE id = ? AND deleted_at IS NULL`, id)
	return scanEvent(row)
}

func (s *Store) EventsInRange(ctx context.Context, from, to calendar.Date) ([]calendar.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// ISO dates sort lexicographically, so string comparison is date
	// comparison. A missing end date means single-day at start.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, start_date, end_date, start_time, end_time, all_day, color
		FROM events
		WHERE deleted_at IS NULL
		  AND start_date <= ?
		  AND COALESCE(end_date, start_date) >= ?
		ORDER BY start_date, id`, to.String(), from.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []calendar.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *Store) UpdateEvent(ctx context.Context, e calendar.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var endDate any
	if !e.End.IsZero() {
		endDate = e.End.String()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE events SET title = ?, start_date = ?, end_date = ?, start_time = ?,
			end_time = ?, all_day = ?, color = ?
		WHERE id = ? AND deleted_at IS NULL`,
		e.Title, e.Start.String(), endDate, e.StartTime, e.EndTime,
		boolToInt(e.AllDay), e.Color, e.ID)
	if err != nil {
		return err
	}
	return ensureFound(res)
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE events SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	return ensureFound(res)
}

// =============================================================================
// HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (calendar.Event, error) {
	var e calendar.Event
	var startDate string
	var endDate, startTime, endTime, color sql.NullString
	var allDay int

	err := row.Scan(&e.ID, &e.Title, &startDate, &endDate, &startTime, &endTime, &allDay, &color)
	if errors.Is(err, sql.ErrNoRows) {
		return calendar.Event{}, fees.ErrEventNotFound
	}
	if err != nil {
		return calendar.Event{}, err
	}

	if e.Start, err = calendar.ParseDate(startDate); err != nil {
		return calendar.Event{}, err
	}
	if endDate.Valid {
		if e.End, err = calendar.ParseDate(endDate.String); err != nil {
			return calendar.Event{}, err
		}
	}
	e.StartTime = startTime.String
	e.EndTime = endTime.String
	e.AllDay = allDay != 0
	e.Color = color.String
	return e, nil
}

func ensureFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fees.ErrEventNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
