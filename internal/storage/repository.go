package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spendview/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the read side of the expense ledger plus the user and
// reference-data lookups. Every query binds its values as parameters.
type SQLiteRepository struct {
	db *sql.DB
}

// User is a dashboard login record.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// CreditCard is an active card joined with the name of its issuing source.
type CreditCard struct {
	core.PaymentCard
	SourceName string
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// Every pooled connection to an in-memory database is its own empty
	// database, so the pool must never grow past the migrated connection.
	if strings.Contains(dbPath, ":memory:") || strings.Contains(dbPath, "mode=memory") {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable, for readiness checks.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SumSpend sums live spend (is_deleted = 0, is_repayed = 0) grouped by the
// requested dimension, narrowed by the filter. The grouping expression is
// chosen from a fixed set; filter values are bound, never interpolated.
//
// Time dimensions come back ordered by their numeric key. Method and source
// groups come back in whatever order SQLite produces; callers that need a
// display order sort themselves.
func (r *SQLiteRepository) SumSpend(ctx context.Context, f core.Filter, g core.GroupBy) ([]core.SpendRow, error) {
	var keyExpr, labelExpr, join, orderBy string
	switch g {
	case core.GroupByYear:
		keyExpr = "CAST(strftime('%Y', e.date) AS INTEGER)"
		labelExpr = "''"
		orderBy = " ORDER BY grp_key"
	case core.GroupByMonthOfYear:
		keyExpr = "CAST(strftime('%m', e.date) AS INTEGER)"
		labelExpr = "''"
		orderBy = " ORDER BY grp_key"
	case core.GroupByDayOfMonth:
		keyExpr = "CAST(strftime('%d', e.date) AS INTEGER)"
		labelExpr = "''"
		orderBy = " ORDER BY grp_key"
	case core.GroupByMethod:
		keyExpr = "e.method_id"
		labelExpr = "pm.name"
		join = " LEFT JOIN payment_methods pm ON pm.id = e.method_id"
	case core.GroupBySource:
		keyExpr = "e.source_id"
		labelExpr = "ps.name"
		join = " LEFT JOIN payment_sources ps ON ps.id = e.source_id"
	default:
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidGroupBy, g)
	}

	query := "SELECT " + keyExpr + " AS grp_key, " + labelExpr + ", SUM(e.amount_cents)" +
		" FROM expenses e" + join +
		" WHERE e.is_deleted = 0 AND e.is_repayed = 0"
	var args []any
	if f.Year != 0 {
		query += " AND CAST(strftime('%Y', e.date) AS INTEGER) = ?"
		args = append(args, f.Year)
	}
	if f.Month != 0 {
		query += " AND CAST(strftime('%m', e.date) AS INTEGER) = ?"
		args = append(args, f.Month)
	}
	if f.MethodID != 0 {
		query += " AND e.method_id = ?"
		args = append(args, f.MethodID)
	}
	if f.SourceID != 0 {
		query += " AND e.source_id = ?"
		args = append(args, f.SourceID)
	}
	query += " GROUP BY grp_key" + orderBy

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sum spend by %s: %w", g, err)
	}
	defer rows.Close()

	var out []core.SpendRow
	for rows.Next() {
		var (
			row   core.SpendRow
			label sql.NullString
		)
		if err := rows.Scan(&row.Key, &label, &row.TotalCents); err != nil {
			return nil, fmt.Errorf("scan spend row: %w", err)
		}
		// Missing reference rows keep their amount and get an empty label.
		row.Label = label.String
		out = append(out, row)
	}
	return out, rows.Err()
}

// ListActiveCreditCards returns active cards whose payment method matches
// methodName, joined with their source names, ordered by statement day.
func (r *SQLiteRepository) ListActiveCreditCards(ctx context.Context, methodName string) ([]CreditCard, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pc.source_id, pc.name, pc.statement_date, pc.method_id, pc.is_active,
		       COALESCE(ps.name, '')
		FROM payment_cards pc
		JOIN payment_methods pm ON pm.id = pc.method_id
		LEFT JOIN payment_sources ps ON ps.id = pc.source_id
		WHERE pc.is_active = 1 AND pm.name = ?
		ORDER BY pc.statement_date, pc.source_id
	`, methodName)
	if err != nil {
		return nil, fmt.Errorf("list active credit cards: %w", err)
	}
	defer rows.Close()

	var cards []CreditCard
	for rows.Next() {
		var c CreditCard
		if err := rows.Scan(&c.SourceID, &c.Name, &c.StatementDay, &c.MethodID, &c.IsActive, &c.SourceName); err != nil {
			return nil, fmt.Errorf("scan credit card: %w", err)
		}
		cards = append(cards, c)
	}
	return cards, rows.Err()
}

// SumSourceSpendBetween sums live spend for one source with date in
// [start, end], inclusive on both ends, and reports how many ledger rows
// contributed.
func (r *SQLiteRepository) SumSourceSpendBetween(ctx context.Context, sourceID int64, start, end core.Date) (int64, int, error) {
	var (
		total sql.NullInt64
		count int
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT SUM(amount_cents), COUNT(*)
		FROM expenses
		WHERE source_id = ? AND is_deleted = 0 AND is_repayed = 0
		  AND date BETWEEN ? AND ?
	`, sourceID, start.String(), end.String()).Scan(&total, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("sum source spend: %w", err)
	}
	return total.Int64, count, nil
}

// ListMethods returns all payment methods.
func (r *SQLiteRepository) ListMethods(ctx context.Context) ([]core.PaymentMethod, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM payment_methods ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	defer rows.Close()

	var out []core.PaymentMethod
	for rows.Next() {
		var m core.PaymentMethod
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, fmt.Errorf("scan payment method: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListSources returns all payment sources.
func (r *SQLiteRepository) ListSources(ctx context.Context) ([]core.PaymentSource, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM payment_sources ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list payment sources: %w", err)
	}
	defer rows.Close()

	var out []core.PaymentSource
	for rows.Next() {
		var s core.PaymentSource
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, fmt.Errorf("scan payment source: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListCards returns all payment cards, active or not.
func (r *SQLiteRepository) ListCards(ctx context.Context) ([]core.PaymentCard, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT source_id, name, statement_date, method_id, is_active
		FROM payment_cards ORDER BY statement_date, source_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list payment cards: %w", err)
	}
	defer rows.Close()

	var out []core.PaymentCard
	for rows.Next() {
		var c core.PaymentCard
		if err := rows.Scan(&c.SourceID, &c.Name, &c.StatementDay, &c.MethodID, &c.IsActive); err != nil {
			return nil, fmt.Errorf("scan payment card: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetUserByUsername looks up one login record by exact username.
// Returns core.ErrNotFound when no such user exists.
func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var (
		u       User
		created string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash, created_at
		FROM app_users WHERE username = ?
	`, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	t, err := time.Parse("2006-01-02 15:04:05", created)
	if err != nil {
		slog.WarnContext(ctx, "Unparseable created_at on user record",
			"username", u.Username,
			"value", created,
			"error", err)
	} else {
		u.CreatedAt = t
	}
	return &u, nil
}

// CreateUser inserts a login record with an already-hashed password.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO app_users (username, password_hash) VALUES (?, ?)",
		username, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create user id: %w", err)
	}
	slog.InfoContext(ctx, "User created", "id", id, "username", username)
	return r.GetUserByUsername(ctx, username)
}

// InsertExpense adds one ledger row. The analytics side never mutates the
// ledger; this exists for provisioning tools and tests.
func (r *SQLiteRepository) InsertExpense(ctx context.Context, e core.Expense) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (date, amount_cents, method_id, source_id, is_deleted, is_repayed)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.Date.String(), e.Amount.Cents, e.MethodID, e.SourceID, boolToInt(e.IsDeleted), boolToInt(e.IsRepayed))
	if err != nil {
		return 0, fmt.Errorf("insert expense: %w", err)
	}
	return res.LastInsertId()
}

// InsertSource adds a payment source and returns its id.
func (r *SQLiteRepository) InsertSource(ctx context.Context, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "INSERT INTO payment_sources (name) VALUES (?)", name)
	if err != nil {
		return 0, fmt.Errorf("insert payment source: %w", err)
	}
	return res.LastInsertId()
}

// InsertMethod adds a payment method and returns its id.
func (r *SQLiteRepository) InsertMethod(ctx context.Context, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx, "INSERT INTO payment_methods (name) VALUES (?)", name)
	if err != nil {
		return 0, fmt.Errorf("insert payment method: %w", err)
	}
	return res.LastInsertId()
}

// UpsertCard creates or replaces the card anchored to a source.
func (r *SQLiteRepository) UpsertCard(ctx context.Context, c core.PaymentCard) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payment_cards (source_id, name, statement_date, method_id, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source_id) DO UPDATE SET
			name = excluded.name,
			statement_date = excluded.statement_date,
			method_id = excluded.method_id,
			is_active = excluded.is_active
	`, c.SourceID, c.Name, c.StatementDay, c.MethodID, boolToInt(c.IsActive))
	if err != nil {
		return fmt.Errorf("upsert payment card: %w", err)
	}
	return nil
}

// MethodIDByName resolves a payment method id from its exact name.
// Returns core.ErrNotFound when the method does not exist.
func (r *SQLiteRepository) MethodIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, "SELECT id FROM payment_methods WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("method id by name: %w", err)
	}
	return id, nil
}

// SourceIDByName resolves a payment source id from its exact name.
// Returns core.ErrNotFound when the source does not exist.
func (r *SQLiteRepository) SourceIDByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, "SELECT id FROM payment_sources WHERE name = ?", name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("source id by name: %w", err)
	}
	return id, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
