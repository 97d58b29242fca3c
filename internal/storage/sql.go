package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"lifehub/internal/core"
)

// SQLStore implements Store on database/sql for SQLite and PostgreSQL.
// Queries are written with ? placeholders and rebound for PostgreSQL.
type SQLStore struct {
	sqlReader
	db *sql.DB
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteDSN builds the connection string used for both the store and the
// migration connection. Transactions take the write lock up front so that
// read-then-update sequences inside WithTx are serialized.
func SQLiteDSN(path string) string {
	return "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
}

// OpenSQLite opens (and migrates) the database file at path.
func OpenSQLite(path string) (*SQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return open(SQLite, SQLiteDSN(path))
}

// OpenPostgres connects to url through the pgx stdlib driver and migrates.
func OpenPostgres(url string) (*SQLStore, error) {
	return open(Postgres, url)
}

func open(d Dialect, dsn string) (*SQLStore, error) {
	db, err := sql.Open(d.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", d, err)
	}

	if d == Postgres {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(2)
		db.SetConnMaxIdleTime(2 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(d, dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	slog.Info("Database ready", "dialect", d)
	return NewSQLStore(db, d), nil
}

// NewSQLStore wraps an already opened and migrated database.
func NewSQLStore(db *sql.DB, d Dialect) *SQLStore {
	return &SQLStore{sqlReader: sqlReader{q: db, dialect: d}, db: db}
}

func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// WithTx runs fn in a database transaction, committing when fn returns nil
// and rolling back otherwise.
func (s *SQLStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(&sqlTxn{sqlReader: sqlReader{q: sqlTx, dialect: s.dialect}}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			slog.ErrorContext(ctx, "Rollback failed", "error", rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type sqlReader struct {
	q       queryer
	dialect Dialect
}

// rebind rewrites ? placeholders to $1..$n for PostgreSQL.
func (r sqlReader) rebind(query string) string {
	if r.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

func (r sqlReader) forUpdate() string {
	if r.dialect == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

func (r sqlReader) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return r.q.ExecContext(ctx, r.rebind(query), args...)
}

func (r sqlReader) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return r.q.QueryContext(ctx, r.rebind(query), args...)
}

func (r sqlReader) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return r.q.QueryRowContext(ctx, r.rebind(query), args...)
}

const (
	accountColumns     = `id, user_id, name, kind, balance, active, created_at`
	cardColumns        = `id, user_id, provider, linked_account_id, alias, type, credit_limit, current_balance, closing_day, due_day, active, created_at`
	transactionColumns = `id, user_id, description, amount, type, category_id, payment_method_id, account_id, date, notes, created_at`
	columnColumns      = `id, user_id, title, position, wip_limit, created_at`
	taskColumns        = `id, user_id, column_id, title, sort_order, created_at`
	snapshotColumns    = `id, user_id, event_id, assets, liabilities, net_worth, taken_at`
)

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(sc scanner) (core.BankAccount, error) {
	var (
		a       core.BankAccount
		kind    string
		created string
	)
	if err := sc.Scan(&a.ID, &a.UserID, &a.Name, &kind, &a.Balance, &a.Active, &created); err != nil {
		return core.BankAccount{}, err
	}
	a.Kind = core.AccountKind(kind)
	a.CreatedAt = parseTimestamp(created)
	return a, nil
}

func scanCard(sc scanner) (core.CreditCard, error) {
	var (
		c       core.CreditCard
		linked  sql.NullString
		typ     string
		created string
	)
	if err := sc.Scan(&c.ID, &c.UserID, &c.Provider, &linked, &c.Alias, &typ,
		&c.CreditLimit, &c.CurrentBalance, &c.ClosingDay, &c.DueDay, &c.Active, &created); err != nil {
		return core.CreditCard{}, err
	}
	c.LinkedAccountID = linked.String
	c.Type = core.CardType(typ)
	c.CreatedAt = parseTimestamp(created)
	return c, nil
}

func scanTransaction(sc scanner) (core.Transaction, error) {
	var (
		t                         core.Transaction
		typ, date, created        string
		category, method, account sql.NullString
	)
	if err := sc.Scan(&t.ID, &t.UserID, &t.Description, &t.Amount, &typ,
		&category, &method, &account, &date, &t.Notes, &created); err != nil {
		return core.Transaction{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", t.ID, err)
	}
	t.Type = core.TransactionType(typ)
	t.CategoryID = category.String
	t.PaymentMethodID = method.String
	t.AccountID = account.String
	t.Date = d
	t.CreatedAt = parseTimestamp(created)
	return t, nil
}

func scanColumn(sc scanner) (core.TaskColumn, error) {
	var (
		c       core.TaskColumn
		created string
	)
	if err := sc.Scan(&c.ID, &c.UserID, &c.Title, &c.Position, &c.WIPLimit, &created); err != nil {
		return core.TaskColumn{}, err
	}
	c.CreatedAt = parseTimestamp(created)
	return c, nil
}

func scanTask(sc scanner) (core.TaskCard, error) {
	var (
		t       core.TaskCard
		created string
	)
	if err := sc.Scan(&t.ID, &t.UserID, &t.ColumnID, &t.Title, &t.SortOrder, &created); err != nil {
		return core.TaskCard{}, err
	}
	t.CreatedAt = parseTimestamp(created)
	return t, nil
}

func scanSnapshot(sc scanner) (core.NetWorthSnapshot, error) {
	var (
		s       core.NetWorthSnapshot
		eventID sql.NullString
		taken   string
	)
	if err := sc.Scan(&s.ID, &s.UserID, &eventID, &s.Assets, &s.Liabilities, &s.NetWorth.NetWorth, &taken); err != nil {
		return core.NetWorthSnapshot{}, err
	}
	s.EventID = eventID.String
	s.TakenAt = parseTimestamp(taken)
	return s, nil
}

// collect drains rows through scan.
func collect[T any](rows *sql.Rows, scan func(scanner) (T, error)) ([]T, error) {
	defer rows.Close()
	var out []T
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r sqlReader) ListAccounts(ctx context.Context, userID string) ([]core.BankAccount, error) {
	rows, err := r.query(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE user_id = ? ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	accounts, err := collect(rows, scanAccount)
	if err != nil {
		return nil, fmt.Errorf("scan accounts: %w", err)
	}
	return accounts, nil
}

func (r sqlReader) getAccount(ctx context.Context, userID, id, suffix string) (core.BankAccount, error) {
	row := r.queryRow(ctx, `SELECT `+accountColumns+` FROM bank_accounts WHERE id = ? AND user_id = ?`+suffix, id, userID)
	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BankAccount{}, core.NotFound("", "account", id)
	}
	if err != nil {
		return core.BankAccount{}, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (r sqlReader) GetAccount(ctx context.Context, userID, id string) (core.BankAccount, error) {
	return r.getAccount(ctx, userID, id, "")
}

func (r sqlReader) ListCards(ctx context.Context, userID string) ([]core.CreditCard, error) {
	rows, err := r.query(ctx, `SELECT `+cardColumns+` FROM credit_cards WHERE user_id = ? ORDER BY alias`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	cards, err := collect(rows, scanCard)
	if err != nil {
		return nil, fmt.Errorf("scan cards: %w", err)
	}
	return cards, nil
}

func (r sqlReader) getCard(ctx context.Context, userID, id, suffix string) (core.CreditCard, error) {
	row := r.queryRow(ctx, `SELECT `+cardColumns+` FROM credit_cards WHERE id = ? AND user_id = ?`+suffix, id, userID)
	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.CreditCard{}, core.NotFound("", "credit card", id)
	}
	if err != nil {
		return core.CreditCard{}, fmt.Errorf("get card: %w", err)
	}
	return c, nil
}

func (r sqlReader) GetCard(ctx context.Context, userID, id string) (core.CreditCard, error) {
	return r.getCard(ctx, userID, id, "")
}

func (r sqlReader) ListTransactions(ctx context.Context, userID string, limit int) ([]core.Transaction, error) {
	rows, err := r.query(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE user_id = ? ORDER BY date DESC, created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	txns, err := collect(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("scan transactions: %w", err)
	}
	return txns, nil
}

func (r sqlReader) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	row := r.queryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.NotFound("", "transaction", id)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

func (r sqlReader) ListColumns(ctx context.Context, userID string) ([]core.TaskColumn, error) {
	rows, err := r.query(ctx, `SELECT `+columnColumns+` FROM task_columns WHERE user_id = ? ORDER BY position, created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	cols, err := collect(rows, scanColumn)
	if err != nil {
		return nil, fmt.Errorf("scan columns: %w", err)
	}
	return cols, nil
}

func (r sqlReader) ListTasks(ctx context.Context, userID string) ([]core.TaskCard, error) {
	rows, err := r.query(ctx, `SELECT `+taskColumns+` FROM task_cards WHERE user_id = ? ORDER BY column_id, sort_order, created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks, err := collect(rows, scanTask)
	if err != nil {
		return nil, fmt.Errorf("scan tasks: %w", err)
	}
	return tasks, nil
}

func (r sqlReader) ListSnapshots(ctx context.Context, userID string, limit int) ([]core.NetWorthSnapshot, error) {
	rows, err := r.query(ctx, `SELECT `+snapshotColumns+` FROM networth_snapshots WHERE user_id = ? ORDER BY taken_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	snaps, err := collect(rows, scanSnapshot)
	if err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}
	return snaps, nil
}

func (r sqlReader) ListHubPreferences(ctx context.Context, userID string) (map[string]bool, error) {
	rows, err := r.query(ctx, `SELECT hub, enabled FROM hub_preferences WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list hub preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]bool)
	for rows.Next() {
		var (
			hub     string
			enabled bool
		)
		if err := rows.Scan(&hub, &enabled); err != nil {
			return nil, fmt.Errorf("scan hub preference: %w", err)
		}
		prefs[hub] = enabled
	}
	return prefs, rows.Err()
}

// sqlTxn adds the write operations on top of a transaction-bound reader.
type sqlTxn struct {
	sqlReader
}

func (t *sqlTxn) GetAccountForUpdate(ctx context.Context, userID, id string) (core.BankAccount, error) {
	return t.getAccount(ctx, userID, id, t.forUpdate())
}

func (t *sqlTxn) GetCardForUpdate(ctx context.Context, userID, id string) (core.CreditCard, error) {
	return t.getCard(ctx, userID, id, t.forUpdate())
}

func (t *sqlTxn) CreateAccount(ctx context.Context, a core.BankAccount) error {
	_, err := t.exec(ctx,
		`INSERT INTO bank_accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.Name, string(a.Kind), a.Balance.StringFixed(2), a.Active, formatTimestamp(a.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (t *sqlTxn) CreateCard(ctx context.Context, c core.CreditCard) error {
	_, err := t.exec(ctx,
		`INSERT INTO credit_cards (`+cardColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Provider, nullable(c.LinkedAccountID), c.Alias, string(c.Type),
		c.CreditLimit.StringFixed(2), c.CurrentBalance.StringFixed(2), c.ClosingDay, c.DueDay, c.Active,
		formatTimestamp(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert card: %w", err)
	}
	return nil
}

func (t *sqlTxn) UpdateAccountBalance(ctx context.Context, userID, id string, balance decimal.Decimal) error {
	res, err := t.exec(ctx, `UPDATE bank_accounts SET balance = ? WHERE id = ? AND user_id = ?`, balance.StringFixed(2), id, userID)
	if err != nil {
		return fmt.Errorf("update account balance: %w", err)
	}
	return expectRow(res, core.NotFound("", "account", id))
}

func (t *sqlTxn) UpdateCardBalance(ctx context.Context, userID, id string, balance decimal.Decimal) error {
	res, err := t.exec(ctx, `UPDATE credit_cards SET current_balance = ? WHERE id = ? AND user_id = ?`, balance.StringFixed(2), id, userID)
	if err != nil {
		return fmt.Errorf("update card balance: %w", err)
	}
	return expectRow(res, core.NotFound("", "credit card", id))
}

func (t *sqlTxn) InsertTransaction(ctx context.Context, tr core.Transaction) error {
	_, err := t.exec(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.UserID, tr.Description, tr.Amount.StringFixed(2), string(tr.Type),
		nullable(tr.CategoryID), nullable(tr.PaymentMethodID), nullable(tr.AccountID),
		tr.Date.String(), tr.Notes, formatTimestamp(tr.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (t *sqlTxn) CreateColumn(ctx context.Context, c core.TaskColumn) error {
	_, err := t.exec(ctx,
		`INSERT INTO task_columns (`+columnColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Title, c.Position, c.WIPLimit, formatTimestamp(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert column: %w", err)
	}
	return nil
}

func (t *sqlTxn) CreateTask(ctx context.Context, c core.TaskCard) error {
	_, err := t.exec(ctx,
		`INSERT INTO task_cards (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.ColumnID, c.Title, c.SortOrder, formatTimestamp(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert task: %w", err)
	}
	return nil
}

func (t *sqlTxn) UpdateTaskPlacements(ctx context.Context, userID string, placements []core.TaskPlacement) error {
	for _, p := range placements {
		res, err := t.exec(ctx,
			`UPDATE task_cards SET column_id = ?, sort_order = ? WHERE id = ? AND user_id = ?`,
			p.ColumnID, p.SortOrder, p.TaskID, userID,
		)
		if err != nil {
			return fmt.Errorf("update task %s: %w", p.TaskID, err)
		}
		if err := expectRow(res, core.NotFound("", "task", p.TaskID)); err != nil {
			return err
		}
	}
	return nil
}

func (t *sqlTxn) InsertSnapshot(ctx context.Context, s core.NetWorthSnapshot) (bool, error) {
	res, err := t.exec(ctx,
		`INSERT INTO networth_snapshots (`+snapshotColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT (event_id) DO NOTHING`,
		s.ID, s.UserID, nullable(s.EventID), s.Assets.StringFixed(2), s.Liabilities.StringFixed(2),
		s.NetWorth.NetWorth.StringFixed(2), formatTimestamp(s.TakenAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert snapshot: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert snapshot: %w", err)
	}
	return n > 0, nil
}

func (t *sqlTxn) SetHubPreference(ctx context.Context, userID, hub string, enabled bool) error {
	_, err := t.exec(ctx,
		`INSERT INTO hub_preferences (user_id, hub, enabled) VALUES (?, ?, ?)
		 ON CONFLICT (user_id, hub) DO UPDATE SET enabled = excluded.enabled`,
		userID, hub, enabled,
	)
	if err != nil {
		return fmt.Errorf("save hub preference: %w", err)
	}
	return nil
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
