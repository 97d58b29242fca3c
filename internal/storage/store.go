// Package storage persists accounts, cards, transactions, the task board and
// user preferences. Every multi-record write runs inside WithTx.
package storage

import (
	"context"

	"github.com/shopspring/decimal"

	"lifehub/internal/core"
)

// Dialect selects the SQL flavour and migration set.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "postgres"
)

func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return string(d)
}

// Reader groups the read operations available both inside and outside a
// transaction. Records are always filtered by user; a record owned by
// another user is reported as core.ErrNotFound.
type Reader interface {
	ListAccounts(ctx context.Context, userID string) ([]core.BankAccount, error)
	GetAccount(ctx context.Context, userID, id string) (core.BankAccount, error)
	ListCards(ctx context.Context, userID string) ([]core.CreditCard, error)
	GetCard(ctx context.Context, userID, id string) (core.CreditCard, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error)
	ListColumns(ctx context.Context, userID string) ([]core.TaskColumn, error)
	ListTasks(ctx context.Context, userID string) ([]core.TaskCard, error)
	ListSnapshots(ctx context.Context, userID string, limit int) ([]core.NetWorthSnapshot, error)
	ListHubPreferences(ctx context.Context, userID string) (map[string]bool, error)
}

// Tx is a unit of work. Nothing written through it is visible to other
// readers until the function passed to WithTx returns nil.
type Tx interface {
	Reader

	GetAccountForUpdate(ctx context.Context, userID, id string) (core.BankAccount, error)
	GetCardForUpdate(ctx context.Context, userID, id string) (core.CreditCard, error)

	CreateAccount(ctx context.Context, a core.BankAccount) error
	CreateCard(ctx context.Context, c core.CreditCard) error
	UpdateAccountBalance(ctx context.Context, userID, id string, balance decimal.Decimal) error
	UpdateCardBalance(ctx context.Context, userID, id string, balance decimal.Decimal) error
	InsertTransaction(ctx context.Context, t core.Transaction) error

	CreateColumn(ctx context.Context, c core.TaskColumn) error
	CreateTask(ctx context.Context, t core.TaskCard) error
	UpdateTaskPlacements(ctx context.Context, userID string, placements []core.TaskPlacement) error

	// InsertSnapshot reports false when a snapshot for the same event
	// already exists.
	InsertSnapshot(ctx context.Context, s core.NetWorthSnapshot) (bool, error)
	SetHubPreference(ctx context.Context, userID, hub string, enabled bool) error
}

// Store is the backend used by the services.
type Store interface {
	Reader
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
