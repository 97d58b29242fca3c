package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifehub/internal/core"
)

func TestRebind(t *testing.T) {
	pg := sqlReader{dialect: Postgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := sqlReader{dialect: SQLite}
	assert.Equal(t, "SELECT a FROM t WHERE x = ?", lite.rebind("SELECT a FROM t WHERE x = ?"))
}

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "lifehub.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteAccountsAndCards(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	err := store.WithTx(ctx, func(tx Tx) error {
		if err := tx.CreateAccount(ctx, core.BankAccount{
			ID: "acc-1", UserID: "u1", Name: "Main", Kind: core.Checking,
			Balance: decimal.RequireFromString("1000.50"), Active: true, CreatedAt: now,
		}); err != nil {
			return err
		}
		return tx.CreateCard(ctx, core.CreditCard{
			ID: "card-1", UserID: "u1", Provider: "Visa", Alias: "Gold", Type: core.CreditCardType,
			CreditLimit: decimal.NewFromInt(2000), ClosingDay: 5, DueDay: 15, Active: true, CreatedAt: now,
		})
	})
	require.NoError(t, err)

	acc, err := store.GetAccount(ctx, "u1", "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "Main", acc.Name)
	assert.True(t, acc.Balance.Equal(decimal.RequireFromString("1000.50")))
	assert.True(t, acc.Active)
	assert.True(t, acc.CreatedAt.Equal(now))

	card, err := store.GetCard(ctx, "u1", "card-1")
	require.NoError(t, err)
	assert.Equal(t, "", card.LinkedAccountID)
	assert.True(t, card.CurrentBalance.IsZero())

	_, err = store.GetCard(ctx, "u2", "card-1")
	assert.ErrorIs(t, err, core.ErrNotFound)

	err = store.WithTx(ctx, func(tx Tx) error {
		return tx.UpdateCardBalance(ctx, "u1", "card-1", decimal.RequireFromString("49.99"))
	})
	require.NoError(t, err)
	card, err = store.GetCard(ctx, "u1", "card-1")
	require.NoError(t, err)
	assert.True(t, card.CurrentBalance.Equal(decimal.RequireFromString("49.99")))
}

func TestSQLiteRollback(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(tx Tx) error {
		if err := tx.CreateAccount(ctx, core.BankAccount{
			ID: "acc-1", UserID: "u1", Name: "Main", Kind: core.Checking, Active: true, CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	accounts, err := store.ListAccounts(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, accounts)
}

func TestSQLiteTransactionsAndSnapshots(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now().UTC()

	err := store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertTransaction(ctx, core.Transaction{
			ID: "t1", UserID: "u1", Description: "groceries", Amount: decimal.RequireFromString("-12.30"),
			Type: core.Expense, Date: core.NewDate(2025, 2, 3), CreatedAt: now,
		})
	})
	require.NoError(t, err)

	txns, err := store.ListTransactions(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "2025-02-03", txns[0].Date.String())
	assert.Equal(t, "", txns[0].PaymentMethodID)
	assert.True(t, txns[0].Amount.Equal(decimal.RequireFromString("-12.3")))

	snap := core.NetWorthSnapshot{ID: "s1", UserID: "u1", EventID: "evt-1", TakenAt: now}
	var inserted []bool
	for _, id := range []string{"s1", "s2"} {
		snap.ID = id
		err = store.WithTx(ctx, func(tx Tx) error {
			ok, err := tx.InsertSnapshot(ctx, snap)
			inserted = append(inserted, ok)
			return err
		})
		require.NoError(t, err)
	}
	assert.Equal(t, []bool{true, false}, inserted)

	snaps, err := store.ListSnapshots(ctx, "u1", 10)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestSQLiteBoardAndPreferences(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	now := time.Now().UTC()

	err := store.WithTx(ctx, func(tx Tx) error {
		for i, id := range []string{"todo", "done"} {
			if err := tx.CreateColumn(ctx, core.TaskColumn{ID: id, UserID: "u1", Title: id, Position: i, CreatedAt: now}); err != nil {
				return err
			}
		}
		return tx.CreateTask(ctx, core.TaskCard{ID: "a", UserID: "u1", ColumnID: "todo", Title: "A", CreatedAt: now})
	})
	require.NoError(t, err)

	err = store.WithTx(ctx, func(tx Tx) error {
		return tx.UpdateTaskPlacements(ctx, "u1", []core.TaskPlacement{{TaskID: "a", ColumnID: "done", SortOrder: 0}})
	})
	require.NoError(t, err)

	tasks, err := store.ListTasks(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "done", tasks[0].ColumnID)

	err = store.WithTx(ctx, func(tx Tx) error {
		return tx.UpdateTaskPlacements(ctx, "u2", []core.TaskPlacement{{TaskID: "a", ColumnID: "todo"}})
	})
	assert.ErrorIs(t, err, core.ErrNotFound)

	for _, enabled := range []bool{false, true, false} {
		err = store.WithTx(ctx, func(tx Tx) error {
			return tx.SetHubPreference(ctx, "u1", "health", enabled)
		})
		require.NoError(t, err)
	}
	prefs, err := store.ListHubPreferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"health": false}, prefs)
}
