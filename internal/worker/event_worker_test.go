package worker

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifehub/internal/core"
	"lifehub/internal/services"
	"lifehub/internal/storage"
	"lifehub/internal/storage/memory"
)

type fakeExporter struct {
	mu           sync.Mutex
	transactions []core.Transaction
	snapshots    []core.NetWorthSnapshot
	err          error
}

func (e *fakeExporter) ExportTransaction(_ context.Context, t core.Transaction) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	e.transactions = append(e.transactions, t)
	return "Transactions!A2:J2", nil
}

func (e *fakeExporter) ExportSnapshot(_ context.Context, s core.NetWorthSnapshot) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	e.snapshots = append(e.snapshots, s)
	return "Net Worth!A2:E2", nil
}

type captured struct {
	mu     sync.Mutex
	events []core.Event
}

func (c *captured) PublishEvent(_ context.Context, evt core.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
	return nil
}

func setup(t *testing.T) (*memory.Store, *services.AccountingService, core.Event) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.CreateAccount(ctx, core.BankAccount{ID: "acc", UserID: "u1", Name: "Main", Kind: core.Checking, Balance: decimal.NewFromInt(500), Active: true}); err != nil {
			return err
		}
		return tx.CreateCard(ctx, core.CreditCard{ID: "visa", UserID: "u1", Alias: "Visa", Type: core.CreditCardType, CreditLimit: decimal.NewFromInt(1000), ClosingDay: 1, DueDay: 10, Active: true})
	}))

	pub := &captured{}
	svc := services.NewAccountingService(store, pub, services.AccountingOptions{})
	_, err := svc.RegisterCreditCardPurchase(ctx, services.PurchaseRequest{
		UserID: "u1", CardID: "visa", Amount: decimal.NewFromInt(120), Description: "Books", Date: core.NewDate(2025, 2, 3),
	})
	require.NoError(t, err)
	require.Len(t, pub.events, 1)
	return store, svc, pub.events[0]
}

func TestHandleEventRecordsSnapshotOnce(t *testing.T) {
	store, svc, evt := setup(t)
	exp := &fakeExporter{}
	w := NewEventWorker(svc, exp)

	require.NoError(t, w.HandleEvent(context.Background(), evt))
	require.NoError(t, w.HandleEvent(context.Background(), evt), "redelivery is a no-op")

	snaps, err := store.ListSnapshots(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, evt.ID, snaps[0].EventID)
	assert.True(t, snaps[0].NetWorth.NetWorth.Equal(decimal.NewFromInt(380)))

	require.Len(t, exp.transactions, 1)
	assert.Equal(t, evt.TransactionID, exp.transactions[0].ID)
	assert.Len(t, exp.snapshots, 1)
}

func TestHandleEventWithoutExporter(t *testing.T) {
	store, svc, evt := setup(t)
	w := NewEventWorker(svc, nil)

	require.NoError(t, w.HandleEvent(context.Background(), evt))
	snaps, err := store.ListSnapshots(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)
}

func TestHandleEventExportFailureIsNotRequeued(t *testing.T) {
	_, svc, evt := setup(t)
	w := NewEventWorker(svc, &fakeExporter{err: errors.New("sheets down")})

	assert.NoError(t, w.HandleEvent(context.Background(), evt))
}

func TestHandleEventStorageFailureRequeues(t *testing.T) {
	store, svc, evt := setup(t)
	store.FailOn("InsertSnapshot", errors.New("disk full"))
	w := NewEventWorker(svc, nil)

	err := w.HandleEvent(context.Background(), evt)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPersistence)
}

func TestHandleEventIgnoresUnknownType(t *testing.T) {
	store, svc, _ := setup(t)
	w := NewEventWorker(svc, nil)

	require.NoError(t, w.HandleEvent(context.Background(), core.Event{ID: "x", Type: "other", UserID: "u1"}))
	snaps, err := store.ListSnapshots(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Empty(t, snaps)
}
