package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifehub/internal/core"
	"lifehub/internal/storage"
	"lifehub/internal/storage/memory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []core.Event
	err    error
}

func (p *recordingPublisher) PublishEvent(_ context.Context, evt core.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, evt)
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store *memory.Store
	pub   *recordingPublisher
	svc   *AccountingService
}

// newFixture seeds user u1 with a checking account (1000), a credit card
// (limit 2000, balance 300) and a debit card linked to the account.
func newFixture(t *testing.T, opts AccountingOptions) fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.CreateAccount(ctx, core.BankAccount{ID: "acc", UserID: "u1", Name: "Main", Kind: core.Checking, Balance: dec("1000"), Active: true}); err != nil {
			return err
		}
		if err := tx.CreateCard(ctx, core.CreditCard{ID: "visa", UserID: "u1", Alias: "Visa", Type: core.CreditCardType, CreditLimit: dec("2000"), CurrentBalance: dec("300"), ClosingDay: 5, DueDay: 15, Active: true}); err != nil {
			return err
		}
		if err := tx.CreateCard(ctx, core.CreditCard{ID: "debit", UserID: "u1", Alias: "Debit", Type: core.DebitCardType, LinkedAccountID: "acc", Active: true}); err != nil {
			return err
		}
		return tx.CreateCard(ctx, core.CreditCard{ID: "old", UserID: "u1", Alias: "Old", Type: core.CreditCardType, ClosingDay: 1, DueDay: 10, Active: false})
	}))
	pub := &recordingPublisher{}
	return fixture{store: store, pub: pub, svc: NewAccountingService(store, pub, opts)}
}

func (f fixture) card(t *testing.T, id string) core.CreditCard {
	t.Helper()
	c, err := f.store.GetCard(context.Background(), "u1", id)
	require.NoError(t, err)
	return c
}

func (f fixture) account(t *testing.T, id string) core.BankAccount {
	t.Helper()
	a, err := f.store.GetAccount(context.Background(), "u1", id)
	require.NoError(t, err)
	return a
}

func (f fixture) transactions(t *testing.T) []core.Transaction {
	t.Helper()
	txns, err := f.store.ListTransactions(context.Background(), "u1", 0)
	require.NoError(t, err)
	return txns
}

func TestRegisterPurchaseRaisesCardBalance(t *testing.T) {
	f := newFixture(t, AccountingOptions{})

	res, err := f.svc.RegisterCreditCardPurchase(context.Background(), PurchaseRequest{
		UserID:      "u1",
		CardID:      "visa",
		Amount:      dec("100"),
		Description: "  Groceries ",
		CategoryID:  "food",
		Date:        core.NewDate(2025, 4, 2),
	})
	require.NoError(t, err)

	assert.True(t, f.card(t, "visa").CurrentBalance.Equal(dec("400")))
	assert.True(t, res.AvailableCredit.Equal(dec("1600")))

	txns := f.transactions(t)
	require.Len(t, txns, 1)
	assert.Equal(t, core.Expense, txns[0].Type)
	assert.True(t, txns[0].Amount.Equal(dec("-100")))
	assert.Equal(t, "visa", txns[0].PaymentMethodID)
	assert.Equal(t, "Groceries", txns[0].Description)
	assert.Equal(t, "", txns[0].AccountID)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, core.EventPurchaseRegistered, f.pub.events[0].Type)
	assert.Equal(t, res.Transaction.ID, f.pub.events[0].TransactionID)
}

func TestRegisterPurchaseRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		req  PurchaseRequest
		kind core.ErrorKind
	}{
		{"zero amount", PurchaseRequest{Amount: dec("0")}, core.KindValidation},
		{"negative amount", PurchaseRequest{Amount: dec("-10")}, core.KindValidation},
		{"rounds to zero", PurchaseRequest{Amount: dec("0.001")}, core.KindValidation},
		{"empty description", PurchaseRequest{Amount: dec("5"), Description: "   "}, core.KindValidation},
		{"missing date", PurchaseRequest{Amount: dec("5"), Description: "x", Date: core.Date{}}, core.KindValidation},
		{"foreign card", PurchaseRequest{UserID: "u2", Amount: dec("5"), Description: "x"}, core.KindNotFound},
		{"unknown card", PurchaseRequest{CardID: "nope", Amount: dec("5"), Description: "x"}, core.KindNotFound},
		{"inactive card", PurchaseRequest{CardID: "old", Amount: dec("5"), Description: "x"}, core.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, AccountingOptions{})
			req := tt.req
			if req.UserID == "" {
				req.UserID = "u1"
			}
			if req.CardID == "" {
				req.CardID = "visa"
			}
			if req.Date.IsZero() && tt.name != "missing date" {
				req.Date = core.NewDate(2025, 1, 1)
			}

			_, err := f.svc.RegisterCreditCardPurchase(context.Background(), req)
			require.Error(t, err)
			assert.Equal(t, tt.kind, core.KindOf(err))
			assert.ErrorIs(t, err, core.ErrValidation)

			assert.Empty(t, f.transactions(t))
			assert.True(t, f.card(t, "visa").CurrentBalance.Equal(dec("300")))
			assert.Empty(t, f.pub.events)
		})
	}
}

func TestRegisterPurchaseWithDebitCard(t *testing.T) {
	f := newFixture(t, AccountingOptions{})
	ctx := context.Background()

	res, err := f.svc.RegisterCreditCardPurchase(ctx, PurchaseRequest{
		UserID: "u1", CardID: "debit", Amount: dec("250"), Description: "Shoes", Date: core.NewDate(2025, 4, 2),
	})
	require.NoError(t, err)
	assert.Equal(t, "acc", res.Transaction.AccountID)
	assert.True(t, f.account(t, "acc").Balance.Equal(dec("750")))
	assert.True(t, f.card(t, "debit").CurrentBalance.IsZero())

	_, err = f.svc.RegisterCreditCardPurchase(ctx, PurchaseRequest{
		UserID: "u1", CardID: "debit", Amount: dec("751"), Description: "TV", Date: core.NewDate(2025, 4, 3),
	})
	assert.ErrorIs(t, err, core.ErrInsufficientFunds)
	assert.True(t, f.account(t, "acc").Balance.Equal(dec("750")))
}

func TestRegisterPurchaseRollsBackOnWriteFailure(t *testing.T) {
	f := newFixture(t, AccountingOptions{})
	f.store.FailOn("UpdateCardBalance", errors.New("connection reset"))

	_, err := f.svc.RegisterCreditCardPurchase(context.Background(), PurchaseRequest{
		UserID: "u1", CardID: "visa", Amount: dec("100"), Description: "Fuel", Date: core.NewDate(2025, 4, 2),
	})
	require.ErrorIs(t, err, core.ErrPersistence)
	assert.NotErrorIs(t, err, core.ErrValidation)

	assert.Empty(t, f.transactions(t), "transaction insert must be rolled back")
	assert.True(t, f.card(t, "visa").CurrentBalance.Equal(dec("300")))
	assert.Empty(t, f.pub.events)
}

func TestRegisterPurchaseSurvivesPublishFailure(t *testing.T) {
	f := newFixture(t, AccountingOptions{})
	f.pub.err = errors.New("broker down")

	_, err := f.svc.RegisterCreditCardPurchase(context.Background(), PurchaseRequest{
		UserID: "u1", CardID: "visa", Amount: dec("10"), Description: "Coffee", Date: core.NewDate(2025, 4, 2),
	})
	require.NoError(t, err)
	assert.Len(t, f.transactions(t), 1)
}

func TestPayInvoice(t *testing.T) {
	f := newFixture(t, AccountingOptions{})

	res, err := f.svc.PayCreditCardInvoice(context.Background(), PaymentRequest{
		UserID: "u1", AccountID: "acc", CardID: "visa", Amount: dec("300"), Date: core.NewDate(2025, 4, 15),
	})
	require.NoError(t, err)

	assert.True(t, f.account(t, "acc").Balance.Equal(dec("700")))
	assert.True(t, f.card(t, "visa").CurrentBalance.IsZero())
	assert.True(t, res.Card.CurrentBalance.IsZero())

	txns := f.transactions(t)
	require.Len(t, txns, 1)
	assert.Equal(t, core.Transfer, txns[0].Type)
	assert.Equal(t, "Credit card invoice payment", txns[0].Description)
	assert.Equal(t, "acc", txns[0].AccountID)
	assert.Equal(t, "visa", txns[0].PaymentMethodID)

	require.Len(t, f.pub.events, 1)
	assert.Equal(t, core.EventInvoicePaid, f.pub.events[0].Type)
}

func TestPayInvoiceInsufficientFunds(t *testing.T) {
	f := newFixture(t, AccountingOptions{})

	_, err := f.svc.PayCreditCardInvoice(context.Background(), PaymentRequest{
		UserID: "u1", AccountID: "acc", CardID: "visa", Amount: dec("1000.01"), Date: core.NewDate(2025, 4, 15),
	})
	require.ErrorIs(t, err, core.ErrInsufficientFunds)
	assert.Equal(t, "insufficient funds: balance 1000.00, requested 1000.01", err.(*core.Error).Message())

	assert.True(t, f.account(t, "acc").Balance.Equal(dec("1000")))
	assert.True(t, f.card(t, "visa").CurrentBalance.Equal(dec("300")))
	assert.Empty(t, f.transactions(t))
}

func TestPayInvoiceOverdraftAllowed(t *testing.T) {
	f := newFixture(t, AccountingOptions{AllowOverdraft: true})

	_, err := f.svc.PayCreditCardInvoice(context.Background(), PaymentRequest{
		UserID: "u1", AccountID: "acc", CardID: "visa", Amount: dec("1200"), Date: core.NewDate(2025, 4, 15),
		Description: "Full payoff",
	})
	require.NoError(t, err)
	assert.True(t, f.account(t, "acc").Balance.Equal(dec("-200")))
	assert.True(t, f.card(t, "visa").CurrentBalance.Equal(dec("-900")))
}

func TestPayInvoiceValidation(t *testing.T) {
	f := newFixture(t, AccountingOptions{})
	ctx := context.Background()

	_, err := f.svc.PayCreditCardInvoice(ctx, PaymentRequest{UserID: "u1", AccountID: "acc", CardID: "visa", Amount: dec("0"), Date: core.NewDate(2025, 1, 1)})
	assert.ErrorIs(t, err, core.ErrValidation)

	_, err = f.svc.PayCreditCardInvoice(ctx, PaymentRequest{UserID: "u1", AccountID: "missing", CardID: "visa", Amount: dec("10"), Date: core.NewDate(2025, 1, 1)})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.svc.PayCreditCardInvoice(ctx, PaymentRequest{UserID: "u2", AccountID: "acc", CardID: "visa", Amount: dec("10"), Date: core.NewDate(2025, 1, 1)})
	assert.ErrorIs(t, err, core.ErrNotFound)

	assert.Empty(t, f.transactions(t))
}

func TestPayInvoiceRejectsNonPayableCards(t *testing.T) {
	tests := []struct {
		name   string
		cardID string
		msg    string
	}{
		{"debit card", "debit", "card debit is not a credit card"},
		{"inactive card", "old", "credit card old is inactive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, AccountingOptions{})
			ctx := context.Background()

			_, err := f.svc.PayCreditCardInvoice(ctx, PaymentRequest{
				UserID: "u1", AccountID: "acc", CardID: tt.cardID, Amount: dec("100"), Date: core.NewDate(2025, 4, 15),
			})
			require.ErrorIs(t, err, core.ErrValidation)
			assert.Equal(t, tt.msg, err.(*core.Error).Message())

			assert.True(t, f.account(t, "acc").Balance.Equal(dec("1000")))
			assert.True(t, f.card(t, tt.cardID).CurrentBalance.IsZero())
			assert.Empty(t, f.transactions(t))

			nw, err := f.svc.CalculateNetWorth(ctx, "u1")
			require.NoError(t, err)
			assert.True(t, nw.NetWorth.Equal(dec("700")))
		})
	}
}

func TestPayInvoiceRejectsInactiveAccount(t *testing.T) {
	f := newFixture(t, AccountingOptions{})
	ctx := context.Background()
	require.NoError(t, f.store.WithTx(ctx, func(tx storage.Tx) error {
		return tx.CreateAccount(ctx, core.BankAccount{ID: "closed", UserID: "u1", Name: "Closed", Kind: core.Checking, Balance: dec("500"), Active: false})
	}))

	_, err := f.svc.PayCreditCardInvoice(ctx, PaymentRequest{
		UserID: "u1", AccountID: "closed", CardID: "visa", Amount: dec("100"), Date: core.NewDate(2025, 4, 15),
	})
	require.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, "account closed is inactive", err.(*core.Error).Message())

	assert.True(t, f.account(t, "closed").Balance.Equal(dec("500")))
	assert.True(t, f.card(t, "visa").CurrentBalance.Equal(dec("300")))
	assert.Empty(t, f.transactions(t))
}

func TestCalculateNetWorth(t *testing.T) {
	f := newFixture(t, AccountingOptions{})
	ctx := context.Background()

	nw, err := f.svc.CalculateNetWorth(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, nw.Assets.Equal(dec("1000")))
	assert.True(t, nw.Liabilities.Equal(dec("300")))
	assert.True(t, nw.NetWorth.Equal(dec("700")))

	_, err = f.svc.PayCreditCardInvoice(ctx, PaymentRequest{
		UserID: "u1", AccountID: "acc", CardID: "visa", Amount: dec("350"), Date: core.NewDate(2025, 4, 15),
	})
	require.NoError(t, err)

	nw, err = f.svc.CalculateNetWorth(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, nw.Assets.Equal(dec("700")), "650 in the account plus 50 overpaid on the card")
	assert.True(t, nw.Liabilities.IsZero())
	assert.True(t, nw.NetWorth.Equal(dec("700")))
}

func TestRecordSnapshotIsIdempotentPerEvent(t *testing.T) {
	f := newFixture(t, AccountingOptions{})
	ctx := context.Background()

	snap, recorded, err := f.svc.RecordSnapshot(ctx, "u1", "evt-1")
	require.NoError(t, err)
	assert.True(t, recorded)
	assert.True(t, snap.NetWorth.NetWorth.Equal(dec("700")))

	_, recorded, err = f.svc.RecordSnapshot(ctx, "u1", "evt-1")
	require.NoError(t, err)
	assert.False(t, recorded)

	history, err := f.svc.NetWorthHistory(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestCreateAccountAndCard(t *testing.T) {
	f := newFixture(t, AccountingOptions{})
	ctx := context.Background()

	acc, err := f.svc.CreateAccount(ctx, core.BankAccount{UserID: "u1", Name: " Savings ", Kind: core.Savings, Balance: dec("10.005")})
	require.NoError(t, err)
	assert.NotEmpty(t, acc.ID)
	assert.Equal(t, "Savings", acc.Name)
	assert.True(t, acc.Balance.Equal(dec("10.01")))
	assert.True(t, acc.Active)

	card, err := f.svc.CreateCard(ctx, core.CreditCard{UserID: "u1", Alias: "Amex", ClosingDay: 3, DueDay: 20, LinkedAccountID: acc.ID})
	require.NoError(t, err)
	assert.Equal(t, core.CreditCardType, card.Type)

	_, err = f.svc.CreateCard(ctx, core.CreditCard{UserID: "u2", Alias: "Stolen", ClosingDay: 3, DueDay: 20, LinkedAccountID: acc.ID})
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, err = f.svc.CreateCard(ctx, core.CreditCard{UserID: "u1", Alias: "Bad days", ClosingDay: 0, DueDay: 40})
	assert.ErrorIs(t, err, core.ErrValidation)

	cards, err := f.svc.ListCards(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, cards, 4)
}
