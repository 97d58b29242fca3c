package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"lifehub/internal/core"
	"lifehub/internal/log"
	"lifehub/internal/storage"
)

const (
	defaultPaymentDescription = "Credit card invoice payment"
	defaultListLimit          = 50
	maxListLimit              = 500
)

// EventPublisher delivers domain events once the records are committed.
type EventPublisher interface {
	PublishEvent(ctx context.Context, evt core.Event) error
}

// AccountingOptions tunes the accounting rules.
type AccountingOptions struct {
	// AllowOverdraft lets a payment or debit purchase take an account below zero.
	AllowOverdraft bool
}

// AccountingService owns credit card purchases, invoice payments and net worth.
// Every operation that touches more than one record runs in a single
// storage transaction; events are published after commit.
type AccountingService struct {
	store     storage.Store
	publisher EventPublisher
	opts      AccountingOptions

	now   func() time.Time
	newID func() string
}

func NewAccountingService(store storage.Store, publisher EventPublisher, opts AccountingOptions) *AccountingService {
	return &AccountingService{
		store:     store,
		publisher: publisher,
		opts:      opts,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

// PurchaseRequest describes a purchase made with a card.
type PurchaseRequest struct {
	UserID      string
	CardID      string
	Amount      decimal.Decimal
	Description string
	CategoryID  string
	Date        core.Date
	Notes       string
}

type PurchaseResult struct {
	Transaction     core.Transaction
	Card            core.CreditCard
	AvailableCredit decimal.Decimal
}

// PaymentRequest describes an invoice payment from a bank account.
type PaymentRequest struct {
	UserID      string
	AccountID   string
	CardID      string
	Amount      decimal.Decimal
	Date        core.Date
	Description string
}

type PaymentResult struct {
	Transaction core.Transaction
	Account     core.BankAccount
	Card        core.CreditCard
}

// RegisterCreditCardPurchase records an expense on a card and raises the
// card balance by the purchase amount. For debit cards the linked account
// is charged instead.
func (s *AccountingService) RegisterCreditCardPurchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	const op = "register purchase"

	amount := req.Amount.Round(2)
	description := strings.TrimSpace(req.Description)
	if err := validateUser(op, req.UserID); err != nil {
		return PurchaseResult{}, err
	}
	if err := core.ValidateAmount(amount); err != nil {
		return PurchaseResult{}, err
	}
	if err := core.ValidateDescription(description); err != nil {
		return PurchaseResult{}, err
	}
	if err := req.Date.Validate(); err != nil {
		return PurchaseResult{}, err
	}

	txn := core.Transaction{
		ID:              s.newID(),
		UserID:          req.UserID,
		Description:     description,
		Amount:          amount.Neg(),
		Type:            core.Expense,
		CategoryID:      strings.TrimSpace(req.CategoryID),
		PaymentMethodID: req.CardID,
		Date:            req.Date,
		Notes:           strings.TrimSpace(req.Notes),
		CreatedAt:       s.now(),
	}

	var card core.CreditCard
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		card, err = tx.GetCardForUpdate(ctx, req.UserID, req.CardID)
		if err != nil {
			return err
		}
		if !card.Active {
			return core.Validation(op, "credit card %s is inactive", card.ID)
		}

		var account *core.BankAccount
		if card.Type == core.DebitCardType {
			if card.LinkedAccountID == "" {
				return core.Validation(op, "debit card %s has no linked account", card.ID)
			}
			acc, err := tx.GetAccountForUpdate(ctx, req.UserID, card.LinkedAccountID)
			if err != nil {
				return err
			}
			if err := s.checkFunds(op, acc, amount); err != nil {
				return err
			}
			account = &acc
			txn.AccountID = acc.ID
		}

		if err := tx.InsertTransaction(ctx, txn); err != nil {
			return err
		}

		if account != nil {
			return tx.UpdateAccountBalance(ctx, req.UserID, account.ID, account.Balance.Sub(amount))
		}
		card.CurrentBalance = card.CurrentBalance.Add(amount)
		return tx.UpdateCardBalance(ctx, req.UserID, card.ID, card.CurrentBalance)
	})
	if err != nil {
		return PurchaseResult{}, storageError(ctx, op, "could not register purchase", err)
	}

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogCardMovement(ctx, log.OpPurchase, req.UserID, card.ID, txn.AccountID, txn.ID, core.FormatAmount(amount))

	s.publish(ctx, core.EventPurchaseRegistered, req.UserID, txn.ID)

	return PurchaseResult{
		Transaction:     txn,
		Card:            card,
		AvailableCredit: card.AvailableCredit(),
	}, nil
}

// PayCreditCardInvoice moves amount from a bank account to a card, lowering
// both balances.
func (s *AccountingService) PayCreditCardInvoice(ctx context.Context, req PaymentRequest) (PaymentResult, error) {
	const op = "pay invoice"

	amount := req.Amount.Round(2)
	if err := validateUser(op, req.UserID); err != nil {
		return PaymentResult{}, err
	}
	if err := core.ValidateAmount(amount); err != nil {
		return PaymentResult{}, err
	}
	if err := req.Date.Validate(); err != nil {
		return PaymentResult{}, err
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = defaultPaymentDescription
	}
	if err := core.ValidateDescription(description); err != nil {
		return PaymentResult{}, err
	}

	txn := core.Transaction{
		ID:              s.newID(),
		UserID:          req.UserID,
		Description:     description,
		Amount:          amount.Neg(),
		Type:            core.Transfer,
		PaymentMethodID: req.CardID,
		AccountID:       req.AccountID,
		Date:            req.Date,
		CreatedAt:       s.now(),
	}

	var (
		account core.BankAccount
		card    core.CreditCard
	)
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		var err error
		account, err = tx.GetAccountForUpdate(ctx, req.UserID, req.AccountID)
		if err != nil {
			return err
		}
		if !account.Active {
			return core.Validation(op, "account %s is inactive", account.ID)
		}
		card, err = tx.GetCardForUpdate(ctx, req.UserID, req.CardID)
		if err != nil {
			return err
		}
		if card.Type != core.CreditCardType {
			return core.Validation(op, "card %s is not a credit card", card.ID)
		}
		if !card.Active {
			return core.Validation(op, "credit card %s is inactive", card.ID)
		}
		if err := s.checkFunds(op, account, amount); err != nil {
			return err
		}

		account.Balance = account.Balance.Sub(amount)
		card.CurrentBalance = card.CurrentBalance.Sub(amount)

		if err := tx.UpdateAccountBalance(ctx, req.UserID, account.ID, account.Balance); err != nil {
			return err
		}
		if err := tx.UpdateCardBalance(ctx, req.UserID, card.ID, card.CurrentBalance); err != nil {
			return err
		}
		return tx.InsertTransaction(ctx, txn)
	})
	if err != nil {
		return PaymentResult{}, storageError(ctx, op, "could not pay invoice", err)
	}

	log.NewStructuredLogger(log.FromContext(ctx)).
		LogCardMovement(ctx, log.OpPayment, req.UserID, card.ID, account.ID, txn.ID, core.FormatAmount(amount))

	s.publish(ctx, core.EventInvoicePaid, req.UserID, txn.ID)

	return PaymentResult{Transaction: txn, Account: account, Card: card}, nil
}

// CalculateNetWorth reads accounts and cards concurrently and aggregates them.
func (s *AccountingService) CalculateNetWorth(ctx context.Context, userID string) (core.NetWorth, error) {
	const op = "calculate net worth"
	if err := validateUser(op, userID); err != nil {
		return core.NetWorth{}, err
	}

	var (
		accounts []core.BankAccount
		cards    []core.CreditCard
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accounts, err = s.store.ListAccounts(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		cards, err = s.store.ListCards(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.NetWorth{}, storageError(ctx, op, "could not calculate net worth", err)
	}

	return core.ComputeNetWorth(accounts, cards), nil
}

// RecordSnapshot stores the current net worth. With a non-empty eventID the
// call is idempotent: a second snapshot for the same event is skipped and
// reported with recorded == false.
func (s *AccountingService) RecordSnapshot(ctx context.Context, userID, eventID string) (snap core.NetWorthSnapshot, recorded bool, err error) {
	const op = "record snapshot"
	if err := validateUser(op, userID); err != nil {
		return core.NetWorthSnapshot{}, false, err
	}

	err = s.store.WithTx(ctx, func(tx storage.Tx) error {
		accounts, err := tx.ListAccounts(ctx, userID)
		if err != nil {
			return err
		}
		cards, err := tx.ListCards(ctx, userID)
		if err != nil {
			return err
		}
		snap = core.NetWorthSnapshot{
			ID:       s.newID(),
			UserID:   userID,
			EventID:  eventID,
			NetWorth: core.ComputeNetWorth(accounts, cards),
			TakenAt:  s.now(),
		}
		recorded, err = tx.InsertSnapshot(ctx, snap)
		return err
	})
	if err != nil {
		return core.NetWorthSnapshot{}, false, storageError(ctx, op, "could not record net worth snapshot", err)
	}
	return snap, recorded, nil
}

// NetWorthHistory returns the most recent snapshots, newest first.
func (s *AccountingService) NetWorthHistory(ctx context.Context, userID string, limit int) ([]core.NetWorthSnapshot, error) {
	snaps, err := s.store.ListSnapshots(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, storageError(ctx, "net worth history", "could not load net worth history", err)
	}
	return snaps, nil
}

// CreateAccount opens a new active bank account.
func (s *AccountingService) CreateAccount(ctx context.Context, a core.BankAccount) (core.BankAccount, error) {
	const op = "create account"

	a.Name = strings.TrimSpace(a.Name)
	if a.Kind == "" {
		a.Kind = core.Checking
	}
	if err := a.Validate(); err != nil {
		return core.BankAccount{}, err
	}
	a.ID = s.newID()
	a.Balance = a.Balance.Round(2)
	a.Active = true
	a.CreatedAt = s.now()

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		return tx.CreateAccount(ctx, a)
	})
	if err != nil {
		return core.BankAccount{}, storageError(ctx, op, "could not create account", err)
	}
	return a, nil
}

// CreateCard adds a card, checking that a linked account belongs to the user.
func (s *AccountingService) CreateCard(ctx context.Context, c core.CreditCard) (core.CreditCard, error) {
	const op = "create card"

	c.Alias = strings.TrimSpace(c.Alias)
	c.Provider = strings.TrimSpace(c.Provider)
	if c.Type == "" {
		c.Type = core.CreditCardType
	}
	if err := c.Validate(); err != nil {
		return core.CreditCard{}, err
	}
	c.ID = s.newID()
	c.CreditLimit = c.CreditLimit.Round(2)
	c.CurrentBalance = c.CurrentBalance.Round(2)
	c.Active = true
	c.CreatedAt = s.now()

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		if c.LinkedAccountID != "" {
			if _, err := tx.GetAccount(ctx, c.UserID, c.LinkedAccountID); err != nil {
				return err
			}
		}
		return tx.CreateCard(ctx, c)
	})
	if err != nil {
		return core.CreditCard{}, storageError(ctx, op, "could not create card", err)
	}
	return c, nil
}

func (s *AccountingService) ListAccounts(ctx context.Context, userID string) ([]core.BankAccount, error) {
	accounts, err := s.store.ListAccounts(ctx, userID)
	if err != nil {
		return nil, storageError(ctx, "list accounts", "could not load accounts", err)
	}
	return accounts, nil
}

func (s *AccountingService) ListCards(ctx context.Context, userID string) ([]core.CreditCard, error) {
	cards, err := s.store.ListCards(ctx, userID)
	if err != nil {
		return nil, storageError(ctx, "list cards", "could not load cards", err)
	}
	return cards, nil
}

func (s *AccountingService) ListTransactions(ctx context.Context, userID string, limit int) ([]core.Transaction, error) {
	txns, err := s.store.ListTransactions(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, storageError(ctx, "list transactions", "could not load transactions", err)
	}
	return txns, nil
}

// GetTransaction is used by the worker to export committed transactions.
func (s *AccountingService) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	txn, err := s.store.GetTransaction(ctx, userID, id)
	if err != nil {
		return core.Transaction{}, storageError(ctx, "get transaction", "could not load transaction", err)
	}
	return txn, nil
}

func (s *AccountingService) checkFunds(op string, account core.BankAccount, amount decimal.Decimal) error {
	if s.opts.AllowOverdraft {
		return nil
	}
	if amount.GreaterThan(account.Balance) {
		return core.InsufficientFunds(op, account.Balance, amount)
	}
	return nil
}

func (s *AccountingService) publish(ctx context.Context, typ core.EventType, userID, txnID string) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "No event publisher configured, skipping event", "type", typ)
		return
	}

	evt := core.Event{
		ID:            s.newID(),
		Type:          typ,
		UserID:        userID,
		TransactionID: txnID,
		OccurredAt:    s.now(),
	}
	if err := s.publisher.PublishEvent(ctx, evt); err != nil {
		slog.ErrorContext(ctx, "Failed to publish event",
			"type", typ,
			"event_id", evt.ID,
			"transaction_id", txnID,
			"error", err)
		// Don't fail the request - records are committed
	}
}

// storageError classifies err and logs persistence failures.
func storageError(ctx context.Context, op, msg string, err error) error {
	err = core.AsPersistence(op, msg, err)
	if core.KindOf(err) == core.KindPersistence {
		slog.ErrorContext(ctx, "Storage operation failed", "operation", op, "error", err)
	}
	return err
}

func validateUser(op, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return core.Validation(op, "missing user")
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
