package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Checking   AccountKind = "checking"
	Savings    AccountKind = "savings"
	Wallet     AccountKind = "wallet"
	Investment AccountKind = "investment"
	OtherKind  AccountKind = "other"

	CreditCardType CardType = "credit"
	DebitCardType  CardType = "debit"

	Income   TransactionType = "income"
	Expense  TransactionType = "expense"
	Transfer TransactionType = "transfer"
)

const maxDescriptionLen = 200

type (
	AccountKind     string
	CardType        string
	TransactionType string

	Date struct {
		time.Time
	}

	BankAccount struct {
		ID        string
		UserID    string
		Name      string
		Kind      AccountKind
		Balance   decimal.Decimal
		Active    bool
		CreatedAt time.Time
	}

	CreditCard struct {
		ID              string
		UserID          string
		Provider        string
		LinkedAccountID string // empty when the card has no linked account
		Alias           string
		Type            CardType
		CreditLimit     decimal.Decimal
		CurrentBalance  decimal.Decimal // positive = amount owed
		ClosingDay      int
		DueDay          int
		Active          bool
		CreatedAt       time.Time
	}

	// Transaction is immutable once created except for manual edits.
	// Optional references are empty strings.
	Transaction struct {
		ID              string
		UserID          string
		Description     string
		Amount          decimal.Decimal // signed
		Type            TransactionType
		CategoryID      string
		PaymentMethodID string
		AccountID       string
		Date            Date
		Notes           string
		CreatedAt       time.Time
	}
)

var (
	ErrInvalidDay       = &Error{Kind: KindValidation, Msg: "invalid day"}
	ErrInvalidAmount    = &Error{Kind: KindValidation, Msg: "amount must be greater than zero"}
	ErrEmptyDescription = &Error{Kind: KindValidation, Msg: "empty description"}
	ErrLongDescription  = &Error{Kind: KindValidation, Msg: "description too long (max 200 characters)"}
	ErrZeroDate         = &Error{Kind: KindValidation, Msg: "date cannot be zero"}
	ErrEmptyName        = &Error{Kind: KindValidation, Msg: "empty name"}
	ErrEmptyUser        = &Error{Kind: KindValidation, Msg: "missing user"}
)

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrZeroDate
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a date in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, Validation("", "invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{Time: t}, nil
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.Format(time.DateOnly)
}

// Today returns the current UTC date.
func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

// ValidateDescription trims and bounds a free-text description.
func ValidateDescription(desc string) error {
	if len(strings.TrimSpace(desc)) == 0 {
		return ErrEmptyDescription
	}
	if len(desc) > maxDescriptionLen {
		return ErrLongDescription
	}
	return nil
}

func (k AccountKind) IsValid() bool {
	switch k {
	case Checking, Savings, Wallet, Investment, OtherKind:
		return true
	}
	return false
}

func (t CardType) IsValid() bool {
	return t == CreditCardType || t == DebitCardType
}

func (t TransactionType) IsValid() bool {
	switch t {
	case Income, Expense, Transfer:
		return true
	}
	return false
}

func (a BankAccount) Validate() error {
	if strings.TrimSpace(a.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(a.Name) == "" {
		return ErrEmptyName
	}
	if !a.Kind.IsValid() {
		return Validation("", "invalid account kind %q", a.Kind)
	}
	return nil
}

func (c CreditCard) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(c.Alias) == "" {
		return ErrEmptyName
	}
	if !c.Type.IsValid() {
		return Validation("", "invalid card type %q", c.Type)
	}
	if c.CreditLimit.IsNegative() {
		return Validation("", "credit limit cannot be negative")
	}
	if c.Type == CreditCardType {
		if c.ClosingDay < 1 || c.ClosingDay > 31 || c.DueDay < 1 || c.DueDay > 31 {
			return ErrInvalidDay
		}
	}
	return nil
}

// AvailableCredit is the unused part of the credit limit, never negative.
func (c CreditCard) AvailableCredit() decimal.Decimal {
	avail := c.CreditLimit.Sub(c.CurrentBalance)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if err := ValidateDescription(t.Description); err != nil {
		return err
	}
	if t.Amount.IsZero() {
		return ErrInvalidAmount
	}
	if !t.Type.IsValid() {
		return Validation("", "invalid transaction type %q", t.Type)
	}
	return nil
}
