package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// NetWorth is derived from account and card balances and never persisted as such.
type NetWorth struct {
	Assets      decimal.Decimal
	Liabilities decimal.Decimal
	NetWorth    decimal.Decimal
}

// NetWorthSnapshot is a point-in-time copy of a NetWorth kept for history.
type NetWorthSnapshot struct {
	ID      string
	UserID  string
	EventID string // event that triggered the snapshot, empty for manual ones
	NetWorth
	TakenAt time.Time
}

// ComputeNetWorth aggregates active accounts and active credit cards.
//
// Assets are the positive balances of non-card accounts plus any credit
// balance on a card (an overpaid card owes the user money). Liabilities are
// the positive balances owed on credit-type cards. Debit cards carry no
// balance of their own and are ignored.
func ComputeNetWorth(accounts []BankAccount, cards []CreditCard) NetWorth {
	assets := decimal.Zero
	liabilities := decimal.Zero

	for _, a := range accounts {
		if !a.Active {
			continue
		}
		assets = assets.Add(clampPositive(a.Balance))
	}
	for _, c := range cards {
		if !c.Active || c.Type != CreditCardType {
			continue
		}
		liabilities = liabilities.Add(clampPositive(c.CurrentBalance))
		assets = assets.Add(clampPositive(c.CurrentBalance.Neg()))
	}

	return NetWorth{
		Assets:      assets,
		Liabilities: liabilities,
		NetWorth:    assets.Sub(liabilities),
	}
}
