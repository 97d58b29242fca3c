package http

import (
	"time"

	"lifehub/internal/core"
	"lifehub/internal/services"
)

// JSON views. Amounts are rendered as strings with two decimals so that
// clients never see binary floating point.

type accountView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Kind      string    `json:"kind"`
	Balance   string    `json:"balance"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func newAccountView(a core.BankAccount) accountView {
	return accountView{
		ID:        a.ID,
		Name:      a.Name,
		Kind:      string(a.Kind),
		Balance:   core.FormatAmount(a.Balance),
		Active:    a.Active,
		CreatedAt: a.CreatedAt,
	}
}

type cardView struct {
	ID              string    `json:"id"`
	Provider        string    `json:"provider,omitempty"`
	LinkedAccountID string    `json:"linked_account_id,omitempty"`
	Alias           string    `json:"alias"`
	Type            string    `json:"type"`
	CreditLimit     string    `json:"credit_limit"`
	CurrentBalance  string    `json:"current_balance"`
	AvailableCredit string    `json:"available_credit"`
	ClosingDay      int       `json:"closing_day,omitempty"`
	DueDay          int       `json:"due_day,omitempty"`
	NextClosingDate string    `json:"next_closing_date,omitempty"`
	NextDueDate     string    `json:"next_due_date,omitempty"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
}

func newCardView(c core.CreditCard) cardView {
	v := cardView{
		ID:              c.ID,
		Provider:        c.Provider,
		LinkedAccountID: c.LinkedAccountID,
		Alias:           c.Alias,
		Type:            string(c.Type),
		CreditLimit:     core.FormatAmount(c.CreditLimit),
		CurrentBalance:  core.FormatAmount(c.CurrentBalance),
		AvailableCredit: core.FormatAmount(c.AvailableCredit()),
		ClosingDay:      c.ClosingDay,
		DueDay:          c.DueDay,
		Active:          c.Active,
		CreatedAt:       c.CreatedAt,
	}
	if dates, ok := c.NextInvoiceDates(core.Today()); ok {
		v.NextClosingDate = dates.Closing.String()
		v.NextDueDate = dates.Due.String()
	}
	return v
}

type transactionView struct {
	ID              string    `json:"id"`
	Description     string    `json:"description"`
	Amount          string    `json:"amount"`
	Type            string    `json:"type"`
	CategoryID      string    `json:"category_id,omitempty"`
	PaymentMethodID string    `json:"payment_method_id,omitempty"`
	AccountID       string    `json:"account_id,omitempty"`
	Date            string    `json:"date"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func newTransactionView(t core.Transaction) transactionView {
	return transactionView{
		ID:              t.ID,
		Description:     t.Description,
		Amount:          core.FormatAmount(t.Amount),
		Type:            string(t.Type),
		CategoryID:      t.CategoryID,
		PaymentMethodID: t.PaymentMethodID,
		AccountID:       t.AccountID,
		Date:            t.Date.String(),
		Notes:           t.Notes,
		CreatedAt:       t.CreatedAt,
	}
}

type netWorthView struct {
	Assets      string `json:"assets"`
	Liabilities string `json:"liabilities"`
	NetWorth    string `json:"net_worth"`
}

func newNetWorthView(n core.NetWorth) netWorthView {
	return netWorthView{
		Assets:      core.FormatAmount(n.Assets),
		Liabilities: core.FormatAmount(n.Liabilities),
		NetWorth:    core.FormatAmount(n.NetWorth),
	}
}

type snapshotView struct {
	netWorthView
	TakenAt time.Time `json:"taken_at"`
}

type purchaseView struct {
	Transaction     transactionView `json:"transaction"`
	Card            cardView        `json:"card"`
	AvailableCredit string          `json:"available_credit"`
}

type paymentView struct {
	Transaction transactionView `json:"transaction"`
	Account     accountView     `json:"account"`
	Card        cardView        `json:"card"`
}

type columnView struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Position    int        `json:"position"`
	WIPLimit    int        `json:"wip_limit,omitempty"`
	WIPExceeded bool       `json:"wip_exceeded"`
	Tasks       []taskView `json:"tasks"`
}

type taskView struct {
	ID        string `json:"id"`
	ColumnID  string `json:"column_id"`
	Title     string `json:"title"`
	SortOrder int    `json:"sort_order"`
}

func newTaskView(t core.TaskCard) taskView {
	return taskView{ID: t.ID, ColumnID: t.ColumnID, Title: t.Title, SortOrder: t.SortOrder}
}

func newColumnView(c core.TaskColumn) columnView {
	return columnView{
		ID:       c.ID,
		Title:    c.Title,
		Position: c.Position,
		WIPLimit: c.WIPLimit,
		Tasks:    []taskView{},
	}
}

type boardView struct {
	Columns []columnView `json:"columns"`
}

func newBoardView(b services.Board) boardView {
	out := boardView{Columns: make([]columnView, 0, len(b.Columns))}
	for _, c := range b.Columns {
		cv := newColumnView(c.TaskColumn)
		cv.WIPExceeded = c.WIPExceeded
		for _, t := range c.Tasks {
			cv.Tasks = append(cv.Tasks, newTaskView(t))
		}
		out.Columns = append(out.Columns, cv)
	}
	return out
}

type landingView struct {
	SessionID string `json:"session_id"`
	Redirect  bool   `json:"redirect"`
	Location  string `json:"location,omitempty"`
}

func mapSlice[T, V any](in []T, f func(T) V) []V {
	out := make([]V, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}
