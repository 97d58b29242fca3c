package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"lifehub/internal/core"
	"lifehub/internal/services"
)

type purchaseRequest struct {
	Amount      amountParam `json:"amount"`
	Description string      `json:"description"`
	CategoryID  string      `json:"category_id"`
	Date        string      `json:"date"`
	Notes       string      `json:"notes"`
}

func (s *Server) handleRegisterPurchase(w http.ResponseWriter, r *http.Request) {
	const op = "register purchase"

	var body purchaseRequest
	if !s.decode(w, r, &body) {
		return
	}
	amount, err := body.Amount.positive(op)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	date, err := parseDateOrToday(body.Date)
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	res, err := s.accounting.RegisterCreditCardPurchase(r.Context(), services.PurchaseRequest{
		UserID:      userID(r),
		CardID:      chi.URLParam(r, "cardID"),
		Amount:      amount,
		Description: sanitizeInput(body.Description),
		CategoryID:  sanitizeInput(body.CategoryID),
		Date:        date,
		Notes:       sanitizeInput(body.Notes),
	})
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	s.appMetrics.purchases.Add(1)
	NewJSONResponse().Status(http.StatusCreated).Data(purchaseView{
		Transaction:     newTransactionView(res.Transaction),
		Card:            newCardView(res.Card),
		AvailableCredit: core.FormatAmount(res.AvailableCredit),
	}).Write(w)
}

type paymentRequest struct {
	AccountID   string      `json:"account_id"`
	Amount      amountParam `json:"amount"`
	Date        string      `json:"date"`
	Description string      `json:"description"`
}

func (s *Server) handlePayInvoice(w http.ResponseWriter, r *http.Request) {
	const op = "pay invoice"

	var body paymentRequest
	if !s.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.AccountID) == "" {
		writeError(w, r, op, core.Validation(op, "account_id is required"))
		return
	}
	amount, err := body.Amount.positive(op)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	date, err := parseDateOrToday(body.Date)
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	res, err := s.accounting.PayCreditCardInvoice(r.Context(), services.PaymentRequest{
		UserID:      userID(r),
		AccountID:   strings.TrimSpace(body.AccountID),
		CardID:      chi.URLParam(r, "cardID"),
		Amount:      amount,
		Date:        date,
		Description: sanitizeInput(body.Description),
	})
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	s.appMetrics.payments.Add(1)
	NewJSONResponse().Status(http.StatusCreated).Data(paymentView{
		Transaction: newTransactionView(res.Transaction),
		Account:     newAccountView(res.Account),
		Card:        newCardView(res.Card),
	}).Write(w)
}

func (s *Server) handleNetWorth(w http.ResponseWriter, r *http.Request) {
	nw, err := s.accounting.CalculateNetWorth(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, "net worth", err)
		return
	}
	NewJSONResponse().Data(newNetWorthView(nw)).Write(w)
}

func (s *Server) handleNetWorthHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, "net worth history", err)
		return
	}
	history, err := s.accounting.NetWorthHistory(r.Context(), userID(r), limit)
	if err != nil {
		writeError(w, r, "net worth history", err)
		return
	}
	NewJSONResponse().Data(mapSlice(history, func(snap core.NetWorthSnapshot) snapshotView {
		return snapshotView{netWorthView: newNetWorthView(snap.NetWorth), TakenAt: snap.TakenAt}
	})).Write(w)
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := s.accounting.ListAccounts(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, "list accounts", err)
		return
	}
	NewJSONResponse().Data(mapSlice(accounts, newAccountView)).Write(w)
}

type createAccountRequest struct {
	Name    string      `json:"name"`
	Kind    string      `json:"kind"`
	Balance amountParam `json:"balance"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	const op = "create account"

	var body createAccountRequest
	if !s.decode(w, r, &body) {
		return
	}
	balance, err := body.Balance.signed(op)
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	acc, err := s.accounting.CreateAccount(r.Context(), core.BankAccount{
		UserID:  userID(r),
		Name:    sanitizeInput(body.Name),
		Kind:    core.AccountKind(strings.ToLower(strings.TrimSpace(body.Kind))),
		Balance: balance,
	})
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(newAccountView(acc)).Write(w)
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.accounting.ListCards(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, "list cards", err)
		return
	}
	NewJSONResponse().Data(mapSlice(cards, newCardView)).Write(w)
}

type createCardRequest struct {
	Provider        string      `json:"provider"`
	LinkedAccountID string      `json:"linked_account_id"`
	Alias           string      `json:"alias"`
	Type            string      `json:"type"`
	CreditLimit     amountParam `json:"credit_limit"`
	CurrentBalance  amountParam `json:"current_balance"`
	ClosingDay      int         `json:"closing_day"`
	DueDay          int         `json:"due_day"`
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	const op = "create card"

	var body createCardRequest
	if !s.decode(w, r, &body) {
		return
	}
	limit, err := body.CreditLimit.signed(op)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	balance, err := body.CurrentBalance.signed(op)
	if err != nil {
		writeError(w, r, op, err)
		return
	}

	card, err := s.accounting.CreateCard(r.Context(), core.CreditCard{
		UserID:          userID(r),
		Provider:        sanitizeInput(body.Provider),
		LinkedAccountID: strings.TrimSpace(body.LinkedAccountID),
		Alias:           sanitizeInput(body.Alias),
		Type:            core.CardType(strings.ToLower(strings.TrimSpace(body.Type))),
		CreditLimit:     limit,
		CurrentBalance:  balance,
		ClosingDay:      body.ClosingDay,
		DueDay:          body.DueDay,
	})
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(newCardView(card)).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, r, "list transactions", err)
		return
	}
	txns, err := s.accounting.ListTransactions(r.Context(), userID(r), limit)
	if err != nil {
		writeError(w, r, "list transactions", err)
		return
	}
	NewJSONResponse().Data(mapSlice(txns, newTransactionView)).Write(w)
}

// decode reads the request body into dst and writes a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := decodeJSON(w, r, dst); err != nil {
		BadRequestError(err.Error()).Write(w)
		return false
	}
	return true
}
