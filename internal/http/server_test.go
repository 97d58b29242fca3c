package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifehub/internal/cache"
	"lifehub/internal/core"
	"lifehub/internal/hubs"
	"lifehub/internal/log"
	"lifehub/internal/middleware/auth"
	"lifehub/internal/services"
	"lifehub/internal/session"
	"lifehub/internal/storage"
	"lifehub/internal/storage/memory"
)

const testToken = "secret-token"

type testEnv struct {
	server *Server
	store  *memory.Store
}

func newTestEnv(t *testing.T, rateLimit int) testEnv {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.WithTx(ctx, func(tx storage.Tx) error {
		if err := tx.CreateAccount(ctx, core.BankAccount{ID: "acc", UserID: "u1", Name: "Main", Kind: core.Checking, Balance: decimal.RequireFromString("1000"), Active: true}); err != nil {
			return err
		}
		return tx.CreateCard(ctx, core.CreditCard{ID: "visa", UserID: "u1", Alias: "Visa", Type: core.CreditCardType, CreditLimit: decimal.RequireFromString("2000"), CurrentBalance: decimal.RequireFromString("300"), ClosingDay: 5, DueDay: 15, Active: true})
	}))

	boards := cache.NewLRUCache[services.Board](16, time.Minute)
	srv := NewServer(":0", Deps{
		Accounting:         services.NewAccountingService(store, nil, services.AccountingOptions{}),
		Board:              services.NewBoardService(store, boards),
		Hubs:               hubs.NewController(store, cache.NewLRUCache[hubs.Preferences](16, time.Minute)),
		Sessions:           session.NewManager(time.Hour, 16),
		Store:              store,
		Caches:             map[string]Sizer{"board": boards},
		Tokens:             auth.Tokens{testToken: "u1"},
		RateLimitPerMinute: rateLimit,
		Logger:             log.New(log.Config{Level: log.ParseLevel("error"), Component: log.ComponentHTTP}),
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return testEnv{server: srv, store: store}
}

func (e testEnv) do(t *testing.T, method, path, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+testToken)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRegisterPurchase(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/v1/cards/visa/purchases",
		`{"amount":"120,00","description":"Groceries","date":"2026-03-01"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decodeBody[purchaseView](t, rec)
	assert.Equal(t, "-120.00", got.Transaction.Amount)
	assert.Equal(t, "expense", got.Transaction.Type)
	assert.Equal(t, "visa", got.Transaction.PaymentMethodID)
	assert.Equal(t, "2026-03-01", got.Transaction.Date)
	assert.Equal(t, "420.00", got.Card.CurrentBalance)
	assert.Equal(t, "1580.00", got.AvailableCredit)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestRegisterPurchaseAcceptsNumericAmount(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/v1/cards/visa/purchases", `{"amount":12.5,"description":"Coffee"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "-12.50", decodeBody[purchaseView](t, rec).Transaction.Amount)
}

func TestRegisterPurchaseErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"zero amount", "/api/v1/cards/visa/purchases", `{"amount":"0","description":"x"}`, http.StatusUnprocessableEntity},
		{"negative amount", "/api/v1/cards/visa/purchases", `{"amount":"-5","description":"x"}`, http.StatusUnprocessableEntity},
		{"empty description", "/api/v1/cards/visa/purchases", `{"amount":"5","description":"  "}`, http.StatusUnprocessableEntity},
		{"bad date", "/api/v1/cards/visa/purchases", `{"amount":"5","description":"x","date":"01/03/2026"}`, http.StatusUnprocessableEntity},
		{"unknown card", "/api/v1/cards/nope/purchases", `{"amount":"5","description":"x"}`, http.StatusNotFound},
		{"unknown field", "/api/v1/cards/visa/purchases", `{"amount":"5","description":"x","tip":1}`, http.StatusBadRequest},
		{"malformed json", "/api/v1/cards/visa/purchases", `{"amount":`, http.StatusBadRequest},
		{"empty body", "/api/v1/cards/visa/purchases", ``, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, 0)
			rec := env.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decodeBody[errorBody](t, rec).Error)

			card, err := env.store.GetCard(context.Background(), "u1", "visa")
			require.NoError(t, err)
			assert.Equal(t, "300.00", card.CurrentBalance.StringFixed(2), "balance must not change")
		})
	}
}

func TestPayInvoice(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/v1/cards/visa/payments", `{"account_id":"acc","amount":"200"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decodeBody[paymentView](t, rec)
	assert.Equal(t, "800.00", got.Account.Balance)
	assert.Equal(t, "100.00", got.Card.CurrentBalance)
	assert.Equal(t, "transfer", got.Transaction.Type)
	assert.Equal(t, "Credit card invoice payment", got.Transaction.Description)
}

func TestPayInvoiceInsufficientFunds(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/v1/cards/visa/payments", `{"account_id":"acc","amount":"1500"}`)
	require.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
	assert.Contains(t, decodeBody[errorBody](t, rec).Error, "insufficient funds")
}

func TestPayInvoiceRequiresAccount(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/v1/cards/visa/payments", `{"amount":"10"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPersistenceFailureIsInternalError(t *testing.T) {
	env := newTestEnv(t, 0)
	env.store.FailOn("UpdateCardBalance", errors.New("disk full"))

	rec := env.do(t, http.MethodPost, "/api/v1/cards/visa/purchases", `{"amount":"10","description":"x"}`)
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	txns, err := env.store.ListTransactions(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestNetWorth(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/api/v1/networth", "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[netWorthView](t, rec)
	assert.Equal(t, netWorthView{Assets: "1000.00", Liabilities: "300.00", NetWorth: "700.00"}, got)
}

func TestAccountsAndCards(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/v1/accounts", `{"name":"Savings","kind":"savings","balance":"250.5"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	acc := decodeBody[accountView](t, rec)
	assert.Equal(t, "250.50", acc.Balance)
	assert.True(t, acc.Active)

	rec = env.do(t, http.MethodPost, "/api/v1/accounts", `{"name":"Bad","kind":"piggy"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/accounts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]accountView](t, rec), 2)

	rec = env.do(t, http.MethodPost, "/api/v1/cards",
		`{"alias":"Amex","type":"credit","credit_limit":"500","closing_day":3,"due_day":20}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	card := decodeBody[cardView](t, rec)
	assert.Equal(t, "500.00", card.AvailableCredit)
	assert.NotEmpty(t, card.NextClosingDate)
	assert.NotEmpty(t, card.NextDueDate)

	rec = env.do(t, http.MethodGet, "/api/v1/cards", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]cardView](t, rec), 2)
}

func TestListTransactionsLimit(t *testing.T) {
	env := newTestEnv(t, 0)
	for i := 0; i < 3; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/cards/visa/purchases", `{"amount":"1","description":"gum"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := env.do(t, http.MethodGet, "/api/v1/transactions?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]transactionView](t, rec), 2)

	rec = env.do(t, http.MethodGet, "/api/v1/transactions?limit=zero", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestBoardMove(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/v1/board/columns", `{"title":"Todo"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	todo := decodeBody[columnView](t, rec)

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		rec = env.do(t, http.MethodPost, "/api/v1/board/tasks", `{"column_id":"`+todo.ID+`","title":"`+title+`"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		ids = append(ids, decodeBody[taskView](t, rec).ID)
	}

	move := `{"task_id":"` + ids[0] + `","source_column_id":"` + todo.ID + `","target_column_id":"` + todo.ID + `"}`
	rec = env.do(t, http.MethodPost, "/api/v1/board/moves", move)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[struct {
		Moved bool `json:"moved"`
	}](t, rec).Moved)

	rec = env.do(t, http.MethodGet, "/api/v1/board", "")
	require.Equal(t, http.StatusOK, rec.Code)
	board := decodeBody[boardView](t, rec)
	require.Len(t, board.Columns, 1)

	var titles []string
	for i, task := range board.Columns[0].Tasks {
		titles = append(titles, task.Title)
		assert.Equal(t, i, task.SortOrder)
	}
	assert.Equal(t, []string{"b", "c", "a"}, titles)
}

func TestBoardMoveMissingTaskIsNoop(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/v1/board/moves", `{"task_id":"ghost","source_column_id":"x","target_column_id":"x"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"moved":false,"updates":[],"wip_exceeded":false}`, rec.Body.String())
}

func TestHubToggleAndLanding(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/api/v1/session/landing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeBody[landingView](t, rec)
	assert.True(t, first.Redirect)
	assert.Equal(t, "/hubs/finance", first.Location)
	assert.Equal(t, first.SessionID, rec.Header().Get(HeaderSessionID))

	rec = env.do(t, http.MethodGet, "/api/v1/session/landing", "", HeaderSessionID, first.SessionID)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decodeBody[landingView](t, rec)
	assert.Equal(t, first.SessionID, again.SessionID)
	assert.False(t, again.Redirect)
	assert.Empty(t, again.Location)

	rec = env.do(t, http.MethodPost, "/api/v1/hubs/finance/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"hub":"finance","icon":"wallet","enabled":false}`, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/v1/session/landing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/hubs/tasks", decodeBody[landingView](t, rec).Location)

	rec = env.do(t, http.MethodGet, "/api/v1/hubs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	settings := decodeBody[[]hubs.Setting](t, rec)
	require.Len(t, settings, len(hubs.All()))
	assert.False(t, settings[0].Enabled)
}

func TestLandingWithEveryHubDisabled(t *testing.T) {
	env := newTestEnv(t, 0)

	for _, h := range hubs.All() {
		rec := env.do(t, http.MethodPost, "/api/v1/hubs/"+h.String()+"/toggle", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := env.do(t, http.MethodGet, "/api/v1/session/landing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "location")
	view := decodeBody[landingView](t, rec)
	assert.False(t, view.Redirect)
	assert.NotEmpty(t, view.SessionID)

	rec = env.do(t, http.MethodPost, "/api/v1/hubs/health/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)

	// the redirect was spent by the first landing of the session
	rec = env.do(t, http.MethodGet, "/api/v1/session/landing", "", HeaderSessionID, view.SessionID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[landingView](t, rec).Redirect)

	rec = env.do(t, http.MethodGet, "/api/v1/session/landing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/hubs/health", decodeBody[landingView](t, rec).Location)
}

func TestEndSession(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/api/v1/session/landing", "")
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeBody[landingView](t, rec)
	require.True(t, first.Redirect)

	rec = env.do(t, http.MethodDelete, "/api/v1/session", "", HeaderSessionID, first.SessionID)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	// the ended id is replaced by a fresh session that lands again
	rec = env.do(t, http.MethodGet, "/api/v1/session/landing", "", HeaderSessionID, first.SessionID)
	require.Equal(t, http.StatusOK, rec.Code)
	next := decodeBody[landingView](t, rec)
	assert.NotEqual(t, first.SessionID, next.SessionID)
	assert.True(t, next.Redirect)

	rec = env.do(t, http.MethodDelete, "/api/v1/session", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestToggleUnknownHub(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodPost, "/api/v1/hubs/garden/toggle", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestToggleFailureKeepsSetting(t *testing.T) {
	env := newTestEnv(t, 0)
	env.store.FailOn("SetHubPreference", errors.New("locked"))

	rec := env.do(t, http.MethodPost, "/api/v1/hubs/health/toggle", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/hubs", "")
	for _, s := range decodeBody[[]hubs.Setting](t, rec) {
		assert.True(t, s.Enabled, s.Hub.String())
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/networth", nil)
	rec := httptest.NewRecorder()
	env.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	rec = env.do(t, http.MethodGet, "/api/v1/networth", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateLimitOnWrites(t *testing.T) {
	env := newTestEnv(t, 1)

	rec := env.do(t, http.MethodPost, "/api/v1/board/columns", `{"title":"One"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/board/columns", `{"title":"Two"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec = env.do(t, http.MethodGet, "/api/v1/board", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthReadyMetrics(t *testing.T) {
	env := newTestEnv(t, 0)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody[map[string]any](t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	req = httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec = httptest.NewRecorder()
	env.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "ready", ready["status"])
	assert.Equal(t, "not_configured", ready["checks"].(map[string]any)["events"])

	env.do(t, http.MethodPost, "/api/v1/cards/visa/purchases", `{"amount":"1","description":"gum"}`)

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	env.server.Handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "card_purchases_total 1\n")
	assert.Contains(t, rec.Body.String(), `cache_entries{type="board"}`)
}

func TestUnknownRouteIsJSON(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/api/v1/nothing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "route not found", decodeBody[errorBody](t, rec).Error)
}

func TestSuspiciousRequestRejected(t *testing.T) {
	env := newTestEnv(t, 0)

	rec := env.do(t, http.MethodGet, "/api/v1/../../etc/passwd", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
