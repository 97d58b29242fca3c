// Package memory is an in-process storage.Store used by tests and the
// "memory" data backend. Transactions work on a copy of the data that
// replaces the live copy only on commit.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"lifehub/internal/core"
	"lifehub/internal/storage"
)

type data struct {
	accounts     map[string]core.BankAccount
	cards        map[string]core.CreditCard
	transactions []core.Transaction
	columns      map[string]core.TaskColumn
	tasks        map[string]core.TaskCard
	snapshots    []core.NetWorthSnapshot
	hubPrefs     map[string]map[string]bool
}

func newData() *data {
	return &data{
		accounts: map[string]core.BankAccount{},
		cards:    map[string]core.CreditCard{},
		columns:  map[string]core.TaskColumn{},
		tasks:    map[string]core.TaskCard{},
		hubPrefs: map[string]map[string]bool{},
	}
}

func (d *data) clone() *data {
	c := newData()
	for k, v := range d.accounts {
		c.accounts[k] = v
	}
	for k, v := range d.cards {
		c.cards[k] = v
	}
	for k, v := range d.columns {
		c.columns[k] = v
	}
	for k, v := range d.tasks {
		c.tasks[k] = v
	}
	for user, prefs := range d.hubPrefs {
		m := make(map[string]bool, len(prefs))
		for k, v := range prefs {
			m[k] = v
		}
		c.hubPrefs[user] = m
	}
	c.transactions = append([]core.Transaction(nil), d.transactions...)
	c.snapshots = append([]core.NetWorthSnapshot(nil), d.snapshots...)
	return c
}

// Store keeps everything in maps guarded by a mutex.
type Store struct {
	txMu sync.Mutex // serializes transactions
	mu   sync.RWMutex
	data *data

	failMu sync.Mutex
	failOn map[string]error
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{data: newData(), failOn: map[string]error{}}
}

// FailOn makes the named Tx write operation (for example
// "UpdateCardBalance") return err until cleared with a nil err.
func (s *Store) FailOn(op string, err error) {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	if err == nil {
		delete(s.failOn, op)
		return
	}
	s.failOn[op] = err
}

func (s *Store) failure(op string) error {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	return s.failOn[op]
}

func (s *Store) snapshot() *data {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	work := s.data.clone()
	s.mu.RUnlock()

	if err := fn(&tx{reader: reader{d: work}, store: s}); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = work
	s.mu.Unlock()
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error               { return nil }

func (s *Store) r() reader { return reader{d: s.snapshot()} }

func (s *Store) ListAccounts(ctx context.Context, userID string) ([]core.BankAccount, error) {
	return s.r().ListAccounts(ctx, userID)
}

func (s *Store) GetAccount(ctx context.Context, userID, id string) (core.BankAccount, error) {
	return s.r().GetAccount(ctx, userID, id)
}

func (s *Store) ListCards(ctx context.Context, userID string) ([]core.CreditCard, error) {
	return s.r().ListCards(ctx, userID)
}

func (s *Store) GetCard(ctx context.Context, userID, id string) (core.CreditCard, error) {
	return s.r().GetCard(ctx, userID, id)
}

func (s *Store) ListTransactions(ctx context.Context, userID string, limit int) ([]core.Transaction, error) {
	return s.r().ListTransactions(ctx, userID, limit)
}

func (s *Store) GetTransaction(ctx context.Context, userID, id string) (core.Transaction, error) {
	return s.r().GetTransaction(ctx, userID, id)
}

func (s *Store) ListColumns(ctx context.Context, userID string) ([]core.TaskColumn, error) {
	return s.r().ListColumns(ctx, userID)
}

func (s *Store) ListTasks(ctx context.Context, userID string) ([]core.TaskCard, error) {
	return s.r().ListTasks(ctx, userID)
}

func (s *Store) ListSnapshots(ctx context.Context, userID string, limit int) ([]core.NetWorthSnapshot, error) {
	return s.r().ListSnapshots(ctx, userID, limit)
}

func (s *Store) ListHubPreferences(ctx context.Context, userID string) (map[string]bool, error) {
	return s.r().ListHubPreferences(ctx, userID)
}

// reader never mutates d, so it is safe on the committed copy.
type reader struct {
	d *data
}

func (r reader) ListAccounts(_ context.Context, userID string) ([]core.BankAccount, error) {
	var out []core.BankAccount
	for _, a := range r.d.accounts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r reader) GetAccount(_ context.Context, userID, id string) (core.BankAccount, error) {
	a, ok := r.d.accounts[id]
	if !ok || a.UserID != userID {
		return core.BankAccount{}, core.NotFound("", "account", id)
	}
	return a, nil
}

func (r reader) ListCards(_ context.Context, userID string) ([]core.CreditCard, error) {
	var out []core.CreditCard
	for _, c := range r.d.cards {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out, nil
}

func (r reader) GetCard(_ context.Context, userID, id string) (core.CreditCard, error) {
	c, ok := r.d.cards[id]
	if !ok || c.UserID != userID {
		return core.CreditCard{}, core.NotFound("", "credit card", id)
	}
	return c, nil
}

func (r reader) ListTransactions(_ context.Context, userID string, limit int) ([]core.Transaction, error) {
	var out []core.Transaction
	for _, t := range r.d.transactions {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r reader) GetTransaction(_ context.Context, userID, id string) (core.Transaction, error) {
	for _, t := range r.d.transactions {
		if t.ID == id && t.UserID == userID {
			return t, nil
		}
	}
	return core.Transaction{}, core.NotFound("", "transaction", id)
}

func (r reader) ListColumns(_ context.Context, userID string) ([]core.TaskColumn, error) {
	var out []core.TaskColumn
	for _, c := range r.d.columns {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r reader) ListTasks(_ context.Context, userID string) ([]core.TaskCard, error) {
	var out []core.TaskCard
	for _, t := range r.d.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ColumnID != out[j].ColumnID {
			return out[i].ColumnID < out[j].ColumnID
		}
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r reader) ListSnapshots(_ context.Context, userID string, limit int) ([]core.NetWorthSnapshot, error) {
	var out []core.NetWorthSnapshot
	for i := len(r.d.snapshots) - 1; i >= 0; i-- {
		if s := r.d.snapshots[i]; s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TakenAt.After(out[j].TakenAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r reader) ListHubPreferences(_ context.Context, userID string) (map[string]bool, error) {
	out := map[string]bool{}
	for k, v := range r.d.hubPrefs[userID] {
		out[k] = v
	}
	return out, nil
}

type tx struct {
	reader
	store *Store
}

func (t *tx) GetAccountForUpdate(ctx context.Context, userID, id string) (core.BankAccount, error) {
	return t.GetAccount(ctx, userID, id)
}

func (t *tx) GetCardForUpdate(ctx context.Context, userID, id string) (core.CreditCard, error) {
	return t.GetCard(ctx, userID, id)
}

func (t *tx) CreateAccount(_ context.Context, a core.BankAccount) error {
	if err := t.store.failure("CreateAccount"); err != nil {
		return err
	}
	t.d.accounts[a.ID] = a
	return nil
}

func (t *tx) CreateCard(_ context.Context, c core.CreditCard) error {
	if err := t.store.failure("CreateCard"); err != nil {
		return err
	}
	t.d.cards[c.ID] = c
	return nil
}

func (t *tx) UpdateAccountBalance(_ context.Context, userID, id string, balance decimal.Decimal) error {
	if err := t.store.failure("UpdateAccountBalance"); err != nil {
		return err
	}
	a, ok := t.d.accounts[id]
	if !ok || a.UserID != userID {
		return core.NotFound("", "account", id)
	}
	a.Balance = balance.Round(2)
	t.d.accounts[id] = a
	return nil
}

func (t *tx) UpdateCardBalance(_ context.Context, userID, id string, balance decimal.Decimal) error {
	if err := t.store.failure("UpdateCardBalance"); err != nil {
		return err
	}
	c, ok := t.d.cards[id]
	if !ok || c.UserID != userID {
		return core.NotFound("", "credit card", id)
	}
	c.CurrentBalance = balance.Round(2)
	t.d.cards[id] = c
	return nil
}

func (t *tx) InsertTransaction(_ context.Context, tr core.Transaction) error {
	if err := t.store.failure("InsertTransaction"); err != nil {
		return err
	}
	t.d.transactions = append(t.d.transactions, tr)
	return nil
}

func (t *tx) CreateColumn(_ context.Context, c core.TaskColumn) error {
	if err := t.store.failure("CreateColumn"); err != nil {
		return err
	}
	t.d.columns[c.ID] = c
	return nil
}

func (t *tx) CreateTask(_ context.Context, c core.TaskCard) error {
	if err := t.store.failure("CreateTask"); err != nil {
		return err
	}
	t.d.tasks[c.ID] = c
	return nil
}

func (t *tx) UpdateTaskPlacements(_ context.Context, userID string, placements []core.TaskPlacement) error {
	if err := t.store.failure("UpdateTaskPlacements"); err != nil {
		return err
	}
	for _, p := range placements {
		task, ok := t.d.tasks[p.TaskID]
		if !ok || task.UserID != userID {
			return core.NotFound("", "task", p.TaskID)
		}
		task.ColumnID = p.ColumnID
		task.SortOrder = p.SortOrder
		t.d.tasks[p.TaskID] = task
	}
	return nil
}

func (t *tx) InsertSnapshot(_ context.Context, s core.NetWorthSnapshot) (bool, error) {
	if err := t.store.failure("InsertSnapshot"); err != nil {
		return false, err
	}
	if s.EventID != "" {
		for _, existing := range t.d.snapshots {
			if existing.EventID == s.EventID {
				return false, nil
			}
		}
	}
	t.d.snapshots = append(t.d.snapshots, s)
	return true, nil
}

func (t *tx) SetHubPreference(_ context.Context, userID, hub string, enabled bool) error {
	if err := t.store.failure("SetHubPreference"); err != nil {
		return err
	}
	prefs, ok := t.d.hubPrefs[userID]
	if !ok {
		prefs = map[string]bool{}
		t.d.hubPrefs[userID] = prefs
	}
	prefs[hub] = enabled
	return nil
}
