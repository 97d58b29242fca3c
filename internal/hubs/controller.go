package hubs

import (
	"context"
	"log/slog"
	"sync"

	"lifehub/internal/cache"
	"lifehub/internal/core"
	"lifehub/internal/log"
	"lifehub/internal/storage"
)

// Setting is one row of the hub settings screen.
type Setting struct {
	Hub     Hub  `json:"hub"`
	Icon    Icon `json:"icon"`
	Enabled bool `json:"enabled"`
}

// Controller keeps the working copy of each user's preferences and applies
// toggles optimistically: the working copy changes first, the store is
// written next, and a failed write undoes the change.
type Controller struct {
	store storage.Store
	state *cache.LRUCache[Preferences]

	mu    sync.Mutex
	users map[string]*userLock
}

// userLock serializes work on one user's preferences. refs counts holders
// and waiters so the entry can be dropped once nobody needs it.
type userLock struct {
	sync.Mutex
	refs int
}

func NewController(store storage.Store, state *cache.LRUCache[Preferences]) *Controller {
	return &Controller{store: store, state: state, users: make(map[string]*userLock)}
}

// lock acquires the lock of userID and returns its release function.
func (c *Controller) lock(userID string) func() {
	c.mu.Lock()
	l, ok := c.users[userID]
	if !ok {
		l = &userLock{}
		c.users[userID] = l
	}
	l.refs++
	c.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.users, userID)
		}
		c.mu.Unlock()
	}
}

// Settings lists every hub with its icon and current flag.
func (c *Controller) Settings(ctx context.Context, userID string) ([]Setting, error) {
	defer c.lock(userID)()

	prefs, err := c.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return settings(prefs), nil
}

// Toggle flips hub h for userID and returns the confirmed setting.
func (c *Controller) Toggle(ctx context.Context, userID string, h Hub) (Setting, error) {
	const op = "toggle hub"
	if !h.Valid() {
		return Setting{}, core.Validation(op, "unknown hub %d", int(h))
	}

	defer c.lock(userID)()

	prefs, err := c.load(ctx, userID)
	if err != nil {
		return Setting{}, err
	}

	cmd := &ToggleCommand{Hub: h}
	enabled := cmd.Apply(prefs)

	err = c.store.WithTx(ctx, func(tx storage.Tx) error {
		return tx.SetHubPreference(ctx, userID, h.String(), enabled)
	})
	if err != nil {
		cmd.Undo(prefs)
		slog.WarnContext(ctx, "Hub toggle rolled back", "user_id", userID, log.FieldHub, h, "error", err)
		return Setting{}, core.AsPersistence(op, "could not save hub setting", err)
	}

	return Setting{Hub: h, Icon: h.Icon(), Enabled: enabled}, nil
}

// FirstEnabled returns the first enabled hub in menu order. The boolean is false
// when every hub is disabled.
func (c *Controller) FirstEnabled(ctx context.Context, userID string) (Hub, bool, error) {
	defer c.lock(userID)()

	prefs, err := c.load(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	for _, h := range All() {
		if prefs.Enabled(h) {
			return h, true, nil
		}
	}
	return 0, false, nil
}

// load returns the working copy for userID, reading the store on a miss.
// Callers hold the lock of userID.
func (c *Controller) load(ctx context.Context, userID string) (Preferences, error) {
	if prefs, ok := c.state.Get(userID); ok {
		return prefs, nil
	}

	raw, err := c.store.ListHubPreferences(ctx, userID)
	if err != nil {
		return nil, core.AsPersistence("load hubs", "could not load hub settings", err)
	}

	prefs := Preferences{}
	for name, enabled := range raw {
		h, err := ParseHub(name)
		if err != nil {
			slog.WarnContext(ctx, "Ignoring unknown hub preference", "user_id", userID, log.FieldHub, name)
			continue
		}
		prefs[h] = enabled
	}
	c.state.Set(userID, prefs)
	return prefs, nil
}

func settings(prefs Preferences) []Setting {
	out := make([]Setting, 0, len(hubNames))
	for _, h := range All() {
		out = append(out, Setting{Hub: h, Icon: h.Icon(), Enabled: prefs.Enabled(h)})
	}
	return out
}
