package hubs

// Preferences holds the enabled flag per hub. Hubs without an entry are
// enabled.
type Preferences map[Hub]bool

func (p Preferences) Enabled(h Hub) bool {
	enabled, ok := p[h]
	return !ok || enabled
}

// ToggleCommand flips one hub. Apply records the previous value so that
// Undo can restore it if the change cannot be persisted.
type ToggleCommand struct {
	Hub Hub

	applied bool
	prev    bool
}

// Apply flips the hub in p and returns the new value.
func (c *ToggleCommand) Apply(p Preferences) bool {
	c.prev = p.Enabled(c.Hub)
	c.applied = true
	p[c.Hub] = !c.prev
	return !c.prev
}

// Undo restores the value seen by Apply. It is a no-op before Apply.
func (c *ToggleCommand) Undo(p Preferences) {
	if !c.applied {
		return
	}
	p[c.Hub] = c.prev
	c.applied = false
}
