// Package hubs models the top-level feature areas of the application and the
// per-user switch that shows or hides each of them.
package hubs

import (
	"strings"

	"lifehub/internal/core"
)

// Hub is a closed enumeration; the zero value is not a hub.
type Hub int

const (
	Finance Hub = iota + 1
	Tasks
	Health
	Vehicles
	Flow
)

// Icon names a front-end icon.
type Icon string

var hubNames = map[Hub]string{
	Finance:  "finance",
	Tasks:    "tasks",
	Health:   "health",
	Vehicles: "vehicles",
	Flow:     "flow",
}

var iconTable = map[Hub]Icon{
	Finance:  "wallet",
	Tasks:    "kanban-square",
	Health:   "heart-pulse",
	Vehicles: "car",
	Flow:     "workflow",
}

// All returns every hub in menu order.
func All() []Hub {
	return []Hub{Finance, Tasks, Health, Vehicles, Flow}
}

func (h Hub) String() string {
	if name, ok := hubNames[h]; ok {
		return name
	}
	return "unknown"
}

func (h Hub) Valid() bool {
	_, ok := hubNames[h]
	return ok
}

// Icon returns the icon for h. Every valid hub has an entry in iconTable.
func (h Hub) Icon() Icon {
	return iconTable[h]
}

// ParseHub maps a hub name to its Hub. Unknown names are a validation error.
func ParseHub(s string) (Hub, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for h, n := range hubNames {
		if n == name {
			return h, nil
		}
	}
	return 0, core.Validation("parse hub", "unknown hub %q", s)
}

func (h Hub) MarshalText() ([]byte, error) {
	if !h.Valid() {
		return nil, core.Validation("marshal hub", "unknown hub %d", int(h))
	}
	return []byte(h.String()), nil
}

func (h *Hub) UnmarshalText(b []byte) error {
	parsed, err := ParseHub(string(b))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
