package core

import (
	"strings"
	"time"
)

// TaskColumn is a Kanban column. WIPLimit of zero means no limit.
type TaskColumn struct {
	ID        string
	UserID    string
	Title     string
	Position  int
	WIPLimit  int
	CreatedAt time.Time
}

// TaskCard belongs to exactly one column; SortOrder orders cards inside it.
type TaskCard struct {
	ID        string
	UserID    string
	ColumnID  string
	Title     string
	SortOrder int
	CreatedAt time.Time
}

func (c TaskColumn) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(c.Title) == "" {
		return ErrEmptyName
	}
	if c.WIPLimit < 0 {
		return Validation("", "WIP limit cannot be negative")
	}
	return nil
}

func (t TaskCard) Validate() error {
	if strings.TrimSpace(t.UserID) == "" {
		return ErrEmptyUser
	}
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(t.ColumnID) == "" {
		return Validation("", "missing column")
	}
	return nil
}

// TaskPlacement is the persisted position of a card after a move.
type TaskPlacement struct {
	TaskID    string `json:"task_id"`
	ColumnID  string `json:"column_id"`
	SortOrder int    `json:"sort_order"`
}
