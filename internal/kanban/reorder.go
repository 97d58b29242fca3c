// Package kanban turns a drag and drop gesture into a new, dense ordering of
// the cards on a board.
package kanban

import (
	"sort"

	"lifehub/internal/core"
)

// Move is the outcome of a drag gesture. OverTaskID is set when the card
// was dropped on another card; TargetIndex when the client already knows
// the final position. With neither, the card is appended to the column.
// SourceColumnID is optional; when set it must match the stored column.
type Move struct {
	TaskID         string `json:"task_id"`
	SourceColumnID string `json:"source_column_id"`
	TargetColumnID string `json:"target_column_id"`
	OverTaskID     string `json:"over_task_id,omitempty"`
	TargetIndex    *int   `json:"target_index,omitempty"`
}

// Result lists the placements that changed and the new order of every
// column touched by the move.
type Result struct {
	Moved       bool                       `json:"moved"`
	Updates     []core.TaskPlacement       `json:"updates"`
	Columns     map[string][]core.TaskCard `json:"-"`
	WIPExceeded bool                       `json:"wip_exceeded"`
}

// Reorder computes the effect of m on the board. It never mutates its
// inputs. A missing task and a card dropped onto itself are no-ops; an
// unknown destination column is a NotFound error and a stale source column
// is a Validation error.
func Reorder(columns []core.TaskColumn, tasks []core.TaskCard, m Move) (Result, error) {
	const op = "move task"

	var task *core.TaskCard
	for i := range tasks {
		if tasks[i].ID == m.TaskID {
			task = &tasks[i]
			break
		}
	}
	if task == nil || m.OverTaskID == m.TaskID {
		return Result{}, nil
	}
	if m.SourceColumnID != "" && m.SourceColumnID != task.ColumnID {
		return Result{}, core.Validation(op, "task %s is no longer in column %s", task.ID, m.SourceColumnID)
	}

	var over *core.TaskCard
	if m.OverTaskID != "" {
		for i := range tasks {
			if tasks[i].ID == m.OverTaskID {
				over = &tasks[i]
				break
			}
		}
	}

	destID := m.TargetColumnID
	switch {
	case over != nil:
		// the card under the pointer decides the column
		destID = over.ColumnID
	case destID == "":
		destID = task.ColumnID
	}

	var dest *core.TaskColumn
	for i := range columns {
		if columns[i].ID == destID {
			dest = &columns[i]
			break
		}
	}
	if dest == nil {
		return Result{}, core.NotFound(op, "column", destID)
	}

	srcID := task.ColumnID
	src := columnCards(tasks, srcID)
	origIndex := indexOf(src, task.ID)

	var list []core.TaskCard
	if srcID == destID {
		list = src
	} else {
		list = columnCards(tasks, destID)
	}

	target := len(list)
	switch {
	case over != nil:
		target = indexOf(list, over.ID)
		if srcID == destID && origIndex < target {
			target--
		}
	case m.TargetIndex != nil:
		target = *m.TargetIndex
	}

	moving := *task
	src = remove(src, origIndex)
	if srcID == destID {
		list = src
	}
	if target < 0 {
		target = 0
	}
	if target > len(list) {
		target = len(list)
	}
	list = insert(list, target, moving)

	res := Result{Columns: map[string][]core.TaskCard{}}
	res.Updates = append(res.Updates, resequence(list, destID)...)
	res.Columns[destID] = list
	if srcID != destID {
		res.Updates = append(res.Updates, resequence(src, srcID)...)
		res.Columns[srcID] = src
	}
	res.Moved = len(res.Updates) > 0
	res.WIPExceeded = dest.WIPLimit > 0 && len(list) > dest.WIPLimit
	return res, nil
}

// columnCards returns a copy of the cards in columnID in display order.
func columnCards(tasks []core.TaskCard, columnID string) []core.TaskCard {
	var out []core.TaskCard
	for _, t := range tasks {
		if t.ColumnID == columnID {
			out = append(out, t)
		}
	}
	SortCards(out)
	return out
}

// SortCards orders cards by sort order, then creation time, then id.
func SortCards(cards []core.TaskCard) {
	sort.SliceStable(cards, func(i, j int) bool {
		a, b := cards[i], cards[j]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// resequence assigns 0..n-1 and returns the placements that changed.
func resequence(cards []core.TaskCard, columnID string) []core.TaskPlacement {
	var changed []core.TaskPlacement
	for i := range cards {
		if cards[i].SortOrder == i && cards[i].ColumnID == columnID {
			continue
		}
		cards[i].SortOrder = i
		cards[i].ColumnID = columnID
		changed = append(changed, core.TaskPlacement{TaskID: cards[i].ID, ColumnID: columnID, SortOrder: i})
	}
	return changed
}

func indexOf(cards []core.TaskCard, id string) int {
	for i, c := range cards {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func remove(cards []core.TaskCard, i int) []core.TaskCard {
	out := make([]core.TaskCard, 0, len(cards))
	out = append(out, cards[:i]...)
	return append(out, cards[i+1:]...)
}

func insert(cards []core.TaskCard, i int, c core.TaskCard) []core.TaskCard {
	out := make([]core.TaskCard, 0, len(cards)+1)
	out = append(out, cards[:i]...)
	out = append(out, c)
	return append(out, cards[i:]...)
}
