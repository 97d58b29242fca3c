package kanban

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifehub/internal/core"
)

func board(wipB int) ([]core.TaskColumn, []core.TaskCard) {
	columns := []core.TaskColumn{
		{ID: "A", Title: "Todo", Position: 0},
		{ID: "B", Title: "Doing", Position: 1, WIPLimit: wipB},
	}
	var tasks []core.TaskCard
	for i := 0; i < 5; i++ {
		tasks = append(tasks, core.TaskCard{ID: fmt.Sprintf("a%d", i), ColumnID: "A", SortOrder: i})
	}
	for i := 0; i < 3; i++ {
		tasks = append(tasks, core.TaskCard{ID: fmt.Sprintf("b%d", i), ColumnID: "B", SortOrder: i})
	}
	return columns, tasks
}

func ids(cards []core.TaskCard) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}

func intPtr(i int) *int { return &i }

func TestReorder(t *testing.T) {
	tests := []struct {
		name  string
		move  Move
		wantA []string
		wantB []string
	}{
		{
			name:  "card at index 2 to index 0 of another column",
			move:  Move{TaskID: "a2", SourceColumnID: "A", TargetColumnID: "B", TargetIndex: intPtr(0)},
			wantA: []string{"a0", "a1", "a3", "a4"},
			wantB: []string{"a2", "b0", "b1", "b2"},
		},
		{
			name:  "same column before the card at index 3",
			move:  Move{TaskID: "a0", SourceColumnID: "A", TargetColumnID: "A", OverTaskID: "a3"},
			wantA: []string{"a1", "a2", "a0", "a3", "a4"},
		},
		{
			name:  "same column moving up over a card",
			move:  Move{TaskID: "a4", SourceColumnID: "A", TargetColumnID: "A", OverTaskID: "a1"},
			wantA: []string{"a0", "a4", "a1", "a2", "a3"},
		},
		{
			name:  "over a card in another column",
			move:  Move{TaskID: "a1", SourceColumnID: "A", TargetColumnID: "B", OverTaskID: "b1"},
			wantA: []string{"a0", "a2", "a3", "a4"},
			wantB: []string{"b0", "a1", "b1", "b2"},
		},
		{
			name:  "dropped on column body appends",
			move:  Move{TaskID: "a0", SourceColumnID: "A", TargetColumnID: "B"},
			wantA: []string{"a1", "a2", "a3", "a4"},
			wantB: []string{"b0", "b1", "b2", "a0"},
		},
		{
			name:  "index past the end is clamped",
			move:  Move{TaskID: "b0", SourceColumnID: "B", TargetColumnID: "A", TargetIndex: intPtr(99)},
			wantA: []string{"a0", "a1", "a2", "a3", "a4", "b0"},
			wantB: []string{"b1", "b2"},
		},
		{
			name:  "negative index is clamped",
			move:  Move{TaskID: "a3", SourceColumnID: "A", TargetColumnID: "A", TargetIndex: intPtr(-4)},
			wantA: []string{"a3", "a0", "a1", "a2", "a4"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			columns, tasks := board(0)
			res, err := Reorder(columns, tasks, tt.move)
			require.NoError(t, err)
			assert.True(t, res.Moved)

			if tt.wantA != nil {
				assert.Equal(t, tt.wantA, ids(res.Columns["A"]))
			}
			if tt.wantB != nil {
				assert.Equal(t, tt.wantB, ids(res.Columns["B"]))
			} else {
				assert.NotContains(t, res.Columns, "B")
			}

			for col, cards := range res.Columns {
				for i, c := range cards {
					assert.Equal(t, i, c.SortOrder, "column %s not dense", col)
					assert.Equal(t, col, c.ColumnID)
				}
			}
		})
	}
}

func TestReorderNoOps(t *testing.T) {
	columns, tasks := board(0)

	res, err := Reorder(columns, tasks, Move{TaskID: "missing", TargetColumnID: "B"})
	require.NoError(t, err)
	assert.False(t, res.Moved)
	assert.Empty(t, res.Updates)

	res, err = Reorder(columns, tasks, Move{TaskID: "a1", TargetColumnID: "A", OverTaskID: "a1"})
	require.NoError(t, err)
	assert.False(t, res.Moved)

	// dropping the last card at the end of its own column changes nothing
	res, err = Reorder(columns, tasks, Move{TaskID: "a4", SourceColumnID: "A", TargetColumnID: "A"})
	require.NoError(t, err)
	assert.False(t, res.Moved)
	assert.Empty(t, res.Updates)
}

func TestReorderUnknownColumn(t *testing.T) {
	columns, tasks := board(0)
	_, err := Reorder(columns, tasks, Move{TaskID: "a1", TargetColumnID: "Z"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestReorderStaleSourceColumn(t *testing.T) {
	columns, tasks := board(0)

	_, err := Reorder(columns, tasks, Move{TaskID: "b1", SourceColumnID: "A", TargetColumnID: "A", TargetIndex: intPtr(0)})
	require.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, "task b1 is no longer in column A", err.(*core.Error).Message())
}

func TestReorderReportsWIP(t *testing.T) {
	columns, tasks := board(3)

	res, err := Reorder(columns, tasks, Move{TaskID: "a0", TargetColumnID: "B"})
	require.NoError(t, err)
	assert.True(t, res.Moved, "WIP limits do not block moves")
	assert.True(t, res.WIPExceeded)

	res, err = Reorder(columns, tasks, Move{TaskID: "b0", TargetColumnID: "B", TargetIndex: intPtr(2)})
	require.NoError(t, err)
	assert.False(t, res.WIPExceeded)
}

func TestReorderOnlyReportsChangedPlacements(t *testing.T) {
	columns, tasks := board(0)
	res, err := Reorder(columns, tasks, Move{TaskID: "a3", SourceColumnID: "A", TargetColumnID: "A", OverTaskID: "a2"})
	require.NoError(t, err)

	assert.ElementsMatch(t, []core.TaskPlacement{
		{TaskID: "a3", ColumnID: "A", SortOrder: 2},
		{TaskID: "a2", ColumnID: "A", SortOrder: 3},
	}, res.Updates)
}

func TestReorderDoesNotMutateInput(t *testing.T) {
	columns, tasks := board(0)
	before := append([]core.TaskCard(nil), tasks...)

	_, err := Reorder(columns, tasks, Move{TaskID: "a2", TargetColumnID: "B", TargetIndex: intPtr(0)})
	require.NoError(t, err)
	assert.Equal(t, before, tasks)
}
