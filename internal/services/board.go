package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"lifehub/internal/cache"
	"lifehub/internal/core"
	"lifehub/internal/kanban"
	"lifehub/internal/log"
	"lifehub/internal/storage"
)

// Board is a user's Kanban board in display order.
type Board struct {
	Columns []BoardColumn
}

type BoardColumn struct {
	core.TaskColumn
	Tasks       []core.TaskCard
	WIPExceeded bool
}

// BoardService manages columns and cards. Board listings are cached per user
// and dropped on every write.
type BoardService struct {
	store storage.Store
	cache cache.Cache[Board]

	now   func() time.Time
	newID func() string
}

func NewBoardService(store storage.Store, boards cache.Cache[Board]) *BoardService {
	return &BoardService{
		store: store,
		cache: boards,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// Board returns the user's columns with their cards.
func (s *BoardService) Board(ctx context.Context, userID string) (Board, error) {
	if err := validateUser("load board", userID); err != nil {
		return Board{}, err
	}
	if s.cache != nil {
		if b, ok := s.cache.Get(userID); ok {
			return b, nil
		}
	}

	columns, err := s.store.ListColumns(ctx, userID)
	if err != nil {
		return Board{}, storageError(ctx, "load board", "could not load board", err)
	}
	tasks, err := s.store.ListTasks(ctx, userID)
	if err != nil {
		return Board{}, storageError(ctx, "load board", "could not load board", err)
	}

	b := buildBoard(columns, tasks)
	if s.cache != nil {
		s.cache.Set(userID, b)
	}
	return b, nil
}

// CreateColumn appends a column to the right of the existing ones.
func (s *BoardService) CreateColumn(ctx context.Context, userID, title string, wipLimit int) (core.TaskColumn, error) {
	const op = "create column"

	col := core.TaskColumn{
		ID:        s.newID(),
		UserID:    userID,
		Title:     strings.TrimSpace(title),
		WIPLimit:  wipLimit,
		CreatedAt: s.now(),
	}
	if err := col.Validate(); err != nil {
		return core.TaskColumn{}, err
	}

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		existing, err := tx.ListColumns(ctx, userID)
		if err != nil {
			return err
		}
		for _, c := range existing {
			if c.Position >= col.Position {
				col.Position = c.Position + 1
			}
		}
		return tx.CreateColumn(ctx, col)
	})
	if err != nil {
		return core.TaskColumn{}, storageError(ctx, op, "could not create column", err)
	}

	s.invalidate(userID)
	return col, nil
}

// CreateTask appends a card to the bottom of a column.
func (s *BoardService) CreateTask(ctx context.Context, userID, columnID, title string) (core.TaskCard, error) {
	const op = "create task"

	task := core.TaskCard{
		ID:        s.newID(),
		UserID:    userID,
		ColumnID:  columnID,
		Title:     strings.TrimSpace(title),
		CreatedAt: s.now(),
	}
	if err := task.Validate(); err != nil {
		return core.TaskCard{}, err
	}

	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		columns, err := tx.ListColumns(ctx, userID)
		if err != nil {
			return err
		}
		if !hasColumn(columns, columnID) {
			return core.NotFound(op, "column", columnID)
		}
		tasks, err := tx.ListTasks(ctx, userID)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			if t.ColumnID == columnID && t.SortOrder >= task.SortOrder {
				task.SortOrder = t.SortOrder + 1
			}
		}
		return tx.CreateTask(ctx, task)
	})
	if err != nil {
		return core.TaskCard{}, storageError(ctx, op, "could not create task", err)
	}

	s.invalidate(userID)
	return task, nil
}

// MoveTask applies a drag and drop move and persists the new placements in
// one transaction.
func (s *BoardService) MoveTask(ctx context.Context, userID string, m kanban.Move) (kanban.Result, error) {
	const op = "move task"
	if err := validateUser(op, userID); err != nil {
		return kanban.Result{}, err
	}
	if strings.TrimSpace(m.TaskID) == "" {
		return kanban.Result{}, core.Validation(op, "missing task")
	}

	var res kanban.Result
	err := s.store.WithTx(ctx, func(tx storage.Tx) error {
		columns, err := tx.ListColumns(ctx, userID)
		if err != nil {
			return err
		}
		tasks, err := tx.ListTasks(ctx, userID)
		if err != nil {
			return err
		}
		res, err = kanban.Reorder(columns, tasks, m)
		if err != nil {
			return err
		}
		if !res.Moved {
			return nil
		}
		return tx.UpdateTaskPlacements(ctx, userID, res.Updates)
	})
	if err != nil {
		return kanban.Result{}, storageError(ctx, op, "could not save the new card order", err)
	}

	if res.Moved {
		s.invalidate(userID)
		slog.InfoContext(ctx, "Task moved",
			"user_id", userID,
			log.FieldTaskID, m.TaskID,
			"updates", len(res.Updates),
			"wip_exceeded", res.WIPExceeded)
	}
	return res, nil
}

func (s *BoardService) invalidate(userID string) {
	if s.cache != nil {
		s.cache.Delete(userID)
	}
}

func buildBoard(columns []core.TaskColumn, tasks []core.TaskCard) Board {
	byColumn := make(map[string][]core.TaskCard, len(columns))
	for _, t := range tasks {
		byColumn[t.ColumnID] = append(byColumn[t.ColumnID], t)
	}

	b := Board{Columns: make([]BoardColumn, 0, len(columns))}
	for _, c := range columns {
		cards := byColumn[c.ID]
		kanban.SortCards(cards)
		if cards == nil {
			cards = []core.TaskCard{}
		}
		b.Columns = append(b.Columns, BoardColumn{
			TaskColumn:  c,
			Tasks:       cards,
			WIPExceeded: c.WIPLimit > 0 && len(cards) > c.WIPLimit,
		})
	}
	return b
}

func hasColumn(columns []core.TaskColumn, id string) bool {
	for _, c := range columns {
		if c.ID == id {
			return true
		}
	}
	return false
}
