package http

import (
	"net/http"
	"strings"

	"lifehub/internal/core"
	"lifehub/internal/kanban"
)

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	board, err := s.board.Board(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, "load board", err)
		return
	}
	NewJSONResponse().Data(newBoardView(board)).Write(w)
}

type createColumnRequest struct {
	Title    string `json:"title"`
	WIPLimit int    `json:"wip_limit"`
}

func (s *Server) handleCreateColumn(w http.ResponseWriter, r *http.Request) {
	var body createColumnRequest
	if !s.decode(w, r, &body) {
		return
	}
	col, err := s.board.CreateColumn(r.Context(), userID(r), sanitizeInput(body.Title), body.WIPLimit)
	if err != nil {
		writeError(w, r, "create column", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(newColumnView(col)).Write(w)
}

type createTaskRequest struct {
	ColumnID string `json:"column_id"`
	Title    string `json:"title"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var body createTaskRequest
	if !s.decode(w, r, &body) {
		return
	}
	task, err := s.board.CreateTask(r.Context(), userID(r), strings.TrimSpace(body.ColumnID), sanitizeInput(body.Title))
	if err != nil {
		writeError(w, r, "create task", err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(newTaskView(task)).Write(w)
}

func (s *Server) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	const op = "move task"

	var m kanban.Move
	if !s.decode(w, r, &m) {
		return
	}
	if strings.TrimSpace(m.TaskID) == "" {
		writeError(w, r, op, core.Validation(op, "task_id is required"))
		return
	}
	if m.TargetIndex != nil && *m.TargetIndex < 0 {
		writeError(w, r, op, core.Validation(op, "target_index cannot be negative"))
		return
	}

	res, err := s.board.MoveTask(r.Context(), userID(r), m)
	if err != nil {
		writeError(w, r, op, err)
		return
	}
	if res.Moved {
		s.appMetrics.moves.Add(1)
	}
	if res.Updates == nil {
		res.Updates = []core.TaskPlacement{}
	}
	NewJSONResponse().Data(res).Write(w)
}
