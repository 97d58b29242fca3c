package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"lifehub/internal/hubs"
)

// HeaderSessionID carries the UI session between requests.
const HeaderSessionID = "X-Session-ID"

func (s *Server) handleListHubs(w http.ResponseWriter, r *http.Request) {
	settings, err := s.hubs.Settings(r.Context(), userID(r))
	if err != nil {
		writeError(w, r, "list hubs", err)
		return
	}
	NewJSONResponse().Data(settings).Write(w)
}

func (s *Server) handleToggleHub(w http.ResponseWriter, r *http.Request) {
	h, err := hubs.ParseHub(chi.URLParam(r, "hub"))
	if err != nil {
		writeError(w, r, "toggle hub", err)
		return
	}
	setting, err := s.hubs.Toggle(r.Context(), userID(r), h)
	if err != nil {
		writeError(w, r, "toggle hub", err)
		return
	}
	NewJSONResponse().Data(setting).Write(w)
}

// handleLanding tells the client whether to redirect to the first enabled
// hub. The answer is yes at most once per session. The hub is resolved
// before the redirect is taken so a failed lookup leaves it pending. With
// every hub disabled the redirect is spent and the client stays put.
func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	sess, _ := s.sessions.Resolve(strings.TrimSpace(r.Header.Get(HeaderSessionID)), user)

	first, found, err := s.hubs.FirstEnabled(r.Context(), user)
	if err != nil {
		writeError(w, r, "landing", err)
		return
	}

	view := landingView{SessionID: sess.ID}
	if sess.TakeLandingRedirect() && found {
		view.Redirect = true
		view.Location = "/hubs/" + first.String()
	}
	NewJSONResponse().Header(HeaderSessionID, sess.ID).Data(view).Write(w)
}

// handleEndSession forgets the session named by the header. Ending an
// unknown session succeeds too.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.Header.Get(HeaderSessionID))
	if id == "" {
		BadRequestError("missing " + HeaderSessionID + " header").Write(w)
		return
	}
	s.sessions.End(id, userID(r))
	w.WriteHeader(http.StatusNoContent)
}
