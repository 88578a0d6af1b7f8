package api

import (
	"net/http"
	"strconv"

	"github.com/nerrad567/armlink/internal/armband"
	"github.com/nerrad567/armlink/internal/session"
)

// handleListSessions returns connection sessions, most recent first.
//
// Query parameters: handle, open (bool), hub_id (defaults to this hub),
// limit and offset.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "session history is not available")
		return
	}

	q := r.URL.Query()
	filter := session.Filter{HubID: s.hubID}

	if v := q.Get("hub_id"); v != "" {
		filter.HubID = v
	}
	if v := q.Get("handle"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "handle must be an integer")
			return
		}
		h := armband.Handle(n)
		filter.Handle = &h
	}
	if v := q.Get("open"); v != "" {
		open, err := strconv.ParseBool(v)
		if err != nil {
			writeBadRequest(w, "open must be a boolean")
			return
		}
		filter.OpenOnly = open
	}

	var ok bool
	if filter.Limit, ok = intParam(w, q.Get("limit"), "limit"); !ok {
		return
	}
	if filter.Offset, ok = intParam(w, q.Get("offset"), "offset"); !ok {
		return
	}

	result, err := s.sessions.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing sessions", "error", err)
		writeInternalError(w, "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// intParam parses an optional non-negative integer query parameter.
func intParam(w http.ResponseWriter, raw, name string) (int, bool) {
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeBadRequest(w, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}
