package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/armlink/internal/armband"
)

// maxFrameSlots bounds the n parameter of GET /armbands/frame.
const maxFrameSlots = 64

// armbandListResponse is the response body for GET /armbands.
type armbandListResponse struct {
	Armbands []armband.Record `json:"armbands"`
	Count    int              `json:"count"`
}

// emgResponse is the response body for the EMG endpoints.
type emgResponse struct {
	Handle *armband.Handle `json:"handle,omitempty"`
	EMG    []int           `json:"emg"`
}

// commandResponse is the response body for command endpoints.
type commandResponse struct {
	Handle  armband.Handle `json:"handle"`
	Command string         `json:"command"`
	Status  string         `json:"status"`
}

type unlockRequest struct {
	Hold bool `json:"hold"`
}

type vibrateRequest struct {
	Type string `json:"type"`
}

type streamingRequest struct {
	Enabled *bool `json:"enabled"`
}

// handleListArmbands returns the record of every connected armband.
func (s *Server) handleListArmbands(w http.ResponseWriter, _ *http.Request) {
	recs := s.hub.Devices()
	writeJSON(w, http.StatusOK, armbandListResponse{Armbands: recs, Count: len(recs)})
}

// handleArmbandStats returns registry counters.
func (s *Server) handleArmbandStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.hub.Stats())
}

// handleArmbandFrame returns every per-device projection from one snapshot.
// The optional n query parameter sets the slot count; it defaults to the
// number of connected devices.
func (s *Server) handleArmbandFrame(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("n")
	if raw == "" {
		writeJSON(w, http.StatusOK, s.currentFrame())
		return
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || n > maxFrameSlots {
		writeBadRequest(w, fmt.Sprintf("n must be an integer between 0 and %d", maxFrameSlots))
		return
	}
	writeJSON(w, http.StatusOK, FramePayload{Count: n, Frame: s.hub.Frame(n)})
}

// handleLatestEMG returns the last EMG sample from any device.
func (s *Server) handleLatestEMG(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, emgResponse{EMG: s.hub.EMGData()})
}

// handleGetArmband returns one armband's record.
func (s *Server) handleGetArmband(w http.ResponseWriter, r *http.Request) {
	handle, ok := parseHandle(w, r)
	if !ok {
		return
	}

	rec, found := s.hub.Device(handle)
	if !found {
		writeNotFound(w, "armband not connected")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleArmbandEMG returns the last EMG sample of one armband.
func (s *Server) handleArmbandEMG(w http.ResponseWriter, r *http.Request) {
	handle, ok := parseHandle(w, r)
	if !ok {
		return
	}

	emg, found := s.hub.EMGDataFor(handle)
	if !found {
		writeNotFound(w, "armband not connected")
		return
	}
	writeJSON(w, http.StatusOK, emgResponse{Handle: &handle, EMG: emg})
}

// handleLock locks an armband.
func (s *Server) handleLock(w http.ResponseWriter, r *http.Request) {
	handle, ok := s.commandTarget(w, r)
	if !ok {
		return
	}
	s.writeCommandResult(w, handle, armband.LockCommand(), s.hub.Lock(handle))
}

// handleUnlock unlocks an armband. The optional body {"hold": true} keeps it
// unlocked until the next lock.
func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	handle, ok := s.commandTarget(w, r)
	if !ok {
		return
	}

	var req unlockRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}

	cmd := armband.UnlockCommand(armband.UnlockTimed)
	if req.Hold {
		cmd = armband.UnlockCommand(armband.UnlockHold)
	}
	s.writeCommandResult(w, handle, cmd, s.hub.Unlock(handle, req.Hold))
}

// handleVibrate pulses an armband's motor.
func (s *Server) handleVibrate(w http.ResponseWriter, r *http.Request) {
	handle, ok := s.commandTarget(w, r)
	if !ok {
		return
	}

	var req vibrateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	v, err := armband.ParseVibration(req.Type)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	s.writeCommandResult(w, handle, armband.VibrateCommand(v), s.hub.Vibrate(handle, v))
}

// handleStreaming turns raw EMG streaming on or off.
func (s *Server) handleStreaming(w http.ResponseWriter, r *http.Request) {
	handle, ok := s.commandTarget(w, r)
	if !ok {
		return
	}

	var req streamingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Enabled == nil {
		writeBadRequest(w, "enabled is required")
		return
	}

	enabled := *req.Enabled
	s.writeCommandResult(w, handle, armband.StreamingCommand(enabled), s.hub.SetStreaming(handle, enabled))
}

// commandTarget parses the handle and checks that the armband is connected.
func (s *Server) commandTarget(w http.ResponseWriter, r *http.Request) (armband.Handle, bool) {
	handle, ok := parseHandle(w, r)
	if !ok {
		return 0, false
	}
	if _, found := s.hub.Device(handle); !found {
		writeNotFound(w, "armband not connected")
		return 0, false
	}
	return handle, true
}

func (s *Server) writeCommandResult(w http.ResponseWriter, handle armband.Handle, cmd armband.Command, delivered bool) {
	if !delivered {
		s.logger.Warn("command not delivered", "handle", handle, "command", cmd.String())
		writeError(w, http.StatusBadGateway, ErrCodeNotDelivered, "command was not delivered to the armband")
		return
	}
	writeJSON(w, http.StatusAccepted, commandResponse{
		Handle:  handle,
		Command: cmd.String(),
		Status:  "sent",
	})
}

// parseHandle reads the {handle} URL parameter.
func parseHandle(w http.ResponseWriter, r *http.Request) (armband.Handle, bool) {
	raw := chi.URLParam(r, "handle")
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeBadRequest(w, "handle must be an integer")
		return 0, false
	}
	return armband.Handle(n), true
}

// decodeOptionalBody decodes a JSON body into v. An empty body leaves v unchanged.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return false
	}
	return true
}
