package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/AmaanP314/AI-Caller-Agent/internal/session"
)

// textMessageTimeout bounds how long POST /api/text-message waits for the
// turn to complete.
const textMessageTimeout = 60 * time.Second

// registerAdmin installs the operator API. These endpoints exist for live
// monitoring and for driving a call by text during development; nothing in
// the voice path depends on them.
func (s *Server) registerAdmin(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /config", s.handleConfig)
	mux.HandleFunc("POST /api/text-message", s.handleTextMessage)
	mux.HandleFunc("GET /api/patient-info/{session_id}", s.handlePatientInfo)
	mux.HandleFunc("POST /api/end-call/{session_id}", s.handleEndCall)
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":      "caller-agent",
		"active_calls": s.activeCalls(),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.configView)
}

// handleTextMessage injects a transcript into a live call as if the caller
// had spoken it, skipping VAD and STT entirely, and blocks until the turn
// finishes so the response carries the agent's full reply and the patient
// info gathered so far.
func (s *Server) handleTextMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string `json:"session_id"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" || req.Message == "" {
		http.Error(w, "session_id and message are required", http.StatusBadRequest)
		return
	}

	c := s.lookupCall(req.SessionID)
	if c == nil {
		http.Error(w, "no such call", http.StatusNotFound)
		return
	}

	s.sessions.Append(req.SessionID, session.RoleUser, req.Message)

	reply := make(chan turnReply, 1)
	select {
	case c.transcriptCh <- transcriptReq{text: req.Message, reply: reply}:
	default:
		http.Error(w, "call is busy", http.StatusConflict)
		return
	}

	select {
	case res := <-reply:
		if res.err != nil {
			http.Error(w, "turn failed: "+res.err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"session_id":     req.SessionID,
			"agent_response": res.text,
			"patient_info":   c.agent.Info(),
		})
	case <-r.Context().Done():
	case <-time.After(textMessageTimeout):
		// The call tore down before the turn handler got to this request.
		http.Error(w, "call ended before responding", http.StatusGatewayTimeout)
	}
}

func (s *Server) handlePatientInfo(w http.ResponseWriter, r *http.Request) {
	c := s.lookupCall(r.PathValue("session_id"))
	if c == nil {
		http.Error(w, "no such call", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, c.agent.Info())
}

func (s *Server) handleEndCall(w http.ResponseWriter, r *http.Request) {
	c := s.lookupCall(r.PathValue("session_id"))
	if c == nil {
		http.Error(w, "no such call", http.StatusNotFound)
		return
	}
	c.setStatus(statusCompleted)
	c.sig.Raise()
	if c.cancel != nil {
		c.cancel()
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ending"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
