package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/moti-app/moti-proxy/internal/persona"
	"github.com/moti-app/moti-proxy/internal/plan"
	"github.com/moti-app/moti-proxy/internal/relay"
)

type chatResponse struct {
	OK      bool            `json:"ok"`
	Reply   string          `json:"reply"`
	Patches []persona.Patch `json:"patches"`
}

type planResponse struct {
	OK   bool       `json:"ok"`
	Plan []plan.Day `json:"plan"`
	Text string     `json:"text"`
}

// HandleChat relays one message and returns the guarded reply.
func (s *Server) HandleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	req, err := relay.DecodeRequest(r.Body)
	if err != nil {
		if tooLarge(err) {
			s.respondError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "")
			return
		}
		s.respondError(w, r, http.StatusBadRequest, relay.CodeMessageRequired, "")
		return
	}
	req.RequestID = middleware.GetReqID(r.Context())

	if s.relay == nil {
		s.respondError(w, r, http.StatusInternalServerError, relay.CodeProxyError, "relay not configured")
		return
	}
	result, err := s.relay.Reply(r.Context(), req)
	if err != nil {
		relayErr := relay.AsError(err)
		s.respondError(w, r, relayErr.Status, relayErr.Code, relayErr.Detail)
		return
	}
	s.respondJSON(w, http.StatusOK, chatResponse{OK: true, Reply: result.Reply, Patches: result.Patches})
}

// HandlePlan builds a weekly study plan. No provider is involved.
func (s *Server) HandlePlan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	var req plan.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if tooLarge(err) {
			s.respondError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "")
			return
		}
		s.respondError(w, r, http.StatusBadRequest, "invalid_body", "")
		return
	}
	p, err := plan.Build(req)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, plan.Code(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, planResponse{OK: true, Plan: p.Days, Text: p.Text})
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
