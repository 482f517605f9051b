package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/pysugar/cursor-auth-keeper/internal/accounts"
	"github.com/pysugar/cursor-auth-keeper/internal/authflow"
	"github.com/pysugar/cursor-auth-keeper/internal/logging"
)

// LoginRequest is the body of a login start request.
type LoginRequest struct {
	Provider   string `json:"provider"`
	Email      string `json:"email,omitempty"`
	Password   string `json:"password,omitempty"`
	Membership string `json:"membership,omitempty"`
	AuthURL    string `json:"auth_url,omitempty"`
	Replay     bool   `json:"replay,omitempty"`
}

// LoginHandler starts an authorization session and streams its events as
// Server-Sent Events until the terminal event. A client disconnect cancels
// the session.
func LoginHandler(m *accounts.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid login payload: "+err.Error())
			return
		}

		requestID := logging.RequestID(r.Context())
		log.Printf("🔑 [%s] login session requested: provider=%s replay=%v", requestID, req.Provider, req.Replay)

		events, err := m.AcquireAndAdd(accounts.AcquireOptions{
			Provider:    authflow.ParseProvider(req.Provider),
			Credentials: authflow.Credentials{Email: req.Email, Password: req.Password},
			AuthURL:     req.AuthURL,
			Membership:  req.Membership,
			Replay:      req.Replay,
		})
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}

		SetSSEHeaders(w)
		flusher, ok := w.(http.Flusher)
		if !ok {
			WriteError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		for {
			select {
			case <-r.Context().Done():
				log.Printf("🔄 [%s] client disconnected, cancelling login session", requestID)
				m.CancelActive()
				// Drain so the session goroutine can finish.
				for range events {
				}
				return
			case ev, open := <-events:
				if !open {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, data)
				flusher.Flush()
			}
		}
	}
}

// LoginCancelHandler stops the in-flight authorization session, if any.
func LoginCancelHandler(m *accounts.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Printf("🔄 [%s] login cancel requested", logging.RequestID(r.Context()))
		m.CancelActive()
		WriteJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	}
}
