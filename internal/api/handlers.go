package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pysugar/cursor-auth-keeper/internal/accounts"
	"github.com/pysugar/cursor-auth-keeper/internal/db/models"
	"github.com/pysugar/cursor-auth-keeper/internal/fingerprint"
	"github.com/pysugar/cursor-auth-keeper/internal/store"
)

// AccountsListHandler returns every stored account.
func AccountsListHandler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := s.GetAll()
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"accounts": all,
			"count":    len(all),
		})
	}
}

// AccountUpsertHandler creates or updates an account from the request body.
func AccountUpsertHandler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var account models.Account
		if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid account payload: "+err.Error())
			return
		}
		if account.ID == "" && account.Email == "" {
			WriteError(w, http.StatusBadRequest, "account needs an id or an email")
			return
		}
		if err := s.Upsert(&account); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, account)
	}
}

// AccountRemoveHandler deletes an account by id.
func AccountRemoveHandler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := s.Remove(id); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"removed": id})
	}
}

// CurrentAccountHandler returns the current account, promoting one if the
// pointer is stale.
func CurrentAccountHandler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, err := s.GetCurrent()
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if current == nil {
			WriteError(w, http.StatusNotFound, "no accounts stored")
			return
		}
		WriteJSON(w, http.StatusOK, current)
	}
}

// PromoteAccountHandler makes the given account current.
func PromoteAccountHandler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := s.SetCurrent(id); err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"current": id})
	}
}

// LogoutHandler logs out the account named in the path, or the current
// account when the id is "current".
func LogoutHandler(m *accounts.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "current" {
			id = ""
		}
		account, err := m.Logout(id)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, account)
	}
}

// ThresholdsGetHandler returns usage thresholds with defaults filled in.
func ThresholdsGetHandler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		thresholds, err := s.GetThresholds()
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, thresholds)
	}
}

// ThresholdsPutHandler overwrites the given threshold keys.
func ThresholdsPutHandler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var thresholds map[string]int
		if err := json.NewDecoder(r.Body).Decode(&thresholds); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid thresholds payload: "+err.Error())
			return
		}
		if err := s.SetThresholds(thresholds); err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		updated, err := s.GetThresholds()
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, updated)
	}
}

// ImportHandler bulk-imports accounts from a JSON array body.
func ImportHandler(m *accounts.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		success, failed, err := m.ImportFromJSON(data)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]int{"imported": success, "failed": failed})
	}
}

// ExportHandler dumps every account as a JSON attachment.
func ExportHandler(m *accounts.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := m.ExportToJSON()
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="accounts.json"`)
		_, _ = w.Write(data)
	}
}

// RefreshStatusHandler rederives every account status and returns the
// refreshed list plus the reloaded current account.
func RefreshStatusHandler(m *accounts.Manager, s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, err := m.RefreshStatus()
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		all, err := s.GetAll()
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"accounts": all,
			"count":    len(all),
			"current":  current,
		})
	}
}

// AuthDataLoadHandler imports the editor's raw auth payload as an account.
func AuthDataLoadHandler(m *accounts.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload accounts.AuthPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid auth payload: "+err.Error())
			return
		}
		account, err := m.LoadFromAuthData(payload)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		WriteJSON(w, http.StatusOK, account)
	}
}

// AuthDataExportHandler renders the current account back into the editor's
// auth payload shape.
func AuthDataExportHandler(s *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current, err := s.GetCurrent()
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if current == nil {
			WriteError(w, http.StatusNotFound, "no accounts stored")
			return
		}
		WriteJSON(w, http.StatusOK, accounts.PayloadFor(current))
	}
}

// FingerprintLatestHandler returns the newest archived fingerprint for a
// provider/identity pair.
func FingerprintLatestHandler(archive *fingerprint.Archive) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider := r.URL.Query().Get("provider")
		if provider == "" {
			WriteError(w, http.StatusBadRequest, "provider query parameter is required")
			return
		}
		identity := r.URL.Query().Get("identity")
		if identity == "" {
			identity = fingerprint.IdentityUnknown
		}
		snap, err := archive.LoadLatest(provider, identity)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if snap == nil {
			WriteError(w, http.StatusNotFound, "no fingerprint archived for "+provider+"/"+identity)
			return
		}
		WriteJSON(w, http.StatusOK, snap)
	}
}
