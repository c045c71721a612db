// internal/controller/suppression_controller.go
package controller

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wablast/wablast-backend/internal/model"
	"github.com/wablast/wablast-backend/internal/repository"
)

type SuppressionController struct {
	Suppressions repository.SuppressionRepositoryInterface
}

func (c *SuppressionController) Add(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phone  string `json:"phone"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	phone := model.CanonicalPhone(body.Phone)
	if phone == "" {
		http.Error(w, "invalid phone", http.StatusBadRequest)
		return
	}
	reason := strings.TrimSpace(body.Reason)
	if reason == "" {
		reason = "user_requested"
	}

	if err := c.Suppressions.Add(phone, reason); err != nil {
		http.Error(w, "failed to suppress number: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"phone": phone, "reason": reason})
}

func (c *SuppressionController) List(w http.ResponseWriter, r *http.Request) {
	entries, err := c.Suppressions.ListAll()
	if err != nil {
		http.Error(w, "failed to list suppressed numbers: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"data": entries})
}

func (c *SuppressionController) Remove(w http.ResponseWriter, r *http.Request) {
	phone := model.CanonicalPhone(chi.URLParam(r, "phone"))
	if phone == "" {
		http.Error(w, "invalid phone", http.StatusBadRequest)
		return
	}

	if err := c.Suppressions.Remove(phone); err != nil {
		http.Error(w, "failed to remove suppression: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
