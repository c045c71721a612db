// internal/controller/dispatch_controller.go
package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	appErrors "github.com/wablast/wablast-backend/internal/errors"
	"github.com/wablast/wablast-backend/internal/progress"
	"github.com/wablast/wablast-backend/internal/queue"
	"github.com/wablast/wablast-backend/internal/service"
)

type DispatchController struct {
	Dispatcher *service.Dispatcher
	Queue      queue.Queue
	Progress   *progress.Store
}

// Dispatch starts a campaign run. By default the run executes synchronously
// and the full result comes back in the response; with async=1 the job goes
// to the queue and the caller polls run progress instead.
func (c *DispatchController) Dispatch(w http.ResponseWriter, r *http.Request) {
	id, err := campaignID(r)
	if err != nil {
		http.Error(w, "invalid campaign id", http.StatusBadRequest)
		return
	}

	var body struct {
		SeedText string `json:"seed_text"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	if r.URL.Query().Get("async") == "1" {
		if c.Queue == nil {
			http.Error(w, "async dispatch requires a queue", http.StatusServiceUnavailable)
			return
		}
		job := queue.RunJob{RunID: uuid.NewString(), CampaignID: id, SeedText: body.SeedText}
		if err := c.Queue.Publish(queue.DispatchTopic, job); err != nil {
			http.Error(w, "failed to enqueue dispatch run: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"run_id": job.RunID})
		return
	}

	result, err := c.Dispatcher.Run(r.Context(), id, body.SeedText)
	if err != nil {
		var noPending *appErrors.ErrNoPendingRecipients
		switch {
		case errors.Is(err, appErrors.ErrNoActiveSession):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.As(err, &noPending):
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		default:
			writeError(w, err)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// RunProgress returns the live snapshot of an async run.
func (c *DispatchController) RunProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	snapshot, ok, err := c.Progress.Get(r.Context(), runID)
	if err != nil {
		http.Error(w, "failed to fetch run progress: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "unknown run id", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snapshot)
}
