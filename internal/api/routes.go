package api

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Iron-Ham/fleetcore/internal/audit"
	"github.com/Iron-Ham/fleetcore/internal/orchestrator"
	"github.com/Iron-Ham/fleetcore/internal/taskqueue"
)

type submitRequest struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	Class        string          `json:"class"`
	Priority     *int            `json:"priority"`
	CreditWeight *int            `json:"creditWeight"`
	Payload      json.RawMessage `json:"payload"`
	TimeoutMs    int64           `json:"timeoutMs"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.TimeoutMs < 0 {
		writeError(w, http.StatusBadRequest, "timeoutMs must be >= 0")
		return
	}
	if req.TimeoutMs > maxTimeoutMs {
		writeError(w, http.StatusBadRequest, "timeoutMs must be <= "+strconv.FormatInt(maxTimeoutMs, 10))
		return
	}

	id, err := s.sched.SubmitTask(orchestrator.Submission{
		ID:           req.ID,
		Type:         req.Type,
		Class:        req.Class,
		Priority:     req.Priority,
		CreditWeight: req.CreditWeight,
		Payload:      req.Payload,
		Timeout:      time.Duration(req.TimeoutMs) * time.Millisecond,
	})
	switch {
	case errors.Is(err, orchestrator.ErrMissingType):
		writeError(w, http.StatusBadRequest, "type required")
		return
	case errors.Is(err, taskqueue.ErrDuplicateTask):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		s.logger.Error("submit task", "error", err)
		writeError(w, http.StatusInternalServerError, "submit failed")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"taskId": id})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sched.Status())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics != nil {
		writeJSON(w, http.StatusOK, s.metrics.Snapshot())
		return
	}
	writeJSON(w, http.StatusOK, s.sched.Status().Metrics)
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditLog == nil {
		writeError(w, http.StatusServiceUnavailable, "audit log not configured")
		return
	}
	q := r.URL.Query()
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records := s.auditLog.Records()
	if ev := q.Get("event"); ev != "" {
		records = slices.DeleteFunc(records, func(rec audit.Record) bool { return rec.Event != ev })
	}
	if limit > 0 && len(records) > limit {
		records = records[len(records)-limit:]
	}
	if records == nil {
		records = []audit.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": records})
}

func (s *Server) handleSnapshotModel(w http.ResponseWriter, r *http.Request) {
	if s.advisor == nil || s.store == nil {
		writeError(w, http.StatusServiceUnavailable, "model snapshots not configured")
		return
	}
	data, err := s.advisor.Snapshot()
	if err == nil {
		err = s.store.Save(r.Context(), AdvisorKey, data)
	}
	if err != nil {
		s.logger.Error("snapshot model", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "key": AdvisorKey})
}

type observeRequest struct {
	Key    string   `json:"key"`
	Reward *float64 `json:"reward"`
}

func (s *Server) handleObserve(w http.ResponseWriter, r *http.Request) {
	if s.advisor == nil {
		writeError(w, http.StatusServiceUnavailable, "advisor not configured")
		return
	}
	var req observeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Key == "" || req.Reward == nil {
		writeError(w, http.StatusBadRequest, "key and reward required")
		return
	}
	s.advisor.Observe(req.Key, *req.Reward)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "score": scoreJSON(s.advisor.Score(req.Key))})
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if s.advisor == nil {
		writeError(w, http.StatusServiceUnavailable, "advisor not configured")
		return
	}
	raw := r.URL.Query().Get("candidates")
	var candidates []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			candidates = append(candidates, c)
		}
	}
	if len(candidates) == 0 {
		writeError(w, http.StatusBadRequest, "candidates required")
		return
	}
	k := 1
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		k = n
	}

	weights := s.advisor.Weights(candidates)
	writeJSON(w, http.StatusOK, map[string]any{
		"selected": s.advisor.Select(candidates, k),
		"weights":  weights,
	})
}

// scoreJSON maps +Inf, which encoding/json rejects, to nil.
func scoreJSON(v float64) any {
	if math.IsInf(v, 0) {
		return nil
	}
	return v
}
