// audiopolicyd - audio stream usage policy engine
// SPDX-License-Identifier: AGPL-3.0-or-later

package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/goccy/go-json"

	"github.com/tomtom215/audiopolicyd/internal/audit"
	"github.com/tomtom215/audiopolicyd/internal/policy"
	"github.com/tomtom215/audiopolicyd/internal/usage"
)

func auditFilterFromQuery(q url.Values) audit.Filter {
	return audit.Filter{
		Usage: q.Get("usage"),
		Kind:  audit.Kind(q.Get("kind")),
	}
}

// interactionRequest is the wire shape for POST /v1/policy/interactions,
// mirroring policy.RuleJSON's active/affected/behavior fields.
type interactionRequest struct {
	Active   policy.UsageJSON `json:"active"`
	Affected policy.UsageJSON `json:"affected"`
	Behavior string           `json:"behavior"`
}

func (s *Server) handleSetInteraction(w http.ResponseWriter, r *http.Request) {
	var req interactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	active, err := policy.ResolveUsage(req.Active)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("active: %w", err))
		return
	}
	affected, err := policy.ResolveUsage(req.Affected)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("affected: %w", err))
		return
	}
	behavior, err := policy.ResolveBehavior(req.Behavior)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.dispatcher.SetInteraction(active, affected, behavior)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleResetInteractions(w http.ResponseWriter, r *http.Request) {
	s.dispatcher.ResetInteractions()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleReloadPolicy(w http.ResponseWriter, r *http.Request) {
	body, err := readLimited(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	fresh, n, err := policy.Load(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("policy: %w", err))
		return
	}
	s.dispatcher.SetInteractionsFromPolicy(fresh)
	writeJSON(w, http.StatusAccepted, map[string]any{"rules_installed": n})
}

// usageFromQuery builds a StreamUsage from ?render_usage= or
// ?capture_usage= query parameters, reusing policy's resolution so HTTP
// queries accept exactly the same usage names a policy document does.
func usageFromQuery(r *http.Request) (usage.StreamUsage, error) {
	q := r.URL.Query()
	var uj policy.UsageJSON
	if v := q.Get("render_usage"); v != "" {
		uj.RenderUsage = &v
	}
	if v := q.Get("capture_usage"); v != "" {
		uj.CaptureUsage = &v
	}
	return policy.ResolveUsage(uj)
}

func (s *Server) handleUsageState(w http.ResponseWriter, r *http.Request) {
	u, err := usageFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"usage":    u.String(),
		"behavior": s.dispatcher.LastBehavior(u).String(),
		"gain_db":  s.dispatcher.LastGain(u),
		"count":    s.dispatcher.LastCount(u),
	})
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"render_activity_bitmap":  uint64(s.dispatcher.LastRenderActivity()),
		"capture_activity_bitmap": uint64(s.dispatcher.LastCaptureActivity()),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleAuditEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := auditFilterFromQuery(q)

	entries, err := s.auditStore.List(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// maxRequestBody bounds a policy document upload; original_source's own
// policy documents are a few KB, so this is generous headroom rather than
// a tight budget.
const maxRequestBody = 1 << 20

func readLimited(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return nil, fmt.Errorf("read request body: %w", err)
	}
	if len(data) > maxRequestBody {
		return nil, fmt.Errorf("request body exceeds %d bytes", maxRequestBody)
	}
	return data, nil
}
