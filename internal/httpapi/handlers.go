package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/labstreak/labstreak/internal/detect"
	"github.com/labstreak/labstreak/internal/obs"
	"github.com/labstreak/labstreak/internal/rules"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("response encode failed")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ruleInfo struct {
	Name     string            `json:"name"`
	Channels []string          `json:"channels"`
	Params   []rules.ParamSpec `json:"params"`
}

func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	all := rules.Builtin()
	out := make([]ruleInfo, 0, len(all))
	for _, rule := range all {
		out = append(out, ruleInfo{
			Name:     rule.Name(),
			Channels: rule.Channels(),
			Params:   rule.Params(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// evaluateRequest is one batch evaluation. Params overlay the configured
// per-rule defaults; out-of-range values clamp. InputVersion keys the memo
// cache and is optional.
type evaluateRequest struct {
	Observations []obs.Observation             `json:"observations"`
	Params       map[string]map[string]float64 `json:"params,omitempty"`
	InputVersion string                        `json:"input_version,omitempty"`
}

type ruleResultResponse struct {
	Rows        []rules.Detection `json:"rows"`
	DetectedIDs []int64           `json:"detected_ids"`
	Excluded    int               `json:"excluded"`
	Collapsed   int               `json:"collapsed"`
}

type evaluateResponse struct {
	Results map[string]ruleResultResponse `json:"results"`
	Summary []detect.PatientPhenotype     `json:"summary"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Observations) == 0 {
		writeError(w, http.StatusBadRequest, "observations are required")
		return
	}

	// A fresh engine per request keeps rule parameter state request-local;
	// the shared cache still carries memoized results across requests.
	engine := detect.NewEngine(rules.Builtin(),
		detect.WithCache(s.cache, s.cfg.Storage.MemoTTL))
	for name, params := range s.cfg.Rules {
		if err := engine.SetRuleParams(name, params); err != nil {
			log.Warn().Str("rule", name).Msg("configured rule not found, override skipped")
		}
	}
	for name, params := range req.Params {
		if err := engine.SetRuleParams(name, params); err != nil {
			writeError(w, http.StatusBadRequest, "unknown rule: "+name)
			return
		}
	}

	results, err := engine.Evaluate(r.Context(), obs.Table(req.Observations), req.InputVersion)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := evaluateResponse{
		Results: make(map[string]ruleResultResponse, len(results)),
		Summary: detect.Summarize(results),
	}
	for name, res := range results {
		resp.Results[name] = ruleResultResponse{
			Rows:        res.Rows,
			DetectedIDs: rules.DetectedIDs(res.Rows),
			Excluded:    res.Excluded,
			Collapsed:   res.Collapsed,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
