// SPDX-License-Identifier: Apache-2.0

package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/kusari-oss/triage/internal/agent"
	"github.com/kusari-oss/triage/internal/core/models"
)

// maxRequestBody bounds every request body
const maxRequestBody = 1 << 20

// Runner runs the agent pipeline
type Runner interface {
	Run(ctx context.Context, req agent.Request) agent.Response
}

// Evaluator decides on remediation requests
type Evaluator interface {
	Evaluate(ctx context.Context, body []byte) (int, models.GuardResult)
}

// analyzeHandler runs the agent. A POST body that cannot be decoded is
// treated as an empty request; GET takes an optional question parameter.
func analyzeHandler(runner Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req agent.Request
		switch r.Method {
		case http.MethodPost:
			body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
			if err == nil && len(body) > 0 {
				if err := json.Unmarshal(body, &req); err != nil {
					req = agent.Request{}
				}
			}
		case http.MethodGet:
			req.Question = r.URL.Query().Get("question")
		default:
			w.Header().Set("Allow", "GET, POST")
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		writeJSON(w, http.StatusOK, runner.Run(r.Context(), req))
	}
}

// remediateHandler passes the raw body to the guard
func remediateHandler(evaluator Evaluator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			body = nil
		}

		status, result := evaluator.Evaluate(r.Context(), body)
		writeJSON(w, status, result)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
