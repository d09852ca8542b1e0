package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dotsama/identity-registrar/identity"
	"github.com/dotsama/identity-registrar/similarity"
	"github.com/dotsama/identity-registrar/store"
)

// ChallengeVerifier is the subset of verifier.Engine the second-challenge
// endpoint needs.
type ChallengeVerifier interface {
	VerifySecondChallenge(ctx context.Context, field identity.FieldValue, challengeValue string, now int64) (bool, error)
}

// Clock abstracts wall-clock time for the HTTP handlers.
type Clock func() int64

// verifySecondChallengeRequest is the POST /api/verify_second_challenge body.
type verifySecondChallengeRequest struct {
	Entry     identity.FieldValue `json:"entry"`
	Challenge string              `json:"challenge"`
}

// VerifySecondChallengeHandler implements spec.md §4.5's
// "/api/verify_second_challenge" endpoint.
func VerifySecondChallengeHandler(engine ChallengeVerifier, clock Clock, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifySecondChallengeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, envelope{ResultType: "err", Message: "malformed request body"})
			return
		}

		ok, err := engine.VerifySecondChallenge(r.Context(), req.Entry, req.Challenge, clock())
		if err != nil {
			logger.Error("verify_second_challenge failed", "err", err)
			writeJSON(w, envelope{ResultType: "err", Message: "Backend error, contact admin"})
			return
		}
		writeJSON(w, envelope{ResultType: "ok", Message: ok})
	}
}

// DisplayNameStore is the subset of store.Store the display-name endpoint
// needs.
type DisplayNameStore interface {
	FetchDisplayNames(ctx context.Context) ([]store.DisplayNameRecord, error)
}

// checkDisplayNameRequest is the POST /api/check_display_name body.
type checkDisplayNameRequest struct {
	Context     identity.Context `json:"context"`
	DisplayName string           `json:"display_name"`
}

// CheckDisplayNameHandler implements spec.md §4.5's
// "/api/check_display_name" endpoint: a read-only similarity scan against
// every display name already attached to an active identity.
func CheckDisplayNameHandler(source DisplayNameStore, checker similarity.Checker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req checkDisplayNameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, envelope{ResultType: "err", Message: "malformed request body"})
			return
		}

		records, err := source.FetchDisplayNames(r.Context())
		if err != nil {
			logger.Error("check_display_name failed", "err", err)
			writeJSON(w, envelope{ResultType: "err", Message: "Backend error, contact admin"})
			return
		}

		violations := checker.Violations(req.Context, req.DisplayName, records)
		if len(violations) == 0 {
			writeJSON(w, envelope{ResultType: "ok", Message: "Ok"})
			return
		}
		writeJSON(w, envelope{ResultType: "ok", Message: violations})
	}
}

// HealthChecker is the subset of store.Store the healthcheck endpoint needs.
type HealthChecker interface {
	ConnectivityCheck(ctx context.Context) error
}

// HealthcheckHandler implements "GET /healthcheck": 200 "OK" when the
// store is reachable, 503 otherwise.
func HealthcheckHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := checker.ConnectivityCheck(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
