package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"sentra-hq/anchor/pkg/ledger"
	"sentra-hq/anchor/pkg/ledger/remote"
	"sentra-hq/anchor/pkg/ledger/verify"
	"sentra-hq/anchor/pkg/telemetry/metrics"
)

// maxRequestBody bounds the register request body. Metadata documents are
// small; anything larger is malformed.
const maxRequestBody = 1 << 20

// registerHandler handles POST /v1/register.
type registerHandler struct {
	ledger  ledger.Ledger
	metrics *metrics.LedgerMetrics
}

func (h *registerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, remote.CodeInvalidInput, "method not allowed")
		return
	}

	var req remote.RegisterRequest
	body := io.LimitReader(r.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, remote.CodeInvalidInput, "malformed request body: "+err.Error())
		return
	}

	fp, err := ledger.ParseFingerprint(req.Fingerprint)
	if err != nil {
		writeError(w, http.StatusBadRequest, remote.CodeInvalidInput, err.Error())
		return
	}

	start := time.Now()
	receipt, err := h.ledger.Register(r.Context(), fp, req.Metadata, req.Registrant)
	h.metrics.ObserveRegisterDuration(time.Since(start).Seconds())

	switch {
	case err == nil:
		h.metrics.RecordRegistration("anchored")
		writeJSON(w, http.StatusCreated, remote.RegisterResponse{
			Fingerprint:  receipt.Fingerprint.Hex(),
			Position:     receipt.Position,
			RegisteredAt: receipt.RegisteredAt,
			SubmissionID: receipt.SubmissionID,
		})

	case ledger.IsAlreadyRegistered(err):
		h.metrics.RecordRegistration("duplicate")
		writeError(w, http.StatusConflict, remote.CodeAlreadyRegistered, err.Error())

	case ledger.IsInvalidInput(err):
		h.metrics.RecordRegistration("rejected")
		writeError(w, http.StatusBadRequest, remote.CodeInvalidInput, err.Error())

	default:
		h.metrics.RecordRegistration("failed")
		slog.ErrorContext(r.Context(), "registration failed",
			"fingerprint", fp.Hex(),
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, remote.CodeInternal, "registration failed")
	}
}

// verifyHandler handles GET /v1/verify/{fingerprint}.
type verifyHandler struct {
	verifier *verify.Service
}

func (h *verifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, remote.CodeInvalidInput, "method not allowed")
		return
	}

	hexFP := strings.TrimPrefix(r.URL.Path, "/v1/verify/")
	fp, err := ledger.ParseFingerprint(hexFP)
	if err != nil {
		writeError(w, http.StatusBadRequest, remote.CodeInvalidInput, err.Error())
		return
	}

	result, err := h.verifier.Lookup(r.Context(), fp)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, remote.RecordResponse{
			Fingerprint:  result.Record.Fingerprint.Hex(),
			Metadata:     result.Record.Metadata,
			Registrant:   result.Record.Registrant,
			RegisteredAt: result.Record.RegisteredAt,
			Position:     result.Record.Position,
			SubmissionID: result.Record.SubmissionID,
		})

	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, remote.CodeNotFound, err.Error())

	default:
		slog.ErrorContext(r.Context(), "verification failed",
			"fingerprint", fp.Hex(),
			"request_id", requestIDFrom(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, remote.CodeInternal, "verification failed")
	}
}

// healthHandler handles GET /healthz for liveness probes.
type healthHandler struct{}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, remote.CodeInvalidInput, "method not allowed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// Pinger is implemented by ledger backends that can report storage
// reachability for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// readyHandler handles GET /readyz. The service is ready when its ledger
// backend answers a probe.
type readyHandler struct {
	ledger ledger.Ledger
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, remote.CodeInvalidInput, "method not allowed")
		return
	}

	status := "ready"
	statusCode := http.StatusOK

	if p, ok := h.ledger.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
		}
	} else if h.ledger == nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Unix(),
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil && !errors.Is(err, http.ErrHandlerTimeout) {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError writes a JSON error response in the wire error format.
func writeError(w http.ResponseWriter, statusCode int, code, message string) {
	writeJSON(w, statusCode, remote.ErrorResponse{Code: code, Message: message})
}
