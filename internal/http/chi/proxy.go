package chi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httplog"
	"github.com/google/uuid"
	"github.com/marcelsud/webhook-proxy/proxy"
)

/* HTTP layer DTOs for the proxy API
 * Separate from domain entities to avoid leaking internal structure
 */

type createRequest struct {
	WebhookURL string `json:"webhookUrl"`
}

type createResponse struct {
	ProxyURL string `json:"proxyUrl"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Messages returned to callers; internal causes are only logged
const (
	msgInvalidWebhookURL = "Invalid Discord webhook URL provided."
	msgCreateFailed      = "Could not create proxy link."
	msgMissingID         = "Proxy ID is missing."
	msgNotFound          = "Proxy link not found or expired."
	msgForwardFailed     = "Failed to forward request to Discord."
	msgInvalidJSON       = "Invalid JSON payload."
	msgPayloadTooLarge   = "Payload too large."
)

// postCreate handles POST /api/create
func postCreate(proxyService proxy.UseCase, opts Options) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := decodeCreate(http.MaxBytesReader(w, r.Body, opts.MaxPayloadBytes), &req); err != nil {
			opts.Recorder.RecordRegistration(r.Context(), "invalid_payload")
			writeError(w, http.StatusBadRequest, msgInvalidJSON)
			return
		}

		proxyURL, err := proxyService.Register(r.Context(), req.WebhookURL, baseURL(r, opts.PublicBaseURL))
		opts.Recorder.RecordRegistration(r.Context(), proxy.Kind(err))
		switch {
		case err == nil:
		case errors.Is(err, proxy.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, msgInvalidWebhookURL)
			return
		default:
			writeError(w, http.StatusInternalServerError, msgCreateFailed)
			return
		}

		writeJSON(w, http.StatusOK, createResponse{ProxyURL: proxyURL})
	})
}

// postProxy handles POST /api/proxy/{id}
func postProxy(proxyService proxy.UseCase, opts Options) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := chi.URLParam(r, "id")

		payload, status, msg := readPayload(w, r, opts.MaxPayloadBytes)
		if id != "" && status != 0 {
			opts.Recorder.RecordForward(r.Context(), "invalid_payload", time.Since(start))
			writeError(w, status, msg)
			return
		}

		relayID := uuid.NewString()
		httplog.LogEntrySetField(r.Context(), "relay_id", relayID)
		err := proxyService.Forward(proxy.WithRelayID(r.Context(), relayID), id, payload)
		opts.Recorder.RecordForward(r.Context(), proxy.Kind(err), time.Since(start))
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, proxy.ErrMissingIdentifier):
			writeError(w, http.StatusBadRequest, msgMissingID)
		case errors.Is(err, proxy.ErrNotFound):
			writeError(w, http.StatusNotFound, msgNotFound)
		default:
			writeError(w, http.StatusInternalServerError, msgForwardFailed)
		}
	})
}

// decodeCreate reads a single JSON value into req; an empty body leaves req zero
func decodeCreate(body io.Reader, req *createRequest) error {
	dec := json.NewDecoder(body)
	if err := dec.Decode(req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

var errTrailingData = errors.New("unexpected data after JSON value")

/* readPayload returns the body to relay
 * An empty body is relayed as {}. Returns a non-zero status when the body must be rejected.
 */
func readPayload(w http.ResponseWriter, r *http.Request, max int64) ([]byte, int, string) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, max))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, http.StatusRequestEntityTooLarge, msgPayloadTooLarge
		}
		return nil, http.StatusBadRequest, msgInvalidJSON
	}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return []byte("{}"), 0, ""
	}
	// top-level value must be an object or array
	if trimmed[0] != '{' && trimmed[0] != '[' {
		return nil, http.StatusBadRequest, msgInvalidJSON
	}
	if !json.Valid(body) {
		return nil, http.StatusBadRequest, msgInvalidJSON
	}
	return body, 0, ""
}

// baseURL returns scheme://host as seen by the caller, unless a public base URL is configured
func baseURL(r *http.Request, public string) string {
	if public != "" {
		return public
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	} else if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	return scheme + "://" + r.Host
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
