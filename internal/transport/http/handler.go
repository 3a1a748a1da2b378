package http

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/ggrandes/jupdate53/internal/admission"
	"github.com/ggrandes/jupdate53/internal/domain"
	"github.com/ggrandes/jupdate53/internal/updater"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Codes for failures that do not carry their own.
const (
	CodeProviderError   = "ERROR:R53"
	CodeUnexpectedError = "ERROR:EXCEPTION"
)

// Admitter decides whether an update may go ahead.
type Admitter interface {
	Evaluate(names []string, ip, zoneID string) error
}

// Applier pushes an admitted update to the DNS provider.
type Applier interface {
	Apply(ctx context.Context, req domain.UpdateRequest, wait bool) (domain.ChangeStatus, error)
}

// UpdateRecorder counts answered updates.
type UpdateRecorder interface {
	ObserveUpdate(result string)
}

// Handler serves the update endpoint.
type Handler struct {
	gate    Admitter
	updater Applier
	wait    bool
	metrics UpdateRecorder
	log     zerolog.Logger
}

// NewHandler builds the update handler. metrics may be nil.
func NewHandler(gate Admitter, upd Applier, wait bool, metrics UpdateRecorder, log zerolog.Logger) *Handler {
	return &Handler{
		gate:    gate,
		updater: upd,
		wait:    wait,
		metrics: metrics,
		log:     log,
	}
}

type statusResponse struct {
	Status string `json:"status"`
}

// ServeUpdate answers every request with HTTP 200 and a status code in the body.
func (h *Handler) ServeUpdate(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	log := h.log.With().Str("request_id", id).Logger()

	w.Header().Set("Cache-Control", "private")
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", id)

	code, result := h.update(r, log)
	if h.metrics != nil {
		h.metrics.ObserveUpdate(result)
	}
	log.Info().Str("remote", r.RemoteAddr).Str("status", code).Msg("update answered")

	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(statusResponse{Status: code})
}

// update runs validation, admission and the provider call. It returns the
// response code and the metrics label for it.
func (h *Handler) update(r *http.Request, log zerolog.Logger) (code, result string) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("update failed unexpectedly")
			code, result = CodeUnexpectedError, CodeUnexpectedError
		}
	}()

	if err := r.ParseForm(); err != nil {
		log.Warn().Err(err).Msg("unreadable form")
		return CodeUnexpectedError, CodeUnexpectedError
	}

	req, err := domain.ParseUpdateRequest(
		r.Form.Get("zoneid"),
		r.Form["fqdn"],
		r.Form.Get("ttl"),
		r.Form.Get("ip"),
		r.RemoteAddr,
	)
	if err != nil {
		c := codeFor(err)
		return c, c
	}

	log = log.With().Str("zone_id", req.ZoneID).Strs("names", req.Names).Str("ip", req.IP).Logger()

	if err := h.gate.Evaluate(req.Names, req.IP, req.ZoneID); err != nil {
		c := codeFor(err)
		log.Debug().Err(err).Msg("update not admitted")
		return c, c
	}

	status, err := h.updater.Apply(r.Context(), req, h.wait)
	if err != nil {
		c := codeFor(err)
		log.Error().Err(err).Msg("update failed")
		return c, c
	}
	return string(status) + ":" + req.IP, string(status)
}

// codeFor maps an error to the status code reported to the client.
func codeFor(err error) string {
	var verr *domain.ValidationError
	var rej *admission.Rejection
	var perr *updater.ProviderError
	switch {
	case errors.As(err, &verr):
		return verr.Code()
	case errors.As(err, &rej):
		return rej.Code()
	case errors.As(err, &perr):
		return CodeProviderError
	default:
		return CodeUnexpectedError
	}
}

// ServeIP echoes the caller's address as seen by the server.
func ServeIP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "private")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(remoteHost(r.RemoteAddr)))
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return strings.TrimPrefix(host, "::ffff:")
}
