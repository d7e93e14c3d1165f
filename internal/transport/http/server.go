// package http implements the HTTP transport layer for the service: the
// webhook intake endpoint plus health and metrics.
package http

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/devkudos/ingest-service/internal/apperrors"
	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/devkudos/ingest-service/pkg/logger/sl"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	headerEvent     = "X-GitHub-Event"
	headerDelivery  = "X-GitHub-Delivery"
	headerSignature = "X-Hub-Signature-256"

	// GitHub caps webhook payloads at 25 MB.
	maxPayloadBytes = 25 << 20
)

// EventProcessor handles one webhook delivery end to end.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, env domain.Envelope) error
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	log       *slog.Logger
	processor EventProcessor
	secret    []byte
}

// NewServer creates a new instance of the HTTP server. An empty webhook
// secret disables signature verification.
func NewServer(log *slog.Logger, processor EventProcessor, webhookSecret string) *Server {
	s := &Server{
		log:       log,
		processor: processor,
	}

	if webhookSecret != "" {
		s.secret = []byte(webhookSecret)
	} else {
		log.Warn("webhook secret is empty, signature verification disabled")
	}

	return s
}

// Routes sets up the router with all middleware and endpoints.
func (s *Server) Routes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(s.requestID)
	mux.Use(s.logRequest)
	mux.Use(s.metricsMiddleware)

	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/healthz", s.handleHealth)
	mux.Post("/webhook", s.handleWebhook)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebhook accepts a GitHub delivery: check the routing headers,
// verify the payload signature, then run the delivery through the event
// processor. A handler failure is already recorded against the delivery, so
// the response only reports it.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "internal.transport.http.handleWebhook"

	log := s.log.With(slog.String("op", op))

	deliveryID := r.Header.Get(headerDelivery)
	eventType := r.Header.Get(headerEvent)

	if deliveryID == "" || eventType == "" {
		s.respondError(w, http.StatusBadRequest, "missing github event headers")
		return
	}

	log = log.With(
		slog.String("delivery_id", deliveryID),
		slog.String("event_type", eventType),
	)

	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		log.Warn("failed to read request body", sl.Err(err))
		s.respondError(w, http.StatusBadRequest, "failed to read request body")

		return
	}

	if !s.verifySignature(body, r.Header.Get(headerSignature)) {
		log.Warn("rejected delivery", sl.Err(apperrors.ErrInvalidSignature))
		s.respondError(w, http.StatusUnauthorized, apperrors.ErrInvalidSignature.Error())

		return
	}

	env := domain.Envelope{
		DeliveryID: deliveryID,
		EventType:  eventType,
		Body:       body,
	}

	if err := s.processor.ProcessEvent(r.Context(), env); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to process delivery")
		return
	}

	s.respond(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// verifySignature checks the X-Hub-Signature-256 HMAC with a constant-time
// compare. With no configured secret every payload passes.
func (s *Server) verifySignature(body []byte, header string) bool {
	if len(s.secret) == 0 {
		return true
	}

	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}

	want, err := hex.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)

	return hmac.Equal(mac.Sum(nil), want)
}

// respond is a helper function to encode data to JSON and write it to the
// response.
func (s *Server) respond(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.log.Error("failed to encode response", sl.Err(err))
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, code int, message string) {
	s.respond(w, code, map[string]string{"error": message})
}
