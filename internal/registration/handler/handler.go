package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"weict/internal/registration/confirmation"
	"weict/internal/registration/models"
	dErrors "weict/pkg/domain-errors"
	"weict/pkg/platform/httputil"
	"weict/pkg/requestcontext"
)

// Service defines the interface for registration operations.
type Service interface {
	Register(ctx context.Context, sub models.Submission, tmpl confirmation.Template) (*models.Registration, error)
}

// Handler serves one registration route under its Policy.
type Handler struct {
	service Service
	policy  Policy
	logger  *slog.Logger
}

// New constructs a registration handler for policy.
func New(service Service, policy Policy, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		policy:  policy,
		logger:  logger,
	}
}

// Policy returns the policy the handler was built with.
func (h *Handler) Policy() Policy {
	return h.policy
}

// Register mounts the route on r. Extra middleware (rate limiting) runs after
// CORS so preflights are never counted.
func (h *Handler) Register(r chi.Router, middlewares ...func(http.Handler) http.Handler) {
	r.Route(h.policy.Path, func(r chi.Router) {
		r.Use(cors.Handler(h.policy.CORS))
		r.Use(h.advertiseCORS)
		r.Use(h.withRoute)
		r.Use(middlewares...)
		r.Options("/", h.handlePreflight)
		r.Post("/", h.handleSubmit)
		r.MethodNotAllowed(h.handleMethodNotAllowed)
	})
}

// advertiseCORS sets the policy's fixed CORS headers on every response,
// whether or not the request carried an Origin. It overrides the per-request
// values go-chi/cors wrote.
func (h *Handler) advertiseCORS(next http.Handler) http.Handler {
	c := h.policy.CORS
	origin := ""
	if len(c.AllowedOrigins) > 0 {
		origin = c.AllowedOrigins[0]
	}
	methods := strings.Join(c.AllowedMethods, ", ")
	headers := strings.Join(c.AllowedHeaders, ", ")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", origin)
		hdr.Set("Access-Control-Allow-Methods", methods)
		hdr.Set("Access-Control-Allow-Headers", headers)
		if c.AllowCredentials {
			hdr.Set("Access-Control-Allow-Credentials", "true")
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) withRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithRoute(r.Context(), h.policy.Name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// handlePreflight answers every OPTIONS request with an empty 200.
func (h *Handler) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	if h.policy.PlainTextMethodNotAllowed {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte("Method Not Allowed"))
		return
	}
	httputil.WriteJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method Not Allowed"})
}

// handleSubmit handles POST registrations.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := httputil.DecodeJSON[models.Submission](r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid registration body",
			"request_id", requestID,
			"route", h.policy.Name,
			"error", err,
		)
		h.writeBadRequest(w, models.ErrMissingFields)
		return
	}

	reg, err := h.service.Register(ctx, *req, h.policy.Template)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			msg := models.ErrMissingFields
			if de, ok := dErrors.As(err); ok {
				msg = de.Message
			}
			h.writeBadRequest(w, msg)
			return
		}
		h.logger.ErrorContext(ctx, "registration failed",
			"request_id", requestID,
			"route", h.policy.Name,
			"stored", reg != nil,
			"error", err,
		)
		h.writeServerError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, SuccessResponse{Message: h.policy.SuccessMessage})
}

func (h *Handler) writeBadRequest(w http.ResponseWriter, msg string) {
	httputil.WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg})
}

func (h *Handler) writeServerError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: h.policy.ServerErrorMessage}
	if h.policy.ExposeErrorDetails {
		resp.Details = err.Error()
	}
	httputil.WriteJSON(w, http.StatusInternalServerError, resp)
}
