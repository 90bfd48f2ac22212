// Package handler wires passive authentication endpoints to the verification
// service.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"veripass/internal/transport/http/shared"
	"veripass/internal/verification"
	id "veripass/pkg/domain"
	dErrors "veripass/pkg/domain-errors"
	"veripass/pkg/requestcontext"
)

// Service defines the interface for verification operations.
type Service interface {
	Verify(ctx context.Context, req verification.VerifyRequest) (*verification.Session, error)
}

// Handler wires verification endpoints to the verification service.
type Handler struct {
	service Service
	store   verification.SessionStore
	logger  *slog.Logger
}

// New constructs a verification handler with its dependencies.
func New(service Service, store verification.SessionStore, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		store:   store,
		logger:  logger,
	}
}

// Register mounts verification endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/verifications", h.HandleVerify)
	r.Get("/v1/verifications/{sessionID}", h.HandleGetSession)
	r.Get("/v1/verifications/{sessionID}/audit", h.HandleGetAuditLog)
}

// HandleVerify handles POST /v1/verifications requests.
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid verification request body",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(ctx, "verification request rejected",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	metadata := verification.RequestMetadata{
		ClientIP:    requestcontext.ClientIP(ctx),
		UserAgent:   requestcontext.UserAgent(ctx),
		RequesterID: r.Header.Get("X-Requester-ID"),
	}

	session, err := h.service.Verify(ctx, req.ToDomain(metadata))
	if err != nil {
		h.logger.WarnContext(ctx, "verification request failed construction",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.Wrap(dErrors.CodeBadRequest, err.Error(), err))
		return
	}

	h.logger.InfoContext(ctx, "verification completed",
		"request_id", requestID,
		"session_id", session.ID(),
		"status", session.Status(),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	shared.WriteJSON(w, http.StatusOK, FromSession(session))
}

// HandleGetSession handles GET /v1/verifications/{sessionID} requests.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.findSession(w, r)
	if !ok {
		return
	}
	shared.WriteJSON(w, http.StatusOK, FromSession(session))
}

// HandleGetAuditLog handles GET /v1/verifications/{sessionID}/audit requests.
func (h *Handler) HandleGetAuditLog(w http.ResponseWriter, r *http.Request) {
	session, ok := h.findSession(w, r)
	if !ok {
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"session_id": session.ID().String(),
		"entries":    FromAuditLog(session.AuditLog()),
	})
}

func (h *Handler) findSession(w http.ResponseWriter, r *http.Request) (*verification.Session, bool) {
	ctx := r.Context()

	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid session id"))
		return nil, false
	}

	session, err := h.store.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, verification.ErrSessionNotFound) {
			shared.WriteError(w, dErrors.New(dErrors.CodeNotFound, "verification session not found"))
			return nil, false
		}
		h.logger.ErrorContext(ctx, "failed to load verification session",
			"request_id", requestcontext.RequestID(ctx),
			"session_id", sessionID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "failed to load session"))
		return nil, false
	}
	return session, true
}
