package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	apperrors "github.com/turuturustars/turuturustars-sub001/pkg/errors"
	sharedutils "github.com/turuturustars/turuturustars-sub001/shared/utils"
	"github.com/turuturustars/turuturustars-sub001/v1/models"
	"github.com/turuturustars/turuturustars-sub001/v1/services"
	"github.com/turuturustars/turuturustars-sub001/v1/utils"
)

const maxRequestBodyBytes = 1 << 20

// V1Handler handles the admin API routes
type V1Handler struct {
	actors    *services.ActorService
	lifecycle *services.LifecycleService
	audit     *services.AuditService
}

// NewV1Handler creates a new V1 handler
func NewV1Handler(actors *services.ActorService, lifecycle *services.LifecycleService, audit *services.AuditService) *V1Handler {
	return &V1Handler{actors: actors, lifecycle: lifecycle, audit: audit}
}

// SetupV1Routes configures all V1 API routes
func (h *V1Handler) SetupV1Routes(mux *http.ServeMux) {
	mux.Handle("/api/v1/admin/operations", sharedutils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleOperations)))
	mux.Handle("/api/v1/admin/audit-logs", sharedutils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleAuditLogs)))
}

// handleOperations dispatches one administrative action: POST /api/v1/admin/operations
func (h *V1Handler) handleOperations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	actor, ok := h.resolveActor(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	if err != nil {
		utils.RespondWithAPIError(w, apperrors.ValidationError("INVALID_REQUEST_BODY", "Failed to read request body"))
		return
	}

	action, err := models.DecodeAction(body)
	if err != nil {
		utils.RespondWithAPIError(w, err)
		return
	}

	result, err := h.lifecycle.Execute(r.Context(), actor, action)
	if err != nil {
		slog.Warn("Admin operation failed",
			"action", action.Name(),
			"actorId", actor.UserID(),
			"error", err)
		utils.RespondWithAPIError(w, err)
		return
	}

	utils.RespondWithSuccess(w, result)
}

// handleAuditLogs lists audit entries: GET /api/v1/admin/audit-logs
func (h *V1Handler) handleAuditLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	actor, ok := h.resolveActor(w, r)
	if !ok {
		return
	}
	if !actor.IsElevated() {
		utils.RespondWithAPIError(w, apperrors.ForbiddenError("Insufficient permissions to read audit logs"))
		return
	}

	query := r.URL.Query()
	filter := models.AuditLogFilter{
		Action:   query.Get("action"),
		ActorID:  query.Get("actor_id"),
		EntityID: query.Get("entity_id"),
	}
	var err error
	if filter.Limit, err = intParam(query.Get("limit")); err != nil {
		utils.RespondWithAPIError(w, invalidParam("limit"))
		return
	}
	if filter.Offset, err = intParam(query.Get("offset")); err != nil {
		utils.RespondWithAPIError(w, invalidParam("offset"))
		return
	}
	filter = filter.Normalized()

	logs, total, err := h.audit.List(r.Context(), filter)
	if err != nil {
		utils.RespondWithAPIError(w, err)
		return
	}

	utils.RespondWithSuccess(w, map[string]interface{}{
		"logs":   logs,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// resolveActor loads the caller's roles; it writes the error response itself when resolution fails
func (h *V1Handler) resolveActor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	user, err := utils.GetAuthenticatedUser(r.Context())
	if err != nil {
		utils.RespondWithAPIError(w, apperrors.UnauthorizedError("Invalid or missing authorization"))
		return models.Actor{}, false
	}

	actor, err := h.actors.ResolveActor(r.Context(), user)
	if err != nil {
		utils.RespondWithAPIError(w, err)
		return models.Actor{}, false
	}
	return actor, true
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func invalidParam(name string) error {
	return apperrors.ValidationErrorWithDetails("INVALID_QUERY_PARAM", name+" must be an integer",
		map[string]interface{}{"field": name})
}
