package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-engine/internal/api/dto"
	"github.com/spec-kit/workflow-engine/internal/auth"
	"github.com/spec-kit/workflow-engine/internal/engine"
	"github.com/spec-kit/workflow-engine/internal/service"
	apperrors "github.com/spec-kit/workflow-engine/pkg/util"
)

// ExecutionsHandler exposes transition execution and history endpoints.
type ExecutionsHandler struct {
	executor *engine.Executor
	history  *service.HistoryService
}

// NewExecutionsHandler constructs handler.
func NewExecutionsHandler(executor *engine.Executor, history *service.HistoryService) *ExecutionsHandler {
	return &ExecutionsHandler{executor: executor, history: history}
}

// ListAvailable GET /tickets/:id/transitions.
func (h *ExecutionsHandler) ListAvailable(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	transitions, err := h.executor.ListAvailable(c.Context(), c.Params("id"), principal.User())
	if err != nil {
		return err
	}
	items := make([]dto.AvailableTransition, 0, len(transitions))
	for i := range transitions {
		items = append(items, dto.ToAvailableTransition(&transitions[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Execute POST /tickets/:id/transitions/execute.
func (h *ExecutionsHandler) Execute(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.ExecuteTransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.TransitionID == "" {
		return apperrors.NewValidationError("transition_id required", nil)
	}

	entry, err := h.executor.Execute(c.Context(), c.Params("id"), req.TransitionID, principal.User(), engine.ExecuteOptions{
		Comment:    req.Comment,
		AssigneeID: req.AssigneeID,
		Context:    req.Context,
		Metadata:   req.Metadata,
	})
	if err != nil {
		if entry != nil {
			domainErr := apperrors.ToDomainError(err)
			return c.Status(domainErr.HTTPStatus).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    domainErr.Code,
					"message": domainErr.Message,
				},
				"data": dto.ToExecutionResponse(entry),
			})
		}
		return err
	}
	return c.JSON(fiber.Map{"data": dto.ToExecutionResponse(entry)})
}

// History GET /tickets/:id/history.
func (h *ExecutionsHandler) History(c *fiber.Ctx) error {
	if _, ok := auth.PrincipalFromContext(c); !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	page := parseIntQuery(c, "page", 1)
	limit := parseIntQuery(c, "limit", 20)
	includeDetails := c.Query("include_details") == "true"

	entries, total, err := h.history.List(c.Context(), c.Params("id"), page, limit, includeDetails)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.HistoryPage{
		Items: entries,
		Page:  page,
		Limit: limit,
		Total: total,
	}})
}

func parseIntQuery(c *fiber.Ctx, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
