package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/workflow-engine/internal/api/dto"
	"github.com/spec-kit/workflow-engine/internal/domain"
	"github.com/spec-kit/workflow-engine/internal/service"
	apperrors "github.com/spec-kit/workflow-engine/pkg/util"
)

// DefinitionsHandler manages admin endpoints for workflow definitions.
type DefinitionsHandler struct {
	definitions *service.DefinitionService
}

// NewDefinitionsHandler constructs handler.
func NewDefinitionsHandler(definitions *service.DefinitionService) *DefinitionsHandler {
	return &DefinitionsHandler{definitions: definitions}
}

// ListWorkflowTypes GET /admin/workflow-types.
func (h *DefinitionsHandler) ListWorkflowTypes(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.definitions.ListWorkflowTypes()})
}

// CreateWorkflowType POST /admin/workflow-types.
func (h *DefinitionsHandler) CreateWorkflowType(c *fiber.Ctx) error {
	var req dto.WorkflowTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Name == "" {
		return apperrors.NewValidationError("name required", nil)
	}
	created, err := h.definitions.CreateWorkflowType(c.Context(), req.ToDomain())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": created})
}

// UpdateWorkflowType PUT /admin/workflow-types/:id.
func (h *DefinitionsHandler) UpdateWorkflowType(c *fiber.Ctx) error {
	var req dto.WorkflowTypeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	updated, err := h.definitions.UpdateWorkflowType(c.Context(), c.Params("id"), req.ToDomain())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": updated})
}

// DeleteWorkflowType DELETE /admin/workflow-types/:id.
func (h *DefinitionsHandler) DeleteWorkflowType(c *fiber.Ctx) error {
	if err := h.definitions.DeleteWorkflowType(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListStatuses GET /admin/workflow-types/:id/statuses.
func (h *DefinitionsHandler) ListStatuses(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": h.definitions.ListStatuses(c.Params("id"))})
}

// CreateStatus POST /admin/statuses.
func (h *DefinitionsHandler) CreateStatus(c *fiber.Ctx) error {
	var req dto.StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.WorkflowTypeID == "" || req.Name == "" {
		return apperrors.NewValidationError("workflow_type_id and name required", nil)
	}
	created, err := h.definitions.CreateStatus(c.Context(), req.ToDomain())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": created})
}

// UpdateStatus PUT /admin/statuses/:id.
func (h *DefinitionsHandler) UpdateStatus(c *fiber.Ctx) error {
	var req dto.StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	updated, err := h.definitions.UpdateStatus(c.Context(), c.Params("id"), req.ToDomain())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": updated})
}

// DeleteStatus DELETE /admin/statuses/:id.
func (h *DefinitionsHandler) DeleteStatus(c *fiber.Ctx) error {
	if err := h.definitions.DeleteStatus(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ListTransitions GET /admin/workflow-types/:id/transitions.
func (h *DefinitionsHandler) ListTransitions(c *fiber.Ctx) error {
	transitions := h.definitions.ListTransitions(c.Params("id"))
	items := make([]dto.TransitionSummary, 0, len(transitions))
	for i := range transitions {
		items = append(items, dto.TransitionToSummary(&transitions[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetTransition GET /admin/transitions/:id.
func (h *DefinitionsHandler) GetTransition(c *fiber.Ctx) error {
	transition, err := h.definitions.GetTransition(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": transition})
}

// CreateTransition POST /admin/transitions.
func (h *DefinitionsHandler) CreateTransition(c *fiber.Ctx) error {
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.WorkflowTypeID == "" || req.Name == "" || req.ToStatusID == "" {
		return apperrors.NewValidationError("workflow_type_id, name, to_status_id required", nil)
	}
	created, err := h.definitions.CreateTransition(c.Context(), req.ToDomain())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": created})
}

// UpdateTransition PUT /admin/transitions/:id.
func (h *DefinitionsHandler) UpdateTransition(c *fiber.Ctx) error {
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	updated, err := h.definitions.UpdateTransition(c.Context(), c.Params("id"), req.ToDomain())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": updated})
}

// DeleteTransition DELETE /admin/transitions/:id.
func (h *DefinitionsHandler) DeleteTransition(c *fiber.Ctx) error {
	if err := h.definitions.DeleteTransition(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// ExportDefinition GET /admin/workflow-types/:id/export.
func (h *DefinitionsHandler) ExportDefinition(c *fiber.Ctx) error {
	def, err := h.definitions.Export(c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(def)
}

// ImportDefinition POST /admin/workflow-types/import.
func (h *DefinitionsHandler) ImportDefinition(c *fiber.Ctx) error {
	var def domain.WorkflowDefinition
	if err := c.BodyParser(&def); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	imported, err := h.definitions.Import(c.Context(), def)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": imported})
}
