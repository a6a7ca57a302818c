package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/review-service/internal/api/dto"
	"github.com/spec-kit/review-service/internal/auth"
	"github.com/spec-kit/review-service/internal/domain"
	"github.com/spec-kit/review-service/internal/service"
	apperrors "github.com/spec-kit/review-service/pkg/util/errorutil"
)

// SubmissionsHandler manages submission endpoints.
type SubmissionsHandler struct {
	service *service.SubmissionService
}

// NewSubmissionsHandler constructs handler.
func NewSubmissionsHandler(submissionService *service.SubmissionService) *SubmissionsHandler {
	return &SubmissionsHandler{service: submissionService}
}

// CreateSubmission POST /submissions.
func (h *SubmissionsHandler) CreateSubmission(c *fiber.Ctx) error {
	var req dto.CreateSubmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	sub, err := h.service.Create(c.UserContext(), auth.SessionFromContext(c), req.Name, req.Description)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewSubmissionSummary(sub)})
}

// ListSubmissions GET /submissions.
func (h *SubmissionsHandler) ListSubmissions(c *fiber.Ctx) error {
	filter, err := parseSubmissionQuery(c)
	if err != nil {
		return err
	}
	views, err := h.service.List(c.UserContext(), auth.SessionFromContext(c), filter)
	if err != nil {
		return err
	}
	items := make([]dto.SubmissionDetail, 0, len(views))
	for i := range views {
		items = append(items, dto.NewSubmissionDetail(&views[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetSubmission GET /submissions/:id.
func (h *SubmissionsHandler) GetSubmission(c *fiber.Ctx) error {
	view, err := h.service.Get(c.UserContext(), auth.SessionFromContext(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSubmissionDetail(view)})
}

// EditSubmission PATCH /submissions/:id.
func (h *SubmissionsHandler) EditSubmission(c *fiber.Ctx) error {
	var req dto.EditSubmissionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	sub, err := h.service.Edit(c.UserContext(), auth.SessionFromContext(c), c.Params("id"), req.Version, req.Name, req.Description)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSubmissionSummary(sub)})
}

// Transition POST /submissions/:id/transitions.
func (h *SubmissionsHandler) Transition(c *fiber.Ctx) error {
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if strings.TrimSpace(req.Event) == "" {
		return apperrors.NewValidationError("event required", nil)
	}
	sub, err := h.service.Transition(c.UserContext(), auth.SessionFromContext(c), c.Params("id"), req.Version, strings.TrimSpace(req.Event))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSubmissionSummary(sub)})
}

// DeleteSubmission DELETE /submissions/:id. An optional ?version= guards against stale deletes.
func (h *SubmissionsHandler) DeleteSubmission(c *fiber.Ctx) error {
	var version *int64
	if raw := c.Query("version"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return apperrors.NewValidationError("invalid version", map[string]any{"version": raw})
		}
		version = &parsed
	}
	if err := h.service.Delete(c.UserContext(), auth.SessionFromContext(c), c.Params("id"), version); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// History GET /submissions/:id/history.
func (h *SubmissionsHandler) History(c *fiber.Ctx) error {
	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 50)
	if page < 1 {
		page = 1
	}
	entries, err := h.service.History(c.UserContext(), auth.SessionFromContext(c), c.Params("id"), pageSize, (page-1)*pageSize)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryEntries(entries)})
}

func parseSubmissionQuery(c *fiber.Ctx) (service.SubmissionListFilter, error) {
	filter := service.SubmissionListFilter{}
	if statusStr := c.Query("status"); statusStr != "" {
		for _, part := range strings.Split(statusStr, ",") {
			status := domain.SubmissionStatus(strings.ToUpper(strings.TrimSpace(part)))
			if !status.Valid() {
				return filter, apperrors.NewValidationError("invalid status", map[string]any{"status": part})
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		filter.SearchTerm = &q
	}
	filter.UpdatedFrom = parseTime(c.Query("updated_from"))
	filter.UpdatedTo = parseTime(c.Query("updated_to"))

	page := parseInt(c.Query("page"), 1)
	pageSize := parseInt(c.Query("page_size"), 20)
	if page < 1 {
		page = 1
	}
	filter.Offset = (page - 1) * pageSize
	filter.Limit = pageSize
	return filter, nil
}

func parseTime(val string) *time.Time {
	if val == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return nil
	}
	return &t
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return def
	}
	return parsed
}
