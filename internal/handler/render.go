package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/videowizard/render-api/internal/model"
	"github.com/videowizard/render-api/internal/queue"
	"github.com/videowizard/render-api/pkg/response"
)

// RenderHandler maps the render HTTP surface onto queue operations. It is a
// thin facade: request validation happens here, everything else is the
// queue's business.
type RenderHandler struct {
	queue     *queue.Queue
	validator *validator.Validate
}

func NewRenderHandler(q *queue.Queue, v *validator.Validate) *RenderHandler {
	return &RenderHandler{
		queue:     q,
		validator: v,
	}
}

// Create handles POST /renders. The job id is returned immediately; clients
// discover progress and failures by polling.
func (h *RenderHandler) Create(c *fiber.Ctx) error {
	var req model.RenderRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if req.CompositionID == "" {
		return response.ValidationError(c, "compositionId is required and must be a string", nil)
	}
	if req.InputProps == nil {
		return response.ValidationError(c, "inputProps is required and must be an object", nil)
	}
	if req.InputProps.VideoURL == "" {
		return response.ValidationError(c, "inputProps.videoUrl is required and must be a string", nil)
	}
	if req.InputProps.Subtitles == nil {
		return response.ValidationError(c, "inputProps.subtitles is required and must be an array", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	jobID := h.queue.CreateJob(req)

	return response.OK(c, model.CreateRenderResponse{JobID: jobID})
}

// Get handles GET /renders/:jobId and returns the full job snapshot.
func (h *RenderHandler) Get(c *fiber.Ctx) error {
	jobID := c.Params("jobId")

	job, ok := h.queue.Get(jobID)
	if !ok {
		return response.NotFound(c, "Job not found")
	}

	return response.OK(c, job)
}

// Cancel handles DELETE /renders/:jobId.
func (h *RenderHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")

	err := h.queue.Cancel(jobID)
	switch {
	case errors.Is(err, queue.ErrJobNotFound):
		return response.NotFound(c, "Job not found")
	case errors.Is(err, queue.ErrJobNotCancellable):
		return response.ValidationError(c, "Job is not cancellable", nil)
	case err != nil:
		return response.ServiceError(c, err.Error())
	}

	return response.OK(c, model.CancelRenderResponse{Message: "Job cancelled", JobID: jobID})
}

// List handles GET /renders and returns snapshots of all tracked jobs.
func (h *RenderHandler) List(c *fiber.Ctx) error {
	return response.OK(c, h.queue.List())
}

func formatValidationErrors(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fe.Namespace()+": failed "+fe.Tag())
	}
	return details
}
