package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// Health handles GET /health. It has no dependency on queue state.
func Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
