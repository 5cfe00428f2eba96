package server

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/corvana/control-plane/events-ingest/models"
	"github.com/corvana/control-plane/events-ingest/processors/webhook_processor"
	"github.com/corvana/control-plane/events-ingest/utils"
)

const (
	HeaderKid       = "X-Product-Kid"
	HeaderSignature = "X-Product-Signature"
	HeaderTimestamp = "X-Product-Timestamp"
)

// Server is the HTTP edge. It only extracts headers and the raw body,
// hands them to the processor and renders the verdict; every decision
// lives in the pipeline.
type Server struct {
	app       *fiber.App
	processor *webhook_processor.WebhookProcessor
	logger    *slog.Logger
}

func NewServer(processor *webhook_processor.WebhookProcessor, logger *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "events-ingest",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	server := &Server{
		app:       app,
		processor: processor,
		logger:    logger,
	}

	app.Post("/webhooks/events", server.handleWebhook)
	app.Get("/health", server.handleHealth)

	return server
}

func (server *Server) Listen(address string) error {
	return server.app.Listen(address)
}

func (server *Server) Shutdown() error {
	return server.app.Shutdown()
}

func (server *Server) handleWebhook(c *fiber.Ctx) error {
	headers := webhook_processor.Headers{
		Kid:       c.Get(HeaderKid),
		Signature: c.Get(HeaderSignature),
		Timestamp: c.Get(HeaderTimestamp),
	}

	result := server.processor.ProcessWebhook(c.UserContext(), headers, c.Body())
	if result.Failure() {
		return renderFailure(c, result)
	}

	outcome := result.Value()
	if outcome.Duplicate {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"success": true,
			"message": "Event already processed",
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success":   true,
		"eventId":   outcome.EventID,
		"eventType": outcome.EventType,
	})
}

func (server *Server) handleHealth(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status": "ok",
	})
}

// renderFailure maps the pipeline failure taxonomy onto statuses: auth
// rejections are 401 with the reason code only, validation rejections are
// 400 with field details, anything else is an opaque 500 the sender is
// expected to retry.
func renderFailure(c *fiber.Ctx, result utils.Result[*webhook_processor.ProcessingOutcome]) error {
	var authErr *webhook_processor.AuthError
	if errors.As(result.Error(), &authErr) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"success": false,
			"error":   authErr.Reason,
		})
	}

	var validationErr *models.ValidationError
	if errors.As(result.Error(), &validationErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   validationErr.Message,
			"details": validationErr.Fields,
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"success": false,
		"error":   "internal_error",
	})
}
