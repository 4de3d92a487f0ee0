package server

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"github.com/roach88/semlayer/internal/nlu"
	"github.com/roach88/semlayer/internal/semantic"
	"github.com/roach88/semlayer/internal/service"
)

// errorHandler renders every error as {"error", "code", ...}.
//
//	400 malformed intent JSON (INVALID_INTENT)
//	422 any other intent error, or a question outside the vocabulary
//	501 ask/execute without an extractor/warehouse
//	500 anything else
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, body := describe(err)
		if status >= fiber.StatusInternalServerError && status != fiber.StatusNotImplemented {
			logger.Error("request failed", "path", c.Path(), "error", err)
		}
		return c.Status(status).JSON(body)
	}
}

func describe(err error) (int, fiber.Map) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fiber.Map{"error": fe.Message}
	}

	var ie *semantic.IntentError
	if errors.As(err, &ie) {
		body := fiber.Map{"error": ie.Message, "code": ie.Code}
		if ie.Metric != "" {
			body["metric"] = ie.Metric
		}
		if ie.Segment != "" {
			body["segment"] = ie.Segment
		}
		if ie.Column != "" {
			body["column"] = ie.Column
		}
		if len(ie.Fields) > 0 {
			body["fields"] = ie.Fields
		}
		if ie.Code == semantic.CodeInvalidIntent {
			return fiber.StatusBadRequest, body
		}
		return fiber.StatusUnprocessableEntity, body
	}

	if errors.Is(err, nlu.ErrNoMatch) {
		return fiber.StatusUnprocessableEntity, fiber.Map{"error": err.Error(), "code": nlu.CodeNoMatch}
	}
	if errors.Is(err, service.ErrNoExtractor) || errors.Is(err, service.ErrNoWarehouse) {
		return fiber.StatusNotImplemented, fiber.Map{"error": err.Error()}
	}
	return fiber.StatusInternalServerError, fiber.Map{"error": "internal server error"}
}
