package serverutils

import (
	"context"
	"errors"

	"ai-voicechat-be/pkg/rag/pipeline"

	"github.com/gofiber/fiber/v2"
)

// StatusFor maps a turn or request error to its HTTP status.
func StatusFor(err error) int {
	var fe *fiber.Error
	var ve *ValidationError
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.As(err, &ve), errors.Is(err, pipeline.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, pipeline.ErrSessionNotFound), errors.Is(err, pipeline.ErrUnknownRetryKey):
		return fiber.StatusNotFound
	case errors.Is(err, pipeline.ErrTranscription), errors.Is(err, pipeline.ErrTranslation):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrRetrieval), errors.Is(err, pipeline.ErrGeneration):
		if errors.Is(err, context.DeadlineExceeded) {
			return fiber.StatusGatewayTimeout
		}
		return fiber.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware renders errors returned by downstream handlers
// as ErrorBody JSON.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		code := StatusFor(err)
		body := ErrorResponse(code, err.Error())

		var ve *ValidationError
		if errors.As(err, &ve) {
			body.Message = "Invalid request"
			body.Errors = ve.Fields
		}
		if code == fiber.StatusInternalServerError {
			body.Message = "Internal server error"
		}
		return ctx.Status(code).JSON(body)
	}
}
