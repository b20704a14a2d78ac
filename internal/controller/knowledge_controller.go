package controller

import (
	"ai-voicechat-be/internal/dto"
	"ai-voicechat-be/internal/pkg/serverutils"
	"ai-voicechat-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IKnowledgeController interface {
	RegisterRoutes(r fiber.Router)
	Ingest(ctx *fiber.Ctx) error
}

type knowledgeController struct {
	ingestService service.IIngestService
}

func NewKnowledgeController(ingestService service.IIngestService) IKnowledgeController {
	return &knowledgeController{
		ingestService: ingestService,
	}
}

func (c *knowledgeController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/knowledge")
	h.Post("/ingest", c.Ingest)
}

// Ingest queues the article; indexing happens in the background.
func (c *knowledgeController) Ingest(ctx *fiber.Ctx) error {
	var req dto.IngestRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.ingestService.Enqueue(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Ingest queued", res))
}
