package controller

import (
	"io"

	"ai-voicechat-be/internal/constant"
	"ai-voicechat-be/internal/dto"
	"ai-voicechat-be/internal/pkg/serverutils"
	"ai-voicechat-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// maxAudioBytes bounds a single uploaded recording.
const maxAudioBytes = 8 * 1024 * 1024

type IChatController interface {
	RegisterRoutes(r fiber.Router)
	CreateSession(ctx *fiber.Ctx) error
	ListSessions(ctx *fiber.Ctx) error
	GetHistory(ctx *fiber.Ctx) error
	SendChat(ctx *fiber.Ctx) error
	SendAudio(ctx *fiber.Ctx) error
	RetryTurn(ctx *fiber.Ctx) error
}

type chatController struct {
	chatService service.IChatService
}

func NewChatController(chatService service.IChatService) IChatController {
	return &chatController{
		chatService: chatService,
	}
}

func (c *chatController) RegisterRoutes(r fiber.Router) {
	r.Post("/session", c.CreateSession)
	r.Get("/sessions", c.ListSessions)
	r.Get("/session/:id/history", c.GetHistory)

	h := r.Group("/chat")
	h.Post("", c.SendChat)
	h.Post("/audio", c.SendAudio)
	h.Post("/retry", c.RetryTurn)
}

func (c *chatController) CreateSession(ctx *fiber.Ctx) error {
	res, err := c.chatService.CreateSession(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Session created", res))
}

func (c *chatController) ListSessions(ctx *fiber.Ctx) error {
	res, err := c.chatService.ListSessions(ctx.UserContext())
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Sessions", res))
}

func (c *chatController) GetHistory(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid session id")
	}

	res, err := c.chatService.GetHistory(ctx.UserContext(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Chat history", res))
}

func (c *chatController) SendChat(ctx *fiber.Ctx) error {
	var req dto.SendChatRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.SendChat(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Answer", res))
}

func (c *chatController) SendAudio(ctx *fiber.Ctx) error {
	sessionId, err := uuid.Parse(ctx.FormValue("session_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid session id")
	}
	req := dto.SendAudioRequest{
		SessionId: sessionId,
		Language:  ctx.FormValue("language"),
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	file, err := ctx.FormFile(constant.AudioFormField)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Audio file is required")
	}
	if file.Size > maxAudioBytes {
		return fiber.NewError(fiber.StatusRequestEntityTooLarge, "Audio file is too large")
	}

	f, err := file.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	audio, err := io.ReadAll(f)
	if err != nil {
		return err
	}
	if len(audio) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "Audio file is empty")
	}

	res, err := c.chatService.SendAudio(ctx.UserContext(), &req, audio, file.Filename)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Answer", res))
}

func (c *chatController) RetryTurn(ctx *fiber.Ctx) error {
	var req dto.RetryTurnRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.chatService.RetryTurn(ctx.UserContext(), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Answer stored", res))
}
