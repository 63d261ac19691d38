package controller

import (
	"ai-docassist-be/internal/dto"
	"ai-docassist-be/internal/pkg/serverutils"
	"ai-docassist-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IFeedbackController interface {
	RegisterRoutes(r fiber.Router)
	AddFeedback(ctx *fiber.Ctx) error
	GetFeedbacks(ctx *fiber.Ctx) error
}

type feedbackController struct {
	service service.IDocumentService
}

func NewFeedbackController(service service.IDocumentService) IFeedbackController {
	return &feedbackController{service: service}
}

func (c *feedbackController) RegisterRoutes(r fiber.Router) {
	r.Post("/feedback", c.AddFeedback)
	r.Get("/feedback/:file_id", c.GetFeedbacks)
}

func (c *feedbackController) AddFeedback(ctx *fiber.Ctx) error {
	req := new(dto.FeedbackRequest)
	if err := ctx.BodyParser(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.service.AddFeedback(ctx.Context(), req)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("Success add feedback", res))
}

func (c *feedbackController) GetFeedbacks(ctx *fiber.Ctx) error {
	fileID := ctx.Params("file_id")
	if fileID == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "file_id parameter is required"))
	}

	res, err := c.service.GetFeedbacks(ctx.Context(), fileID)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("Success show feedbacks", res))
}
