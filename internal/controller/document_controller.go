package controller

import (
	"ai-docassist-be/internal/dto"
	"ai-docassist-be/internal/pkg/serverutils"
	"ai-docassist-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDocumentController interface {
	RegisterRoutes(r fiber.Router)
	Summary(ctx *fiber.Ctx) error
	Tutorial(ctx *fiber.Ctx) error
	DeleteDocument(ctx *fiber.Ctx) error
}

type documentController struct {
	summaryService  service.ISummaryService
	guideService    service.IGuideService
	documentService service.IDocumentService
}

func NewDocumentController(
	summaryService service.ISummaryService,
	guideService service.IGuideService,
	documentService service.IDocumentService,
) IDocumentController {
	return &documentController{
		summaryService:  summaryService,
		guideService:    guideService,
		documentService: documentService,
	}
}

func (c *documentController) RegisterRoutes(r fiber.Router) {
	r.Post("/summary", c.Summary)
	r.Post("/tutorial", c.Tutorial)
	r.Delete("/document/:file_id", c.DeleteDocument)
}

func (c *documentController) Summary(ctx *fiber.Ctx) error {
	req := new(dto.SummaryRequest)
	if err := ctx.BodyParser(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.summaryService.Summarize(ctx.Context(), req)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("Success summary", res))
}

func (c *documentController) Tutorial(ctx *fiber.Ctx) error {
	req := new(dto.TutorialRequest)
	if err := ctx.BodyParser(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "invalid request body"))
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, err.Error()))
	}

	res, err := c.guideService.Tutorial(ctx.Context(), req)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("Success tutorial", res))
}

func (c *documentController) DeleteDocument(ctx *fiber.Ctx) error {
	fileID := ctx.Params("file_id")
	if fileID == "" {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "file_id parameter is required"))
	}

	res, err := c.documentService.DeleteDocument(ctx.Context(), fileID)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(serverutils.ErrorResponse(500, err.Error()))
	}
	return ctx.JSON(serverutils.SuccessResponse("Success delete document", res))
}
