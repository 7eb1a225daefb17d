package rest

import (
	coreconfig "github.com/AzielCF/az-wrap/core/config"
	domainAttachment "github.com/AzielCF/az-wrap/domains/attachment"
	"github.com/AzielCF/az-wrap/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type Attachment struct {
	Service domainAttachment.IPreviewUsecase
}

func InitRestAttachment(app fiber.Router, service domainAttachment.IPreviewUsecase) Attachment {
	rest := Attachment{Service: service}
	app.Post("/attachments/layout", rest.Layout)
	app.Post("/attachments/render", rest.Render)
	app.Post("/attachments/albums/:group", rest.RenderAlbum)
	app.Post("/attachments/reply", rest.RenderReply)
	app.Get("/attachments/renders/:id", rest.GetRender)
	app.Post("/attachments/renders/:id/click", rest.Click)
	app.Delete("/attachments/renders/:id", rest.Revoke)
	app.Post("/attachments/viewport", rest.Scroll)
	app.Get("/attachments/stats", rest.Stats)
	app.Get("/attachments/settings", rest.Settings)

	return rest
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(utils.ResponseData{
		Status:  fiber.StatusBadRequest,
		Code:    "BAD_REQUEST",
		Message: err.Error(),
	})
}

func (handler *Attachment) Layout(c *fiber.Ctx) error {
	var request domainAttachment.LayoutRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, err)
	}

	response, err := handler.Service.Layout(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Album layout computed",
		Results: response,
	})
}

func (handler *Attachment) Render(c *fiber.Ctx) error {
	var request domainAttachment.RenderRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, err)
	}

	response, err := handler.Service.Render(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Attachment rendered",
		Results: response,
	})
}

func (handler *Attachment) RenderAlbum(c *fiber.Ctx) error {
	var request domainAttachment.AlbumRenderRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&request); err != nil {
			return badRequest(c, err)
		}
	}
	request.GroupID = c.Params("group")

	response, err := handler.Service.RenderAlbum(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Album rendered",
		Results: response,
	})
}

func (handler *Attachment) RenderReply(c *fiber.Ctx) error {
	var request domainAttachment.ReplyRenderRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, err)
	}

	response, err := handler.Service.RenderReply(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Reply rendered",
		Results: response,
	})
}

func (handler *Attachment) GetRender(c *fiber.Ctx) error {
	response, err := handler.Service.GetRender(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Render retrieved",
		Results: response,
	})
}

func (handler *Attachment) Click(c *fiber.Ctx) error {
	response, err := handler.Service.Click(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Click dispatched",
		Results: response,
	})
}

func (handler *Attachment) Revoke(c *fiber.Ctx) error {
	err := handler.Service.Revoke(c.UserContext(), c.Params("id"))
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Render revoked",
	})
}

func (handler *Attachment) Scroll(c *fiber.Ctx) error {
	var request domainAttachment.ScrollRequest
	if err := c.BodyParser(&request); err != nil {
		return badRequest(c, err)
	}

	stats, err := handler.Service.Scroll(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Viewport moved",
		Results: stats,
	})
}

func (handler *Attachment) Stats(c *fiber.Ctx) error {
	stats, err := handler.Service.Stats(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Pipeline stats retrieved",
		Results: stats,
	})
}

func (handler *Attachment) Settings(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Media settings retrieved",
		Results: coreconfig.GetAllSettings(),
	})
}
