package routes

import (
	controller "equireach/controllers"
	"equireach/middleware"
	"equireach/utils"
	"equireach/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
)

// Services are the long-lived collaborators shared by every request
type Services struct {
	Searcher   utils.ContactSearcher
	Workspaces *utils.WorkspaceRegistry
	Renderer   *utils.MessageRenderer
	Engine     *worker.DispatchEngine
	History    *utils.HistoryStore
}

func SetupAPIRoutes(app *fiber.App, svc *Services) {
	outreachController := controller.NewOutreachController(svc.Searcher, svc.Workspaces, svc.Renderer, utils.NewLogger("outreach"))
	dispatchController := controller.NewDispatchController(svc.Engine, svc.Workspaces, utils.NewLogger("dispatch"))
	historyController := controller.NewHistoryController(svc.History, utils.NewLogger("history"))

	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Contact sourcing and selection
	outreach := api.Group("/outreach")
	outreach.Post("/discover", middleware.DiscoveryRateLimiter(), outreachController.Discover)
	outreach.Post("/import", outreachController.ImportContacts)
	outreach.Get("/contacts", outreachController.GetContacts)
	outreach.Get("/contacts/export", outreachController.ExportContacts)
	outreach.Get("/selection", outreachController.GetSelection)
	outreach.Post("/selection/top", outreachController.SelectTop)
	outreach.Post("/selection/toggle-all", outreachController.ToggleAll)
	outreach.Post("/selection/:id/toggle", outreachController.ToggleSelection)
	outreach.Delete("/selection", outreachController.ClearSelection)
	outreach.Get("/template", outreachController.GetTemplate)
	outreach.Put("/template", outreachController.UpdateTemplate)

	// Dispatch runs
	dispatch := api.Group("/dispatch")
	dispatch.Post("/", dispatchController.StartDispatch)
	dispatch.Get("/status", dispatchController.GetStatus)
	dispatch.Post("/cancel", dispatchController.CancelDispatch)
	dispatch.Get("/progress", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}, websocket.New(dispatchController.HandleProgressWS))

	// Outreach history
	history := api.Group("/history")
	history.Get("/", historyController.GetHistory)
	history.Get("/export", historyController.ExportHistory)
	history.Put("/:seq/status", historyController.UpdateStatus)
}

func SetupRoutes(app *fiber.App, svc *Services) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	SetupAPIRoutes(app, svc)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "Not Found",
			"details": "The requested resource was not found",
		})
	})
}
