package http

import "github.com/gofiber/fiber/v2"

// RegisterRoutes func - Mounts the console API on app
func RegisterRoutes(app *fiber.App, hdl *HTTPHandler) {
	app.Get("/health", hdl.HealthCheck)

	magnolia := app.Group("/v1/api")
	{
		magnolia.Get("/sessions", hdl.ListSessions)
		magnolia.Post("/sessions", hdl.CreateSession)
		magnolia.Get("/sessions/:id", hdl.GetSession)
		magnolia.Delete("/sessions/:id", hdl.DeleteSession)
		magnolia.Put("/sessions/:id/select", hdl.SelectSession)
		magnolia.Post("/sessions/:id/messages", hdl.SendMessage)
		magnolia.Post("/sessions/:id/uploads", hdl.UploadMedia)
		magnolia.Get("/events", hdl.Events)
	}
}

// RegisterLineRoutes func - Mounts the LINE webhook on app
func RegisterLineRoutes(app *fiber.App, hdl *LineWebhookHandler) {
	webhook := app.Group("/webhook")
	{
		webhook.Post("/line", hdl.HandleWebhook)
	}
}
