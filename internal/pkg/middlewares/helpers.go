package middlewares

import "github.com/gofiber/fiber/v2"

// Chained registers handlers in order so a middleware stack reads top to
// bottom at the call site.
func Chained(app *fiber.App, handlers ...fiber.Handler) {
	for _, h := range handlers {
		app.Use(h)
	}
}
