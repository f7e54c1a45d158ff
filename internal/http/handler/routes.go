package handler

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"

	"mediarelay/internal/config"
	"mediarelay/internal/relay"
	"mediarelay/internal/staging"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app.
// Keep handlers minimal; the pipeline logic lives in staging and relay.
func RegisterRoutes(app *fiber.App, cfg *config.AppConfig, st staging.Staging, svc relay.Service) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	app.Get("/health", Health())

	api := app.Group("/api")
	api.Get("/test", DownstreamProbe(svc))
	api.Post("/process", ProcessUpload(cfg.Upload, st, svc))

	// Accepted alias for the primary endpoint.
	app.Post("/upload", ProcessUpload(cfg.Upload, st, svc))
}

// Health is a liveness probe. It never consults the downstream service.
func Health() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "ok",
			"service":   "backend",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// DownstreamProbe checks whether the downstream processing service answers
// its health endpoint, and relays whatever body it returned.
func DownstreamProbe(svc relay.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		body, err := svc.Health(c.UserContext())
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"ok":    false,
				"error": err.Error(),
			})
		}

		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			payload = string(body)
		}
		return c.JSON(fiber.Map{
			"ok":         true,
			"ai_service": payload,
		})
	}
}
