package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"equireach/config"
	"equireach/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func protectedApp(t *testing.T) *fiber.App {
	t.Helper()
	config.AppConfig.JWTSecret = "middleware-secret"
	t.Cleanup(func() { config.AppConfig.JWTSecret = "" })

	app := fiber.New()
	app.Get("/whoami", Protected(), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("operator").(string))
	})
	return app
}

func TestProtected(t *testing.T) {
	app := protectedApp(t)
	token, err := utils.GenerateOperatorToken("op-1", "middleware-secret", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		target string
		header string
		value  string
		status int
	}{
		{"bearer header", "/whoami", "Authorization", "Bearer " + token, fiber.StatusOK},
		{"cookie", "/whoami", "Cookie", "access_token=" + token, fiber.StatusOK},
		{"query", "/whoami?token=" + token, "", "", fiber.StatusOK},
		{"missing", "/whoami", "", "", fiber.StatusUnauthorized},
		{"malformed header", "/whoami", "Authorization", "Token " + token, fiber.StatusUnauthorized},
		{"bad token", "/whoami", "Authorization", "Bearer nope", fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.target, nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == fiber.StatusOK {
				body, _ := io.ReadAll(resp.Body)
				assert.Equal(t, "op-1", string(body))
			}
		})
	}
}

func TestCORS(t *testing.T) {
	app := fiber.New()
	app.Use(CORS(DefaultCORSConfig([]string{"https://app.example"})))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ping", nil)
		req.Header.Set("Origin", "https://app.example")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, "https://app.example", resp.Header.Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", resp.Header.Get("Access-Control-Allow-Credentials"))
	})

	t.Run("unknown origin", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ping", nil)
		req.Header.Set("Origin", "https://evil.example")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest("OPTIONS", "/ping", nil)
		req.Header.Set("Origin", "https://app.example")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
		assert.Equal(t, "3600", resp.Header.Get("Access-Control-Max-Age"))
	})
}

func TestDiscoveryRateLimiter(t *testing.T) {
	config.AppConfig.RateLimitDiscovery = 2
	config.AppConfig.Redis.Enabled = false
	t.Cleanup(func() { config.AppConfig.RateLimitDiscovery = 0 })

	app := fiber.New()
	app.Post("/discover", func(c *fiber.Ctx) error {
		c.Locals("operator", c.Get("X-Operator"))
		return c.Next()
	}, DiscoveryRateLimiter(), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	call := func(operator string) int {
		req := httptest.NewRequest("POST", "/discover", nil)
		req.Header.Set("X-Operator", operator)
		resp, err := app.Test(req)
		require.NoError(t, err)
		return resp.StatusCode
	}

	assert.Equal(t, fiber.StatusOK, call("op-1"))
	assert.Equal(t, fiber.StatusOK, call("op-1"))
	assert.Equal(t, fiber.StatusTooManyRequests, call("op-1"))
	assert.Equal(t, fiber.StatusOK, call("op-2"))
}
