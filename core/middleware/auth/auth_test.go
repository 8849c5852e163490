package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupApp(cfg Config) *fiber.App {
	app := fiber.New()
	app.Use(New(cfg))
	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	app.Get("/sync/plan", func(c *fiber.Ctx) error { return c.SendString("plan") })
	return app
}

func TestAuth(t *testing.T) {
	app := setupApp(Config{
		ApiKey: "secret",
		Next:   func(c *fiber.Ctx) bool { return c.Path() == "/health" },
	})

	tests := []struct {
		name string
		path string
		key  string
		want int
	}{
		{name: "Valid Key", path: "/sync/plan", key: "secret", want: 200},
		{name: "Missing Key", path: "/sync/plan", want: 401},
		{name: "Wrong Key", path: "/sync/plan", key: "nope", want: 401},
		{name: "Skipped Path", path: "/health", want: 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.key != "" {
				req.Header.Set(DefaultHeader, tt.key)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}
}

func TestAuth_EmptyKeyDisablesCheck(t *testing.T) {
	resp, err := setupApp(Config{}).Test(httptest.NewRequest("GET", "/sync/plan", nil))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
}
