// Package fiber exposes the auth engine over HTTP using Fiber v3.
package fiber

import (
	"github.com/gofiber/fiber/v3"

	"github.com/torii-dev/torii/core"
)

type Adapter struct {
	app  *fiber.App
	auth core.AuthProvider
}

var _ core.HTTPAdapter = (*Adapter)(nil)

func New(app *fiber.App) *Adapter {
	return &Adapter{app: app}
}

// RegisterRoutes mounts every auth endpoint under basePath.
func (a *Adapter) RegisterRoutes(handler core.AuthProvider, basePath string) error {
	a.auth = handler
	api := a.app.Group(basePath)

	// Public routes
	api.Post("/sign-up", a.signUp)
	api.Post("/sign-in", a.signIn)
	api.Post("/verify-email", a.verifyEmail)
	api.Post("/forgot-password", a.forgotPassword)
	api.Get("/reset-password", a.validateResetToken)
	api.Post("/reset-password", a.resetPassword)
	api.Get("/oauth/:provider/authorize", a.oauthAuthorize)
	api.Get("/oauth/:provider/callback", a.oauthCallback)

	// Protected routes
	protected := api.Group("", a.RequireAuth)
	protected.Post("/sign-out", a.signOut)
	protected.Get("/session", a.session)
	protected.Post("/send-verification-email", a.sendVerificationEmail)
	protected.Get("/me", a.getMember)
	protected.Patch("/me", a.updateProfile)
	protected.Post("/me/password", a.setPassword)
	protected.Put("/me/password", a.changePassword)
	protected.Delete("/me/connections/:provider", a.disconnectOAuth)
	protected.Get("/me/connections/:provider/link", a.linkOAuth)
	protected.Post("/api-keys", a.createAPIKey)
	protected.Get("/api-keys", a.listAPIKeys)
	protected.Delete("/api-keys/:id", a.deleteAPIKey)

	return nil
}
