package fiber

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"github.com/torii-dev/torii/core"
)

func (a *Adapter) signUp(c fiber.Ctx) error {
	var input core.SignUpInput
	if err := c.Bind().Body(&input); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := a.auth.SignUp(input, c.IP(), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(result)
}

func (a *Adapter) signIn(c fiber.Ctx) error {
	var input core.SignInInput
	if err := c.Bind().Body(&input); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := a.auth.SignIn(input, c.IP(), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusOK).JSON(result)
}

func (a *Adapter) signOut(c fiber.Ctx) error {
	if err := a.auth.SignOut(localToken(c)); err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusOK).JSON(map[string]string{
		"message": "signed out successfully",
	})
}

func (a *Adapter) session(c fiber.Ctx) error {
	data, err := a.auth.GetSession(localToken(c))
	if err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusOK).JSON(data)
}

func (a *Adapter) sendVerificationEmail(c fiber.Ctx) error {
	if err := a.auth.SendVerificationEmail(localMemberID(c)); err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusAccepted).JSON(map[string]string{
		"message": "verification email sent",
	})
}

func (a *Adapter) verifyEmail(c fiber.Ctx) error {
	var input struct {
		Token string `json:"token"`
	}
	if err := c.Bind().Body(&input); err != nil {
		return badRequest(c, "invalid request body")
	}

	member, err := a.auth.VerifyEmail(input.Token)
	if err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusOK).JSON(member)
}

func (a *Adapter) forgotPassword(c fiber.Ctx) error {
	var input struct {
		Email string `json:"email"`
	}
	if err := c.Bind().Body(&input); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := a.auth.RequestPasswordReset(input.Email); err != nil {
		return handleAuthError(c, err)
	}
	// Same response whether or not the email exists.
	return c.Status(http.StatusAccepted).JSON(map[string]string{
		"message": "if the address exists, a reset email was sent",
	})
}

func (a *Adapter) validateResetToken(c fiber.Ctx) error {
	info, err := a.auth.ValidateResetToken(c.Query("token"))
	if err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusOK).JSON(info)
}

func (a *Adapter) resetPassword(c fiber.Ctx) error {
	var input struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}
	if err := c.Bind().Body(&input); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := a.auth.ResetPassword(input.Token, input.Password); err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusOK).JSON(map[string]string{
		"message": "password reset successfully",
	})
}

func (a *Adapter) oauthAuthorize(c fiber.Ctx) error {
	provider, err := core.ParseProvider(c.Params("provider"))
	if err != nil {
		return handleAuthError(c, err)
	}

	url, err := a.auth.AuthorizationURL(provider, c.Query("state"))
	if err != nil {
		return handleAuthError(c, err)
	}
	return c.Redirect().Status(http.StatusFound).To(url)
}

func (a *Adapter) oauthCallback(c fiber.Ctx) error {
	provider, err := core.ParseProvider(c.Params("provider"))
	if err != nil {
		return handleAuthError(c, err)
	}
	code := c.Query("code")
	if code == "" {
		return badRequest(c, "missing code")
	}

	result, err := a.auth.HandleOAuthCallback(c.Context(), provider, code, c.IP(), c.Get(fiber.HeaderUserAgent))
	if err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusOK).JSON(result)
}

func (a *Adapter) linkOAuth(c fiber.Ctx) error {
	provider, err := core.ParseProvider(c.Params("provider"))
	if err != nil {
		return handleAuthError(c, err)
	}
	code := c.Query("code")
	if code == "" {
		return badRequest(c, "missing code")
	}

	member, err := a.auth.HandleLinkCallback(c.Context(), localMemberID(c), provider, code)
	if err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusOK).JSON(member)
}

func (a *Adapter) getMember(c fiber.Ctx) error {
	member, err := a.auth.GetMember(localMemberID(c))
	if err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusOK).JSON(member)
}

func (a *Adapter) updateProfile(c fiber.Ctx) error {
	var input struct {
		Nickname *string `json:"nickname"`
		Image    *string `json:"image"`
	}
	if err := c.Bind().Body(&input); err != nil {
		return badRequest(c, "invalid request body")
	}

	member, err := a.auth.UpdateProfile(localMemberID(c), input.Nickname, input.Image)
	if err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusOK).JSON(member)
}

func (a *Adapter) setPassword(c fiber.Ctx) error {
	var input struct {
		Password string `json:"password"`
	}
	if err := c.Bind().Body(&input); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := a.auth.SetPassword(localMemberID(c), input.Password); err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusOK).JSON(map[string]string{
		"message": "password set successfully",
	})
}

func (a *Adapter) changePassword(c fiber.Ctx) error {
	var input struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := c.Bind().Body(&input); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := a.auth.ChangePassword(localMemberID(c), input.CurrentPassword, input.NewPassword); err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusOK).JSON(map[string]string{
		"message": "password changed successfully",
	})
}

func (a *Adapter) disconnectOAuth(c fiber.Ctx) error {
	provider, err := core.ParseProvider(c.Params("provider"))
	if err != nil {
		return handleAuthError(c, err)
	}

	if err := a.auth.DisconnectOAuth(localMemberID(c), provider); err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusOK).JSON(map[string]string{
		"message": "provider disconnected",
	})
}

func (a *Adapter) createAPIKey(c fiber.Ctx) error {
	var input struct {
		Name string `json:"name"`
	}
	if err := c.Bind().Body(&input); err != nil {
		return badRequest(c, "invalid request body")
	}

	result, err := a.auth.CreateAPIKey(localMemberID(c), input.Name, c.IP())
	if err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(result)
}

func (a *Adapter) listAPIKeys(c fiber.Ctx) error {
	keys, err := a.auth.ListAPIKeys(localMemberID(c))
	if err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusOK).JSON(keys)
}

func (a *Adapter) deleteAPIKey(c fiber.Ctx) error {
	if err := a.auth.DeleteAPIKey(localMemberID(c), c.Params("id")); err != nil {
		return handleAuthError(c, err)
	}
	return c.Status(http.StatusOK).JSON(map[string]string{
		"message": "api key deleted",
	})
}

// extractToken pulls the bearer token from the Authorization header, falling
// back to the auth cookie.
func extractToken(c fiber.Ctx) string {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return c.Cookies("auth_token")
}

func badRequest(c fiber.Ctx, message string) error {
	return c.Status(http.StatusBadRequest).JSON(map[string]string{
		"error": message,
	})
}

// handleAuthError maps engine errors to HTTP responses.
func handleAuthError(c fiber.Ctx, err error) error {
	status := mapErrorToStatus(err)

	body := map[string]any{"error": err.Error()}
	var cooldown *core.CooldownError
	if errors.As(err, &cooldown) {
		body["retryAfterSeconds"] = cooldown.RemainingSeconds
	}
	return c.Status(status).JSON(body)
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrInvalidCredentials),
		errors.Is(err, core.ErrInvalidToken),
		errors.Is(err, core.ErrSessionExpired),
		errors.Is(err, core.ErrSessionNotFound),
		errors.Is(err, core.ErrMissingAuthHeader),
		errors.Is(err, core.ErrInvalidAuthHeader):
		return http.StatusUnauthorized

	case errors.Is(err, core.ErrMemberNotFound),
		errors.Is(err, core.ErrAPIKeyNotFound):
		return http.StatusNotFound

	case errors.Is(err, core.ErrMemberExists),
		errors.Is(err, core.ErrProviderAlreadyConnected),
		errors.Is(err, core.ErrProviderNotConnected),
		errors.Is(err, core.ErrPasswordAlreadySet),
		errors.Is(err, core.ErrPasswordNotSet),
		errors.Is(err, core.ErrOAuthIdentityExists),
		errors.Is(err, core.ErrAlreadyLinked),
		errors.Is(err, core.ErrConcurrentModification),
		errors.Is(err, core.ErrEmailAlreadyVerified),
		errors.Is(err, core.ErrLastLoginMethod):
		return http.StatusConflict

	case errors.Is(err, core.ErrResendCooldown):
		return http.StatusTooManyRequests

	case errors.Is(err, core.ErrEmailRequired),
		errors.Is(err, core.ErrInvalidEmail),
		errors.Is(err, core.ErrNicknameRequired),
		errors.Is(err, core.ErrPasswordRequired),
		errors.Is(err, core.ErrPasswordTooShort),
		errors.Is(err, core.ErrPasswordTooLong),
		errors.Is(err, core.ErrPasswordTooWeak),
		errors.Is(err, core.ErrUnknownProvider):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}
