package auth

import (
	"errors"
	"fmt"
	"strings"

	"kiramate-backend/internal/config"
	"kiramate-backend/internal/database"
	"kiramate-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/csrf"
	"gorm.io/gorm"
)

const (
	CSRFHeader     = "X-CSRF-Token"
	CSRFCookieName = "kiramate_csrf"
	csrfContextKey = "csrf"
)

// Sessions attaches a Session to every request. The Authorization header
// wins over the cookie; a stale cookie is cleared and the request continues
// anonymously.
func Sessions(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := &Session{c: c, cfg: cfg}
		c.Locals(CtxSessionKey, s)

		tokenStr, bearer := tokenFromRequest(c)
		if tokenStr == "" {
			return c.Next()
		}

		claims, err := ParseToken(cfg.JWTSecret, tokenStr)
		if err != nil {
			if !bearer {
				s.Logout()
			}
			return c.Next()
		}

		s.claims = claims
		s.bearer = bearer
		s.publish()
		if err := s.refresh(); err != nil {
			return fmt.Errorf("refresh session: %w", err)
		}
		return c.Next()
	}
}

func tokenFromRequest(c *fiber.Ctx) (string, bool) {
	if token, ok := bearerToken(c); ok {
		return token, true
	}
	return c.Cookies(CookieName), false
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	parts := strings.SplitN(c.Get(fiber.HeaderAuthorization), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

// RequireLogin rejects anonymous requests and sessions whose user was
// deleted or deactivated since the token was issued.
func RequireLogin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		s := FromCtx(c)
		if !s.IsAuthenticated() {
			return fiber.NewError(fiber.StatusUnauthorized, "Please log in to continue")
		}

		var user models.User
		err := database.DB.Select("id", "username", "role", "is_active").First(&user, s.UserID()).Error
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && !user.IsActive) {
			s.Logout()
			return fiber.NewError(fiber.StatusUnauthorized, "Your session has ended. Please log in again.")
		}
		if err != nil {
			return fmt.Errorf("load session user: %w", err)
		}

		s.claims.Username = user.Username
		s.claims.Role = user.Role
		s.publish()
		return c.Next()
	}
}

func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u := FromCtx(c).CurrentUser()
		if u == nil {
			return fiber.NewError(fiber.StatusUnauthorized, "Please log in to continue")
		}
		for _, r := range allowedRoles {
			if r == u.Role {
				return c.Next()
			}
		}
		return fiber.NewError(fiber.StatusForbidden, "Access denied. Admin privileges required.")
	}
}

// CSRF protects cookie sessions with a double-submit token read from the
// X-CSRF-Token header. Bearer clients and the login call are exempt.
func CSRF(cfg *config.Config) fiber.Handler {
	return csrf.New(csrf.Config{
		KeyLookup:      "header:" + CSRFHeader,
		CookieName:     CSRFCookieName,
		CookieSameSite: "Lax",
		CookieSecure:   cfg.CookieSecure,
		Expiration:     cfg.SessionTimeout,
		ContextKey:     csrfContextKey,
		Next: func(c *fiber.Ctx) bool {
			if _, ok := bearerToken(c); ok {
				return true
			}
			return c.Path() == "/api/auth/login"
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return fiber.NewError(fiber.StatusForbidden, "Invalid or missing CSRF token")
		},
	})
}
