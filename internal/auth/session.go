package auth

import (
	"time"

	"kiramate-backend/internal/config"
	"kiramate-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const (
	CookieName = "kiramate_session"

	// Response header carrying a refreshed token for Bearer clients.
	RefreshHeader = "X-Session-Token"

	CtxSessionKey  = "session"
	CtxUserIDKey   = "user_id"
	CtxUserRoleKey = "user_role"
)

// CurrentUser is the identity carried by the session token.
type CurrentUser struct {
	ID       uint            `json:"id"`
	Username string          `json:"username"`
	Role     models.UserRole `json:"role"`
}

// Session is the per-request view of the caller's login state.
type Session struct {
	c      *fiber.Ctx
	cfg    *config.Config
	claims *SessionClaims
	bearer bool
}

// FromCtx returns the request session. Without the Sessions middleware the
// session is anonymous.
func FromCtx(c *fiber.Ctx) *Session {
	if s, ok := c.Locals(CtxSessionKey).(*Session); ok {
		return s
	}
	return &Session{c: c}
}

func (s *Session) IsAuthenticated() bool {
	return s.claims != nil
}

func (s *Session) CurrentUser() *CurrentUser {
	if s.claims == nil {
		return nil
	}
	return &CurrentUser{ID: s.claims.UserID, Username: s.claims.Username, Role: s.claims.Role}
}

func (s *Session) UserID() uint {
	if s.claims == nil {
		return 0
	}
	return s.claims.UserID
}

func (s *Session) Username() string {
	if s.claims == nil {
		return ""
	}
	return s.claims.Username
}

func (s *Session) IsAdmin() bool {
	return s.claims != nil && s.claims.Role == models.RoleAdmin
}

// Login issues a new token for user, sets the session cookie and returns
// the token for clients that prefer the Authorization header.
func (s *Session) Login(user *models.User) (string, error) {
	token, exp, err := GenerateToken(s.cfg.JWTSecret, user, s.cfg.SessionTimeout)
	if err != nil {
		return "", err
	}
	s.setCookie(token, exp)
	s.claims = &SessionClaims{UserID: user.ID, Username: user.Username, Role: user.Role}
	s.publish()
	return token, nil
}

// Logout clears the session cookie. Bearer tokens simply stop being sent.
func (s *Session) Logout() {
	if s.cfg != nil {
		s.c.Cookie(&fiber.Cookie{
			Name:     CookieName,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			HTTPOnly: true,
			Secure:   s.cfg.CookieSecure,
			SameSite: fiber.CookieSameSiteLaxMode,
		})
	}
	s.claims = nil
	s.publish()
}

// CSRFToken is the token the csrf middleware issued for this request.
func (s *Session) CSRFToken() string {
	token, _ := s.c.Locals(csrfContextKey).(string)
	return token
}

// refresh re-issues the token once less than half of the idle timeout
// remains, so an active user stays logged in.
func (s *Session) refresh() error {
	if s.claims == nil || s.claims.ExpiresAt == nil {
		return nil
	}
	if time.Until(s.claims.ExpiresAt.Time) > s.cfg.SessionTimeout/2 {
		return nil
	}
	user := &models.User{ID: s.claims.UserID, Username: s.claims.Username, Role: s.claims.Role}
	token, exp, err := GenerateToken(s.cfg.JWTSecret, user, s.cfg.SessionTimeout)
	if err != nil {
		return err
	}
	if s.bearer {
		s.c.Set(RefreshHeader, token)
	} else {
		s.setCookie(token, exp)
	}
	s.claims.ExpiresAt.Time = exp
	return nil
}

func (s *Session) setCookie(token string, exp time.Time) {
	s.c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HTTPOnly: true,
		Secure:   s.cfg.CookieSecure,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// publish mirrors the identity into the user_id and user_role locals.
func (s *Session) publish() {
	if s.claims == nil {
		s.c.Locals(CtxUserIDKey, nil)
		s.c.Locals(CtxUserRoleKey, nil)
		return
	}
	s.c.Locals(CtxUserIDKey, s.claims.UserID)
	s.c.Locals(CtxUserRoleKey, s.claims.Role)
}
