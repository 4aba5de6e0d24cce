package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"kiramate-backend/internal/apierr"
	"kiramate-backend/internal/applog"
	"kiramate-backend/internal/config"
	"kiramate-backend/internal/database"
	"kiramate-backend/internal/models"
	"kiramate-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const MinPasswordLength = 8

type LoginRequest struct {
	Username string `json:"username" validate:"required" label:"Username"`
	Password string `json:"password" validate:"required" label:"Password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required" label:"Current password"`
	NewPassword     string `json:"new_password" validate:"required,min=8" label:"New password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=NewPassword" label:"Password confirmation"`
}

type UserResponse struct {
	ID        uint            `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	Role      models.UserRole `json:"role"`
	IsActive  bool            `json:"is_active"`
	LastLogin *string         `json:"last_login"`
	CreatedAt string          `json:"created_at"`
}

func NewUserResponse(u models.User) UserResponse {
	resp := UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
	if u.LastLogin != nil {
		s := u.LastLogin.Format(time.RFC3339)
		resp.LastLogin = &s
	}
	return resp
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// POST /api/auth/login
func LoginHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := c.BodyParser(&body); err != nil {
			return apierr.InvalidBody
		}
		body.Username = strings.TrimSpace(body.Username)
		if err := validation.Struct(body); err != nil {
			return err
		}

		var user models.User
		err := database.DB.Where("username = ?", body.Username).First(&user).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("login lookup: %w", err)
		}
		if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)) != nil {
			applog.Warnf("[AUTH] failed login for %q from %s", body.Username, c.IP())
			return fiber.NewError(fiber.StatusUnauthorized, "Invalid username or password")
		}
		if !user.IsActive {
			applog.Warnf("[AUTH] login refused for inactive account %q from %s", body.Username, c.IP())
			return fiber.NewError(fiber.StatusForbidden, "Your account is inactive. Please contact the administrator.")
		}

		now := time.Now()
		if err := database.DB.Model(&user).Update("last_login", now).Error; err != nil {
			return fmt.Errorf("update last login: %w", err)
		}
		user.LastLogin = &now

		token, err := FromCtx(c).Login(&user)
		if err != nil {
			return fmt.Errorf("issue session: %w", err)
		}
		applog.Infof("[AUTH] %s logged in from %s", user.Username, c.IP())

		return c.JSON(fiber.Map{
			"token":      token,
			"expires_in": int(cfg.SessionTimeout.Seconds()),
			"user":       NewUserResponse(user),
		})
	}
}

// POST /api/auth/logout
func LogoutHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		FromCtx(c).Logout()
		return c.JSON(fiber.Map{"message": "You have been logged out"})
	}
}

// GET /api/auth/me
func MeHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var user models.User
		if err := database.DB.First(&user, FromCtx(c).UserID()).Error; err != nil {
			return fmt.Errorf("load current user: %w", err)
		}
		return c.JSON(NewUserResponse(user))
	}
}

// GET /api/auth/csrf
func CSRFTokenHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"csrf_token": FromCtx(c).CSRFToken()})
	}
}

// POST /api/auth/change-password
func ChangePasswordHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ChangePasswordRequest
		if err := c.BodyParser(&body); err != nil {
			return apierr.InvalidBody
		}
		if err := validation.Struct(body); err != nil {
			return err
		}

		s := FromCtx(c)
		var user models.User
		if err := database.DB.First(&user, s.UserID()).Error; err != nil {
			return fmt.Errorf("load current user: %w", err)
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.CurrentPassword)) != nil {
			return validation.New("Current password is incorrect")
		}

		hash, err := HashPassword(body.NewPassword)
		if err != nil {
			return err
		}
		if err := database.DB.Model(&user).Update("password_hash", hash).Error; err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		applog.Infof("[AUTH] %s changed their password", user.Username)

		s.Logout()
		return c.JSON(fiber.Map{"message": "Password changed successfully. Please log in again."})
	}
}
