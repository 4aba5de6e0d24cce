// Package admin holds the administrator screens: user accounts and the
// company settings printed on receipts.
package admin

import (
	"errors"
	"fmt"
	"strings"

	"kiramate-backend/internal/apierr"
	"kiramate-backend/internal/audit"
	"kiramate-backend/internal/auth"
	"kiramate-backend/internal/database"
	"kiramate-backend/internal/models"
	"kiramate-backend/internal/pagination"
	"kiramate-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateUserRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=50" label:"Username"`
	Email           string `json:"email" validate:"required,email,max=100" label:"Email"`
	Password        string `json:"password" validate:"required,min=8" label:"Password"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password" label:"Password confirmation"`
	Role            string `json:"role" validate:"required,oneof=user admin" label:"Role"`
	IsActive        *bool  `json:"is_active"`
}

// UpdateUserRequest leaves the password unchanged when it is blank.
type UpdateUserRequest struct {
	Username        string `json:"username" validate:"required,min=3,max=50" label:"Username"`
	Email           string `json:"email" validate:"required,email,max=100" label:"Email"`
	Password        string `json:"password" validate:"omitempty,min=8" label:"Password"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password" label:"Password confirmation"`
	Role            string `json:"role" validate:"required,oneof=user admin" label:"Role"`
	IsActive        *bool  `json:"is_active"`
}

func userConflicts(username, email string, excludeID uint) error {
	errs := validation.Conflict()
	for _, f := range []struct{ column, value, label string }{
		{"username", username, "Username"},
		{"email", email, "Email"},
	} {
		var count int64
		if err := database.DB.Model(&models.User{}).
			Where(f.column+" = ? AND id <> ?", f.value, excludeID).
			Count(&count).Error; err != nil {
			return fmt.Errorf("user uniqueness check: %w", err)
		}
		if count > 0 {
			errs.Add("%s already exists", f.label)
		}
	}
	return errs.Err()
}

func findUser(c *fiber.Ctx) (models.User, error) {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return models.User{}, err
	}
	var u models.User
	if err := database.DB.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, apierr.NotFound("User")
		}
		return models.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

// POST /api/admin/users
func CreateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return apierr.InvalidBody
		}
		body.Username = strings.TrimSpace(body.Username)
		body.Email = strings.ToLower(strings.TrimSpace(body.Email))
		if err := validation.Struct(body); err != nil {
			return err
		}
		if err := userConflicts(body.Username, body.Email, 0); err != nil {
			return err
		}

		hash, err := auth.HashPassword(body.Password)
		if err != nil {
			return err
		}
		u := models.User{
			Username:     body.Username,
			Email:        body.Email,
			PasswordHash: hash,
			Role:         models.UserRole(body.Role),
			IsActive:     body.IsActive == nil || *body.IsActive,
		}
		actor := audit.ActorOf(c)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&u).Error; err != nil {
				return fmt.Errorf("create user: %w", err)
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityUser,
				EntityID:    u.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("User %s created", u.Username),
				After:       auth.NewUserResponse(u),
			})
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(auth.NewUserResponse(u))
	}
}

// PUT /api/admin/users/:id
func UpdateUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		before, err := findUser(c)
		if err != nil {
			return err
		}
		var body UpdateUserRequest
		if err := c.BodyParser(&body); err != nil {
			return apierr.InvalidBody
		}
		body.Username = strings.TrimSpace(body.Username)
		body.Email = strings.ToLower(strings.TrimSpace(body.Email))
		if err := validation.Struct(body); err != nil {
			return err
		}

		self := auth.FromCtx(c).UserID() == before.ID
		errs := validation.New()
		if self && body.IsActive != nil && !*body.IsActive {
			errs.Add("You cannot deactivate your own account")
		}
		if self && models.UserRole(body.Role) != models.RoleAdmin {
			errs.Add("You cannot remove your own admin role")
		}
		if err := errs.Err(); err != nil {
			return err
		}
		if err := userConflicts(body.Username, body.Email, before.ID); err != nil {
			return err
		}

		after := before
		after.Username = body.Username
		after.Email = body.Email
		after.Role = models.UserRole(body.Role)
		if body.IsActive != nil {
			after.IsActive = *body.IsActive
		}
		columns := []string{"username", "email", "role", "is_active"}
		if body.Password != "" {
			hash, err := auth.HashPassword(body.Password)
			if err != nil {
				return err
			}
			after.PasswordHash = hash
			columns = append(columns, "password_hash")
		}
		actor := audit.ActorOf(c)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.User{ID: before.ID}).Select(columns).Updates(&after).Error; err != nil {
				return fmt.Errorf("update user: %w", err)
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityUser,
				EntityID:    before.ID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("User %s updated", after.Username),
				Before:      auth.NewUserResponse(before),
				After:       auth.NewUserResponse(after),
			})
		})
		if err != nil {
			return err
		}
		return c.JSON(auth.NewUserResponse(after))
	}
}

// DELETE /api/admin/users/:id
func DeleteUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := findUser(c)
		if err != nil {
			return err
		}
		if auth.FromCtx(c).UserID() == u.ID {
			return apierr.BadRequest("You cannot delete your own account")
		}
		actor := audit.ActorOf(c)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&models.User{}, u.ID).Error; err != nil {
				return fmt.Errorf("delete user: %w", err)
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityUser,
				EntityID:    u.ID,
				Action:      models.AuditActionDelete,
				Description: fmt.Sprintf("User %s deleted", u.Username),
				Before:      auth.NewUserResponse(u),
			})
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "User deleted successfully"})
	}
}

var userSorts = map[string]string{
	"username":   "username",
	"email":      "email",
	"role":       "role",
	"last_login": "last_login",
	"created_at": "created_at",
}

// GET /api/admin/users?search=ad
func ListUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.User{})
		if s := strings.TrimSpace(c.Query("search")); s != "" {
			like := "%" + strings.ToLower(s) + "%"
			q = q.Where("LOWER(username) LIKE ? OR LOWER(email) LIKE ?", like, like)
		}

		var total int64
		if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
			return fmt.Errorf("count users: %w", err)
		}

		p := pagination.Parse(c, "username", "asc", pagination.ListOpts)
		var users []models.User
		if err := q.Order(p.OrderClause(userSorts, "username")).
			Limit(p.Limit()).Offset(p.Offset()).
			Find(&users).Error; err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		data := make([]auth.UserResponse, 0, len(users))
		for _, u := range users {
			data = append(data, auth.NewUserResponse(u))
		}
		return c.JSON(fiber.Map{"data": data, "meta": pagination.BuildMeta(total, p)})
	}
}

// GET /api/admin/users/:id
func GetUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := findUser(c)
		if err != nil {
			return err
		}
		return c.JSON(auth.NewUserResponse(u))
	}
}
