package audit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"kiramate-backend/internal/database"
	"kiramate-backend/internal/models"
	"kiramate-backend/internal/pagination"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	Description string             `json:"description"`
	Undoable    bool               `json:"undoable"`
	IsUndone    bool               `json:"is_undone"`
	UndoneBy    *uint              `json:"undone_by"`
	UndoneAt    *string            `json:"undone_at"`
}

func toResponse(l models.AuditLog) AuditLogResponse {
	var undoneAt *string
	if l.UndoneAt != nil {
		s := l.UndoneAt.Format(time.DateTime)
		undoneAt = &s
	}
	_, kindOK := undoable[l.EntityType]
	return AuditLogResponse{
		ID:          l.ID,
		CreatedAt:   l.CreatedAt.Format(time.DateTime),
		UserID:      l.UserID,
		UserName:    l.UserName,
		EntityType:  l.EntityType,
		EntityID:    l.EntityID,
		Action:      l.Action,
		Description: l.Description,
		Undoable:    kindOK && !l.Undone && !l.IsUndone && l.Action != models.AuditActionUndo,
		IsUndone:    l.IsUndone,
		UndoneBy:    l.UndoneBy,
		UndoneAt:    undoneAt,
	}
}

// GET /api/admin/audit-logs?entity_type=rent&entity_id=1&user_id=2&action=delete
func ListAuditLogsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q := database.DB.Model(&models.AuditLog{})

		if uid := c.QueryInt("user_id"); uid > 0 {
			q = q.Where("user_id = ?", uid)
		}
		if et := c.Query("entity_type"); et != "" {
			q = q.Where("entity_type = ?", et)
		}
		if eid := c.QueryInt("entity_id"); eid > 0 {
			q = q.Where("entity_id = ?", eid)
		}
		if action := c.Query("action"); action != "" {
			q = q.Where("action = ?", action)
		}

		var total int64
		if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
			return fmt.Errorf("count audit logs: %w", err)
		}

		p := pagination.Parse(c, "created_at", "desc", pagination.ListOpts)
		var logs []models.AuditLog
		if err := q.Order("id DESC").Limit(p.Limit()).Offset(p.Offset()).Find(&logs).Error; err != nil {
			return fmt.Errorf("list audit logs: %w", err)
		}

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, l := range logs {
			resp = append(resp, toResponse(l))
		}
		return c.JSON(fiber.Map{"data": resp, "meta": pagination.BuildMeta(total, p)})
	}
}

// POST /api/admin/audit-logs/:id/undo
func UndoAuditLogHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		logID, err := c.ParamsInt("id")
		if err != nil || logID <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid log ID")
		}

		err = Undo(database.DB, uint(logID), ActorOf(c))
		switch {
		case errors.Is(err, ErrAlreadyUndone), errors.Is(err, ErrNotUndoable), errors.Is(err, ErrGone):
			return fiber.NewError(fiber.StatusBadRequest, capitalize(err.Error()))
		case err != nil:
			return err
		}

		return c.JSON(fiber.Map{"message": "Change undone successfully"})
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
