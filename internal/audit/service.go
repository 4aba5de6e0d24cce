package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"kiramate-backend/internal/auth"
	"kiramate-backend/internal/ledger"
	"kiramate-backend/internal/models"
	"kiramate-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	EntityTenant         = "tenant"
	EntityShop           = "shop"
	EntityRent           = "rent"
	EntityOpeningBalance = "opening_balance"
	EntityPayment        = "payment"
	EntityUser           = "user"
	EntitySettings       = "settings"
)

var (
	ErrAlreadyUndone = errors.New("this change has already been undone")
	ErrNotUndoable   = errors.New("this change cannot be undone")
	ErrGone          = errors.New("the record no longer exists")
)

// Actor is who made a change.
type Actor struct {
	UserID   uint
	UserName string
}

func ActorOf(c *fiber.Ctx) Actor {
	s := auth.FromCtx(c)
	return Actor{UserID: s.UserID(), UserName: s.Username()}
}

type LogOptions struct {
	Actor       Actor
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

// WriteLog stores one audit row. Pass the transaction that made the change
// so both commit together.
func WriteLog(db *gorm.DB, opts LogOptions) error {
	beforeStr, err := snapshot(opts.Before)
	if err != nil {
		return err
	}
	afterStr, err := snapshot(opts.After)
	if err != nil {
		return err
	}

	entry := models.AuditLog{
		UserID:      opts.Actor.UserID,
		UserName:    opts.Actor.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
	}
	if err := db.Create(&entry).Error; err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}

func snapshot(v any) (string, error) {
	if v == nil {
		return "null", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("audit snapshot: %w", err)
	}
	return string(b), nil
}

// undoable lists the entities whose changes can be reverted.
type entityKind struct {
	newModel func() any
	columns  []string // restored on update undo
	// checkDelete refuses deletion of a linked row.
	checkDelete func(tx *gorm.DB, m any) error
	// checkUnique refuses a restore that would duplicate a period.
	checkUnique func(tx *gorm.DB, m any) error
}

var undoable = map[string]entityKind{
	EntityPayment: {
		newModel: func() any { return &models.Payment{} },
		columns:  []string{"shop_id", "amount", "payment_date", "payment_method", "notes", "rent_year", "rent_month", "ob_financial_year"},
	},
	EntityRent: {
		newModel: func() any { return &models.Rent{} },
		columns:  []string{"shop_id", "rent_year", "rent_month", "calculated_rent", "penalty", "amount_waved_off", "final_rent", "remarks"},
		checkDelete: func(tx *gorm.DB, m any) error {
			return ledger.CheckRentDeletable(tx, *m.(*models.Rent))
		},
		checkUnique: func(tx *gorm.DB, m any) error {
			r := m.(*models.Rent)
			var count int64
			if err := tx.Model(&models.Rent{}).
				Where("shop_id = ? AND rent_year = ? AND rent_month = ? AND id <> ?", r.ShopID, r.RentYear, r.RentMonth, r.ID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return validation.Conflict(fmt.Sprintf("Rent for %s already exists for this shop", r.Period().Label()))
			}
			return nil
		},
	},
	EntityOpeningBalance: {
		newModel: func() any { return &models.OpeningBalance{} },
		columns:  []string{"shop_id", "tenant_id", "financial_year", "opening_balance"},
		checkDelete: func(tx *gorm.DB, m any) error {
			return ledger.CheckOpeningBalanceDeletable(tx, *m.(*models.OpeningBalance))
		},
		checkUnique: func(tx *gorm.DB, m any) error {
			ob := m.(*models.OpeningBalance)
			var count int64
			if err := tx.Model(&models.OpeningBalance{}).
				Where("shop_id = ? AND financial_year = ? AND id <> ?", ob.ShopID, ob.FinancialYear, ob.ID).
				Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return validation.Conflict("Opening balance for financial year " + ob.FinancialYear + " already exists for this shop")
			}
			return nil
		},
	},
}

// Undo reverts the change recorded in log logID and records the reversal.
func Undo(db *gorm.DB, logID uint, actor Actor) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var entry models.AuditLog
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&entry, logID).Error; err != nil {
			return err
		}
		if entry.IsUndone {
			return ErrAlreadyUndone
		}
		kind, ok := undoable[entry.EntityType]
		if !ok || entry.Undone {
			return ErrNotUndoable
		}

		switch entry.Action {
		case models.AuditActionCreate:
			if err := undoCreate(tx, kind, entry.EntityID); err != nil {
				return err
			}
		case models.AuditActionUpdate:
			if err := undoUpdate(tx, kind, entry.EntityID, entry.BeforeData); err != nil {
				return err
			}
		case models.AuditActionDelete:
			if err := undoDelete(tx, kind, entry.BeforeData); err != nil {
				return err
			}
		default:
			return ErrNotUndoable
		}

		now := time.Now()
		if err := tx.Model(&entry).Updates(map[string]any{
			"is_undone":  true,
			"undone_by":  actor.UserID,
			"undone_at":  now,
		}).Error; err != nil {
			return fmt.Errorf("mark audit log undone: %w", err)
		}

		reversal := models.AuditLog{
			UserID:      actor.UserID,
			UserName:    actor.UserName,
			EntityType:  entry.EntityType,
			EntityID:    entry.EntityID,
			Action:      models.AuditActionUndo,
			Description: "Undone: " + entry.Description,
			BeforeData:  entry.AfterData,
			AfterData:   entry.BeforeData,
			Undone:      true,
		}
		if err := tx.Create(&reversal).Error; err != nil {
			return fmt.Errorf("write undo log: %w", err)
		}
		return nil
	})
}

func undoCreate(tx *gorm.DB, kind entityKind, id uint) error {
	m := kind.newModel()
	if err := tx.First(m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGone
		}
		return err
	}
	if kind.checkDelete != nil {
		if err := kind.checkDelete(tx, m); err != nil {
			return err
		}
	}
	return tx.Delete(m).Error
}

func undoUpdate(tx *gorm.DB, kind entityKind, id uint, before string) error {
	m := kind.newModel()
	if err := json.Unmarshal([]byte(before), m); err != nil {
		return fmt.Errorf("decode audit snapshot: %w", err)
	}
	current := kind.newModel()
	if err := tx.First(current, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrGone
		}
		return err
	}
	if kind.checkUnique != nil {
		if err := kind.checkUnique(tx, m); err != nil {
			return err
		}
	}
	return tx.Model(current).Select(kind.columns).Updates(m).Error
}

func undoDelete(tx *gorm.DB, kind entityKind, before string) error {
	m := kind.newModel()
	if err := json.Unmarshal([]byte(before), m); err != nil {
		return fmt.Errorf("decode audit snapshot: %w", err)
	}
	if kind.checkUnique != nil {
		if err := kind.checkUnique(tx, m); err != nil {
			return err
		}
	}
	return tx.Omit(clause.Associations).Create(m).Error
}
