package tenant

import (
	"errors"
	"fmt"
	"time"

	"kiramate-backend/internal/apierr"
	"kiramate-backend/internal/applog"
	"kiramate-backend/internal/audit"
	"kiramate-backend/internal/database"
	"kiramate-backend/internal/models"
	"kiramate-backend/internal/storage"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type DocumentResponse struct {
	ID        uint   `json:"id"`
	FileName  string `json:"file_name"`
	FileType  string `json:"file_type"`
	FileSize  int64  `json:"file_size"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
}

func newDocumentResponse(d models.TenantDocument) DocumentResponse {
	return DocumentResponse{
		ID:        d.ID,
		FileName:  d.FileName,
		FileType:  d.FileType,
		FileSize:  d.FileSize,
		URL:       fmt.Sprintf("/api/tenants/%d/documents/%d", d.TenantID, d.ID),
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
	}
}

func saveDocuments(tx *gorm.DB, tenantID uint, files []*storage.Staged) ([]models.TenantDocument, error) {
	if len(files) == 0 {
		return nil, nil
	}
	docs := make([]models.TenantDocument, 0, len(files))
	for _, f := range files {
		docs = append(docs, models.TenantDocument{
			TenantID: tenantID,
			FileName: f.FileName,
			FilePath: f.RelPath(ownerDir(tenantID)),
			FileType: f.FileType,
			FileSize: f.FileSize,
		})
	}
	if err := tx.Create(&docs).Error; err != nil {
		return nil, fmt.Errorf("save tenant documents: %w", err)
	}
	return docs, nil
}

// promote moves the staged files once the rows are committed. On failure the
// rows already exist, so their ids go to the error log for repair.
func promote(batch *storage.Batch, tenantID uint, docs []models.TenantDocument) error {
	if err := batch.Promote(ownerDir(tenantID)); err != nil {
		ids := make([]uint, len(docs))
		for i, d := range docs {
			ids[i] = d.ID
		}
		applog.Errorf("[TENANT] tenant %d saved but files not stored, documents %v: %v", tenantID, ids, err)
		return err
	}
	return nil
}

func findDocument(c *fiber.Ctx) (models.TenantDocument, error) {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return models.TenantDocument{}, err
	}
	docID, err := apierr.ParamID(c, "docId")
	if err != nil {
		return models.TenantDocument{}, err
	}
	var d models.TenantDocument
	if err := database.DB.Where("id = ? AND tenant_id = ?", docID, id).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.TenantDocument{}, apierr.NotFound("Document")
		}
		return models.TenantDocument{}, fmt.Errorf("load tenant document: %w", err)
	}
	return d, nil
}

// GET /api/tenants/:id/documents/:docId
func DownloadDocumentHandler(store *storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := findDocument(c)
		if err != nil {
			return err
		}
		return store.Download(c, storage.TenantDocuments, d.FilePath, d.FileName)
	}
}

// DELETE /api/tenants/:id/documents/:docId
func DeleteDocumentHandler(store *storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := findDocument(c)
		if err != nil {
			return err
		}
		batch := store.NewBatch(storage.TenantDocuments)
		defer batch.Discard()
		batch.RemoveOnPromote(d.FilePath)
		actor := audit.ActorOf(c)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&models.TenantDocument{}, d.ID).Error; err != nil {
				return fmt.Errorf("delete tenant document: %w", err)
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityTenant,
				EntityID:    d.TenantID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Document %s removed", d.FileName),
				Before:      d,
			})
		})
		if err != nil {
			return err
		}
		if err := batch.Promote(ownerDir(d.TenantID)); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Document deleted successfully"})
	}
}
