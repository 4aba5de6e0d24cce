package shop

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

func newDocumentResponse(d models.ShopDocument) DocumentResponse {
	return DocumentResponse{
		ID:        d.ID,
		FileName:  d.FileName,
		FileType:  d.FileType,
		FileSize:  d.FileSize,
		URL:       fmt.Sprintf("/api/shops/%d/documents/%d", d.ShopID, d.ID),
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
	}
}

func saveDocuments(tx *gorm.DB, shopID uint, files []*storage.Staged) ([]models.ShopDocument, error) {
	if len(files) == 0 {
		return nil, nil
	}
	docs := make([]models.ShopDocument, 0, len(files))
	for _, f := range files {
		docs = append(docs, models.ShopDocument{
			ShopID:   shopID,
			FileName: f.FileName,
			FilePath: f.RelPath(ownerDir(shopID)),
			FileType: f.FileType,
			FileSize: f.FileSize,
		})
	}
	if err := tx.Create(&docs).Error; err != nil {
		return nil, fmt.Errorf("save shop documents: %w", err)
	}
	return docs, nil
}

// promote moves the staged files once the rows are committed. On failure the
// rows already exist, so their ids go to the error log for repair.
func promote(batch *storage.Batch, shopID uint, docs []models.ShopDocument) error {
	if err := batch.Promote(ownerDir(shopID)); err != nil {
		ids := make([]uint, len(docs))
		for i, d := range docs {
			ids[i] = d.ID
		}
		applog.Errorf("[SHOP] shop %d saved but files not stored, documents %v: %v", shopID, ids, err)
		return err
	}
	return nil
}

func findDocument(c *fiber.Ctx) (models.ShopDocument, error) {
	id, err := apierr.ParamID(c, "id")
	if err != nil {
		return models.ShopDocument{}, err
	}
	docID, err := apierr.ParamID(c, "docId")
	if err != nil {
		return models.ShopDocument{}, err
	}
	var d models.ShopDocument
	if err := database.DB.Where("id = ? AND shop_id = ?", docID, id).First(&d).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.ShopDocument{}, apierr.NotFound("Document")
		}
		return models.ShopDocument{}, fmt.Errorf("load shop document: %w", err)
	}
	return d, nil
}

// GET /api/shops/:id/documents/:docId
func DownloadDocumentHandler(store *storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := findDocument(c)
		if err != nil {
			return err
		}
		return store.Download(c, storage.ShopDocuments, d.FilePath, d.FileName)
	}
}

// DELETE /api/shops/:id/documents/:docId
func DeleteDocumentHandler(store *storage.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := findDocument(c)
		if err != nil {
			return err
		}
		batch := store.NewBatch(storage.ShopDocuments)
		defer batch.Discard()
		batch.RemoveOnPromote(d.FilePath)
		actor := audit.ActorOf(c)

		err = database.DB.Transaction(func(tx *gorm.DB) error {
			if err := tx.Delete(&models.ShopDocument{}, d.ID).Error; err != nil {
				return fmt.Errorf("delete shop document: %w", err)
			}
			return audit.WriteLog(tx, audit.LogOptions{
				Actor:       actor,
				EntityType:  audit.EntityShop,
				EntityID:    d.ShopID,
				Action:      models.AuditActionUpdate,
				Description: fmt.Sprintf("Document %s removed", d.FileName),
				Before:      d,
			})
		})
		if err != nil {
			return err
		}
		if err := batch.Promote(ownerDir(d.ShopID)); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "Document deleted successfully"})
	}
}
