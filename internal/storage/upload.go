package storage

import (
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// FormFiles returns the files posted under field. Non-multipart requests
// carry no files.
func FormFiles(c *fiber.Ctx, field string) ([]*multipart.FileHeader, error) {
	if !strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid upload")
	}
	return form.File[field], nil
}

// Download sends entity/rel as an attachment named name.
func (s *Store) Download(c *fiber.Ctx, entity, rel, name string) error {
	if !s.Exists(entity, rel) {
		return fiber.NewError(fiber.StatusNotFound, "File not found")
	}
	p, err := s.Path(entity, rel)
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "File not found")
	}
	return c.Download(p, name)
}
