// Package apierr maps handler errors to JSON responses.
package apierr

import (
	"errors"
	"strings"

	"kiramate-backend/internal/applog"
	"kiramate-backend/internal/ledger"
	"kiramate-backend/internal/storage"
	"kiramate-backend/internal/validation"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

const GenericMessage = "An error occurred. Please try again or contact support."

// ErrorHandler is the fiber.Config ErrorHandler.
//
//	*fiber.Error         -> its code, {"error": msg}
//	*validation.Errors   -> 422 or 409, {"errors": [...]}
//	storage.ErrRejected  -> 422, {"errors": [...]}
//	ledger.ErrLinked     -> 409, {"error": "cannot delete: ..."}
//	gorm not found       -> 404
//	anything else        -> logged to error.log, 500 with a generic message
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		if fe.Code >= fiber.StatusInternalServerError {
			applog.Errorf("%s %s: %v", c.Method(), c.Path(), fe.Message)
			return c.Status(fe.Code).JSON(fiber.Map{"error": GenericMessage})
		}
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}

	var verrs *validation.Errors
	if errors.As(err, &verrs) {
		return c.Status(verrs.Status).JSON(fiber.Map{"errors": verrs.Messages})
	}

	if errors.Is(err, storage.ErrRejected) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"errors": []string{uploadMessage(err)},
		})
	}

	var linked *ledger.LinkedError
	if errors.As(err, &linked) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": linked.Msg})
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Record not found"})
	}

	applog.Errorf("%s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": GenericMessage})
}

// uploadMessage drops the "upload rejected: " prefix, keeping the file name.
func uploadMessage(err error) string {
	return strings.Replace(err.Error(), storage.ErrRejected.Error()+": ", "", 1)
}

// NotFound builds a 404 such as "Shop not found".
func NotFound(what string) error {
	return fiber.NewError(fiber.StatusNotFound, what+" not found")
}

func BadRequest(msg string) error {
	return fiber.NewError(fiber.StatusBadRequest, msg)
}

// InvalidBody is returned when the request body cannot be parsed.
var InvalidBody = fiber.NewError(fiber.StatusBadRequest, "Invalid request body")

// ParamID reads a positive numeric route parameter.
func ParamID(c *fiber.Ctx, name string) (uint, error) {
	id, err := c.ParamsInt(name)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "Invalid ID")
	}
	return uint(id), nil
}
