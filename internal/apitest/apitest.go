// Package apitest builds fiber apps and requests for handler tests.
package apitest

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kiramate-backend/internal/apierr"
	"kiramate-backend/internal/auth"
	"kiramate-backend/internal/config"
	"kiramate-backend/internal/models"
	"kiramate-backend/internal/views"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const Password = "password123"

func Config(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		AppName:          "KiraMate",
		JWTSecret:        strings.Repeat("s", 32),
		UploadDir:        t.TempDir(),
		SessionTimeout:   30 * time.Minute,
		ReportRateLimit:  20,
		ReportRateWindow: time.Minute,
	}
}

// NewApp returns an app with the production error handler, receipt views
// and sessions.
func NewApp(cfg *config.Config) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: apierr.ErrorHandler, Views: views.Engine()})
	app.Use(auth.Sessions(cfg))
	return app
}

// CreateUser inserts an active user whose password is Password.
func CreateUser(t *testing.T, db *gorm.DB, username string, role models.UserRole) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	require.NoError(t, err)
	u := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Role:         role,
		IsActive:     true,
	}
	require.NoError(t, db.Create(&u).Error)
	return u
}

// Bearer returns an Authorization header value for u.
func Bearer(t *testing.T, cfg *config.Config, u models.User) string {
	t.Helper()
	token, _, err := auth.GenerateToken(cfg.JWTSecret, &u, cfg.SessionTimeout)
	require.NoError(t, err)
	return "Bearer " + token
}

// JSON builds a request with a JSON body (nil for none).
func JSON(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return req
}

// File is one part of a multipart upload.
type File struct {
	Field   string
	Name    string
	Content []byte
}

// Multipart builds a multipart/form-data request.
func Multipart(t *testing.T, method, path string, fields map[string]string, files ...File) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for _, f := range files {
		part, err := w.CreateFormFile(f.Field, f.Name)
		require.NoError(t, err)
		_, err = part.Write(f.Content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

// Do runs req as u (zero User for anonymous) and decodes a JSON body.
func Do(t *testing.T, app *fiber.App, cfg *config.Config, u models.User, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	if u.ID != 0 {
		req.Header.Set(fiber.HeaderAuthorization, Bearer(t, cfg, u))
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	body := map[string]any{}
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	}
	return resp, body
}

// Errors returns the "errors" list of a 422/409 body as strings.
func Errors(body map[string]any) []string {
	raw, _ := body["errors"].([]any)
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

var (
	PNG = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	PDF = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
)

// PNGImage encodes a blank w x h PNG.
func PNGImage(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}
