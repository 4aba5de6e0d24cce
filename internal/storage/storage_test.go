package storage

import (
	"bytes"
	"image"
	"image/png"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"kiramate-backend/internal/applog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	pdfBytes = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")
)

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("documents", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(16 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["documents"][0]
}

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	return s
}

func stagingEntries(t *testing.T, s *Store) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(filepath.Join(s.Root, stagingDir))
	require.NoError(t, err)
	return entries
}

func TestPromoteMovesStagedFiles(t *testing.T) {
	s := newStore(t)
	b := s.NewBatch(TenantDocuments)
	defer b.Discard()

	files, err := b.StageAll([]*multipart.FileHeader{
		fileHeader(t, "lease.pdf", pdfBytes),
		fileHeader(t, "photo.png", pngBytes),
	}, DocumentTypes)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "application/pdf", files[0].FileType)
	assert.Equal(t, "lease.pdf", files[0].FileName)
	assert.True(t, strings.HasSuffix(files[0].Name, ".pdf"))
	assert.Equal(t, "image/png", files[1].FileType)
	assert.Len(t, stagingEntries(t, s), 2)

	require.NoError(t, b.Promote("7"))
	assert.Empty(t, stagingEntries(t, s))
	for _, f := range files {
		assert.True(t, s.Exists(TenantDocuments, f.RelPath("7")))
		assert.Equal(t, "7/"+f.Name, f.RelPath("7"))
	}

	b.Discard()
	assert.True(t, s.Exists(TenantDocuments, files[0].RelPath("7")), "discard after promote is a no-op")
}

func TestPromoteFailureKeepsFiles(t *testing.T) {
	logDir := t.TempDir()
	_, closeLogs, err := applog.Init(logDir)
	require.NoError(t, err)
	defer closeLogs()

	s := newStore(t)
	b := s.NewBatch(ShopDocuments)
	files, err := b.StageAll([]*multipart.FileHeader{
		fileHeader(t, "lease.pdf", pdfBytes),
		fileHeader(t, "photo.png", pngBytes),
	}, DocumentTypes)
	require.NoError(t, err)
	require.NoError(t, os.Remove(files[1].stagedPath))

	err = b.Promote("4")
	require.Error(t, err)
	b.Discard()
	assert.True(t, s.Exists(ShopDocuments, files[0].RelPath("4")), "moved file survives discard")

	errs, err := os.ReadFile(filepath.Join(logDir, "error.log"))
	require.NoError(t, err)
	assert.Contains(t, string(errs), "[ERROR] [STORAGE] shop_documents: files left in staging")
	assert.Contains(t, string(errs), files[1].RelPath("4"))
}

func TestDiscardRemovesStagedFiles(t *testing.T) {
	s := newStore(t)
	b := s.NewBatch(ShopDocuments)
	files, err := b.StageAll([]*multipart.FileHeader{fileHeader(t, "a.pdf", pdfBytes)}, DocumentTypes)
	require.NoError(t, err)
	require.Len(t, stagingEntries(t, s), 1)

	b.Discard()
	assert.Empty(t, stagingEntries(t, s))
	assert.False(t, s.Exists(ShopDocuments, files[0].RelPath("1")))
}

func TestStageRejectsTypeAndSize(t *testing.T) {
	s := newStore(t)
	b := s.NewBatch(TenantDocuments)

	_, err := b.StageAll([]*multipart.FileHeader{
		fileHeader(t, "ok.pdf", pdfBytes),
		fileHeader(t, "notes.txt", []byte("plain text is not a document")),
	}, DocumentTypes)
	assert.ErrorIs(t, err, ErrTypeNotAllowed)
	assert.ErrorIs(t, err, ErrRejected)
	assert.Empty(t, stagingEntries(t, s), "earlier files of a rejected set are discarded")

	big := append(append([]byte{}, pdfBytes...), make([]byte, MaxFileSize)...)
	_, err = b.Stage(fileHeader(t, "big.pdf", big), DocumentTypes)
	assert.ErrorIs(t, err, ErrTooLarge)

	_, err = b.Stage(fileHeader(t, "scan.pdf", pdfBytes), LogoTypes)
	assert.ErrorIs(t, err, ErrTypeNotAllowed)
}

func TestStageAllLimitsCount(t *testing.T) {
	s := newStore(t)
	headers := make([]*multipart.FileHeader, MaxFiles+1)
	for i := range headers {
		headers[i] = fileHeader(t, "f.pdf", pdfBytes)
	}
	_, err := s.NewBatch(ShopDocuments).StageAll(headers, DocumentTypes)
	assert.ErrorIs(t, err, ErrTooManyFiles)
	assert.Empty(t, stagingEntries(t, s))
}

func TestRemoveOnPromote(t *testing.T) {
	s := newStore(t)
	_, err := s.Save(Company, "old.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)

	b := s.NewBatch(Company)
	logo, err := b.Stage(fileHeader(t, "new.png", pngBytes), LogoTypes)
	require.NoError(t, err)
	b.RemoveOnPromote("old.png")
	require.NoError(t, b.Promote(""))

	assert.False(t, s.Exists(Company, "old.png"))
	assert.True(t, s.Exists(Company, logo.RelPath("")))
}

func TestPathRefusesEscape(t *testing.T) {
	s := newStore(t)
	_, err := s.Path(TenantDocuments, "../../etc/passwd")
	assert.ErrorIs(t, err, ErrBadPath)
	assert.False(t, s.Exists(TenantDocuments, "../shop_documents"))
	assert.NoError(t, s.Remove(TenantDocuments, "1/missing.pdf"))
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestFitImageShrinksLargeLogo(t *testing.T) {
	s := newStore(t)
	b := s.NewBatch(Company)
	defer b.Discard()

	st, err := b.Stage(fileHeader(t, "logo.png", encodePNG(t, 800, 200)), LogoTypes)
	require.NoError(t, err)
	require.NoError(t, b.FitImage(st, 400, 200))
	require.NoError(t, b.Promote(""))

	f, err := os.Open(filepath.Join(s.Root, Company, st.Name))
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.Width)
	assert.Equal(t, 100, cfg.Height)

	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, info.Size(), st.FileSize)
}

func TestFitImageKeepsSmallLogo(t *testing.T) {
	s := newStore(t)
	b := s.NewBatch(Company)
	defer b.Discard()

	content := encodePNG(t, 120, 60)
	st, err := b.Stage(fileHeader(t, "logo.png", content), LogoTypes)
	require.NoError(t, err)
	require.NoError(t, b.FitImage(st, 400, 200))
	assert.EqualValues(t, len(content), st.FileSize)
}

func TestFitImageRejectsUndecodableImage(t *testing.T) {
	s := newStore(t)
	b := s.NewBatch(Company)
	defer b.Discard()

	st, err := b.Stage(fileHeader(t, "logo.png", pngBytes), LogoTypes)
	require.NoError(t, err)
	assert.ErrorIs(t, b.FitImage(st, 400, 200), ErrRejected)
}
