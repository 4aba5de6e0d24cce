// Package storage keeps uploaded documents and the company logo on disk
// under UPLOAD_DIR. Uploads are staged first and only moved into place once
// the database transaction that references them has committed.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	TenantDocuments = "tenant_documents"
	ShopDocuments   = "shop_documents"
	Company         = "company"

	stagingDir = ".staging"

	MaxFiles    = 5
	MaxFileSize = 5 << 20
)

var (
	ErrRejected       = errors.New("upload rejected")
	ErrTooLarge       = fmt.Errorf("%w: file is larger than 5 MB", ErrRejected)
	ErrTypeNotAllowed = fmt.Errorf("%w: file type is not allowed", ErrRejected)
	ErrTooManyFiles   = fmt.Errorf("%w: at most %d files can be uploaded at once", ErrRejected, MaxFiles)
	ErrBadPath        = errors.New("invalid storage path")
)

// MIME type to stored extension.
var (
	DocumentTypes = map[string]string{
		"image/jpeg":      ".jpg",
		"image/png":       ".png",
		"image/gif":       ".gif",
		"application/pdf": ".pdf",
	}
	LogoTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/png":  ".png",
		"image/gif":  ".gif",
	}
)

type Store struct {
	Root string
}

func New(root string) (*Store, error) {
	s := &Store{Root: root}
	for _, dir := range []string{TenantDocuments, ShopDocuments, Company, stagingDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
		}
	}
	return s, nil
}

// Path resolves rel inside the entity directory. Paths escaping it are
// refused.
func (s *Store) Path(entity, rel string) (string, error) {
	base := filepath.Join(s.Root, entity)
	p := filepath.Join(base, filepath.FromSlash(rel))
	if p != base && !strings.HasPrefix(p, base+string(os.PathSeparator)) {
		return "", ErrBadPath
	}
	return p, nil
}

func (s *Store) Exists(entity, rel string) bool {
	p, err := s.Path(entity, rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

// Save writes r to entity/rel, creating parent directories.
func (s *Store) Save(entity, rel string, r io.Reader) (int64, error) {
	p, err := s.Path(entity, rel)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return 0, err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(p)
		return 0, err
	}
	return n, nil
}

// Remove deletes entity/rel. A missing file is not an error.
func (s *Store) Remove(entity, rel string) error {
	p, err := s.Path(entity, rel)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
