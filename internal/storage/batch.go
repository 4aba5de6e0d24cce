package storage

import (
	"fmt"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"

	"kiramate-backend/internal/applog"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Staged is an upload waiting in the staging area.
type Staged struct {
	FileName string // as uploaded
	FileType string // detected MIME type
	FileSize int64
	Name     string // unique stored name

	stagedPath string
	finalPath  string
}

// RelPath is the value stored in file_path: "<owner>/<name>", or just the
// name when owner is empty.
func (st *Staged) RelPath(owner string) string {
	if owner == "" {
		return st.Name
	}
	return path.Join(owner, st.Name)
}

// Batch groups the file side effects of one request.
//
//	b := store.NewBatch(storage.TenantDocuments)
//	defer b.Discard()
//	files, err := b.StageAll(headers, storage.DocumentTypes)
//	... database transaction storing files[i].RelPath(owner) ...
//	err = b.Promote(owner)
//
// Discard is a no-op once Promote has been called.
type Batch struct {
	store   *Store
	entity  string
	staged  []*Staged
	removes []string
	done    bool
}

func (s *Store) NewBatch(entity string) *Batch {
	return &Batch{store: s, entity: entity}
}

// StageAll stages every header, enforcing MaxFiles. Nothing is kept when any
// file is rejected.
func (b *Batch) StageAll(headers []*multipart.FileHeader, allowed map[string]string) ([]*Staged, error) {
	if len(headers) > MaxFiles {
		return nil, ErrTooManyFiles
	}
	out := make([]*Staged, 0, len(headers))
	for _, fh := range headers {
		st, err := b.Stage(fh, allowed)
		if err != nil {
			b.Discard()
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// Stage checks size and sniffed content type, then copies the upload to
// <root>/.staging/<uuid>.
func (b *Batch) Stage(fh *multipart.FileHeader, allowed map[string]string) (*Staged, error) {
	if fh.Size > MaxFileSize {
		return nil, fmt.Errorf("%s: %w", fh.Filename, ErrTooLarge)
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("detect type of %s: %w", fh.Filename, err)
	}
	ext, ok := allowed[mt.String()]
	if !ok {
		return nil, fmt.Errorf("%s: %w", fh.Filename, ErrTypeNotAllowed)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("rewind upload %s: %w", fh.Filename, err)
	}

	id := uuid.NewString()
	n, err := b.store.Save(stagingDir, id, f)
	if err != nil {
		return nil, fmt.Errorf("stage %s: %w", fh.Filename, err)
	}
	if n > MaxFileSize {
		_ = b.store.Remove(stagingDir, id)
		return nil, fmt.Errorf("%s: %w", fh.Filename, ErrTooLarge)
	}

	st := &Staged{
		FileName:   filepath.Base(fh.Filename),
		FileType:   mt.String(),
		FileSize:   n,
		Name:       id + ext,
		stagedPath: filepath.Join(b.store.Root, stagingDir, id),
	}
	b.staged = append(b.staged, st)
	return st, nil
}

// RemoveOnPromote schedules entity/rel for deletion after a successful
// Promote, e.g. a replaced logo or a deleted document row.
func (b *Batch) RemoveOnPromote(rel string) {
	if rel != "" {
		b.removes = append(b.removes, rel)
	}
}

// Promote moves staged files to <root>/<entity>/<owner>/<name> and then
// performs the scheduled removals.
//
// Promote runs after the database commit, so a failure leaves every file
// where it is: moved files stay in place and the rest stay in staging,
// where the error log names them.
func (b *Batch) Promote(owner string) error {
	if b.done {
		return nil
	}
	b.done = true
	for i, st := range b.staged {
		if err := b.promote(st, owner); err != nil {
			left := make([]string, 0, len(b.staged)-i)
			for _, rest := range b.staged[i:] {
				left = append(left, rest.stagedPath+" -> "+rest.RelPath(owner))
			}
			applog.Errorf("[STORAGE] %s: files left in staging %v: %v", b.entity, left, err)
			return err
		}
	}

	for _, rel := range b.removes {
		if err := b.store.Remove(b.entity, rel); err != nil {
			applog.Warnf("[STORAGE] could not remove %s/%s: %v", b.entity, rel, err)
		}
	}
	return nil
}

func (b *Batch) promote(st *Staged, owner string) error {
	dst, err := b.store.Path(b.entity, st.RelPath(owner))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("promote %s: %w", st.FileName, err)
	}
	if err := os.Rename(st.stagedPath, dst); err != nil {
		return fmt.Errorf("promote %s: %w", st.FileName, err)
	}
	st.finalPath = dst
	return nil
}

// Discard removes every staged and promoted file of an unfinished batch.
func (b *Batch) Discard() {
	if b.done {
		return
	}
	for _, st := range b.staged {
		for _, p := range []string{st.stagedPath, st.finalPath} {
			if p == "" {
				continue
			}
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				applog.Warnf("[STORAGE] could not discard %s: %v", p, err)
			}
		}
	}
	b.staged = nil
	b.removes = nil
}

// Len reports how many files are staged.
func (b *Batch) Len() int { return len(b.staged) }
