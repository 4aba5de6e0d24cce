package storage

import (
	"fmt"
	"os"

	"github.com/disintegration/imaging"
)

// FitImage shrinks a staged image in place so it fits within width x height,
// keeping the aspect ratio and the stored format. Smaller images are left
// untouched. Animated GIFs keep only their first frame when resized.
func (b *Batch) FitImage(st *Staged, width, height int) error {
	if st.stagedPath == "" || st.finalPath != "" {
		return fmt.Errorf("fit %s: %w", st.FileName, ErrBadPath)
	}
	format, err := imaging.FormatFromFilename(st.Name)
	if err != nil {
		return fmt.Errorf("fit %s: %w", st.FileName, err)
	}

	src, err := os.Open(st.stagedPath)
	if err != nil {
		return fmt.Errorf("fit %s: %w", st.FileName, err)
	}
	img, err := imaging.Decode(src)
	src.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", st.FileName, ErrTypeNotAllowed)
	}

	bounds := img.Bounds()
	if bounds.Dx() <= width && bounds.Dy() <= height {
		return nil
	}

	dst, err := os.Create(st.stagedPath)
	if err != nil {
		return fmt.Errorf("fit %s: %w", st.FileName, err)
	}
	if err := imaging.Encode(dst, imaging.Fit(img, width, height, imaging.Lanczos), format); err != nil {
		dst.Close()
		return fmt.Errorf("fit %s: %w", st.FileName, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("fit %s: %w", st.FileName, err)
	}

	info, err := os.Stat(st.stagedPath)
	if err != nil {
		return fmt.Errorf("fit %s: %w", st.FileName, err)
	}
	st.FileSize = info.Size()
	return nil
}
