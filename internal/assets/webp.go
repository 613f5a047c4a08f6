package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/gen2brain/webp"
	"github.com/yacobolo/assetpipe/internal/console"
)

// WebP converts JPEG and PNG images to WEBP and writes each result both
// next to the source and into the build tree. Images whose WEBP in Dest is
// at least as new as the source are skipped. GIFs pass through unconverted.
type WebP struct {
	Source  string // e.g. "src/img/**/*.{jpg,jpeg,png,gif}"
	Dest    string // build tree, also the reference for the changed filter
	Quality int
	Log     *console.Logger
	Notify  Notifier
}

// IsConvertible reports whether a file is converted to WEBP.
func IsConvertible(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png":
		return true
	default:
		return false
	}
}

// Run implements the task.
func (w WebP) Run(ctx context.Context) error {
	files, err := Select(w.Source)
	if err != nil {
		return err
	}

	base := Base(w.Source)
	var written []string
	var errs []error
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		target, err := Mirror(file, base, w.Dest, ".webp")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		changed, err := isNewer(file, target)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !changed {
			continue
		}

		if !IsConvertible(file) {
			out, err := w.passThrough(file, base)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			written = append(written, out...)
			continue
		}

		out, err := w.convert(file, base)
		if err != nil {
			if w.Log != nil {
				w.Log.Errorf("webp: %v", err)
			}
			errs = append(errs, err)
			continue
		}
		written = append(written, out...)
	}

	notifierOrNop(w.Notify).Notify(written...)
	return errors.Join(errs...)
}

func (w WebP) convert(file, base string) ([]string, error) {
	// #nosec G304 - path comes from trusted configuration
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}

	var img image.Image
	switch strings.ToLower(filepath.Ext(file)) {
	case ".png":
		img, err = png.Decode(bytes.NewReader(data))
	default:
		img, err = jpeg.Decode(bytes.NewReader(data))
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", file, err)
	}

	quality := w.Quality
	if quality <= 0 || quality > 100 {
		quality = 75
	}
	var buf bytes.Buffer
	if err := webp.Encode(&buf, img, webp.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode %s: %w", file, err)
	}

	var written []string
	for _, dest := range []string{base, w.Dest} {
		dst, err := Mirror(file, base, dest, ".webp")
		if err != nil {
			return written, err
		}
		if err := WriteFile(dst, buf.Bytes()); err != nil {
			return written, err
		}
		written = append(written, dst)
	}
	return written, nil
}

// passThrough copies an unconverted file to the build tree unless the
// image task already put it there. The source-tree destination is the
// file itself and is never rewritten.
func (w WebP) passThrough(file, base string) ([]string, error) {
	dst, err := Mirror(file, base, w.Dest, "")
	if err != nil {
		return nil, err
	}
	if Exists(dst) {
		return nil, nil
	}
	// #nosec G304 - path comes from trusted configuration
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	if err := WriteFile(dst, data); err != nil {
		return nil, err
	}
	if err := KeepModTime(file, dst); err != nil {
		return nil, err
	}
	return []string{dst}, nil
}

// isNewer reports whether src was modified after target, or target does
// not exist yet.
func isNewer(src, target string) (bool, error) {
	si, err := os.Stat(src)
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", src, err)
	}
	ti, err := os.Stat(target)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", target, err)
	}
	return si.ModTime().After(ti.ModTime()), nil
}
