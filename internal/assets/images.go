package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/yacobolo/assetpipe/internal/console"
)

// Images re-encodes raster images with tighter settings and keeps whichever
// of original and optimized is smaller.
type Images struct {
	Source      string // e.g. "src/img/**/*.{jpg,jpeg,png,gif,webp}"
	Dest        string
	JPEGQuality int
	Log         *console.Logger
	Notify      Notifier
}

// Run implements the task.
func (im Images) Run(ctx context.Context) error {
	files, err := Select(im.Source)
	if err != nil {
		return err
	}

	base := Base(im.Source)
	var written []string
	var errs []error
	var saved int
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		// #nosec G304 - path comes from trusted configuration
		data, err := os.ReadFile(file)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", file, err))
			continue
		}

		out, err := Optimize(filepath.Ext(file), data, im.JPEGQuality)
		if err != nil {
			// Undecodable images are copied as-is.
			if im.Log != nil {
				im.Log.Warnf("img: %s: %v", file, err)
			}
			out = data
		}
		saved += len(data) - len(out)

		dst, err := Mirror(file, base, im.Dest, "")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := WriteFile(dst, out); err != nil {
			errs = append(errs, err)
			continue
		}
		// A copied src/img/*.webp must stay older than an edited source
		// image, or the webp task would consider it up to date.
		if err := KeepModTime(file, dst); err != nil {
			errs = append(errs, err)
			continue
		}
		written = append(written, dst)
	}

	if im.Log != nil && len(files) > 0 {
		im.Log.Infof("img: minified %d images (saved %s)", len(files), formatBytes(saved))
	}
	logErrors(im.Log, errs)
	notifierOrNop(im.Notify).Notify(written...)
	return errors.Join(errs...)
}

// Optimize re-encodes an image by extension. Formats it does not handle,
// and results larger than the input, return the input unchanged.
func Optimize(ext string, data []byte, jpegQuality int) ([]byte, error) {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 75
	}

	var buf bytes.Buffer
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		img, err := jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode jpeg: %w", err)
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case ".png":
		img, err := png.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode png: %w", err)
		}
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case ".gif":
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decode gif: %w", err)
		}
		if err := gif.EncodeAll(&buf, g); err != nil {
			return nil, fmt.Errorf("encode gif: %w", err)
		}
	default:
		return data, nil
	}

	if buf.Len() >= len(data) {
		return data, nil
	}
	return buf.Bytes(), nil
}

func formatBytes(n int) string {
	switch {
	case n < 0:
		return "0 B"
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f kB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
