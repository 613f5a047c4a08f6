package assets

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/yacobolo/assetpipe/internal/console"
	"github.com/yacobolo/assetpipe/internal/fontconv"
)

// FontFormat is a web font container.
type FontFormat string

const (
	FormatWOFF  FontFormat = "woff"
	FormatWOFF2 FontFormat = "woff2"
)

// FontConvert converts TTF/OTF fonts into one web font format.
type FontConvert struct {
	Source string // e.g. "src/fonts/*.{ttf,otf}"
	Dest   string
	Format FontFormat
	Log    *console.Logger
	Notify Notifier
}

// Run implements the task.
func (fc FontConvert) Run(ctx context.Context) error {
	var convert func([]byte) ([]byte, error)
	switch fc.Format {
	case FormatWOFF:
		convert = fontconv.ToWOFF
	case FormatWOFF2:
		convert = fontconv.ToWOFF2
	default:
		return fmt.Errorf("unknown font format %q", fc.Format)
	}

	files, err := Select(fc.Source)
	if err != nil {
		return err
	}

	base := Base(fc.Source)
	var written []string
	var errs []error
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
		out, err := convert(data)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", file, err))
			continue
		}
		dst, err := Mirror(file, base, fc.Dest, "."+string(fc.Format))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := WriteFile(dst, out); err != nil {
			errs = append(errs, err)
			continue
		}
		written = append(written, dst)
	}

	logErrors(fc.Log, errs)
	notifierOrNop(fc.Notify).Notify(written...)
	return errors.Join(errs...)
}
