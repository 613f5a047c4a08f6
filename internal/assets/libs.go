package assets

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/yacobolo/assetpipe/internal/console"
)

// Copy moves files matching Source into Dest unchanged, mirroring the
// directory structure. It backs the libs task.
type Copy struct {
	Source string
	Dest   string
	Log    *console.Logger
	Notify Notifier
}

// Run implements the task.
func (c Copy) Run(ctx context.Context) error {
	files, err := Select(c.Source)
	if err != nil {
		return err
	}

	base := Base(c.Source)
	var written []string
	var errs []error
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst, err := Mirror(file, base, c.Dest, "")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		// #nosec G304 - path comes from trusted configuration
		data, err := os.ReadFile(file)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", file, err))
			continue
		}
		if err := WriteFile(dst, data); err != nil {
			errs = append(errs, err)
			continue
		}
		written = append(written, dst)
	}

	if len(errs) > 0 {
		logErrors(c.Log, errs)
	}
	notifierOrNop(c.Notify).Notify(written...)
	return errors.Join(errs...)
}

func logErrors(log *console.Logger, errs []error) {
	if log == nil {
		return
	}
	for _, err := range errs {
		log.Errorf("%v", err)
	}
}
