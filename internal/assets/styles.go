package assets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yacobolo/assetpipe/internal/console"
)

// Styles compiles every non-partial SCSS file, adds vendor prefixes and
// writes the CSS next to its mirrored location in Dest.
type Styles struct {
	Source     string // e.g. "src/scss/**/*.scss"
	Dest       string
	Compiler   SassCompiler
	Prefixer   *Prefixer
	SourceMaps bool
	Log        *console.Logger
	Notify     Notifier
}

// Run implements the task.
func (s Styles) Run(ctx context.Context) error {
	if s.Compiler == nil {
		return errors.New("styles: no sass compiler configured")
	}

	files, err := Select(s.Source)
	if err != nil {
		return err
	}

	base := Base(s.Source)
	var written []string
	var errs []error
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		// Partials are only reachable through @use/@import.
		if strings.HasPrefix(filepath.Base(file), "_") {
			continue
		}

		dst, err := s.compileFile(file, base)
		if err != nil {
			if s.Log != nil {
				s.Log.Errorf("sass: %v", err)
			}
			errs = append(errs, err)
			continue
		}
		written = append(written, dst)
	}

	notifierOrNop(s.Notify).Notify(written...)
	return errors.Join(errs...)
}

func (s Styles) compileFile(file, base string) (string, error) {
	// #nosec G304 - path comes from trusted configuration
	src, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", file, err)
	}

	res, err := s.Compiler.Compile(SassRequest{
		Path:         file,
		Source:       string(src),
		IncludePaths: []string{filepath.Dir(file), base},
		SourceMap:    s.SourceMaps,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", file, err)
	}

	out := res.CSS
	if s.Prefixer != nil {
		out, err = s.Prefixer.Process(out)
		if err != nil {
			return "", fmt.Errorf("prefix %s: %w", file, err)
		}
	}
	if s.SourceMaps && res.SourceMap != "" {
		out = strings.TrimRight(out, "\n") + "\n" + inlineSourceMap(res.SourceMap) + "\n"
	}

	dst, err := Mirror(file, base, s.Dest, ".css")
	if err != nil {
		return "", err
	}
	if err := WriteFile(dst, []byte(out)); err != nil {
		return "", err
	}
	return dst, nil
}

func inlineSourceMap(sm string) string {
	return "/*# sourceMappingURL=data:application/json;charset=utf-8;base64," +
		base64.StdEncoding.EncodeToString([]byte(sm)) + " */"
}
