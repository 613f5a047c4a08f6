package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
)

// MinSuffix is inserted before the extension of minified copies.
const MinSuffix = ".min"

// MinifiedPath returns "dir/name.min.ext" for "dir/name.ext".
func MinifiedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + MinSuffix + ext
}

// MinifyCSS writes a minified copy of one stylesheet next to it.
type MinifyCSS struct {
	File string // e.g. "build/css/style.css"
}

// Run implements the task.
func (m MinifyCSS) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// #nosec G304 - path comes from trusted configuration
	src, err := os.ReadFile(m.File)
	if err != nil {
		return fmt.Errorf("minify css: %w", err)
	}

	mn := minify.New()
	mn.AddFunc("text/css", css.Minify)
	out, err := mn.Bytes("text/css", src)
	if err != nil {
		return fmt.Errorf("minify css %s: %w", m.File, err)
	}
	return WriteFile(MinifiedPath(m.File), out)
}

// MinifyJS writes a minified copy of one script next to it.
type MinifyJS struct {
	File string // e.g. "build/js/main.js"
}

// Run implements the task.
func (m MinifyJS) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	// #nosec G304 - path comes from trusted configuration
	src, err := os.ReadFile(m.File)
	if err != nil {
		return fmt.Errorf("minify js: %w", err)
	}

	result := api.Transform(string(src), api.TransformOptions{
		Loader:            api.LoaderJS,
		Sourcefile:        filepath.Base(m.File),
		MinifyWhitespace:  true,
		MinifyIdentifiers: true,
		MinifySyntax:      true,
		LegalComments:     api.LegalCommentsNone,
	})
	if err := buildErrors(result.Errors); err != nil {
		return fmt.Errorf("minify js %s: %w", m.File, err)
	}
	return WriteFile(MinifiedPath(m.File), result.Code)
}
