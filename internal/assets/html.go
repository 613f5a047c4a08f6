package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yacobolo/assetpipe/internal/console"
)

var (
	// @@include('partials/header.html') or @@include("x.html", {"title": "Home"})
	includePattern = regexp.MustCompile(`@@include\(\s*["']([^"']+)["']\s*(?:,\s*(\{[\s\S]*?\})\s*)?\)`)

	// @@title or @@page.title
	varPattern = regexp.MustCompile(`@@([A-Za-z_][A-Za-z0-9_]*(?:\.[A-Za-z_][A-Za-z0-9_]*)*)`)
)

// maxIncludeDepth guards against runaway include chains that are not
// literal cycles (e.g. a partial including itself under another path).
const maxIncludeDepth = 32

// HTML resolves @@include directives in each page and writes the result.
type HTML struct {
	Source string // e.g. "src/*.html"
	Dest   string
	Log    *console.Logger
	Notify Notifier
}

// Run implements the task.
func (h HTML) Run(ctx context.Context) error {
	files, err := Select(h.Source)
	if err != nil {
		return err
	}

	base := Base(h.Source)
	var written []string
	var errs []error
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := RenderIncludes(file, nil)
		if err != nil {
			if h.Log != nil {
				h.Log.Errorf("html: %v", err)
			}
			errs = append(errs, err)
			continue
		}
		dst, err := Mirror(file, base, h.Dest, "")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := WriteFile(dst, []byte(out)); err != nil {
			errs = append(errs, err)
			continue
		}
		written = append(written, dst)
	}

	notifierOrNop(h.Notify).Notify(written...)
	return errors.Join(errs...)
}

// RenderIncludes reads file and expands its includes recursively. Include
// paths are relative to the including file. Parameters passed as a JSON
// object replace @@name references inside the included file.
func RenderIncludes(file string, params map[string]any) (string, error) {
	return renderIncludes(file, params, nil)
}

func renderIncludes(file string, params map[string]any, stack []string) (string, error) {
	abs, err := filepath.Abs(file)
	if err != nil {
		return "", err
	}
	for _, s := range stack {
		if s == abs {
			return "", fmt.Errorf("include cycle: %s -> %s", strings.Join(stack, " -> "), abs)
		}
	}
	if len(stack) >= maxIncludeDepth {
		return "", fmt.Errorf("include depth exceeded at %s", file)
	}
	stack = append(stack, abs)

	// #nosec G304 - path comes from trusted configuration
	content, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", file, err)
	}

	text := string(content)
	if len(params) > 0 {
		text = substituteVars(text, params)
	}

	var firstErr error
	dir := filepath.Dir(file)
	text = includePattern.ReplaceAllStringFunc(text, func(directive string) string {
		if firstErr != nil {
			return directive
		}
		m := includePattern.FindStringSubmatch(directive)

		var childParams map[string]any
		if m[2] != "" {
			if err := json.Unmarshal([]byte(m[2]), &childParams); err != nil {
				firstErr = fmt.Errorf("%s: include parameters for %s: %w", file, m[1], err)
				return directive
			}
		}

		out, err := renderIncludes(filepath.Join(dir, filepath.FromSlash(m[1])), childParams, stack)
		if err != nil {
			firstErr = err
			return directive
		}
		return out
	})
	if firstErr != nil {
		return "", firstErr
	}
	return text, nil
}

// substituteVars replaces @@name references that resolve in params.
// Unknown names are left untouched so nested includes still see them.
func substituteVars(text string, params map[string]any) string {
	return varPattern.ReplaceAllStringFunc(text, func(ref string) string {
		name := strings.TrimPrefix(ref, "@@")
		if name == "include" {
			return ref
		}
		v, ok := lookupParam(params, strings.Split(name, "."))
		if !ok {
			return ref
		}
		switch val := v.(type) {
		case string:
			return val
		case nil:
			return ""
		default:
			b, err := json.Marshal(val)
			if err != nil {
				return ref
			}
			return string(b)
		}
	})
}

func lookupParam(params map[string]any, keys []string) (any, bool) {
	var cur any = params
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[k]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
