package assets

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/yacobolo/assetpipe/internal/console"
)

// Scripts transpiles and bundles the script entry points into a single
// file, with an inline source map when SourceMaps is set.
type Scripts struct {
	Source     string // Entry glob, e.g. "src/js/main.js"
	Dest       string // Output directory
	Bundle     string // Output file name, e.g. "main.js"
	Target     string // Language target, e.g. "es2015"
	SourceMaps bool
	Log        *console.Logger
	Notify     Notifier
}

var esTargets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"esnext": api.ESNext,
}

// ParseTarget maps a target name to an esbuild target. Empty means es2015.
func ParseTarget(name string) (api.Target, error) {
	if name == "" {
		return api.ES2015, nil
	}
	t, ok := esTargets[strings.ToLower(name)]
	if !ok {
		return api.DefaultTarget, fmt.Errorf("unknown script target %q", name)
	}
	return t, nil
}

// Run implements the task.
func (s Scripts) Run(ctx context.Context) error {
	entries, err := Select(s.Source)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		if s.Log != nil {
			s.Log.Debugf("js: nothing matches %s", s.Source)
		}
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	target, err := ParseTarget(s.Target)
	if err != nil {
		return err
	}

	// Entries are imported from a virtual stdin module so that several
	// matches end up concatenated into one bundle, in glob order.
	var stdin strings.Builder
	for _, entry := range entries {
		abs, err := filepath.Abs(entry)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", entry, err)
		}
		fmt.Fprintf(&stdin, "import %s;\n", strconv.Quote(filepath.ToSlash(abs)))
	}
	resolveDir, err := filepath.Abs(Base(s.Source))
	if err != nil {
		return err
	}

	bundle := s.Bundle
	if bundle == "" {
		bundle = "main.js"
	}
	outfile, err := filepath.Abs(filepath.Join(s.Dest, bundle))
	if err != nil {
		return err
	}

	sourcemap := api.SourceMapNone
	if s.SourceMaps {
		sourcemap = api.SourceMapInline
	}

	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   stdin.String(),
			ResolveDir: resolveDir,
			Sourcefile: bundle,
			Loader:     api.LoaderJS,
		},
		Bundle:    true,
		Outfile:   outfile,
		Write:     false,
		Target:    target,
		Sourcemap: sourcemap,
		LogLevel:  api.LogLevelSilent,
	})
	if err := buildErrors(result.Errors); err != nil {
		if s.Log != nil {
			s.Log.Errorf("js: %v", err)
		}
		return err
	}
	for _, w := range api.FormatMessages(result.Warnings, api.FormatMessagesOptions{Kind: api.WarningMessage}) {
		if s.Log != nil {
			s.Log.Warnf("%s", strings.TrimSpace(w))
		}
	}

	var written []string
	for _, f := range result.OutputFiles {
		if err := WriteFile(f.Path, f.Contents); err != nil {
			return err
		}
		written = append(written, f.Path)
	}
	notifierOrNop(s.Notify).Notify(written...)
	return nil
}

func buildErrors(msgs []api.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	errs := make([]error, 0, len(msgs))
	for _, m := range msgs {
		if m.Location != nil {
			errs = append(errs, fmt.Errorf("%s:%d:%d: %s", m.Location.File, m.Location.Line, m.Location.Column, m.Text))
			continue
		}
		errs = append(errs, errors.New(m.Text))
	}
	return errors.Join(errs...)
}
