package assets

import (
	"fmt"
	"net/url"
	"path/filepath"
	"sync"

	"github.com/bep/godartsass/v2"
	"github.com/yacobolo/assetpipe/internal/console"
)

// SassCompiler turns one SCSS source into CSS.
type SassCompiler interface {
	Compile(req SassRequest) (SassResult, error)
}

// SassRequest describes one compilation.
type SassRequest struct {
	Path         string // Source file, used for error messages and the source map
	Source       string
	IncludePaths []string
	SourceMap    bool
}

// SassResult holds the compiled stylesheet.
type SassResult struct {
	CSS       string
	SourceMap string
}

// DartSass compiles through the Dart Sass embedded protocol. The
// transpiler process is started on first use and reused afterwards.
type DartSass struct {
	Binary string // Path to the "sass" executable; empty means "sass" on PATH
	Log    *console.Logger

	once     sync.Once
	startErr error
	mu       sync.Mutex
	t        *godartsass.Transpiler
}

func (d *DartSass) start() error {
	d.once.Do(func() {
		t, err := godartsass.Start(godartsass.Options{
			DartSassEmbeddedFilename: d.Binary,
			LogEventHandler: func(e godartsass.LogEvent) {
				if d.Log != nil {
					d.Log.Warnf("sass: %s", e.Message)
				}
			},
		})
		if err != nil {
			d.startErr = fmt.Errorf("start dart sass: %w", err)
			return
		}
		d.t = t
	})
	return d.startErr
}

// Compile implements SassCompiler.
func (d *DartSass) Compile(req SassRequest) (SassResult, error) {
	if err := d.start(); err != nil {
		return SassResult{}, err
	}

	abs, err := filepath.Abs(req.Path)
	if err != nil {
		return SassResult{}, err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}

	res, err := d.t.Execute(godartsass.Args{
		Source:                  req.Source,
		URL:                     u.String(),
		IncludePaths:            req.IncludePaths,
		OutputStyle:             godartsass.OutputStyleExpanded,
		SourceSyntax:            godartsass.SourceSyntaxSCSS,
		EnableSourceMap:         req.SourceMap,
		SourceMapIncludeSources: req.SourceMap,
	})
	if err != nil {
		return SassResult{}, err
	}
	return SassResult{CSS: res.CSS, SourceMap: res.SourceMap}, nil
}

// Close stops the transpiler if it was started.
func (d *DartSass) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.t == nil {
		return nil
	}
	err := d.t.Close()
	d.t = nil
	return err
}
