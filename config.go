package assetpipe

import (
	"errors"
	"fmt"
	"path/filepath"
)

// AssetPaths locates one asset class: the files a task reads, the files
// whose changes rerun it, and where its output goes.
type AssetPaths struct {
	Source string `koanf:"source" yaml:"source"`
	Watch  string `koanf:"watch" yaml:"watch,omitempty"`
	Dest   string `koanf:"dest" yaml:"dest"`
}

// Paths is the path table for every asset class.
type Paths struct {
	JS    AssetPaths `koanf:"js" yaml:"js"`
	CSS   AssetPaths `koanf:"css" yaml:"css"`
	HTML  AssetPaths `koanf:"html" yaml:"html"`
	Img   AssetPaths `koanf:"img" yaml:"img"`
	WebP  AssetPaths `koanf:"webp" yaml:"webp"`
	SVG   AssetPaths `koanf:"svg" yaml:"svg"`
	Fonts AssetPaths `koanf:"fonts" yaml:"fonts"`
	Libs  AssetPaths `koanf:"libs" yaml:"libs"`
}

// ServerConfig configures the development server.
type ServerConfig struct {
	Host       string `koanf:"host" yaml:"host"`
	Port       int    `koanf:"port" yaml:"port"`
	LiveReload bool   `koanf:"live-reload" yaml:"live-reload"`
}

// ImageConfig configures raster image processing.
type ImageConfig struct {
	WebPQuality int `koanf:"webp-quality" yaml:"webp-quality"`
	JPEGQuality int `koanf:"jpeg-quality" yaml:"jpeg-quality"`
}

// StyleConfig configures stylesheet compilation.
type StyleConfig struct {
	SourceMaps bool     `koanf:"source-maps" yaml:"source-maps"`
	Vendors    []string `koanf:"vendors" yaml:"vendors"`
	SassBinary string   `koanf:"sass-binary" yaml:"sass-binary,omitempty"`
	Minify     string   `koanf:"minify" yaml:"minify"` // Stylesheet in CSS.Dest that build minifies
}

// ScriptConfig configures script bundling.
type ScriptConfig struct {
	Target     string `koanf:"target" yaml:"target"`
	SourceMaps bool   `koanf:"source-maps" yaml:"source-maps"`
	Bundle     string `koanf:"bundle" yaml:"bundle"` // Output file name in JS.Dest, also minified by build
}

// Config holds everything a Pipeline needs. It is read once at startup.
type Config struct {
	// Dir is the project directory relative paths are resolved against.
	// Empty means the working directory.
	Dir string `koanf:"dir" yaml:"-"`

	SourceRoot      string       `koanf:"source-root" yaml:"source-root"`
	OutputRoot      string       `koanf:"output-root" yaml:"output-root"`
	Paths           Paths        `koanf:"paths" yaml:"paths"`
	FontFacePartial string       `koanf:"font-face-partial" yaml:"font-face-partial"`
	Server          ServerConfig `koanf:"server" yaml:"server"`
	Images          ImageConfig  `koanf:"images" yaml:"images"`
	Style           StyleConfig  `koanf:"style" yaml:"style"`
	Scripts         ScriptConfig `koanf:"scripts" yaml:"scripts"`

	// Concurrency caps the tasks one parallel step runs at once. 0 means
	// no cap.
	Concurrency int `koanf:"concurrency" yaml:"concurrency"`
}

// DefaultConfig returns the standard src/ -> build/ layout.
func DefaultConfig() Config {
	return Config{
		SourceRoot: "src",
		OutputRoot: "build",
		Paths: Paths{
			JS: AssetPaths{
				Source: "src/js/main.js",
				Watch:  "src/js/**/*.js",
				Dest:   "build/js",
			},
			CSS: AssetPaths{
				Source: "src/scss/**/*.scss",
				Watch:  "src/scss/**/*.scss",
				Dest:   "build/css",
			},
			HTML: AssetPaths{
				Source: "src/*.html",
				Watch:  "src/**/*.html",
				Dest:   "build",
			},
			Img: AssetPaths{
				Source: "src/img/**/*.{jpg,jpeg,png,gif,webp}",
				Watch:  "src/img/**/*.*",
				Dest:   "build/img",
			},
			WebP: AssetPaths{
				Source: "src/img/**/*.{jpg,jpeg,png,gif}",
				Dest:   "build/img",
			},
			SVG: AssetPaths{
				Source: "src/svg/*.svg",
				Watch:  "src/svg/*.svg",
				Dest:   "build/img",
			},
			Fonts: AssetPaths{
				Source: "src/fonts/*.{ttf,otf}",
				Watch:  "src/fonts/*.*",
				Dest:   "build/fonts",
			},
			Libs: AssetPaths{
				Source: "src/libs/**/*.*",
				Watch:  "src/libs/**/*.*",
				Dest:   "build/libs",
			},
		},
		FontFacePartial: "src/scss/_local-fonts.scss",
		Server: ServerConfig{
			Host:       "localhost",
			Port:       3000,
			LiveReload: true,
		},
		Images: ImageConfig{
			WebPQuality: 75,
			JPEGQuality: 75,
		},
		Style: StyleConfig{
			SourceMaps: true,
			Vendors:    []string{"webkit", "moz", "ms"},
			Minify:     "style.css",
		},
		Scripts: ScriptConfig{
			Target:     "es2015",
			SourceMaps: true,
			Bundle:     "main.js",
		},
	}
}

// Validate reports every missing or out-of-range setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.SourceRoot == "" {
		errs = append(errs, errors.New("source-root is required"))
	}
	if c.OutputRoot == "" {
		errs = append(errs, errors.New("output-root is required"))
	}

	classes := []struct {
		name  string
		paths AssetPaths
	}{
		{"js", c.Paths.JS},
		{"css", c.Paths.CSS},
		{"html", c.Paths.HTML},
		{"img", c.Paths.Img},
		{"webp", c.Paths.WebP},
		{"svg", c.Paths.SVG},
		{"fonts", c.Paths.Fonts},
		{"libs", c.Paths.Libs},
	}
	for _, cl := range classes {
		if cl.paths.Source == "" {
			errs = append(errs, fmt.Errorf("paths.%s.source is required", cl.name))
		}
		if cl.paths.Dest == "" {
			errs = append(errs, fmt.Errorf("paths.%s.dest is required", cl.name))
		}
	}

	if c.FontFacePartial == "" {
		errs = append(errs, errors.New("font-face-partial is required"))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if q := c.Images.WebPQuality; q < 0 || q > 100 {
		errs = append(errs, fmt.Errorf("images.webp-quality %d out of range 0-100", q))
	}
	if q := c.Images.JPEGQuality; q < 0 || q > 100 {
		errs = append(errs, fmt.Errorf("images.jpeg-quality %d out of range 0-100", q))
	}
	if c.Scripts.Bundle == "" {
		errs = append(errs, errors.New("scripts.bundle is required"))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency %d must not be negative", c.Concurrency))
	}
	return errors.Join(errs...)
}

// path resolves p against Dir.
func (c Config) path(p string) string {
	if p == "" || c.Dir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir, p)
}
