package assetpipe

import (
	"context"
	"path/filepath"

	"github.com/yacobolo/assetpipe/internal/assets"
	"github.com/yacobolo/assetpipe/internal/graph"
	"github.com/yacobolo/assetpipe/internal/watch"
)

// Task and workflow names.
const (
	TaskClean     = "clean"
	TaskHTML      = "html"
	TaskLibs      = "libs"
	TaskStyle     = "style"
	TaskJS        = "js"
	TaskImg       = "img"
	TaskWebP      = "webp"
	TaskImages    = "images"
	TaskWOFF      = "ttf-to-woff"
	TaskWOFF2     = "ttf-to-woff2"
	TaskFontFace  = "font-face"
	TaskFonts     = "fonts"
	TaskSVG       = "svg"
	TaskMinifyCSS = "minify-css"
	TaskMinifyJS  = "minify-js"
	TaskWatch     = "watch"
	TaskServe     = "serve"
	TaskBuild     = "build"
	TaskDev       = "dev"
	TaskDefault   = "default"
)

// watchedTasks maps each watched asset class to the task its changes rerun.
// SVG sources are not watched.
func (p *Pipeline) watchedTasks() []watch.Rule {
	c := p.cfg
	rule := func(task, pattern string) watch.Rule {
		return watch.Rule{
			Name:     task,
			Patterns: []string{c.path(pattern)},
			Run: func(ctx context.Context) error {
				_, err := p.Run(ctx, task)
				return err
			},
		}
	}
	return []watch.Rule{
		rule(TaskLibs, c.Paths.Libs.Watch),
		rule(TaskHTML, c.Paths.HTML.Watch),
		rule(TaskFonts, c.Paths.Fonts.Watch),
		rule(TaskStyle, c.Paths.CSS.Watch),
		rule(TaskJS, c.Paths.JS.Watch),
		rule(TaskImages, c.Paths.Img.Watch),
	}
}

func (p *Pipeline) leaf(name string, fn graph.Func) *graph.Node {
	p.leaves[name] = true
	return graph.Task(name, fn)
}

// register builds the task graph:
//
//	fonts  = series(ttf-to-woff, ttf-to-woff2, font-face)
//	images = series(img, webp)
//	build  = series(clean, parallel(html, libs, style, js, images, fonts, svg), minify-css, minify-js)
//	dev    = series(series(clean, parallel(html, fonts, libs, style, js, images, svg)), parallel(watch, serve))
func (p *Pipeline) register() error {
	c := p.cfg
	notify := p.server

	clean := p.leaf(TaskClean, func(context.Context) error {
		return assets.Clean(c.path(c.OutputRoot))
	})
	html := p.leaf(TaskHTML, assets.HTML{
		Source: c.path(c.Paths.HTML.Source),
		Dest:   c.path(c.Paths.HTML.Dest),
		Log:    p.log,
		Notify: notify,
	}.Run)
	libs := p.leaf(TaskLibs, assets.Copy{
		Source: c.path(c.Paths.Libs.Source),
		Dest:   c.path(c.Paths.Libs.Dest),
		Log:    p.log,
		Notify: notify,
	}.Run)
	style := p.leaf(TaskStyle, assets.Styles{
		Source:     c.path(c.Paths.CSS.Source),
		Dest:       c.path(c.Paths.CSS.Dest),
		Compiler:   p.sass,
		Prefixer:   assets.NewPrefixer(c.Style.Vendors),
		SourceMaps: c.Style.SourceMaps,
		Log:        p.log,
		Notify:     notify,
	}.Run)
	js := p.leaf(TaskJS, assets.Scripts{
		Source:     c.path(c.Paths.JS.Source),
		Dest:       c.path(c.Paths.JS.Dest),
		Bundle:     c.Scripts.Bundle,
		Target:     c.Scripts.Target,
		SourceMaps: c.Scripts.SourceMaps,
		Log:        p.log,
		Notify:     notify,
	}.Run)
	img := p.leaf(TaskImg, assets.Images{
		Source:      c.path(c.Paths.Img.Source),
		Dest:        c.path(c.Paths.Img.Dest),
		JPEGQuality: c.Images.JPEGQuality,
		Log:         p.log,
		Notify:      notify,
	}.Run)
	webp := p.leaf(TaskWebP, assets.WebP{
		Source:  c.path(c.Paths.WebP.Source),
		Dest:    c.path(c.Paths.WebP.Dest),
		Quality: c.Images.WebPQuality,
		Log:     p.log,
		Notify:  notify,
	}.Run)
	svg := p.leaf(TaskSVG, assets.Sprite{
		Source: c.path(c.Paths.SVG.Source),
		Dest:   c.path(c.Paths.SVG.Dest),
		Log:    p.log,
		Notify: notify,
	}.Run)
	woff := p.leaf(TaskWOFF, assets.FontConvert{
		Source: c.path(c.Paths.Fonts.Source),
		Dest:   c.path(c.Paths.Fonts.Dest),
		Format: assets.FormatWOFF,
		Log:    p.log,
		Notify: notify,
	}.Run)
	woff2 := p.leaf(TaskWOFF2, assets.FontConvert{
		Source: c.path(c.Paths.Fonts.Source),
		Dest:   c.path(c.Paths.Fonts.Dest),
		Format: assets.FormatWOFF2,
		Log:    p.log,
		Notify: notify,
	}.Run)
	fontFace := p.leaf(TaskFontFace, assets.FontFace{
		FontsDir: c.path(c.Paths.Fonts.Dest),
		Partial:  c.path(c.FontFacePartial),
		Log:      p.log,
	}.Run)
	minifyCSS := p.leaf(TaskMinifyCSS, assets.MinifyCSS{
		File: filepath.Join(c.path(c.Paths.CSS.Dest), c.Style.Minify),
	}.Run)
	minifyJS := p.leaf(TaskMinifyJS, assets.MinifyJS{
		File: filepath.Join(c.path(c.Paths.JS.Dest), c.Scripts.Bundle),
	}.Run)
	watcher := p.leaf(TaskWatch, p.watch)
	serve := p.leaf(TaskServe, p.server.Run)

	fonts := graph.Series(TaskFonts, woff, woff2, fontFace)
	images := graph.Series(TaskImages, img, webp)

	build := graph.Series(TaskBuild,
		clean,
		graph.Parallel("build:assets", html, libs, style, js, images, fonts, svg),
		minifyCSS,
		minifyJS,
	)

	// The initial build may fail without keeping the server from starting;
	// fixing the source triggers a rebuild through the watcher.
	dev := graph.Series(TaskDev,
		graph.Optional(graph.Series("dev:build",
			clean,
			graph.Parallel("dev:assets", html, fonts, libs, style, js, images, svg),
		)),
		graph.Parallel("dev:serve", watcher, serve),
	)

	for _, n := range []*graph.Node{
		clean, html, libs, style, js, img, webp, svg,
		woff, woff2, fontFace, minifyCSS, minifyJS, watcher, serve,
		fonts, images, build,
	} {
		if err := p.registry.Register(n); err != nil {
			return err
		}
	}
	return p.registry.Register(dev, TaskDefault)
}

// watch reruns tasks on source changes until ctx is canceled.
func (p *Pipeline) watch(ctx context.Context) error {
	w, err := watch.New(
		[]string{p.cfg.path(p.cfg.SourceRoot)},
		p.watchedTasks(),
		watch.WithLogger(p.log),
	)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	p.log.Infof("Watching %s for changes", p.cfg.SourceRoot)
	return w.Run(ctx)
}
