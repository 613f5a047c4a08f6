// Package assetpipe builds front-end assets from a src/ tree into a build/
// tree and serves the result with live reload.
//
// Each asset class (scripts, stylesheets, HTML pages, images, SVG icons,
// fonts, vendored libraries) has a task that selects its sources by glob,
// transforms them and mirrors them into the output directory. Tasks are
// composed into workflows with series and parallel steps:
//
//	cfg := assetpipe.DefaultConfig()
//	p, err := assetpipe.New(cfg, assetpipe.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	defer p.Close()
//	result, err := p.Run(ctx, assetpipe.TaskBuild)
//
// # Workflows
//
//	build    clean, then every asset task in parallel, then minify-css and minify-js
//	dev      clean and build, then watch sources and serve build/ on port 3000
//	fonts    ttf-to-woff, ttf-to-woff2, font-face
//	images   img, webp
//	svg      sprite of src/svg/*.svg
//	clean    remove build/
//
// "default" is an alias for dev.
//
// # CLI Tool
//
// Install the command line tool with:
//
//	go install github.com/yacobolo/assetpipe/cmd/assetpipe@latest
package assetpipe
