package assetpipe

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yacobolo/assetpipe/internal/assets"
	"github.com/yacobolo/assetpipe/internal/console"
	"github.com/yacobolo/assetpipe/internal/graph"
)

// echoSass returns the SCSS source unchanged.
type echoSass struct{}

func (echoSass) Compile(req assets.SassRequest) (assets.SassResult, error) {
	return assets.SassResult{CSS: req.Source, SourceMap: `{"version":3}`}, nil
}

type recordingObserver struct {
	mu       sync.Mutex
	started  []string
	finished map[string]error
}

func (r *recordingObserver) TaskStarted(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, name)
}

func (r *recordingObserver) TaskFinished(name string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.finished == nil {
		r.finished = make(map[string]error)
	}
	r.finished[name] = err
}

func tinyFont() []byte {
	data := []byte("head-table-data!")
	buf := make([]byte, 28, 28+len(data))
	binary.BigEndian.PutUint32(buf[0:], 0x00010000)
	binary.BigEndian.PutUint16(buf[4:], 1)
	copy(buf[12:], "head")
	binary.BigEndian.PutUint32(buf[20:], 28)
	binary.BigEndian.PutUint32(buf[24:], uint32(len(data)))
	return append(buf, data...)
}

func tinyPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	img.Set(0, 0, color.RGBA{A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// newProject lays out a small src/ tree and returns its directory.
func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string][]byte{
		"src/index.html":             []byte("<html><body>@@include('html/nav.html')</body></html>"),
		"src/html/nav.html":          []byte("<nav>menu</nav>"),
		"src/js/main.js":             []byte("import { greet } from './modules/greet.js';\ngreet('assets');\n"),
		"src/js/modules/greet.js":    []byte("export function greet(name) {\n  console.log('hello ' + name);\n}\n"),
		"src/scss/style.scss":        []byte("a {\n  user-select: none;\n  color: #ff0000;\n}\n"),
		"src/scss/_local-fonts.scss": nil,
		"src/img/logo.png":           tinyPNG(t),
		"src/svg/arrow.svg":          []byte(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 8 8"><path d="M0 0L8 4L0 8z"/></svg>`),
		"src/fonts/Roboto.ttf":       tinyFont(),
		"src/libs/vendor/lib.js":     []byte("window.lib = {};\n"),
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, content, 0o644))
	}
	return dir
}

func newPipeline(t *testing.T, dir string, opts ...Option) *Pipeline {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Dir = dir
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 0
	p, err := New(cfg, append([]Option{WithSassCompiler(echoSass{})}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OutputRoot = ""
	_, err := New(cfg)
	assert.ErrorContains(t, err, "output-root is required")
}

func TestNames(t *testing.T) {
	p := newPipeline(t, t.TempDir())
	names := p.Names()
	for _, want := range []string{
		TaskBuild, TaskClean, TaskDefault, TaskDev, TaskFonts, TaskImages, TaskSVG,
		TaskHTML, TaskJS, TaskStyle, TaskLibs, TaskImg, TaskWebP, TaskFontFace,
		TaskMinifyCSS, TaskMinifyJS, TaskWatch, TaskServe,
	} {
		assert.Contains(t, names, want)
	}
}

func TestRunUnknownTask(t *testing.T) {
	p := newPipeline(t, t.TempDir())
	_, err := p.Run(context.Background(), "deploy")
	assert.ErrorIs(t, err, graph.ErrUnknownTask)
}

func TestClean(t *testing.T) {
	dir := newProject(t)
	stale := filepath.Join(dir, "build/old/stale.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	p := newPipeline(t, dir)
	_, err := p.Run(context.Background(), TaskClean)
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(dir, "build"))
}

func TestBuild(t *testing.T) {
	dir := newProject(t)
	stale := filepath.Join(dir, "build/stale.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

	obs := &recordingObserver{}
	p := newPipeline(t, dir, WithObserver(obs))
	result, err := p.Run(context.Background(), TaskBuild)
	require.NoError(t, err)

	assert.Equal(t, graph.StateSucceeded, result.FinalState[TaskBuild])
	require.GreaterOrEqual(t, len(result.StartOrder), 2)
	assert.Equal(t, []string{TaskBuild, TaskClean}, result.StartOrder[:2])
	n := len(result.StartOrder)
	assert.Equal(t, []string{TaskMinifyCSS, TaskMinifyJS}, result.StartOrder[n-2:])

	assert.NoFileExists(t, stale, "build starts from a clean output directory")
	for _, rel := range []string{
		"build/index.html",
		"build/js/main.js",
		"build/js/main.min.js",
		"build/css/style.css",
		"build/css/style.min.css",
		"build/img/logo.png",
		"build/img/logo.webp",
		"src/img/logo.webp",
		"build/img/sprite.svg",
		"build/fonts/Roboto.woff",
		"build/fonts/Roboto.woff2",
		"build/libs/vendor/lib.js",
	} {
		assert.FileExists(t, filepath.Join(dir, rel))
	}
	assert.NoFileExists(t, filepath.Join(dir, "build/css/_local-fonts.css"))

	html, err := os.ReadFile(filepath.Join(dir, "build/index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html><body><nav>menu</nav></body></html>", string(html))

	css, err := os.ReadFile(filepath.Join(dir, "build/css/style.css"))
	require.NoError(t, err)
	assert.Contains(t, string(css), "-webkit-user-select: none;")

	partial, err := os.ReadFile(filepath.Join(dir, "src/scss/_local-fonts.scss"))
	require.NoError(t, err)
	assert.Equal(t, "@include font-face(\"Roboto\", \"Roboto\", 400);\r\n", string(partial))

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Contains(t, obs.started, TaskFontFace)
	assert.NoError(t, obs.finished[TaskBuild])
}

func TestImagesReconvertsEditedSource(t *testing.T) {
	dir := newProject(t)
	p := newPipeline(t, dir)

	_, err := p.Run(context.Background(), TaskImages)
	require.NoError(t, err)
	srcWebP := filepath.Join(dir, "src/img/logo.webp")
	buildWebP := filepath.Join(dir, "build/img/logo.webp")
	firstSrc, err := os.ReadFile(srcWebP)
	require.NoError(t, err)
	firstBuild, err := os.ReadFile(buildWebP)
	require.NoError(t, err)

	// Edit the source image the way an editor would: new content, mtime now.
	logo := filepath.Join(dir, "src/img/logo.png")
	edited := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for i := range edited.Pix {
		edited.Pix[i] = 200
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, edited))
	require.NoError(t, os.WriteFile(logo, buf.Bytes(), 0o644))

	// Coarse filesystem clocks can stamp the edit with the conversion time.
	converted, err := os.Stat(buildWebP)
	require.NoError(t, err)
	info, err := os.Stat(logo)
	require.NoError(t, err)
	if !info.ModTime().After(converted.ModTime()) {
		earlier := info.ModTime().Add(-time.Second)
		for _, path := range []string{srcWebP, buildWebP} {
			require.NoError(t, os.Chtimes(path, earlier, earlier))
		}
	}

	_, err = p.Run(context.Background(), TaskImages)
	require.NoError(t, err)

	secondSrc, err := os.ReadFile(srcWebP)
	require.NoError(t, err)
	secondBuild, err := os.ReadFile(buildWebP)
	require.NoError(t, err)
	assert.NotEqual(t, firstSrc, secondSrc, "src/img webp regenerated")
	assert.NotEqual(t, firstBuild, secondBuild, "build/img webp regenerated")
	assert.Equal(t, secondSrc, secondBuild)

	// A third run with no edit leaves the outputs alone.
	before, err := os.Stat(buildWebP)
	require.NoError(t, err)
	_, err = p.Run(context.Background(), TaskImages)
	require.NoError(t, err)
	after, err := os.Stat(buildWebP)
	require.NoError(t, err)
	assert.False(t, after.ModTime().After(before.ModTime()), "unchanged source is not reconverted")
}

func TestBuildStopsAfterFailure(t *testing.T) {
	dir := newProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src/js/main.js"), []byte("import './missing.js';\n"), 0o644))

	p := newPipeline(t, dir)
	result, err := p.Run(context.Background(), TaskBuild)
	require.Error(t, err)

	var te *graph.TaskError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, TaskJS, te.Task)

	assert.Equal(t, graph.StateFailed, result.FinalState[TaskBuild])
	assert.Equal(t, graph.StateFailed, result.FinalState[TaskJS])
	assert.Equal(t, graph.StateSucceeded, result.FinalState[TaskStyle], "siblings finish")
	assert.Equal(t, graph.StatePending, result.FinalState[TaskMinifyCSS])
	assert.Equal(t, graph.StatePending, result.FinalState[TaskMinifyJS])
	assert.FileExists(t, filepath.Join(dir, "build/css/style.css"))
	assert.NoFileExists(t, filepath.Join(dir, "build/css/style.min.css"))
}

func TestRunLogsProgress(t *testing.T) {
	t.Setenv("FORCE_COLOR", "")
	t.Setenv("NO_COLOR", "1")

	var buf bytes.Buffer
	dir := newProject(t)
	p := newPipeline(t, dir, WithLogger(console.New(&buf, console.Options{})))

	_, err := p.Run(context.Background(), TaskClean)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Starting 'clean'...")
	assert.Contains(t, buf.String(), "Finished 'clean' after")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "src/js/main.js"), []byte("let = ;"), 0o644))
	buf.Reset()
	_, err = p.Run(context.Background(), TaskJS)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "'js' errored after")
}

func TestFontsWorkflow(t *testing.T) {
	dir := newProject(t)
	p := newPipeline(t, dir)

	result, err := p.Run(context.Background(), TaskFonts)
	require.NoError(t, err)
	assert.Equal(t, []string{TaskFonts, TaskWOFF, TaskWOFF2, TaskFontFace}, result.StartOrder)
	assert.FileExists(t, filepath.Join(dir, "build/fonts/Roboto.woff2"))
}

func TestDevWorkflow(t *testing.T) {
	dir := newProject(t)
	p := newPipeline(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		_, err := p.Run(ctx, TaskDefault)
		done <- err
	}()

	require.Eventually(t, func() bool { return p.Server().Addr() != "" }, 10*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "build/index.html"))
		return err == nil
	}, 10*time.Second, 20*time.Millisecond)

	resp, err := http.Get(p.Server().URL() + "/index.html")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), "<nav>menu</nav>")
	assert.Contains(t, string(body), "/__livereload.js")

	// A new library file is copied by the watcher-triggered libs task.
	added := filepath.Join(dir, "src/libs/added.js")
	require.Eventually(t, func() bool {
		_ = os.WriteFile(added, []byte("1;"), 0o644)
		_, err := os.Stat(filepath.Join(dir, "build/libs/added.js"))
		return err == nil
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("dev returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("dev did not stop after cancel")
	}
}

func TestDevContinuesAfterBuildFailure(t *testing.T) {
	dir := newProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "src/js/main.js"), []byte("let = ;"), 0o644))
	p := newPipeline(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var result *graph.Result
	go func() {
		defer close(done)
		result, _ = p.Run(ctx, TaskDev)
	}()

	require.Eventually(t, func() bool { return p.Server().Addr() != "" }, 10*time.Second, 20*time.Millisecond)
	cancel()
	<-done

	require.NotNil(t, result)
	assert.Equal(t, graph.StateFailed, result.FinalState["dev:build"])
	assert.NotEqual(t, graph.StatePending, result.FinalState[TaskServe])
	assert.True(t, strings.HasPrefix(p.Server().URL(), "http://127.0.0.1:"))
}
