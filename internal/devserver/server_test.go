package devserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInjectClient(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "before body end",
			in:   "<html><body><p>x</p></body></html>",
			want: "<html><body><p>x</p>" + string(scriptTag) + "</body></html>",
		},
		{
			name: "upper case tag",
			in:   "<BODY></BODY>",
			want: "<BODY>" + string(scriptTag) + "</BODY>",
		},
		{
			name: "last body end wins",
			in:   "<body><!-- </body> --></body>",
			want: "<body><!-- </body> -->" + string(scriptTag) + "</body>",
		},
		{
			name: "fragment",
			in:   "<p>x</p>",
			want: "<p>x</p>" + string(scriptTag),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(InjectClient([]byte(tt.in))))
		})
	}
}

func newTestRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"index.html":      "<html><body>home</body></html>",
		"about.html":      "<html><body>about</body></html>",
		"css/style.css":   "a{color:red}",
		"docs/index.html": "<body>docs</body>",
	}
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestStaticServing(t *testing.T) {
	s := New(Options{Root: newTestRoot(t), LiveReload: true})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "home")
	assert.Contains(t, body, ClientPath)

	_, body = get(t, ts.URL+"/about.html")
	assert.Equal(t, "<html><body>about"+string(scriptTag)+"</body></html>", body)

	_, body = get(t, ts.URL+"/docs/")
	assert.Contains(t, body, "docs")
	assert.Contains(t, body, ClientPath)

	resp, body = get(t, ts.URL+"/css/style.css")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "a{color:red}", body)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/css")

	resp, _ = get(t, ts.URL+"/missing.html")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = get(t, ts.URL+ClientPath)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, LiveReloadPath)
}

func TestStaticWithoutLiveReload(t *testing.T) {
	s := New(Options{Root: newTestRoot(t)})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, body := get(t, ts.URL+"/about.html")
	assert.Equal(t, "<html><body>about</body></html>", body)

	resp, _ := get(t, ts.URL+ClientPath)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORSHeaders(t *testing.T) {
	s := New(Options{Root: newTestRoot(t)})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/css/style.css", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://example.test")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "assetpipe_up 1\n")
	})
	s := New(Options{Root: newTestRoot(t), Metrics: metrics})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	_, body := get(t, ts.URL+MetricsPath)
	assert.Equal(t, "assetpipe_up 1\n", body)
}

func dial(t *testing.T, s *Server, serverURL string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(serverURL, "http") + LiveReloadPath
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return s.Clients() > 0 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestNotify(t *testing.T) {
	root := newTestRoot(t)
	var kinds []string
	s := New(Options{
		Root:       root,
		LiveReload: true,
		OnReload:   func(kind string) { kinds = append(kinds, kind) },
	})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	conn := dial(t, s, ts.URL)
	defer func() { _ = conn.Close() }()

	s.Notify(filepath.Join(root, "css/style.css"))
	assert.Equal(t, Message{Type: TypeInject, Path: "/css/style.css"}, readMessage(t, conn))

	s.Notify(filepath.Join(root, "css/style.css"), filepath.Join(root, "js/main.js"))
	assert.Equal(t, Message{Type: TypeReload}, readMessage(t, conn))

	s.Notify()
	assert.Equal(t, []string{TypeInject, TypeReload}, kinds)
}

func TestNotifyDisabled(t *testing.T) {
	called := false
	s := New(Options{Root: t.TempDir(), OnReload: func(string) { called = true }})
	s.Notify("index.html")
	assert.False(t, called)
}

func TestStartAndShutdown(t *testing.T) {
	s := New(Options{Root: newTestRoot(t), Host: "127.0.0.1", Port: 0, LiveReload: true})
	require.NoError(t, s.Start(context.Background()))
	require.NotEmpty(t, s.Addr())
	assert.True(t, strings.HasPrefix(s.URL(), "http://127.0.0.1:"))

	assert.Error(t, s.Start(context.Background()), "already started")

	_, body := get(t, s.URL()+"/")
	assert.Contains(t, body, "home")

	conn := dial(t, s, s.URL())
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "browsers are disconnected on shutdown")
}

func TestRunStopsOnCancel(t *testing.T) {
	s := New(Options{Root: newTestRoot(t), Host: "127.0.0.1"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestNotifyWithoutBrowsers(t *testing.T) {
	called := false
	s := New(Options{Root: t.TempDir(), LiveReload: true, OnReload: func(string) { called = true }})
	s.Notify("index.html")
	assert.False(t, called)
}

func TestRestartAfterShutdown(t *testing.T) {
	s := New(Options{Root: newTestRoot(t), Host: "127.0.0.1"})
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Shutdown(context.Background()))
	assert.Empty(t, s.Addr())

	require.NoError(t, s.Start(context.Background()))
	assert.NotEmpty(t, s.Addr())
	require.NoError(t, s.Shutdown(context.Background()))
}
