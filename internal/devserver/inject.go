package devserver

import (
	"bytes"
)

// ClientPath is where the live reload client script is served.
const ClientPath = "/__livereload.js"

var scriptTag = []byte(`<script src="` + ClientPath + `" async></script>`)

// InjectClient inserts the client script tag before the last </body>, or
// appends it when the document has no body end tag.
func InjectClient(html []byte) []byte {
	i := bytes.LastIndex(bytes.ToLower(html), []byte("</body>"))
	if i < 0 {
		out := make([]byte, 0, len(html)+len(scriptTag))
		return append(append(out, html...), scriptTag...)
	}
	out := make([]byte, 0, len(html)+len(scriptTag))
	out = append(out, html[:i]...)
	out = append(out, scriptTag...)
	return append(out, html[i:]...)
}
