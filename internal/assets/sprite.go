package assets

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"
	"github.com/yacobolo/assetpipe/internal/console"
)

// stackStyle shows only the shape addressed by the URL fragment, so
// "sprite.svg#icon" renders a single icon.
const stackStyle = `<style>:root>svg{display:none}:root>svg:target{display:block}</style>`

// Sprite merges every SVG into a single "stack" sprite: each source file
// becomes a nested <svg> whose id is the file name.
type Sprite struct {
	Source string // e.g. "src/svg/*.svg"
	Dest   string // directory receiving the sprite
	Name   string // sprite file name, default "sprite.svg"
	Log    *console.Logger
	Notify Notifier
}

// Shape is one parsed source SVG.
type Shape struct {
	ID    string
	Attrs []xml.Attr
	Inner string
}

// Run implements the task.
func (s Sprite) Run(ctx context.Context) error {
	files, err := Select(s.Source)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return nil
	}

	var shapes []Shape
	var errs []error
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		// #nosec G304 - path comes from trusted configuration
		data, err := os.ReadFile(file)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", file, err))
			continue
		}
		shape, err := ParseShape(strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)), data)
		if err != nil {
			if s.Log != nil {
				s.Log.Errorf("svg: %s: %v", file, err)
			}
			errs = append(errs, fmt.Errorf("%s: %w", file, err))
			continue
		}
		shapes = append(shapes, shape)
	}

	out, err := BuildSprite(shapes)
	if err != nil {
		return errors.Join(append(errs, err)...)
	}

	name := s.Name
	if name == "" {
		name = "sprite.svg"
	}
	dst := filepath.Join(s.Dest, name)
	if err := WriteFile(dst, out); err != nil {
		return errors.Join(append(errs, err)...)
	}
	notifierOrNop(s.Notify).Notify(dst)
	return errors.Join(errs...)
}

// ParseShape extracts the root <svg> attributes and inner markup.
func ParseShape(id string, data []byte) (Shape, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return Shape{}, errors.New("no <svg> root element")
		}
		if err != nil {
			return Shape{}, fmt.Errorf("parse svg: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if start.Name.Local != "svg" {
			return Shape{}, fmt.Errorf("root element is <%s>, want <svg>", start.Name.Local)
		}

		open := int(dec.InputOffset())
		end := bytes.LastIndex(data, []byte("</svg>"))
		inner := ""
		if end >= open {
			inner = string(data[open:end])
		}
		return Shape{ID: id, Attrs: shapeAttrs(start.Attr), Inner: strings.TrimSpace(inner)}, nil
	}
}

// shapeAttrs keeps the attributes that matter inside a sprite.
func shapeAttrs(attrs []xml.Attr) []xml.Attr {
	var out []xml.Attr
	for _, a := range attrs {
		if a.Name.Space != "" || a.Name.Local == "xmlns" || a.Name.Local == "id" {
			continue
		}
		switch a.Name.Local {
		case "viewBox", "width", "height", "fill", "stroke", "preserveAspectRatio":
			out = append(out, a)
		}
	}
	return out
}

// BuildSprite renders shapes into a minified stack sprite.
func BuildSprite(shapes []Shape) ([]byte, error) {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink">`)
	b.WriteString(stackStyle)
	for _, sh := range shapes {
		b.WriteString(`<svg id="`)
		_ = xml.EscapeText(&b, []byte(sh.ID))
		b.WriteString(`"`)
		for _, a := range sh.Attrs {
			fmt.Fprintf(&b, ` %s="`, a.Name.Local)
			_ = xml.EscapeText(&b, []byte(a.Value))
			b.WriteString(`"`)
		}
		b.WriteString(`>`)
		b.WriteString(sh.Inner)
		b.WriteString(`</svg>`)
	}
	b.WriteString(`</svg>`)

	m := minify.New()
	m.AddFunc("image/svg+xml", svg.Minify)
	out, err := m.Bytes("image/svg+xml", b.Bytes())
	if err != nil {
		return nil, fmt.Errorf("minify sprite: %w", err)
	}
	return out, nil
}
