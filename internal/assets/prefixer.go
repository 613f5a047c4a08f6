package assets

import (
	"bytes"
	"errors"
	"io"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
)

// Vendor prefixes.
const (
	VendorWebkit = "webkit"
	VendorMoz    = "moz"
	VendorMS     = "ms"
)

// DefaultVendors covers the legacy browser list the project targets
// (Android >= 4, Chrome >= 20, Firefox >= 24, Explorer >= 11, iOS >= 6,
// Opera >= 12, Safari >= 6).
var DefaultVendors = []string{VendorWebkit, VendorMoz, VendorMS}

// prefixTable lists properties that still need vendor copies for the
// supported browsers, and which vendors.
var prefixTable = map[string][]string{
	"appearance":                 {VendorWebkit, VendorMoz},
	"backdrop-filter":            {VendorWebkit},
	"backface-visibility":        {VendorWebkit},
	"box-decoration-break":       {VendorWebkit},
	"clip-path":                  {VendorWebkit},
	"column-count":               {VendorWebkit, VendorMoz},
	"column-gap":                 {VendorWebkit, VendorMoz},
	"columns":                    {VendorWebkit, VendorMoz},
	"hyphens":                    {VendorWebkit, VendorMoz, VendorMS},
	"mask":                       {VendorWebkit},
	"mask-image":                 {VendorWebkit},
	"mask-size":                  {VendorWebkit},
	"perspective":                {VendorWebkit},
	"tab-size":                   {VendorMoz},
	"text-decoration-skip":       {VendorWebkit},
	"text-emphasis":              {VendorWebkit},
	"text-size-adjust":           {VendorWebkit, VendorMoz, VendorMS},
	"transform-style":            {VendorWebkit},
	"user-select":                {VendorWebkit, VendorMoz, VendorMS},
	"print-color-adjust":         {VendorWebkit},
	"font-feature-settings":      {VendorWebkit, VendorMoz},
	"font-kerning":               {VendorWebkit},
	"text-align-last":            {VendorMoz},
	"scroll-snap-type":           {VendorWebkit, VendorMS},
	"touch-action":               {VendorMS},
	"overflow-scrolling":         {VendorWebkit},
	"tap-highlight-color":        {VendorWebkit},
	"box-sizing":                 {VendorWebkit, VendorMoz},
	"transition":                 {VendorWebkit},
	"transform":                  {VendorWebkit, VendorMS},
	"animation":                  {VendorWebkit},
	"flex":                       {VendorWebkit, VendorMS},
	"flex-direction":             {VendorWebkit, VendorMS},
	"flex-wrap":                  {VendorWebkit, VendorMS},
	"align-items":                {VendorWebkit},
	"justify-content":            {VendorWebkit},
	"order":                      {VendorWebkit},
	"filter":                     {VendorWebkit},
	"background-clip":            {VendorWebkit},
	"text-fill-color":            {VendorWebkit},
	"text-stroke":                {VendorWebkit},
	"text-stroke-width":          {VendorWebkit},
	"text-stroke-color":          {VendorWebkit},
	"font-smoothing":             {VendorWebkit},
	"osx-font-smoothing":         {VendorMoz},
	"line-clamp":                 {VendorWebkit},
	"box-orient":                 {VendorWebkit},
	"writing-mode":               {VendorWebkit, VendorMS},
	"break-inside":               {VendorWebkit},
	"text-orientation":           {VendorWebkit},
	"text-combine-upright":       {VendorWebkit, VendorMS},
	"content-visibility":         {VendorWebkit},
	"initial-letter":             {VendorWebkit},
	"text-underline-position":    {VendorWebkit},
	"text-decoration-style":      {VendorWebkit, VendorMoz},
	"text-decoration-color":      {VendorWebkit, VendorMoz},
	"text-decoration-line":       {VendorWebkit, VendorMoz},
	"animation-name":             {VendorWebkit},
	"animation-duration":         {VendorWebkit},
	"animation-delay":            {VendorWebkit},
	"animation-timing-function":  {VendorWebkit},
	"animation-iteration-count":  {VendorWebkit},
	"animation-fill-mode":        {VendorWebkit},
	"transition-property":        {VendorWebkit},
	"transition-duration":        {VendorWebkit},
	"transition-timing-function": {VendorWebkit},
	"transform-origin":           {VendorWebkit, VendorMS},
}

// valuePrefixTable lists keyword values that need vendor spellings, by
// property. The copies keep the standard property name.
var valuePrefixTable = map[string]map[string][]vendorValue{
	"display": {
		"flex":        {{VendorWebkit, "-webkit-box"}, {VendorMS, "-ms-flexbox"}},
		"inline-flex": {{VendorWebkit, "-webkit-inline-box"}, {VendorMS, "-ms-inline-flexbox"}},
	},
	"position": {
		"sticky": {{VendorWebkit, "-webkit-sticky"}},
	},
}

type vendorValue struct {
	vendor string
	value  string
}

// Prefixer inserts vendor-prefixed copies of declarations in front of the
// standard ones. Everything else passes through byte for byte.
type Prefixer struct {
	vendors map[string]bool
}

// NewPrefixer creates a prefixer emitting only the given vendors.
func NewPrefixer(vendors []string) *Prefixer {
	p := &Prefixer{vendors: make(map[string]bool, len(vendors))}
	for _, v := range vendors {
		p.vendors[strings.Trim(strings.ToLower(v), "-")] = true
	}
	return p
}

type lexToken struct {
	tt   css.TokenType
	text []byte
}

// declared holds the property names, and name:keyword pairs, already
// written in one block. Prefixes an author wrote by hand are not added
// a second time.
type declared map[string]bool

// Process rewrites a stylesheet.
func (p *Prefixer) Process(src string) (string, error) {
	var out bytes.Buffer
	out.Grow(len(src) + len(src)/8)

	lexer := css.NewLexer(parse.NewInputString(src))

	// One entry per open brace.
	var blocks []declared
	open := func() { blocks = append(blocks, declared{}) }
	closeBlock := func() {
		if len(blocks) > 0 {
			blocks = blocks[:len(blocks)-1]
		}
	}

	atDeclStart := false
	var ind indentation

	for {
		tt, text := lexer.Next()
		if tt == css.ErrorToken {
			// ErrorToken at EOF is normal
			break
		}

		switch tt {
		case css.LeftBraceToken:
			open()
			atDeclStart = true
			ind = indentation{}
			out.Write(text)
			continue
		case css.RightBraceToken:
			closeBlock()
			atDeclStart = len(blocks) > 0
			ind = indentation{}
			out.Write(text)
			continue
		case css.SemicolonToken:
			atDeclStart = len(blocks) > 0
			ind = indentation{}
			out.Write(text)
			continue
		case css.WhitespaceToken:
			if atDeclStart {
				ind = indentOf(text)
			}
			out.Write(text)
			continue
		case css.CommentToken:
			out.Write(text)
			continue
		}

		if len(blocks) > 0 && atDeclStart && tt == css.IdentToken {
			name := string(text)
			lower := strings.ToLower(name)
			seen := blocks[len(blocks)-1]
			seen[lower] = true

			vendors := p.vendorsFor(lower)
			values := p.valuesFor(lower)
			if len(vendors) > 0 || len(values) > 0 {
				rest, closing := readDeclaration(lexer)
				isSelector := closing != nil && closing.tt == css.LeftBraceToken
				terminated := len(rest) > 0 && rest[len(rest)-1].tt == css.SemicolonToken
				if !isSelector {
					keyword, at := singleKeyword(rest)
					if keyword != "" {
						seen[lower+":"+keyword] = true
					}
					if terminated || closing != nil {
						for _, v := range vendors {
							prefixed := "-" + v + "-" + name
							if seen[strings.ToLower(prefixed)] {
								continue
							}
							writeCopy(&out, prefixed, rest, -1, "", ind)
						}
						for _, value := range values[keyword] {
							if seen[lower+":"+value] {
								continue
							}
							writeCopy(&out, name, rest, at, value, ind)
						}
					}
				}
				out.WriteString(name)
				writeTokens(&out, rest)
				ind = indentation{}

				switch {
				case closing == nil:
					atDeclStart = terminated
				case isSelector:
					// A nested selector that happens to start like a property.
					open()
					atDeclStart = true
					out.Write(closing.text)
				default:
					closeBlock()
					atDeclStart = len(blocks) > 0
					out.Write(closing.text)
				}
				continue
			}
		}

		atDeclStart = false
		out.Write(text)
	}

	if err := lexer.Err(); err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return out.String(), nil
}

func (p *Prefixer) vendorsFor(name string) []string {
	if strings.HasPrefix(name, "-") {
		return nil
	}
	var out []string
	for _, v := range prefixTable[name] {
		if p.vendors[v] {
			out = append(out, v)
		}
	}
	return out
}

// valuesFor returns the prefixed spellings of each keyword value of a
// property, limited to the enabled vendors.
func (p *Prefixer) valuesFor(name string) map[string][]string {
	keywords := valuePrefixTable[name]
	if len(keywords) == 0 {
		return nil
	}
	out := make(map[string][]string, len(keywords))
	for keyword, vvs := range keywords {
		for _, vv := range vvs {
			if p.vendors[vv.vendor] {
				out[keyword] = append(out[keyword], vv.value)
			}
		}
	}
	return out
}

// singleKeyword returns the lowercased value of a declaration whose value
// is one identifier, and that token's index in rest.
func singleKeyword(rest []lexToken) (string, int) {
	keyword, at := "", -1
	for i, t := range rest {
		switch t.tt {
		case css.WhitespaceToken, css.ColonToken, css.SemicolonToken:
			continue
		case css.IdentToken:
			if at >= 0 {
				return "", -1
			}
			keyword, at = strings.ToLower(string(t.text)), i
		default:
			return "", -1
		}
	}
	return keyword, at
}

// readDeclaration collects the tokens after a property name up to and
// including the terminating semicolon. If a brace ends the run first, it is
// returned separately so the caller can keep track of nesting.
func readDeclaration(lexer *css.Lexer) (rest []lexToken, closing *lexToken) {
	parens := 0
	for {
		tt, text := lexer.Next()
		if tt == css.ErrorToken {
			return rest, nil
		}
		tok := lexToken{tt: tt, text: append([]byte(nil), text...)}

		switch tt {
		case css.LeftParenthesisToken, css.FunctionToken:
			parens++
		case css.RightParenthesisToken:
			if parens > 0 {
				parens--
			}
		case css.SemicolonToken:
			if parens == 0 {
				return append(rest, tok), nil
			}
		case css.RightBraceToken, css.LeftBraceToken:
			return rest, &tok
		}
		rest = append(rest, tok)
	}
}

// writeCopy writes one extra declaration in front of the original. When
// at is a valid index, the token there is replaced by value.
func writeCopy(out *bytes.Buffer, name string, rest []lexToken, at int, value string, ind indentation) {
	hasSemicolon := len(rest) > 0 && rest[len(rest)-1].tt == css.SemicolonToken
	out.WriteString(name)
	for i, t := range rest {
		if i == at {
			out.WriteString(value)
			continue
		}
		out.Write(t.text)
	}
	if !hasSemicolon {
		out.WriteByte(';')
	}
	if ind.newline {
		out.WriteByte('\n')
		out.WriteString(ind.prefix)
	} else {
		out.WriteByte(' ')
	}
}

func writeTokens(out *bytes.Buffer, toks []lexToken) {
	for _, t := range toks {
		out.Write(t.text)
	}
}

// indentation is the whitespace in front of a declaration.
type indentation struct {
	newline bool
	prefix  string
}

// indentOf returns the indentation after the final newline of a whitespace run.
func indentOf(ws []byte) indentation {
	if i := bytes.LastIndexByte(ws, '\n'); i >= 0 {
		return indentation{newline: true, prefix: string(ws[i+1:])}
	}
	return indentation{}
}
