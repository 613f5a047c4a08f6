package assets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/yacobolo/assetpipe/internal/console"
)

// FontFace regenerates the stylesheet partial that declares one font-face
// mixin call per font family found in the built fonts directory.
//
// Families are deduplicated against the immediately preceding directory
// entry only, so a family whose files are not adjacent in the listing is
// emitted again. The partial is truncated before the scan and rewritten
// in full on every run.
type FontFace struct {
	FontsDir string // e.g. "build/fonts"
	Partial  string // e.g. "src/scss/_local-fonts.scss"
	Log      *console.Logger
}

// Run implements the task.
func (ff FontFace) Run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := WriteFile(ff.Partial, nil); err != nil {
		return ff.fail(err)
	}

	entries, err := os.ReadDir(ff.FontsDir)
	if err != nil {
		return ff.fail(fmt.Errorf("read fonts directory: %w", err))
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}

	families := FontFamilies(names)
	var b strings.Builder
	for _, family := range families {
		b.WriteString(FontFaceInclude(family))
	}
	if err := WriteFile(ff.Partial, []byte(b.String())); err != nil {
		return ff.fail(err)
	}

	if ff.Log != nil {
		for _, family := range families {
			ff.Log.Notice(
				fmt.Sprintf("Added new font: %s.", family),
				fmt.Sprintf("Please, move mixin call from %s to src/scss/global/_fonts.scss and then change it!", ff.Partial),
			)
		}
	}
	return nil
}

func (ff FontFace) fail(err error) error {
	if ff.Log != nil {
		ff.Log.Errorf("Error while processing fonts: %v", err)
	}
	return err
}

// FontFamilies walks directory entries in order and returns the family of
// every WOFF/WOFF2 entry whose family differs from the previous entry's.
// The family is the name up to the first dot; the previous family is
// updated for every entry, font or not.
func FontFamilies(names []string) []string {
	var families []string
	prev := ""
	first := true
	for _, name := range names {
		parts := strings.Split(name, ".")
		family := parts[0]
		ext := ""
		if len(parts) > 1 {
			ext = parts[1]
		}
		if ext == "woff" || ext == "woff2" {
			if first || family != prev {
				families = append(families, family)
			}
		}
		prev = family
		first = false
	}
	return families
}

// FontFaceInclude renders one mixin call with weight 400.
func FontFaceInclude(family string) string {
	return fmt.Sprintf("@include font-face(\"%s\", \"%s\", 400);\r\n", family, family)
}
