// Package assets implements one build task per asset class: scripts,
// styles, markup, raster and vector images, fonts and third-party libraries.
//
// Every task follows the same shape: select source files with a glob,
// transform them with a library, write the result under the output
// directory mirroring the source layout, then tell the live-reload channel
// which files changed. A transform failure on one file is logged and
// collected; the remaining files are still processed and the task returns
// the joined errors.
package assets
