package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default .assetpipe.yaml config file",
	Long:  `Create a .assetpipe.yaml configuration file in the current directory with the standard src/ -> build/ layout.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		force, _ := cmd.Flags().GetBool("force")
		path, _ := cmd.Flags().GetString("config")
		if path == "" {
			path = ".assetpipe.yaml"
		}
		return writeDefaultConfig(cmd, path, force)
	},
}

func writeDefaultConfig(cmd *cobra.Command, path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := os.WriteFile(path, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
	return nil
}

const defaultConfig = `# assetpipe configuration
# Every key can also be set as ASSETPIPE_<KEY>, e.g. ASSETPIPE_SERVER_PORT=8080.

verbose: false
quiet: false
color: false
output-format: text        # text | json
concurrency: 0             # max tasks per parallel step, 0 = unlimited

source-root: src
output-root: build
font-face-partial: src/scss/_local-fonts.scss

paths:
  js:
    source: src/js/main.js
    watch: "src/js/**/*.js"
    dest: build/js
  css:
    source: "src/scss/**/*.scss"
    watch: "src/scss/**/*.scss"
    dest: build/css
  html:
    source: "src/*.html"
    watch: "src/**/*.html"
    dest: build
  img:
    source: "src/img/**/*.{jpg,jpeg,png,gif,webp}"
    watch: "src/img/**/*.*"
    dest: build/img
  webp:
    source: "src/img/**/*.{jpg,jpeg,png,gif}"
    dest: build/img
  svg:
    source: "src/svg/*.svg"
    watch: "src/svg/*.svg"
    dest: build/img
  fonts:
    source: "src/fonts/*.{ttf,otf}"
    watch: "src/fonts/*.*"
    dest: build/fonts
  libs:
    source: "src/libs/**/*.*"
    watch: "src/libs/**/*.*"
    dest: build/libs

server:
  host: localhost
  port: 3000
  live-reload: true

images:
  webp-quality: 75
  jpeg-quality: 75

style:
  source-maps: true
  vendors: [webkit, moz, ms]
  sass-binary: ""          # empty = sass on PATH
  minify: style.css

scripts:
  target: es2015
  source-maps: true
  bundle: main.js
`

func init() {
	initCmd.Flags().Bool("force", false, "Overwrite existing config file")
}
