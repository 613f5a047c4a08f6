package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/yacobolo/assetpipe"
)

var rootCmd = &cobra.Command{
	Use:   "assetpipe",
	Short: "Front-end asset pipeline with a live-reloading dev server",
	Long: `Compiles Sass, bundles scripts, optimizes images, converts fonts and
builds an SVG sprite from src/ into build/.
Without a subcommand it runs the dev workflow: a fresh build, then the
watcher and the dev server on http://localhost:3000.`,
	// Default behavior: run dev when no subcommand is given.
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}
		return runWorkflow(cmd, assetpipe.TaskDefault)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Global persistent flags (inherited by all subcommands)
	pf := rootCmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Enable verbose logging")
	pf.Bool("quiet", false, "Only print errors")
	pf.Bool("color", false, "Force color output")
	pf.String("config", ".assetpipe.yaml", "Config file path")
	pf.String("env-file", ".env", "Dotenv file loaded before reading the environment")
	pf.StringP("dir", "C", "", "Project directory (default: working directory)")
	pf.Int("concurrency", 0, "Max tasks one parallel step runs at once (0=unlimited)")
	pf.String("output-format", "text", "Run summary format: text|json")
	pf.String("source-root", "src", "Source root, watched in dev")
	pf.String("output-root", "build", "Output root, removed by clean and served in dev")
	pf.String("sass-binary", "", "Dart Sass embedded binary (default: sass on PATH)")
	pf.String("target", "es2015", "JavaScript target for the bundle")
	pf.Int("webp-quality", 75, "WEBP encoding quality (0-100)")
	pf.Int("jpeg-quality", 75, "JPEG re-encoding quality (0-100)")

	addServerFlags(rootCmd.Flags())

	rootCmd.AddCommand(devCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(fontsCmd)
	rootCmd.AddCommand(imagesCmd)
	rootCmd.AddCommand(svgCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(completionCmd)
	rootCmd.AddCommand(versionCmd)
}

// addServerFlags registers the dev server flags on commands that serve.
func addServerFlags(f *pflag.FlagSet) {
	f.String("host", "localhost", "Dev server host")
	f.IntP("port", "p", 3000, "Dev server port")
	f.Bool("live-reload", true, "Reload connected browsers when outputs change")
}
