package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/yacobolo/assetpipe"
	"github.com/yacobolo/assetpipe/internal/console"
)

var devCmd = workflowCmd(assetpipe.TaskDev,
	"Build, then watch sources and serve build/ with live reload",
	`Clean and rebuild every asset, then watch the source tree and serve the
output root on http://localhost:3000. A failing initial build still starts
the server; fixing the source rebuilds through the watcher.`)

var buildCmd = workflowCmd(assetpipe.TaskBuild,
	"Clean and build all assets for production",
	`Clean the output root, build every asset class in parallel, then minify
the stylesheet and the script bundle.`)

var cleanCmd = workflowCmd(assetpipe.TaskClean,
	"Remove the output root", "")

var fontsCmd = workflowCmd(assetpipe.TaskFonts,
	"Convert fonts to WOFF and WOFF2 and write the font-face partial", "")

var imagesCmd = workflowCmd(assetpipe.TaskImages,
	"Optimize images and convert them to WEBP", "")

var svgCmd = workflowCmd(assetpipe.TaskSVG,
	"Build the SVG sprite", "")

var runCmd = &cobra.Command{
	Use:   "run TASK",
	Short: "Run any task or workflow by name",
	Long:  `Run a single task such as style or minify-js. List them with "assetpipe tasks".`,
	Args:  cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWorkflow(cmd, args[0])
	},
	ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return taskNames(), cobra.ShellCompDirectiveNoFileComp
	},
}

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List runnable tasks and workflows",
	Args:  cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		p, err := assetpipe.New(buildConfig())
		if err != nil {
			return err
		}
		defer func() { _ = p.Close() }()
		for _, name := range p.Names() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	addServerFlags(devCmd.Flags())
}

// workflowCmd builds a command that runs the named workflow.
func workflowCmd(name, short, long string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWorkflow(cmd, name)
		},
	}
}

// taskNames lists the registered names of a default pipeline.
func taskNames() []string {
	p, err := assetpipe.New(assetpipe.DefaultConfig())
	if err != nil {
		return nil
	}
	defer func() { _ = p.Close() }()
	return p.Names()
}

// runWorkflow runs name until it finishes or the process is interrupted,
// then prints the run summary.
func runWorkflow(cmd *cobra.Command, name string) error {
	format, err := assetpipe.ParseOutputFormat(getStringWithFallback("output-format", "output-format", "text"))
	if err != nil {
		return err
	}
	quiet := getBoolWithFallback("quiet", "quiet", false)

	log := console.New(cmd.ErrOrStderr(), console.Options{
		Verbose:   getBoolWithFallback("verbose", "verbose", false),
		Quiet:     quiet,
		UseColors: getBoolWithFallback("color", "color", false),
	})

	p, err := assetpipe.New(buildConfig(), assetpipe.WithLogger(log))
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			log.Warnf("%v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := p.Run(ctx, name)
	if runErr != nil && ctx.Err() != nil && errors.Is(runErr, context.Canceled) {
		// Interrupted; dev normally ends this way.
		log.Infof("Stopped")
		return nil
	}

	// JSON always goes to stdout for scripts; the text line joins the log.
	out := cmd.ErrOrStderr()
	if format == assetpipe.OutputJSON {
		out = cmd.OutOrStdout()
	} else if quiet || result == nil {
		return runErr
	}
	report := assetpipe.NewReport(name, result, runErr)
	if err := assetpipe.WriteReport(out, report, format, log.UseColors()); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return runErr
}
