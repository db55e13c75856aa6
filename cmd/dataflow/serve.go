package main

import (
	"github.com/spf13/cobra"

	"github.com/dataflow/dataflow/internal/config"
	"github.com/dataflow/dataflow/internal/execctx"
	"github.com/dataflow/dataflow/internal/httpapi"
	"github.com/dataflow/dataflow/internal/logger"
	"github.com/dataflow/dataflow/internal/registry"
)

type serveOptions struct {
	configPath string
	listenAddr string
	plansDir   string
	outputDir  string
}

func newServeCmd(root *rootFlags) *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP driver, serving flows from a directory of plan files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to a driver config YAML file")
	cmd.Flags().StringVar(&opts.listenAddr, "listen", "", "Override the configured HTTP listen address")
	cmd.Flags().StringVar(&opts.plansDir, "plans-dir", "", "Override the configured plans directory")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "Directory for sink output and state files")

	return cmd
}

func runServe(root *rootFlags, opts *serveOptions) error {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if opts.listenAddr != "" {
		cfg.HTTP.ListenAddr = opts.listenAddr
	}
	if opts.plansDir != "" {
		cfg.HTTP.PlansDir = opts.plansDir
	}

	mode := cfg.OutputMode()
	if root.verbose {
		mode = execctx.Debug
	}

	log, err := logger.New(logger.Options{Layer: "httpapi", Component: "serve", HumanReadable: true})
	if err != nil {
		return err
	}

	outputDir := opts.outputDir
	if outputDir == "" {
		outputDir = cfg.OutputDir
	}

	srv := httpapi.NewServer(registry.Default(), cfg.HTTP.PlansDir, outputDir, mode)
	srv.Log = log
	return srv.ListenAndServe(cfg.HTTP.ListenAddr)
}
