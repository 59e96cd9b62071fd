package main

import (
	"FlowTagger/internal/config"
	"FlowTagger/internal/engine/manager"
	"context"
	goflag "flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"k8s.io/klog/v2"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type options struct {
	configPath  string
	lookup      string
	flowLogs    string
	output      string
	metricsFile string
	awsRegion   string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "flowtagger",
		Long:          "Tags flow log records by destination port and protocol and writes per-tag and per-port/protocol counts",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Process one flow log file against a lookup table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	addRunFlags(runCmd.Flags(), opts)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}

	rootCmd.AddCommand(runCmd, versionCmd)
	return rootCmd
}

func addRunFlags(fs *flag.FlagSet, opts *options) {
	fs.StringVar(&opts.configPath, "config", "", "Path to a YAML configuration file")
	fs.StringVar(&opts.lookup, "lookup", "", "Lookup table location (path or s3://bucket/key)")
	fs.StringVar(&opts.flowLogs, "flows", "", "Flow log location (path or s3://bucket/key)")
	fs.StringVar(&opts.output, "output", "", "Report location (path or s3://bucket/key)")
	fs.StringVar(&opts.metricsFile, "metrics-file", "", "Write run metrics in the Prometheus text format to this file")
	fs.StringVar(&opts.awsRegion, "aws-region", "", "AWS region for s3:// locations")
}

// loadConfig builds the configuration from the optional file, then applies the
// flags that were set explicitly.
func loadConfig(opts *options, fs *flag.FlagSet) (*config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
		klog.Infof("Configuration loaded from '%s'", opts.configPath)
	}

	if fs.Changed("lookup") {
		cfg.Input.Lookup = opts.lookup
	}
	if fs.Changed("flows") {
		cfg.Input.FlowLogs = opts.flowLogs
	}
	if fs.Changed("output") {
		cfg.Output.Report = opts.output
	}
	if fs.Changed("metrics-file") {
		cfg.Output.MetricsFile = opts.metricsFile
	}
	if fs.Changed("aws-region") {
		cfg.AWS.Region = opts.awsRegion
	}
	return cfg, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	// 1. Initialize the pipeline and its sinks
	mgr, err := manager.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to create manager: %w", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			klog.Errorf("Failed to close sinks: %v", err)
		}
	}()

	// 2. Tag, count and report
	r, err := mgr.Run(ctx)
	if err != nil {
		return err
	}
	klog.Infof("Run %s complete: %d records, %d tags", r.RunID, r.Stats.RecordsParsed, len(r.TagCounts))
	return nil
}

func main() {
	klog.InitFlags(nil)
	flag.CommandLine.AddGoFlagSet(goflag.CommandLine)
	defer klog.Flush()

	rootCmd := newRootCmd()
	rootCmd.PersistentFlags().AddFlagSet(flag.CommandLine)
	if err := rootCmd.Execute(); err != nil {
		klog.Errorf("flowtagger: %v", err)
		klog.Flush()
		os.Exit(1)
	}
}
