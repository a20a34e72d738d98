package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/notargets/EMKernel/config"
	"github.com/notargets/EMKernel/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const version = "0.3.0"

var (
	// Global flags
	configPath string
	logLevel   string
	logJSON    bool
	verbose    bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "emkernel",
	Short: "Adaptive finite element S-parameter solver for planar interconnect",
	Long: `emkernel meshes a board described by an HCL deck, refines the mesh at a
reference frequency and sweeps the scattering parameters of its ports.

Examples:
  emkernel run -c microstrip.yaml microstrip.hcl     # Refine and sweep
  emkernel mesh -c microstrip.yaml microstrip.hcl    # Coarse mesh statistics only`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := logLevel
		if verbose {
			level = "debug"
		}
		var err error
		logger, err = logging.New(level, logJSON)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML solver configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "JSON log output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(runCmd, meshCmd, versionCmd)
}

// loadConfig reads the configuration file, or the defaults with a sweep
// given by flags when no file is named
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	rec := config.DefaultRecord()
	if configPath != "" {
		c, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		rec = c.Record()
	}
	flags := cmd.Flags()
	if flags.Changed("workers") {
		rec.NWorkers, _ = flags.GetInt("workers")
	}
	if flags.Changed("refine-frequency") {
		rec.RefineFrequency, _ = flags.GetFloat64("refine-frequency")
	}
	if flags.Changed("fmin") {
		rec.FMin, _ = flags.GetFloat64("fmin")
	}
	if flags.Changed("fmax") {
		rec.FMax, _ = flags.GetFloat64("fmax")
	}
	if flags.Changed("npoints") {
		rec.NPoints, _ = flags.GetInt("npoints")
		rec.FStep = 0
	}
	return config.New(rec)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
