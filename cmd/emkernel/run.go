package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/notargets/EMKernel/config"
	"github.com/notargets/EMKernel/simulation"
	"github.com/notargets/EMKernel/store"
	"github.com/notargets/EMKernel/sweep"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	outPath string
	dbPath  string
)

var runCmd = &cobra.Command{
	Use:   "run <deck.hcl>",
	Short: "Mesh, refine and sweep a design",
	Long: `Compiles the design deck, generates and adaptively refines the mesh, and
sweeps the configured frequencies. Ctrl-C stops the sweep; the points already
solved are still written.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&outPath, "out", "o", "", "write the S-parameter grid as YAML")
	runCmd.Flags().StringVar(&dbPath, "db", "", "SQLite results database (overrides the config)")
	runCmd.Flags().Int("workers", 1, "sweep workers")
	runCmd.Flags().Float64("refine-frequency", 0, "refinement frequency in Hz, 0 disables refinement")
	runCmd.Flags().Float64("fmin", 0, "sweep start in Hz")
	runCmd.Flags().Float64("fmax", 0, "sweep stop in Hz")
	runCmd.Flags().Int("npoints", 0, "sweep point count")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	deck, err := config.LoadDeck(args[0])
	if err != nil {
		return err
	}

	var obs simulation.Observer
	if cfg.ShowProgress() {
		obs = simulation.ProgressLogger{Logger: logger}
	}
	pipeline, err := simulation.NewPipeline(cfg.Simulation(), obs, logger)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()
	res, err := pipeline.Run(ctx, deck.Design)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), res.Summary().String())

	if outPath != "" {
		if err := writeGrid(outPath, res.Grid); err != nil {
			return err
		}
		logger.Info("grid written", zap.String("path", outPath))
	}

	db := dbPath
	if db == "" {
		db = cfg.Record().Database
	}
	if db != "" {
		st, err := store.Open(db)
		if err != nil {
			return err
		}
		defer st.Close()
		text, err := cfg.Marshal()
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
		if err := st.SaveRun(cmd.Context(), store.FromResult(name, string(text), res)); err != nil {
			return err
		}
		logger.Info("run stored", zap.String("db", db), zap.String("run", res.RunID.String()))
	}
	return nil
}

type gridEntry struct {
	Re []float64 `yaml:"re"`
	Im []float64 `yaml:"im"`
	DB []float64 `yaml:"db"`
}

type gridDoc struct {
	Frequencies []float64            `yaml:"frequencies"`
	Ports       int                  `yaml:"ports"`
	Failed      []float64            `yaml:"failed,omitempty"`
	Skipped     []float64            `yaml:"skipped,omitempty"`
	Interrupted bool                 `yaml:"interrupted"`
	S           map[string]gridEntry `yaml:"s"`
}

func writeGrid(path string, g *sweep.Grid) error {
	doc := gridDoc{
		Frequencies: g.Frequencies,
		Ports:       g.Ports,
		Failed:      g.Failed(),
		Skipped:     g.Skipped(),
		Interrupted: g.Interrupted,
		S:           map[string]gridEntry{},
	}
	for i := 1; i <= g.Ports; i++ {
		for j := 1; j <= g.Ports; j++ {
			var e gridEntry
			for _, v := range g.S(i, j) {
				e.Re = append(e.Re, real(v))
				e.Im = append(e.Im, imag(v))
			}
			e.DB = g.DB(i, j)
			doc.S[fmt.Sprintf("S%d%d", i, j)] = e
		}
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode grid: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write grid: %w", err)
	}
	return nil
}
