package main

import (
	"fmt"

	"github.com/notargets/EMKernel/config"
	"github.com/notargets/EMKernel/geometry"
	"github.com/notargets/EMKernel/mesh"
	"github.com/notargets/EMKernel/solver"
	"github.com/spf13/cobra"
)

var meshCmd = &cobra.Command{
	Use:   "mesh <deck.hcl>",
	Short: "Compile a design and report its coarse mesh",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		deck, err := config.LoadDeck(args[0])
		if err != nil {
			return err
		}
		model, err := geometry.Compile(deck.Design)
		if err != nil {
			return err
		}
		m, err := mesh.Generate(model, cfg.Mesh())
		if err != nil {
			return err
		}
		ports, err := solver.BindPorts(m)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprint(out, model.String())
		fmt.Fprint(out, m.String())
		for i := range ports {
			p := &ports[i]
			fmt.Fprintf(out, "port %d %q: %s, %d faces, %.4g x %.4g m\n",
				p.Index, p.Name, p.Mode, len(p.Faces), p.Width, p.Height)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "emkernel %s\n", version)
	},
}
