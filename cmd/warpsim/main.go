// Command warpsim runs Hasegawa-Wakatani plasma turbulence simulations
// from a YAML configuration.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openfluke/warp/dims"
	"github.com/openfluke/warp/field"
	"github.com/openfluke/warp/physics"
	"github.com/openfluke/warp/tensor"
)

const version = "0.1.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "warpsim",
		Short:         "Plasma turbulence simulations on labeled grids",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the warpsim version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "warpsim "+version)
		},
	}
}

func newRunCmd() *cobra.Command {
	var (
		configPath string
		verbose    bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a simulation from a YAML config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(configPath)
			if err != nil {
				return err
			}
			log, err := buildLogger(verbose)
			if err != nil {
				return err
			}
			defer log.Sync()
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return runSim(ctx, log, cfg)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "simulation config file")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	return cmd
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func runSim(ctx context.Context, log *zap.Logger, cfg Config) error {
	state, err := initialState(cfg)
	if err != nil {
		return err
	}
	var solver physics.PoissonSolver
	switch cfg.Solver {
	case "cg":
		solver = physics.ConjugateGradient{Logger: log}
	default:
		solver = physics.Spectral{}
	}
	hw := physics.HasegawaWakatani{Solver: solver, Nu: cfg.Nu, Logger: log}

	w := physics.NewWorld(log)
	if err := w.Add("plasma", hw, state); err != nil {
		return err
	}
	step := 0
	w.Observe(func(name string, state any, age float64) {
		step++
		if cfg.LogEvery == 0 || step%cfg.LogEvery != 0 {
			return
		}
		s, ok := state.(physics.PlasmaState)
		if !ok {
			return
		}
		log.Info("progress",
			zap.Int("step", step),
			zap.Float64("age", age),
			zap.Float64("omega_max", tensor.AbsMax(s.Omega.Data)),
			zap.Float64("density_mean", tensor.Mean(s.Density.Data)),
			zap.Float64("phi_max", tensor.AbsMax(s.Phi.Data)))
	})

	log.Info("run starting",
		zap.String("solver", cfg.Solver),
		zap.Ints("resolution", cfg.Grid.Resolution),
		zap.Float64("dt", cfg.DT),
		zap.Int("steps", cfg.Steps))
	if err := w.Run(ctx, cfg.DT, cfg.Steps); err != nil {
		return err
	}
	final, _ := w.State("plasma")
	s := final.(physics.PlasmaState)
	log.Info("run finished",
		zap.Float64("age", s.Age),
		zap.Float64("omega_max", tensor.AbsMax(s.Omega.Data)),
		zap.Float64("density_mean", tensor.Mean(s.Density.Data)))
	return nil
}

func initialState(cfg Config) (physics.PlasmaState, error) {
	shape := dims.Spatial(fmt.Sprintf("y=%d,x=%d", cfg.Grid.Resolution[0], cfg.Grid.Resolution[1]))
	box, err := field.NewBox([]float64{0, 0}, cfg.Grid.Size)
	if err != nil {
		return physics.PlasmaState{}, err
	}
	rng := rand.New(rand.NewSource(cfg.Seed))
	mk := func(values *tensor.Tensor) (field.CenteredGrid, error) {
		return field.NewCenteredGrid(values, box)
	}
	density, err := mk(tensor.AddScalar(tensor.Scale(tensor.Randn(shape, rng), cfg.Amplitude), 1))
	if err != nil {
		return physics.PlasmaState{}, err
	}
	phi, err := mk(tensor.Zeros(shape))
	if err != nil {
		return physics.PlasmaState{}, err
	}
	omega, err := mk(tensor.Scale(tensor.Randn(shape, rng), cfg.Amplitude))
	if err != nil {
		return physics.PlasmaState{}, err
	}
	return physics.PlasmaState{Density: density, Phi: phi, Omega: omega}, nil
}
