package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/vortex2d/internal/config"
	"github.com/san-kum/vortex2d/internal/export"
	"github.com/san-kum/vortex2d/internal/metrics"
	"github.com/san-kum/vortex2d/internal/sim"
	"github.com/san-kum/vortex2d/internal/tui"
)

const version = "0.3.1"

var (
	configFile string
	steps      int
	dt         float64
	live       bool
	verbose    bool
	outFile    string
	svgFile    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "vortex2d",
		Short: "2d viscous vortex particle solver with BEM boundaries",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation scenario",
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "scenario file (yaml)")
	runCmd.Flags().IntVar(&steps, "steps", 0, "override step count")
	runCmd.Flags().Float64Var(&dt, "dt", 0, "override timestep")
	runCmd.Flags().BoolVar(&live, "live", false, "live terminal monitor")
	runCmd.Flags().BoolVar(&verbose, "verbose", false, "per-step reporting")
	runCmd.Flags().StringVar(&outFile, "out", "", "write step history csv")
	runCmd.Flags().StringVar(&svgFile, "svg", "", "write final field snapshot svg")

	plotCmd := &cobra.Command{
		Use:   "plot [history.csv]",
		Short: "plot a recorded circulation history",
		Args:  cobra.ExactArgs(1),
		RunE:  plotHistory,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("vortex2d", version)
		},
	}

	rootCmd.AddCommand(runCmd, plotCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// historyRecorder collects per-step series for the csv export and the
// post-run plot.
type historyRecorder struct {
	times []float64
	circ  []float64
	count []float64
}

func (h *historyRecorder) OnStep(s *sim.Simulation, step int, t float64) {
	h.times = append(h.times, t)
	h.circ = append(h.circ, s.TotalCirc())
	h.count = append(h.count, float64(s.NumParticles()))
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
	}
	if steps > 0 {
		cfg.Steps = steps
	}
	if dt > 0 {
		cfg.Dt = dt
	}
	sim.Verbose = verbose

	s, err := sim.FromConfig(cfg)
	if err != nil {
		return err
	}

	circMetric := metrics.NewTotalCirculation()
	countMetric := metrics.NewParticleCount()
	s.AddMetric(circMetric)
	s.AddMetric(countMetric)

	rec := &historyRecorder{}
	s.AddObserver(rec)

	if live {
		return runLive(s, cfg.Steps, rec)
	}

	if err := s.Run(context.Background(), cfg.Steps); err != nil {
		return err
	}

	fmt.Printf("ran %d steps to t=%.4f\n", s.Step(), s.Time())
	fmt.Printf("  particles:   %d (peak %d)\n", s.NumParticles(), countMetric.Peak())
	fmt.Printf("  circulation: %+.6f (drift %.2e)\n", circMetric.Value(), circMetric.Drift())
	if len(rec.circ) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(rec.circ,
			asciigraph.Height(10), asciigraph.Caption("total circulation")))
	}

	if outFile != "" {
		if err := writeHistory(outFile, rec); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", outFile)
	}
	if svgFile != "" {
		if err := export.WriteField(svgFile, s.Vort, s.Bdry, 800, 800); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", svgFile)
	}
	return nil
}

// liveObserver forwards step samples to the tui model.
type liveObserver struct {
	updates chan<- tui.StepInfo
	total   int
}

func (o *liveObserver) OnStep(s *sim.Simulation, step int, t float64) {
	o.updates <- tui.StepInfo{
		Step:      step,
		Total:     o.total,
		Time:      t,
		Particles: s.NumParticles(),
		Circ:      s.TotalCirc(),
	}
}

func runLive(s *sim.Simulation, nsteps int, rec *historyRecorder) error {
	model := tui.NewModel()
	s.AddObserver(&liveObserver{updates: model.Updates(), total: nsteps})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() {
		err := s.Run(ctx, nsteps)
		model.Updates() <- tui.StepInfo{Step: s.Step(), Total: nsteps, Time: s.Time(),
			Particles: s.NumParticles(), Circ: s.TotalCirc(), Err: err, Done: true}
		errc <- err
	}()

	if _, err := tea.NewProgram(model).Run(); err != nil {
		cancel()
		<-errc
		return err
	}
	cancel()
	if err := <-errc; err != nil && err != context.Canceled {
		return err
	}
	if outFile != "" {
		return writeHistory(outFile, rec)
	}
	return nil
}

func writeHistory(path string, rec *historyRecorder) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()
	if err := w.Write([]string{"time", "circulation", "particles"}); err != nil {
		return err
	}
	for i := range rec.times {
		row := []string{
			strconv.FormatFloat(rec.times[i], 'g', -1, 64),
			strconv.FormatFloat(rec.circ[i], 'g', -1, 64),
			strconv.FormatFloat(rec.count[i], 'g', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func plotHistory(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return err
	}
	var circ []float64
	for i, row := range rows {
		if i == 0 || len(row) < 2 {
			continue
		}
		v, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return fmt.Errorf("row %d: %w", i, err)
		}
		circ = append(circ, v)
	}
	if len(circ) == 0 {
		return fmt.Errorf("no samples in %s", args[0])
	}
	fmt.Println(asciigraph.Plot(circ,
		asciigraph.Height(15), asciigraph.Caption("total circulation")))
	return nil
}
