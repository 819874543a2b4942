package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MeKo-Tech/labelmorph/internal/labelio"
	"github.com/MeKo-Tech/labelmorph/internal/labelstats"
	"github.com/MeKo-Tech/labelmorph/internal/morph"
	"github.com/MeKo-Tech/labelmorph/internal/runlog"
	"github.com/MeKo-Tech/labelmorph/internal/volume"
	"github.com/MeKo-Tech/labelmorph/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var erodeCmd = &cobra.Command{
	Use:   "erode <input> <output>",
	Short: "Shrink every label independently",
	Long: `Erode removes the pixels of each label that lie within the scaled
structuring element of a pixel with a different label. Labels erode away
from each other, not only from background.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMorph(cmd.Context(), morph.Erode, args[0], args[1])
	},
}

var dilateCmd = &cobra.Command{
	Use:   "dilate <input> <output>",
	Short: "Grow labels into background",
	Long: `Dilate assigns each background pixel the label of the nearest
labelled pixel whose scaled structuring element covers it. Existing labels
are never overwritten.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMorph(cmd.Context(), morph.Dilate, args[0], args[1])
	},
}

func init() {
	for _, c := range []*cobra.Command{erodeCmd, dilateCmd} {
		rootCmd.AddCommand(c)
		addMorphFlags(c)
	}
}

func addMorphFlags(c *cobra.Command) {
	prefix := c.Name()

	c.Flags().StringP("scale", "s", "1", "Radius per axis: one value for all axes or a comma-separated list")
	c.Flags().Bool("spacing", false, "Measure the scale in physical units of the image spacing")
	c.Flags().String("radius-map", "", "Raw float volume header with a per-pixel radius multiplier")
	c.Flags().String("label-radii", "", "Per-label radius multipliers, e.g. \"1=2,5=0.5\"")
	c.Flags().Float64("default-radius", 1, "Radius multiplier for labels not listed in --label-radii")
	c.Flags().String("region", "", "Process only a box given as start:size, e.g. \"0,0:64,64\"")
	c.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
	c.Flags().Bool("progress", true, "Show a progress bar")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{prefix + ".scale", "scale"},
		{prefix + ".spacing", "spacing"},
		{prefix + ".radius_map", "radius-map"},
		{prefix + ".label_radii", "label-radii"},
		{prefix + ".default_radius", "default-radius"},
		{prefix + ".region", "region"},
		{prefix + ".workers", "workers"},
		{prefix + ".progress", "progress"},
	}
	for _, bf := range bindFlags {
		mustBind(bf.key, c.Flags().Lookup(bf.flag))
	}
}

// morphConfig is the resolved configuration of one erode or dilate run.
type morphConfig struct {
	Mode          morph.Mode
	Input         string
	Output        string
	Scale         string
	Spacing       bool
	RadiusMap     string
	LabelRadii    string
	DefaultRadius float64
	Region        string
	Workers       int
	Progress      bool
	History       string
}

func loadMorphConfig(mode morph.Mode, input, output string) morphConfig {
	prefix := mode.String()
	return morphConfig{
		Mode:          mode,
		Input:         input,
		Output:        output,
		Scale:         viper.GetString(prefix + ".scale"),
		Spacing:       viper.GetBool(prefix + ".spacing"),
		RadiusMap:     viper.GetString(prefix + ".radius_map"),
		LabelRadii:    viper.GetString(prefix + ".label_radii"),
		DefaultRadius: viper.GetFloat64(prefix + ".default_radius"),
		Region:        viper.GetString(prefix + ".region"),
		Workers:       viper.GetInt(prefix + ".workers"),
		Progress:      viper.GetBool(prefix + ".progress"),
		History:       viper.GetString("history"),
	}
}

func runMorph(ctx context.Context, mode morph.Mode, input, output string) error {
	if logger == nil {
		initLogging()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return executeMorph(ctx, loadMorphConfig(mode, input, output))
}

// executeMorph reads the input, applies the filter, writes the output and
// records the run when a history database is configured.
func executeMorph(ctx context.Context, cfg morphConfig) error {
	in, err := labelio.Read(cfg.Input)
	if err != nil {
		return err
	}

	opts, err := buildOptions(cfg, in)
	if err != nil {
		return err
	}

	progress := worker.NewProgress(cfg.Mode.String(), cfg.Progress)
	opts.Progress = progress.Add
	opts.Logger = logger

	logger.Info("Starting "+cfg.Mode.String(),
		"input", cfg.Input,
		"shape", in.Shape.String(),
		"scale", formatFloats(opts.Scale),
		"spacing", cfg.Spacing,
		"workers", opts.Workers,
	)

	started := time.Now()
	out, err := morph.New(cfg.Mode, opts).Apply(ctx, in)
	if err != nil {
		return err
	}
	progress.Done()
	elapsed := time.Since(started)

	if err := labelio.Write(cfg.Output, out); err != nil {
		return err
	}

	changed, err := labelstats.ChangedPixels(in, out)
	if err != nil {
		return err
	}
	logger.Info(progress.Summary())
	logger.Info("Wrote "+cfg.Mode.String()+" result",
		"output", cfg.Output,
		"changed_pixels", changed,
		"elapsed", elapsed,
	)

	if cfg.History == "" {
		return nil
	}
	return recordRun(ctx, cfg, in, out, opts, started, elapsed, changed)
}

func recordRun(ctx context.Context, cfg morphConfig, in, out *volume.Labels, opts morph.Options, started time.Time, elapsed time.Duration, changed int) error {
	store, err := runlog.Open(cfg.History)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	id, err := store.Record(ctx, runlog.Run{
		StartedAt: started,
		Mode:      cfg.Mode.String(),
		Input:     cfg.Input,
		Output:    cfg.Output,
		Shape:     in.Shape.String(),
		Scale:     formatFloats(opts.Scale),
		Workers:   opts.Workers,
		Elapsed:   elapsed,
		Changed:   changed,
		Changes:   labelstats.Compare(labelstats.Count(in), labelstats.Count(out)),
	})
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	logger.Debug("Recorded run", "id", id, "history", cfg.History)
	return nil
}

// buildOptions turns the command configuration into filter options for in.
func buildOptions(cfg morphConfig, in *volume.Labels) (morph.Options, error) {
	scale, err := parseScale(cfg.Scale, len(in.Shape))
	if err != nil {
		return morph.Options{}, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	opts := morph.Options{
		Scale:           scale,
		UseImageSpacing: cfg.Spacing,
		Workers:         workers,
	}

	if cfg.Region != "" {
		r, err := parseRegion(cfg.Region, len(in.Shape))
		if err != nil {
			return opts, err
		}
		opts.Region = &r
	}

	switch {
	case cfg.RadiusMap != "" && cfg.LabelRadii != "":
		return opts, fmt.Errorf("--radius-map and --label-radii are mutually exclusive")
	case cfg.RadiusMap != "":
		m, err := labelio.ReadFloatVolume(cfg.RadiusMap)
		if err != nil {
			return opts, err
		}
		opts.Radius = morph.RadiusMap{Map: m}
	case cfg.LabelRadii != "":
		radii, err := parseLabelRadii(cfg.LabelRadii)
		if err != nil {
			return opts, err
		}
		opts.Radius = morph.LabelRadii{Radii: radii, Default: cfg.DefaultRadius}
	case cfg.DefaultRadius != 1:
		opts.Radius = morph.Uniform(cfg.DefaultRadius)
	}

	return opts, nil
}

// parseScale accepts a single radius for every axis or one radius per axis.
func parseScale(s string, dims int) ([]float64, error) {
	values, err := parseFloats(s)
	if err != nil {
		return nil, fmt.Errorf("invalid scale %q: %w", s, err)
	}
	switch len(values) {
	case 1:
		return morph.UniformScale(dims, values[0]), nil
	case dims:
		return values, nil
	}
	return nil, fmt.Errorf("scale %q has %d values, image has %d axes", s, len(values), dims)
}

// parseRegion parses "start:size" with comma-separated coordinates.
func parseRegion(s string, dims int) (volume.Region, error) {
	startStr, sizeStr, ok := strings.Cut(s, ":")
	if !ok {
		return volume.Region{}, fmt.Errorf("invalid region %q: expected start:size", s)
	}
	start, err := parseInts(startStr)
	if err != nil {
		return volume.Region{}, fmt.Errorf("invalid region start %q: %w", startStr, err)
	}
	size, err := parseInts(sizeStr)
	if err != nil {
		return volume.Region{}, fmt.Errorf("invalid region size %q: %w", sizeStr, err)
	}
	if len(start) != dims || len(size) != dims {
		return volume.Region{}, fmt.Errorf("region %q must have %d start and size values", s, dims)
	}
	return volume.Region{Start: start, Size: size}, nil
}

// parseLabelRadii parses "label=radius" pairs separated by commas.
func parseLabelRadii(s string) (map[uint32]float64, error) {
	radii := map[uint32]float64{}
	for _, part := range strings.Split(s, ",") {
		labelStr, radiusStr, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			return nil, fmt.Errorf("invalid label radius %q: expected label=radius", part)
		}
		label, err := strconv.ParseUint(strings.TrimSpace(labelStr), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid label %q: %w", labelStr, err)
		}
		radius, err := strconv.ParseFloat(strings.TrimSpace(radiusStr), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid radius %q: %w", radiusStr, err)
		}
		radii[uint32(label)] = radius
	}
	return radii, nil
}

func parseFloats(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number at position %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func parseInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid integer at position %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func formatFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
