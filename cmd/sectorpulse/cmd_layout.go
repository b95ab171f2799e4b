package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sectorpulse/sectorpulse/internal/heatmap"
	"github.com/sectorpulse/sectorpulse/internal/model"
	"github.com/sectorpulse/sectorpulse/internal/telemetry"
)

var (
	layoutInput     string
	layoutFilter    string
	layoutLimit     int
	layoutDensity   float64
	layoutMinHeight float64
	layoutJSON      bool
)

// layoutCmd computes tile geometry offline, for tuning the packing knobs
// against a captured or live category set.
var layoutCmd = &cobra.Command{
	Use:   "layout",
	Short: "Compute heatmap geometry from a category set",
	Long: `Compute the row-packed tile geometry for a category set and print it.

Reads categories from a JSON file (--input, an array of category records)
or fetches them live through the provider chain when --input is omitted.
The density factor and minimum row height are the two packing knobs worth
sweeping when the rendered map looks too sparse or too squashed.`,
	RunE: runLayout,
}

func init() {
	layoutCmd.Flags().StringVar(&layoutInput, "input", "", "JSON file with a category array (live fetch when empty)")
	layoutCmd.Flags().StringVar(&layoutFilter, "filter", "all", "Subset: all, gainers, losers")
	layoutCmd.Flags().IntVar(&layoutLimit, "limit", 40, "Maximum sectors in the layout")
	layoutCmd.Flags().Float64Var(&layoutDensity, "density", 3.0, "Row fill density factor")
	layoutCmd.Flags().Float64Var(&layoutMinHeight, "min-row-height", 15.0, "Minimum row height in percent")
	layoutCmd.Flags().BoolVar(&layoutJSON, "json", false, "Emit JSON instead of a table")
}

func runLayout(cmd *cobra.Command, args []string) error {
	var cats []model.Category

	if layoutInput != "" {
		data, err := os.ReadFile(layoutInput)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		if err := json.Unmarshal(data, &cats); err != nil {
			return fmt.Errorf("failed to parse input: %w", err)
		}
	} else {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		chain := buildChain(cfg, telemetry.NewMetrics())
		cats, _, err = chain.Fetch(ctx, layoutLimit+cfg.Heatmap.Overscan)
		if err != nil {
			return fmt.Errorf("fetch failed: %w", err)
		}
	}

	valid, _ := model.SanitizeCategories(cats)
	filtered := heatmap.Filter(valid, heatmap.ParseFilterMode(layoutFilter), layoutLimit)
	rects := heatmap.Layout(filtered, heatmap.LayoutConfig{
		DensityFactor:   layoutDensity,
		MinRowHeightPct: layoutMinHeight,
	})

	if layoutJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(rects)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Row\tSector\tX\tY\tW\tH\tChange\tColor")
	fmt.Fprintln(w, "---\t------\t-\t-\t-\t-\t------\t-----")
	for _, rect := range rects {
		fmt.Fprintf(w, "%d\t%s\t%.1f\t%.1f\t%.1f\t%.1f\t%+.2f%%\t%s\n",
			rect.Row, rect.Category.Name, rect.X, rect.Y, rect.Width, rect.Height,
			rect.Category.MarketCapChange24h, rect.Color)
	}
	w.Flush()

	fmt.Printf("\n%d tiles, density=%.1f, min_row_height=%.1f%%\n",
		len(rects), layoutDensity, layoutMinHeight)
	return nil
}
