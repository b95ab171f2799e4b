package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/sectorpulse/sectorpulse/internal/model"
	"github.com/sectorpulse/sectorpulse/internal/telemetry"
)

var (
	snapshotTimeout time.Duration
	snapshotFormat  string
	snapshotLimit   int
)

// snapshotCmd fetches the category universe once and prints it.
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch the sector universe once and print it",
	Long: `Fetch the category universe through the configured provider chain and
print it without starting the service.

Example usage:
  sectorpulse snapshot                   # Table output
  sectorpulse snapshot --format=json     # JSON output
  sectorpulse snapshot --limit=10        # Top 10 sectors only`,
	RunE: runSnapshot,
}

func init() {
	snapshotCmd.Flags().DurationVar(&snapshotTimeout, "timeout", 30*time.Second, "Timeout for the fetch")
	snapshotCmd.Flags().StringVar(&snapshotFormat, "format", "table", "Output format: table, json, csv")
	snapshotCmd.Flags().IntVar(&snapshotLimit, "limit", 25, "Maximum sectors to print")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	chain := buildChain(cfg, telemetry.NewMetrics())
	cats, providerName, err := chain.Fetch(ctx, snapshotLimit+cfg.Heatmap.Overscan)
	if err != nil {
		return fmt.Errorf("fetch failed: %w", err)
	}

	valid, dropped := model.SanitizeCategories(cats)
	if snapshotLimit > 0 && len(valid) > snapshotLimit {
		valid = valid[:snapshotLimit]
	}

	switch strings.ToLower(snapshotFormat) {
	case "json":
		return snapshotJSON(valid, providerName)
	case "csv":
		return snapshotCSV(valid)
	case "table":
		fallthrough
	default:
		return snapshotTable(valid, providerName, dropped)
	}
}

func snapshotJSON(cats []model.Category, providerName string) error {
	out := struct {
		Provider   string           `json:"provider"`
		FetchedAt  time.Time        `json:"fetched_at"`
		Categories []model.Category `json:"categories"`
	}{providerName, time.Now(), cats}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func snapshotCSV(cats []model.Category) error {
	fmt.Println("ID,Name,MarketCap,Change24h,Volume24h")
	for _, c := range cats {
		fmt.Printf("%s,%q,%.0f,%.2f,%.0f\n",
			c.ID, c.Name, c.MarketCap, c.MarketCapChange24h, c.Volume24h)
	}
	return nil
}

func snapshotTable(cats []model.Category, providerName string, dropped int) error {
	fmt.Printf("Sector snapshot via %s (%s)\n\n", providerName, time.Now().Format(time.RFC3339))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Sector\tMarket Cap\t24h Change\tVolume")
	fmt.Fprintln(w, "------\t----------\t----------\t------")
	for _, c := range cats {
		fmt.Fprintf(w, "%s\t%s\t%+.2f%%\t%s\n",
			c.Name, humanUSD(c.MarketCap), c.MarketCapChange24h, humanUSD(c.Volume24h))
	}
	w.Flush()

	if dropped > 0 {
		fmt.Printf("\n%d invalid records rejected at the boundary\n", dropped)
	}
	return nil
}

// humanUSD renders a dollar amount with a short magnitude suffix.
func humanUSD(v float64) string {
	switch {
	case v >= 1e12:
		return fmt.Sprintf("$%.2fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("$%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("$%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("$%.2fK", v/1e3)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}
