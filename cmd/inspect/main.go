// Command inspect prints what downstream readers see in the token store:
// a count and the newest tokens for a filter, plus recent cycle runs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"token-radar/internal/app"
	"token-radar/internal/config"
	"token-radar/internal/domain"
	"token-radar/internal/logging"
	"token-radar/internal/storage"
)

// defaultRecentWindow is how far back the recent filter looks when -since is not set.
const defaultRecentWindow = 24 * time.Hour

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	filterName := flag.String("filter", "all", "Token filter: all, bonded or recent")
	since := flag.Duration("since", 0, "Only tokens created within this window (recent defaults to 24h)")
	limit := flag.Int("limit", 10, "Number of tokens to print")
	cycles := flag.Int("cycles", 5, "Number of recent cycle runs to print (0 to skip)")
	store := flag.String("store", cfg.Store, "Token store: memory, mongo or postgres")
	flag.Parse()

	cfg.Store = *store
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	filter, err := buildFilter(*filterName, *since, time.Now())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	logger := logging.Must(cfg.LogLevel, cfg.LogFormat).Named("inspect")
	defer logger.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, config.ErrInvalidArgument) {
			return 2
		}
		return 1
	}
	defer a.Close()

	if err := report(ctx, os.Stdout, a.Tokens, a.Cycles, filter, *limit, *cycles); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// buildFilter maps the -filter and -since flags to a store filter.
func buildFilter(name string, since time.Duration, now time.Time) (storage.Filter, error) {
	var f storage.Filter
	switch name {
	case "all":
		f = storage.All()
	case "bonded":
		f = storage.Bonded()
	case "recent":
		f = storage.All()
		if since <= 0 {
			since = defaultRecentWindow
		}
	default:
		return storage.Filter{}, fmt.Errorf("%w: filter %q (want all, bonded or recent)", config.ErrInvalidArgument, name)
	}

	if since > 0 {
		created := storage.CreatedSince(now.Add(-since))
		if name == "all" {
			return created, nil
		}
		return storage.And(f, created), nil
	}
	return f, nil
}

func report(ctx context.Context, w io.Writer, tokens storage.TokenStore, cycles storage.CycleStore,
	filter storage.Filter, limit, cycleLimit int) error {
	count, err := tokens.Count(ctx, filter)
	if err != nil {
		return fmt.Errorf("count tokens: %w", err)
	}
	fmt.Fprintf(w, "filter: %s\nmatching tokens: %d\n\n", filter, count)

	if limit > 0 {
		found, err := tokens.Find(ctx, filter, limit)
		if err != nil {
			return fmt.Errorf("find tokens: %w", err)
		}
		printTokens(w, found)
	}

	if cycleLimit > 0 && cycles != nil {
		runs, err := cycles.Recent(ctx, cycleLimit)
		if err != nil {
			return fmt.Errorf("recent cycles: %w", err)
		}
		fmt.Fprintf(w, "\nrecent cycles: %d\n", len(runs))
		for _, r := range runs {
			fmt.Fprintf(w, "%s  %s\n", r.StartedAt.Format(time.RFC3339), r.Summary())
		}
	}
	return nil
}

func printTokens(w io.Writer, tokens []*domain.Token) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MINT\tSYMBOL\tCREATED\tMCAP USD\tBONDING\tBONDED")
	for _, t := range tokens {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f\t%d%%\t%t\n",
			t.Mint, t.Symbol, t.CreatedAt.Format(time.RFC3339), t.MarketCapUSD, t.BondingPercentage, t.IsBonded)
	}
	tw.Flush()
}
