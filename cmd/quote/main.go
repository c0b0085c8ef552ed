// Command quote fetches a live price quote from one configured market and
// prints it. It is a connectivity and credential check that never touches
// the service database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"btc-order-gw/internal/config"
	"btc-order-gw/internal/logging"
	"btc-order-gw/internal/state/sqlite"
	"btc-order-gw/internal/trade"
	"btc-order-gw/internal/venue"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	marketName := flag.String("market", "", "configured market to query")
	from := flag.String("from", "", "base currency (defaults to the market's default pair)")
	to := flag.String("to", "", "quote currency (defaults to the market's default pair)")
	timeout := flag.Duration("timeout", 30*time.Second, "overall request timeout")
	flag.Parse()

	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatal(err)
	}
	if *marketName == "" {
		fatal(fmt.Errorf("-market is required (configured: %v)", configuredMarkets(cfg)))
	}
	marketCfg, ok := cfg.Markets[*marketName]
	if !ok {
		fatal(fmt.Errorf("market %q is not configured (configured: %v)", *marketName, configuredMarkets(cfg)))
	}

	log := logging.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	// A throwaway store keeps the quote out of the service database.
	store, err := sqlite.New(":memory:")
	if err != nil {
		fatal(err)
	}
	defer store.Close()

	adapter, err := venue.New(*marketName, marketCfg, venue.Deps{Store: store, Log: log})
	if err != nil {
		fatal(err)
	}

	pair := trade.Pair(marketCfg.DefaultFrom, marketCfg.DefaultTo)
	if *from != "" && *to != "" {
		pair = trade.Pair(*from, *to)
	}
	if !adapter.SupportsPair(pair) {
		fatal(fmt.Errorf("%s does not support %s", adapter.Name(), pair))
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	quote, err := adapter.CurrentPrice(ctx, true, pair)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("%s %s: buy %s sell %s (as of %s)\n",
		adapter.Name(), quote.Pair, quote.Buy, quote.Sell, quote.Time.UTC().Format(time.RFC3339))
	fmt.Printf("minimum trade: %s %s\n", adapter.MinimumTrade(), pair.From)
}

func configuredMarkets(cfg *config.Config) []string {
	names := make([]string, 0, len(cfg.Markets))
	for name := range cfg.Markets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
