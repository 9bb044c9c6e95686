package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/nergy-se/ratecontroller/pkg/api/v1/config"
	"github.com/nergy-se/ratecontroller/pkg/price"
	"github.com/nergy-se/ratecontroller/pkg/state"
)

func main() {
	configFile := flag.String("config", "config.json", "rate file to read url and limit from")
	url := flag.String("url", "", "price feed url. overrides comed_api_url")
	limit := flag.Float64("limit", 0, "rate limit in cents per kWh. overrides rate_limit")
	timeout := flag.Duration("timeout", 30*time.Second, "how long to wait for the price feed")
	flag.Parse()

	cfg := &config.Config{}
	if !isFlagPassed("url") || !isFlagPassed("limit") {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			log.Fatal(err)
		}
	}
	if isFlagPassed("url") {
		cfg.ComedAPIURL = *url
	}
	if isFlagPassed("limit") {
		cfg.RateLimit = *limit
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sample, err := price.NewClient().Sample(ctx, cfg.ComedAPIURL)
	if err != nil {
		log.Fatal(err)
	}

	action := state.Decide(sample.Price, cfg.RateLimit, state.Unknown)
	fmt.Printf("price: %.1f cents per kWh (mean of %d entries, newest %s)\n", sample.Price, sample.Entries, sample.Newest.Format(time.RFC3339))
	fmt.Printf("limit: %g\n", cfg.RateLimit)
	fmt.Printf("action: %s %v\n", action, cfg.Services)
	if action == state.ActionStop {
		os.Exit(2)
	}
}

func isFlagPassed(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}
