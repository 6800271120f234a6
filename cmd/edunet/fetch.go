package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/edunet"
)

func newFetchCmd(a *app) *cobra.Command {
	var (
		ttl      time.Duration
		callers  int
		rounds   int
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "fetch <key> <endpoint>",
		Short: "Read an endpoint through the deduplicating cache",
		Long: `fetch issues GET <endpoint> through a CacheService keyed by <key>.
--callers runs that many concurrent readers per round so request
coalescing is visible; --rounds repeats the read to show cache hits.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, endpoint := args[0], args[1]
			logger := edunet.NewLogger(a.stderr, a.cfg.Logging.Level, a.cfg.Logging.Format)
			svc := edunet.NewCacheService(append(edunet.CacheOptionsFromConfig(a.cfg, logger),
				edunet.WithCacheServiceMetrics(a.metrics))...)
			defer svc.Close()

			var fetches atomic.Int32
			fetch := func(ctx context.Context) (json.RawMessage, error) {
				fetches.Add(1)
				return a.client.Get(ctx, endpoint)
			}

			var last json.RawMessage
			for round := 1; round <= rounds; round++ {
				payload, err := readRound(cmd.Context(), svc, key, fetch, ttl, callers)
				if err != nil {
					return a.report(err)
				}
				last = payload
				fmt.Fprintf(a.stderr, "round %d: %d callers, %d network fetches so far\n", round, callers, fetches.Load())
				if round < rounds && interval > 0 {
					time.Sleep(interval)
				}
			}
			return printJSON(a, last)
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Minute, "how long the response stays cached")
	cmd.Flags().IntVar(&callers, "callers", 1, "concurrent readers per round")
	cmd.Flags().IntVar(&rounds, "rounds", 1, "number of read rounds")
	cmd.Flags().DurationVar(&interval, "interval", 0, "pause between rounds")
	return cmd
}

// readRound runs callers concurrent GetOrFetch calls and returns the first
// result or error.
func readRound(ctx context.Context, svc *edunet.CacheService, key string,
	fetch func(context.Context) (json.RawMessage, error), ttl time.Duration, callers int) (json.RawMessage, error) {
	if callers < 1 {
		callers = 1
	}

	results := make([]json.RawMessage, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = edunet.GetOrFetch(ctx, svc, key, fetch, ttl)
		}(i)
	}
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			return nil, errs[i]
		}
	}
	return results[0], nil
}
