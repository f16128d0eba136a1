package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/unkn0wn-root/entcache"
	"github.com/unkn0wn-root/entcache/catalog"
	"github.com/unkn0wn-root/entcache/config"
	promhooks "github.com/unkn0wn-root/entcache/hooks/prom"
	"github.com/unkn0wn-root/entcache/provider"
	"github.com/unkn0wn-root/entcache/provider/ristretto"
	"github.com/unkn0wn-root/entcache/sloghooks"
)

type benchOptions struct {
	workers     int
	requests    int
	venues      int
	instructors int
	latency     time.Duration
	writeEvery  int
	metricsAddr string
	linger      time.Duration
}

type benchResult struct {
	requests, errors     int64
	loads                int64
	hits, misses, shared uint64
	elapsed              time.Duration
	// set only for a ristretto provider with metrics enabled
	provider *providerStats
}

type providerStats struct {
	hits, misses           uint64
	keysAdded, keysEvicted uint64
	setsRejected           uint64
}

func ristrettoStats(p provider.Provider) *providerStats {
	rp, ok := p.(*ristretto.Provider)
	if !ok || rp.Metrics() == nil {
		return nil
	}
	m := rp.Metrics()
	return &providerStats{
		hits:         m.Hits(),
		misses:       m.Misses(),
		keysAdded:    m.KeysAdded(),
		keysEvicted:  m.KeysEvicted(),
		setsRejected: m.SetsRejected(),
	}
}

func benchCmd() *cobra.Command {
	var o benchOptions

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Drive concurrent lookups through the configured cache",
		Long: "Run concurrent by-id, by-name, by-email and list lookups against an in-memory " +
			"repository with injected latency, and report how many loads the cache absorbed",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if o.workers <= 0 || o.requests <= 0 || o.venues <= 0 || o.instructors <= 0 {
				return errors.New("workers, requests, venues and instructors must be positive")
			}

			reg := prometheus.NewRegistry()
			res, err := runBench(cmd.Context(), cfg, o, reg)
			if err != nil {
				return err
			}
			printResult(cmd.OutOrStdout(), res)

			if o.metricsAddr != "" {
				return serveMetrics(cmd.Context(), o.metricsAddr, reg, o.linger)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&o.workers, "workers", 32, "Concurrent callers")
	cmd.Flags().IntVar(&o.requests, "requests", 10000, "Lookups per worker")
	cmd.Flags().IntVar(&o.venues, "venues", 50, "Venue types in the repository")
	cmd.Flags().IntVar(&o.instructors, "instructors", 200, "Instructors in the repository")
	cmd.Flags().DurationVar(&o.latency, "latency", 2*time.Millisecond, "Latency of every repository read")
	cmd.Flags().IntVar(&o.writeEvery, "write-every", 500, "Rename a venue every N lookups per worker (0 disables writes)")
	cmd.Flags().StringVar(&o.metricsAddr, "metrics-addr", "", "Serve /metrics on this address after the run")
	cmd.Flags().DurationVar(&o.linger, "linger", 0, "How long to keep serving /metrics (0 = until interrupted)")
	return cmd
}

func runBench(ctx context.Context, cfg *config.Config, o benchOptions, reg prometheus.Registerer) (benchResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	p, err := cfg.NewProvider(ctx)
	if err != nil {
		return benchResult{}, err
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		_ = p.Close(ctx)
		return benchResult{}, err
	}
	prom, err := promhooks.New(reg, cfg.Metrics.Namespace)
	if err != nil {
		_ = p.Close(ctx)
		return benchResult{}, err
	}
	counts := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 100, Redact: sloghooks.RedactSHA256})

	store, err := entcache.NewStore(cfg.StoreOptions(p, logger, entcache.MultiHooks(counts, prom)))
	if err != nil {
		_ = p.Close(ctx)
		return benchResult{}, err
	}
	defer store.Close(context.WithoutCancel(ctx))

	cat, err := catalog.New(store, cfg.EntitySettings())
	if err != nil {
		return benchResult{}, err
	}

	r := newRepo(o.venues, o.instructors, o.latency)
	emails := r.emails()

	var (
		wg       sync.WaitGroup
		reqs     atomic.Int64
		failures atomic.Int64
		renames  atomic.Int64
	)
	start := time.Now()
	for w := 0; w < o.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= o.requests; i++ {
				if ctx.Err() != nil {
					return
				}
				reqs.Add(1)
				id := rand.Int64N(int64(o.venues)) + 1

				var err error
				switch n := rand.IntN(10); {
				case o.writeEvery > 0 && i%o.writeEvery == 0:
					err = r.renameVenue(ctx, cat.VenueTypes, id, fmt.Sprintf("Venue %d r%d", id, renames.Add(1)))
				case n < 5:
					_, _, err = cat.VenueTypes.GetByID(ctx, id, r.venueByID(id))
				case n < 7:
					name := fmt.Sprintf("  venue %d ", id)
					_, _, err = cat.VenueTypes.GetByName(ctx, name, r.venueByName(name))
				case n < 9:
					email := emails[rand.IntN(len(emails))]
					_, _, err = cat.Instructors.GetByEmail(ctx, email, r.instructorByEmail(email))
				default:
					_, err = cat.VenueTypes.GetAll(ctx, r.allVenues)
				}
				if err != nil {
					failures.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	hits, misses, shared := counts.Counts()
	return benchResult{
		requests: reqs.Load(),
		errors:   failures.Load(),
		loads:    r.loads.Load(),
		hits:     hits,
		misses:   misses,
		shared:   shared,
		elapsed:  time.Since(start),
		provider: ristrettoStats(p),
	}, nil
}

func printResult(w io.Writer, r benchResult) {
	fmt.Fprintf(w, "requests: %d in %s (%.0f/s)\n", r.requests, r.elapsed.Round(time.Millisecond),
		float64(r.requests)/r.elapsed.Seconds())
	fmt.Fprintf(w, "hits: %d  misses: %d  shared loads: %d\n", r.hits, r.misses, r.shared)
	fmt.Fprintf(w, "repository loads: %d  errors: %d\n", r.loads, r.errors)
	if r.hits+r.misses > 0 {
		fmt.Fprintf(w, "hit ratio: %.2f%%\n", 100*float64(r.hits)/float64(r.hits+r.misses))
	}
	if ps := r.provider; ps != nil {
		fmt.Fprintf(w, "ristretto: hits: %d  misses: %d  keys added: %d  evicted: %d  sets rejected: %d\n",
			ps.hits, ps.misses, ps.keysAdded, ps.keysEvicted, ps.setsRejected)
	}
}

func serveMetrics(ctx context.Context, addr string, g prometheus.Gatherer, linger time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	if linger > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, linger)
		defer cancel()
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
