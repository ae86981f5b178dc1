// journeysim drives simulated visitor sessions against a running site,
// sending the same analytics events a browser session would. It is used
// to seed the analytics store and to load-test the collection endpoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"filmsociety/api/config"
	"filmsociety/api/logger"
	"filmsociety/api/tracker"
)

type options struct {
	baseURL     string
	sessions    int
	concurrency int
	steps       int
	maxDwell    time.Duration
	seed        uint64
	logLevel    string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var opts options
	flagSet := pflag.NewFlagSet("journeysim", pflag.ContinueOnError)
	flagSet.StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "site to send analytics events to")
	flagSet.IntVarP(&opts.sessions, "sessions", "n", 10, "number of visitor sessions to simulate")
	flagSet.IntVarP(&opts.concurrency, "concurrency", "c", 4, "sessions running at once")
	flagSet.IntVar(&opts.steps, "steps", 8, "navigation steps per session")
	flagSet.DurationVar(&opts.maxDwell, "max-dwell", 2*time.Second, "upper bound on time spent per page")
	flagSet.Uint64Var(&opts.seed, "seed", 0, "random seed, 0 for a random one")
	flagSet.StringVar(&opts.logLevel, "log-level", "info", "log level")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if opts.sessions <= 0 || opts.concurrency <= 0 || opts.steps <= 0 {
		return fmt.Errorf("sessions, concurrency and steps must be positive")
	}

	log := logger.New(config.LogConfig{Level: opts.logLevel, Format: "console", Output: "stderr"})
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender := tracker.NewHTTPSender(opts.baseURL, nil)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < opts.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				// Seeds stay distinct per session so runs are reproducible.
				faker := gofakeit.New(sessionSeed(opts.seed, i))
				sim := newSimulator(faker, opts.maxDwell, sleepCtx(ctx))
				tr := tracker.New(sender,
					tracker.WithLogger(log),
					tracker.WithClient(faker.UserAgent(), sim.referrer()),
				)
				visited := sim.run(tr, opts.steps)

				endCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := tr.End(endCtx); err != nil {
					log.Warn("session did not flush", zap.String("session_id", tr.SessionID()), zap.Error(err))
				}
				cancel()
				log.Info("session finished", zap.String("session_id", tr.SessionID()), zap.Int("pages", visited))
			}
		}()
	}

feed:
	for i := 0; i < opts.sessions; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return nil
}

func sessionSeed(seed uint64, i int) uint64 {
	if seed == 0 {
		return 0
	}
	return seed + uint64(i)
}

// sleepCtx sleeps for d unless ctx ends first.
func sleepCtx(ctx context.Context) func(time.Duration) {
	return func(d time.Duration) {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
		}
	}
}
