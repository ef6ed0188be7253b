// Command linkedlist-demo exercises the freeaccess substrate end to end:
// it builds a linkedlist.List, appends a batch of values concurrently
// from several goroutines, forces a reclamation round, and logs the
// length of the resulting traversal plus the allocator's reclamation stats.
package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Lol3rrr/free-access"
	"github.com/Lol3rrr/free-access/examples/linkedlist"
)

func main() {
	nodes := pflag.IntP("nodes", "n", 16, "number of nodes to append")
	workers := pflag.IntP("workers", "w", 4, "number of concurrent appending goroutines")
	verbose := pflag.BoolP("verbose", "v", false, "enable debug logging")
	pflag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *verbose {
		logger = logger.Level(zerolog.DebugLevel)
	} else {
		logger = logger.Level(zerolog.InfoLevel)
	}
	freeaccess.SetLogger(logger)

	list := linkedlist.New[int]()

	var g errgroup.Group
	perWorker := *nodes / *workers
	for w := 0; w < *workers; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < perWorker; i++ {
				if err := list.Append(w*perWorker + i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("append failed")
	}

	list.ForceGC()

	stats := list.Stats()
	logger.Info().
		Int("values", len(list.Values())).
		Uint64("phase", stats.Phase).
		Uint64("pages", stats.Pages).
		Msg("demo complete")
}
