// Command seed writes a deterministic demo catalog as JSON, suitable for
// CATALOG_SEED_FILE.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/utafrali/shopcatalog/internal/seed"
	"github.com/utafrali/shopcatalog/pkg/logger"
)

func main() {
	count := flag.Int("count", 10000, "number of catalog items to generate")
	rngSeed := flag.Int64("seed", 1, "random seed")
	out := flag.String("out", "", "output file (default stdout)")
	flag.Parse()

	log := logger.New("catalog-seed", os.Getenv("LOG_LEVEL"))

	if err := run(*count, *rngSeed, *out); err != nil {
		log.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log.Info("catalog generated", slog.Int("items", *count), slog.String("out", *out))
}

func run(count int, rngSeed int64, out string) error {
	if count < 0 {
		return fmt.Errorf("count must not be negative, got %d", count)
	}

	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}

	items := seed.Generate(seed.Options{Count: count, Seed: rngSeed, Now: time.Now().UTC()})
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(items); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return nil
}
