// Command pricegap compares wholesale catalog prices against marketplace
// prices for a keyword and reports the pairs whose deviation crosses the
// configured thresholds.
//
// One-shot run printing CSV to stdout:
//
//	pricegap -keyword "paper towels"
//
// Write to a file instead:
//
//	pricegap -keyword "paper towels" -out results.csv
//
// Serve the comparison over HTTP:
//
//	pricegap -serve -addr :8080
//
// Re-run on a schedule, one CSV snapshot per keyword per run:
//
//	pricegap -watch "@hourly" -keyword "paper towels,batteries" -out snapshots/
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/guarzo/pricegap/internal/compare"
	"github.com/guarzo/pricegap/internal/config"
	"github.com/guarzo/pricegap/internal/report"
	"github.com/guarzo/pricegap/internal/server"
	"github.com/guarzo/pricegap/internal/spapi"
	"github.com/guarzo/pricegap/internal/watch"
	"github.com/guarzo/pricegap/internal/wholesale"
)

func main() {
	var (
		keyword   = flag.String("keyword", "", "search keyword (comma-separated list in watch mode)")
		low       = flag.Float64("low", 0, "override low threshold percent (wholesale cheaper)")
		high      = flag.Float64("high", 0, "override high threshold percent (wholesale pricier)")
		out       = flag.String("out", "", "CSV output file (watch mode: output directory)")
		serve     = flag.Bool("serve", false, "run the HTTP server instead of a one-shot comparison")
		addr      = flag.String("addr", "", "listen address for -serve (default from LISTEN_ADDR)")
		watchSpec = flag.String("watch", "", "cron schedule for repeated runs, e.g. \"@hourly\"")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[ERROR] config: %v", err)
	}
	if *low > 0 {
		cfg.Compare.LowPct = *low
	}
	if *high > 0 {
		cfg.Compare.HighPct = *high
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	orchestrator := compare.New(
		wholesale.NewScraper(cfg.Wholesale),
		spapi.NewClient(cfg),
		cfg.Compare.LowPct,
		cfg.Compare.HighPct,
	)

	switch {
	case *serve:
		runServer(cfg, orchestrator)
	case *watchSpec != "":
		runWatch(*watchSpec, *keyword, *out, orchestrator)
	default:
		if err := runOnce(*keyword, *out, orchestrator); err != nil {
			log.Fatalf("[ERROR] %v", err)
		}
	}
}

func runOnce(keyword, out string, orchestrator *compare.Orchestrator) error {
	if keyword == "" {
		return fmt.Errorf("a -keyword is required (or use -serve)")
	}

	run, err := orchestrator.Run(context.Background(), keyword)
	if err != nil {
		return err
	}

	if out != "" {
		if err := report.SaveResults(out, run.Results); err != nil {
			return err
		}
		log.Printf("[INFO] wrote %d results to %s", len(run.Results), out)
		return nil
	}
	return report.WriteResults(os.Stdout, run.Results)
}

func runServer(cfg *config.Config, orchestrator *compare.Orchestrator) {
	s := server.New(orchestrator)
	log.Printf("[INFO] listening on %s", cfg.Server.Addr)
	if err := s.Run(cfg.Server.Addr); err != nil {
		log.Fatalf("[ERROR] server: %v", err)
	}
}

func runWatch(spec, keywords, outDir string, orchestrator *compare.Orchestrator) {
	var list []string
	for _, k := range strings.Split(keywords, ",") {
		if k = strings.TrimSpace(k); k != "" {
			list = append(list, k)
		}
	}
	if len(list) == 0 {
		log.Fatal("[ERROR] -watch requires at least one -keyword")
	}
	if outDir == "" {
		outDir = "."
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		log.Fatalf("[ERROR] creating %s: %v", outDir, err)
	}

	runner := watch.NewRunner(orchestrator, list, outDir)
	if err := runner.Start(spec); err != nil {
		log.Fatalf("[ERROR] %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Print("[INFO] shutting down")
	runner.Stop()
}
