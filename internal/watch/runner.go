// Package watch re-runs comparisons on a schedule, writing a CSV
// snapshot per keyword per run. Each run is still one bounded batch.
package watch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/guarzo/pricegap/internal/compare"
	"github.com/guarzo/pricegap/internal/report"
)

// Comparer runs one comparison batch. Satisfied by compare.Orchestrator.
type Comparer interface {
	Run(ctx context.Context, keyword string) (*compare.RunResult, error)
}

// Runner schedules comparison runs for a fixed keyword list.
type Runner struct {
	comparer   Comparer
	keywords   []string
	outDir     string
	runTimeout time.Duration
	cron       *cron.Cron
	now        func() time.Time
}

// NewRunner creates a runner writing snapshots into outDir.
func NewRunner(comparer Comparer, keywords []string, outDir string) *Runner {
	return &Runner{
		comparer:   comparer,
		keywords:   keywords,
		outDir:     outDir,
		runTimeout: 5 * time.Minute,
		now:        time.Now,
	}
}

// Start registers the schedule (cron syntax, @every included) and begins
// running in the background.
func (r *Runner) Start(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { r.RunAll(context.Background()) }); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	c.Start()
	r.cron = c
	log.Printf("[INFO] watch started, schedule %q, %d keywords", spec, len(r.keywords))
	return nil
}

// Stop halts the schedule, waiting for an in-flight run to finish.
func (r *Runner) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

// RunAll performs one comparison per keyword, writing a timestamped CSV
// for each. A failed keyword is logged and the rest continue.
func (r *Runner) RunAll(ctx context.Context) {
	for _, keyword := range r.keywords {
		runCtx, cancel := context.WithTimeout(ctx, r.runTimeout)
		run, err := r.comparer.Run(runCtx, keyword)
		cancel()
		if err != nil {
			log.Printf("[ERROR] watch run for %q failed: %v", keyword, err)
			continue
		}

		path := r.snapshotPath(keyword)
		if err := report.SaveResults(path, run.Results); err != nil {
			log.Printf("[ERROR] writing snapshot %s: %v", path, err)
			continue
		}
		log.Printf("[INFO] watch run for %q: %d results -> %s", keyword, len(run.Results), path)
	}
}

func (r *Runner) snapshotPath(keyword string) string {
	name := fmt.Sprintf("%s-%s.csv", sanitize(keyword), r.now().Format("20060102-150405"))
	return filepath.Join(r.outDir, name)
}

// sanitize keeps keyword-derived filenames portable.
func sanitize(keyword string) string {
	return strings.Map(func(c rune) rune {
		switch c {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '-'
		}
		return c
	}, keyword)
}
