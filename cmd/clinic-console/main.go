// Command clinic-console plays a single clinic session in the terminal. The
// engine runs in process; no server is needed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/content"
	"github.com/MRamiBalles/CyberClinic/server/internal/engine"
	"github.com/MRamiBalles/CyberClinic/server/internal/events"
	"github.com/MRamiBalles/CyberClinic/server/internal/platform/logger"
	"github.com/MRamiBalles/CyberClinic/server/internal/tui"
)

const journalRetention = 256

func main() {
	contentPath := flag.String("content", "", "Path to a content YAML file (built-in tables when empty)")
	score := flag.Float64("score", 90, "Mini-game score reported for each treatment (0-100)")
	flag.Parse()

	if err := run(*contentPath, *score); err != nil {
		fmt.Fprintf(os.Stderr, "clinic-console: %v\n", err)
		os.Exit(1)
	}
}

func run(contentPath string, score float64) error {
	tables, err := content.Default()
	if contentPath != "" {
		tables, err = content.Load(contentPath)
	}
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The alt screen owns stdout, so the engine stays quiet. The activity
	// panel only shows the newest events, so only a short tail is kept.
	eventLog := events.NewEventLog(nil, events.WithRetention(journalRetention))
	defer eventLog.Close()
	eng := engine.NewEngine(tables, eventLog, logger.Discard(), engine.Options{})
	eng.Start(ctx)
	defer eng.Shutdown()

	return tui.Run(eng, eventLog, score)
}
