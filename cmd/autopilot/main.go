// Command autopilot drives a running clinic server over its websocket. Each
// bot reads SNAPSHOT frames and answers with the commands a diligent player
// would send, which makes it both a smoke test and a load generator.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"

	"github.com/MRamiBalles/CyberClinic/server/internal/domain/clinic"
	"github.com/MRamiBalles/CyberClinic/server/internal/domain/patient"
	"github.com/MRamiBalles/CyberClinic/server/internal/network"
	"github.com/MRamiBalles/CyberClinic/server/internal/platform/logger"
)

// Config for the autopilot.
type Config struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
	Score          float64
	Output         string
}

// Stats tracks what the bots saw.
type Stats struct {
	CommandsSent     int64
	CommandsApplied  int64
	CommandsRejected int64
	FramesReceived   int64
	Errors           int64

	mu        sync.Mutex
	latencies []time.Duration
	last      clinic.GameState
}

func (s *Stats) observe(state clinic.GameState) {
	s.mu.Lock()
	s.last = state
	s.mu.Unlock()
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	numClients := flag.Int("clients", 1, "Number of concurrent bots")
	interval := flag.Duration("interval", 250*time.Millisecond, "Minimum delay between commands per bot")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	score := flag.Float64("score", 100, "Mini-game score the bots report (0-100)")
	output := flag.String("out", "", "Write a JSON report to this file")
	flag.Parse()

	cfg := Config{
		ServerURL:      *serverURL,
		NumClients:     *numClients,
		ActionInterval: *interval,
		TestDuration:   *duration,
		Score:          *score,
		Output:         *output,
	}
	log := logger.NewLogger()
	log.Info("autopilot starting",
		"url", cfg.ServerURL,
		"clients", cfg.NumClients,
		"interval", cfg.ActionInterval,
		"duration", cfg.TestDuration,
	)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.TestDuration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	stats := run(ctx, cfg, log)
	if err := report(os.Stdout, stats, cfg); err != nil {
		log.Errorf("Failed to write report: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg Config, log *logger.Logger) *Stats {
	stats := &Stats{latencies: make([]time.Duration, 0, 1024)}

	var wg sync.WaitGroup
	for i := 0; i < cfg.NumClients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			b := &bot{id: id, cfg: cfg, stats: stats, log: log.With("bot", id)}
			if err := b.play(ctx); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				b.log.Warnf("bot stopped: %v", err)
			}
		}(i)
		// Stagger starts so the hub does not see a burst of upgrades.
		time.Sleep(10 * time.Millisecond)
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	for {
		select {
		case <-done:
			return stats
		case <-ticker.C:
			log.Info("progress",
				"sent", atomic.LoadInt64(&stats.CommandsSent),
				"applied", atomic.LoadInt64(&stats.CommandsApplied),
				"frames", atomic.LoadInt64(&stats.FramesReceived),
				"errors", atomic.LoadInt64(&stats.Errors),
			)
		}
	}
}

type bot struct {
	id    int
	cfg   Config
	stats *Stats
	log   *logger.Logger

	lastSent time.Time
	// commands already sent for the current snapshot generation, keyed by
	// type and patient, so a bot does not repeat itself while waiting.
	pending map[string]bool
}

func (b *bot) play(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.cfg.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	b.pending = make(map[string]bool)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		// The server batches queued frames into one websocket message.
		for _, frame := range bytes.Split(data, []byte{'\n'}) {
			if len(frame) == 0 {
				continue
			}
			atomic.AddInt64(&b.stats.FramesReceived, 1)
			if err := b.handle(conn, frame); err != nil {
				return err
			}
		}
	}
}

type envelope struct {
	Type    network.MessageType `json:"type"`
	Payload json.RawMessage     `json:"payload"`
}

func (b *bot) handle(conn *websocket.Conn, frame []byte) error {
	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		atomic.AddInt64(&b.stats.Errors, 1)
		return nil
	}

	switch env.Type {
	case network.MsgTypeCommandResult:
		var res network.CommandResult
		if err := json.Unmarshal(env.Payload, &res); err != nil {
			atomic.AddInt64(&b.stats.Errors, 1)
			return nil
		}
		if res.Applied {
			atomic.AddInt64(&b.stats.CommandsApplied, 1)
		} else {
			atomic.AddInt64(&b.stats.CommandsRejected, 1)
		}
		if res.Error != "" {
			b.log.Debug("command error", "type", string(res.Type), "error", res.Error)
		}
	case network.MsgTypeSnapshot:
		var snap network.SnapshotPayload
		if err := json.Unmarshal(env.Payload, &snap); err != nil {
			atomic.AddInt64(&b.stats.Errors, 1)
			return nil
		}
		b.stats.observe(snap.State)
		clear(b.pending)
		for _, cmd := range nextCommands(snap.State, b.cfg.Score) {
			if err := b.send(conn, cmd); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *bot) send(conn *websocket.Conn, cmd network.Command) error {
	key := string(cmd.Type) + "/" + cmd.PatientID
	if b.pending[key] {
		return nil
	}
	if wait := b.cfg.ActionInterval - time.Since(b.lastSent); wait > 0 {
		time.Sleep(wait)
	}
	start := time.Now()
	if err := conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	b.lastSent = time.Now()
	b.pending[key] = true
	atomic.AddInt64(&b.stats.CommandsSent, 1)

	b.stats.mu.Lock()
	b.stats.latencies = append(b.stats.latencies, time.Since(start))
	b.stats.mu.Unlock()
	return nil
}

// nextCommands decides what a player would do given state. Patients move one
// station per command, so every non-terminal patient yields at most one.
func nextCommands(s clinic.GameState, score float64) []network.Command {
	switch s.Phase {
	case clinic.PhaseMenu, clinic.PhaseGameOver:
		return []network.Command{{Type: network.CmdStartGame}}
	case clinic.PhasePaused:
		return []network.Command{{Type: network.CmdResumeGame}}
	}

	result := &patient.MiniGameResult{Success: true, Score: score}
	var cmds []network.Command
	for _, p := range s.Patients {
		switch p.Status {
		case patient.StatusWaiting:
			cmds = append(cmds, network.Command{Type: network.CmdAcceptPatient, PatientID: p.ID})
		case patient.StatusDiagnosing:
			cmds = append(cmds, network.Command{Type: network.CmdCompleteDiagnosis, PatientID: p.ID, Result: result})
		case patient.StatusPharmacy:
			cmds = append(cmds, network.Command{Type: network.CmdCompletePharmacy, PatientID: p.ID, Result: result})
		case patient.StatusAcupuncture:
			cmds = append(cmds, network.Command{Type: network.CmdCompleteAcupuncture, PatientID: p.ID, Result: result})
		case patient.StatusServing:
			cmds = append(cmds, network.Command{Type: network.CmdServePatient, PatientID: p.ID})
		}
	}
	return cmds
}

// Report is the JSON written at the end of a run.
type Report struct {
	CommandsSent     int64            `json:"commands_sent"`
	CommandsApplied  int64            `json:"commands_applied"`
	CommandsRejected int64            `json:"commands_rejected"`
	FramesReceived   int64            `json:"frames_received"`
	Errors           int64            `json:"errors"`
	Throughput       float64          `json:"throughput_per_sec"`
	AvgLatency       string           `json:"avg_latency"`
	MaxLatency       string           `json:"max_latency"`
	FinalState       clinic.GameState `json:"final_state"`
}

func buildReport(stats *Stats, cfg Config) Report {
	stats.mu.Lock()
	defer stats.mu.Unlock()

	r := Report{
		CommandsSent:     atomic.LoadInt64(&stats.CommandsSent),
		CommandsApplied:  atomic.LoadInt64(&stats.CommandsApplied),
		CommandsRejected: atomic.LoadInt64(&stats.CommandsRejected),
		FramesReceived:   atomic.LoadInt64(&stats.FramesReceived),
		Errors:           atomic.LoadInt64(&stats.Errors),
		FinalState:       stats.last,
	}
	if secs := cfg.TestDuration.Seconds(); secs > 0 {
		r.Throughput = float64(r.CommandsSent) / secs
	}
	if n := len(stats.latencies); n > 0 {
		var total, maxLatency time.Duration
		for _, l := range stats.latencies {
			total += l
			maxLatency = max(maxLatency, l)
		}
		r.AvgLatency = (total / time.Duration(n)).String()
		r.MaxLatency = maxLatency.String()
	}
	return r
}

func report(w *os.File, stats *Stats, cfg Config) error {
	r := buildReport(stats, cfg)
	s := r.FinalState

	fmt.Fprintln(w, "=========================================")
	fmt.Fprintln(w, "AUTOPILOT RESULTS")
	fmt.Fprintln(w, "=========================================")
	fmt.Fprintf(w, "Commands Sent:     %d\n", r.CommandsSent)
	fmt.Fprintf(w, "Commands Applied:  %d\n", r.CommandsApplied)
	fmt.Fprintf(w, "Commands Rejected: %d\n", r.CommandsRejected)
	fmt.Fprintf(w, "Frames Received:   %d\n", r.FramesReceived)
	fmt.Fprintf(w, "Errors:            %d\n", r.Errors)
	fmt.Fprintf(w, "Throughput:        %.2f cmd/sec\n", r.Throughput)
	if r.AvgLatency != "" {
		fmt.Fprintf(w, "Latency:           avg %s, max %s\n", r.AvgLatency, r.MaxLatency)
	}
	fmt.Fprintln(w, "-----------------------------------------")
	fmt.Fprintf(w, "Last seen: phase=%s level=%d day=%d coins=%s served=%d failed=%d\n",
		s.Phase, s.Level, s.Day, humanize.Comma(int64(s.Coins)), s.CompletedOrders, s.FailedOrders)
	fmt.Fprintln(w, "=========================================")

	if cfg.Output == "" {
		return nil
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(cfg.Output, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(w, "Report saved to %s\n", cfg.Output)
	return nil
}
