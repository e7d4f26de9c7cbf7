// Command gangplank runs a scripted host session with the bridge attached,
// for exercising peers end to end. Type a prompt to trigger a simulated
// turn; /approve and /deny answer the pending tool confirmation from the
// terminal side.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/quayside/gangplank/internal/bridge"
	"github.com/quayside/gangplank/internal/config"
	"github.com/quayside/gangplank/internal/host"
	"github.com/quayside/gangplank/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	port := flag.Int("port", 41243, "loopback port to expose the session on (0 disables)")
	queue := flag.Int("queue", config.DefaultQueueCapacity, "per-peer outbound frame queue capacity")
	logDir := flag.String("log-dir", "", "directory for log files (empty for stdout only)")
	jsonLogs := flag.Bool("json-logs", false, "emit logs as JSON")
	debug := flag.Bool("debug", false, "enable debug logging")
	confirm := flag.Bool("confirm", true, "simulated turns include a tool call needing confirmation")
	flag.Parse()

	if err := run(*port, *queue, *logDir, *jsonLogs, *debug, *confirm); err != nil {
		fmt.Fprintf(os.Stderr, "gangplank: %v\n", err)
		os.Exit(1)
	}
}

func run(port, queue int, logDir string, jsonLogs, debug, confirm bool) error {
	if err := logger.Init(logDir, jsonLogs); err != nil {
		return err
	}
	defer logger.Close()
	logger.SetDebug(debug)

	cfg := config.Default()
	cfg.Port = port
	cfg.QueueCapacity = queue
	cfg.LogDir = logDir
	cfg.LogJSON = jsonLogs
	cfg.LogDebug = debug

	var err error
	cfg, err = config.FromEnv(cfg)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !cfg.Enabled() {
		return fmt.Errorf("bridge disabled (port 0), nothing to do")
	}

	sess := host.NewSession(uuid.New().String())
	sim := host.NewSim(sess, host.SimOptions{RequireConfirmation: confirm})
	defer sim.Close()

	srv := bridge.NewServer(bridge.Options{
		Port:          cfg.Port,
		QueueCapacity: cfg.QueueCapacity,
		InboundRate:   cfg.InboundRate,
		InboundBurst:  cfg.InboundBurst,
		Card:          agentCard(cfg),
	}, sess)

	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Printf("session %s exposed on http://%s\n", sess.SessionID(), srv.Addr())
	fmt.Println("type a prompt, /approve or /deny for pending confirmations, ctrl-c to quit")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go readStdin(ctx, sess, sim)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// readStdin feeds terminal lines into the session, treating /approve and
// /deny as terminal-side confirmation answers.
func readStdin(ctx context.Context, sess *host.Session, sim *host.Sim) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "/approve":
			if !sim.ApprovePending(true) {
				fmt.Println("no pending confirmation")
			}
		case "/deny":
			if !sim.ApprovePending(false) {
				fmt.Println("no pending confirmation")
			}
		default:
			sess.InjectInput(line)
		}
	}
}

func agentCard(cfg config.Config) bridge.AgentCard {
	return bridge.AgentCard{
		Name:            cfg.AgentName,
		Description:     cfg.AgentDescription,
		Version:         cfg.AgentVersion,
		ProtocolVersion: bridge.ProtocolVersion,
		Capabilities: bridge.AgentCapabilities{
			Streaming: true,
			Extensions: []bridge.AgentExtension{{
				URI:         "https://github.com/quayside/gangplank/blob/main/docs/protocol.md",
				Description: "Interactive session bridge events",
				Required:    true,
			}},
		},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills: []bridge.AgentSkill{{
			ID:          "interactive-session",
			Name:        "Interactive session",
			Description: "Observe a live terminal agent session and inject prompts",
			Tags:        []string{"session", "streaming"},
			InputModes:  []string{"text"},
			OutputModes: []string{"text"},
		}},
	}
}
