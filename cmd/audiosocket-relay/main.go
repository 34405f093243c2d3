// Command audiosocket-relay bridges Asterisk AudioSocket calls to the
// caller-agent WebSocket gateway. It accepts framed 8 kHz PCM over TCP from
// the PBX, resamples it, and relays both directions with paced playback.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AmaanP314/AI-Caller-Agent/internal/config"
	"github.com/AmaanP314/AI-Caller-Agent/internal/relay"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "audiosocket-relay: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "audiosocket-relay: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	if cfg.Relay.AgentURL == "" {
		slog.Error("relay.agent_url is required")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := relay.New(cfg.Relay.AgentURL,
		relay.WithLogger(logger),
		relay.WithPacing(time.Duration(cfg.Relay.PacingFrameMs)*time.Millisecond),
		relay.WithKeepalive(time.Duration(cfg.Relay.KeepaliveSeconds)*time.Second),
	)

	ln, err := net.Listen("tcp", cfg.Relay.ListenAddr)
	if err != nil {
		slog.Error("listen failed", "addr", cfg.Relay.ListenAddr, "err", err)
		return 1
	}

	slog.Info("audiosocket-relay listening",
		"addr", cfg.Relay.ListenAddr,
		"agent_url", cfg.Relay.AgentURL,
	)

	if err := r.Serve(ctx, ln); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("serve error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
