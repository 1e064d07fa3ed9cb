// main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logging "github.com/ipfs/go-log/v2"

	"github.com/meetwire/lounge/internal/broker"
	"github.com/meetwire/lounge/internal/config"
	"github.com/meetwire/lounge/internal/directory"
	"github.com/meetwire/lounge/internal/gateway"
	"github.com/meetwire/lounge/internal/ice"
)

var log = logging.Logger("lounge")

var (
	showHelp = flag.Bool("h", false, "Show help")
	version  = flag.Bool("version", false, "Show version")
)

// appVersion is set at build time via -ldflags "-X main.appVersion=x.y.z"
var appVersion = "dev"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("lounge v%s\n", appVersion)
		return
	}
	if *showHelp {
		showUsage()
		return
	}

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	if cfg.DirectoryURL != "" {
		log.Warnw("LOUNGE_DIRECTORY_URL is set but the distributed directory backend is not implemented; using the in-memory directory", "url", cfg.DirectoryURL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down gracefully")
		cancel()
	}()

	brk := broker.New(directory.NewMemory(), ice.NewProvider(cfg.TURN.URL, cfg.TURN.Username, cfg.TURN.Credential))
	srv := gateway.New(cfg, brk)

	if err := srv.Start(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "server failed: %v\n", err)
		os.Exit(1)
	}
	log.Infow("lounge server started", "addr", cfg.Addr, "turn", cfg.TURN.Enabled())

	// Blocks past ctx cancellation until the gateway has finished its
	// graceful shutdown, so in-flight connections get drained before the
	// process exits.
	<-srv.Done()
}

func showUsage() {
	fmt.Println("lounge - realtime presence and call-signaling server")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  lounge                Run the server (configured via environment)")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  LOUNGE_ADDR              Listen address (default :8443)")
	fmt.Println("  LOUNGE_SECRET            HMAC secret shared with the credential issuer (required)")
	fmt.Println("  LOUNGE_DIRECTORY_URL     External directory backend URL (optional)")
	fmt.Println("  LOUNGE_TURN_URL          TURN server URL, turn: or turns: (optional)")
	fmt.Println("  LOUNGE_TURN_USERNAME     TURN username (required with LOUNGE_TURN_URL)")
	fmt.Println("  LOUNGE_TURN_CREDENTIAL   TURN credential (required with LOUNGE_TURN_URL)")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -h        Show this help message")
	fmt.Println("  -version  Show version information")
	fmt.Println()
	fmt.Println("Logging uses GOLOG_LOG_LEVEL (e.g. GOLOG_LOG_LEVEL=debug).")
}
