// Command kvmanager runs the "manager" role: reads commands from stdin,
// broadcasts them, and prints results reported back by nodes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/decub/kvgossip/internal/config"
	"github.com/decub/kvgossip/internal/logging"
	"github.com/decub/kvgossip/internal/manager"
	"github.com/decub/kvgossip/internal/transport"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "kvmanager",
		Short: "Command injector for the replicated key-value store",
		RunE:  run,
	}
	config.RegisterFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cmd)
	if err != nil {
		return fmt.Errorf("kvmanager: %w", err)
	}
	log := logging.New(logging.ParseLevel(cfg.LogLevel), os.Stderr)

	t, err := transport.NewWithHeartbeat(cfg.TCPListen, cfg.Topic, cfg.HeartbeatInterval)
	if err != nil {
		log.Fatalf("bootstrap transport: %v", err)
	}
	defer t.Close()

	fmt.Printf("Manager peer id: %s\n", t.PeerID())

	if cfg.ConnectMultiaddr != "" {
		if err := t.Connect(cfg.ConnectMultiaddr); err != nil {
			log.Warnf("connect to %s failed: %v", cfg.ConnectMultiaddr, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := manager.New(t, log)
	mgr.Run(ctx, os.Stdin, os.Stdout)
	return nil
}
