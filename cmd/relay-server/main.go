// Package main 提供独立的 Circuit Relay v2 中继服务器
//
// NAT 后的节点在中继上预约，对端经中继建立电路后再尝试打洞。
//
// 使用方法:
//
//	relay-server --port 4001 --secret-key-seed 1
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	natpunch "github.com/dep2p/go-natpunch"
	"github.com/dep2p/go-natpunch/config"
	"github.com/dep2p/go-natpunch/internal/core/metrics"
	"github.com/dep2p/go-natpunch/internal/util/logger"
	"github.com/dep2p/go-natpunch/pkg/lib/multiaddr"
)

var log = logger.Logger("cmd/relay-server")

type flags struct {
	configFile      string
	port            int
	seed            uint8
	maxReservations int
	metricsAddr     string
}

func newRootCommand() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:          "relay-server",
		Short:        "Circuit relay v2 server for NAT hole punching",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.configFile, "config", "c", "", "configuration file (TOML or JSON)")
	fs.IntVar(&f.port, "port", 4001, "TCP listen port")
	fs.Uint8Var(&f.seed, "secret-key-seed", 0, "deterministic identity seed, demo only")
	fs.IntVar(&f.maxReservations, "max-reservations", 128, "maximum concurrent reservations")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func buildConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg := config.NewConfig()
	natpunch.PresetRelay(cfg)
	if f.configFile != "" {
		if err := config.LoadInto(f.configFile, cfg); err != nil {
			return nil, err
		}
		cfg.Relay.Server.Enable = true
	}

	changed := cmd.Flags().Changed
	if changed("port") {
		cfg.Transport.ListenAddrs = []string{fmt.Sprintf("/ip4/0.0.0.0/tcp/%d", f.port)}
	}
	if changed("secret-key-seed") {
		cfg.Identity = cfg.Identity.WithSeed(f.seed)
	}
	if changed("max-reservations") {
		cfg.Relay.Server.MaxReservations = f.maxReservations
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = f.metricsAddr
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Addr != "" {
		addr, _, err := metrics.Serve(ctx, cfg.Metrics.Addr)
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		log.Info("指标服务已启动", "addr", addr.String())
	}

	node, err := natpunch.New(ctx, natpunch.WithConfig(cfg))
	if err != nil {
		return err
	}
	defer node.Close()
	if err := node.Start(ctx); err != nil {
		return err
	}

	fmt.Println("relay addresses:")
	for _, a := range node.Addrs() {
		if multiaddr.IsRelayAddr(a) {
			continue
		}
		fmt.Printf("  %s/p2p/%s\n", a, node.ID())
	}

	<-ctx.Done()
	log.Info("正在关闭中继")
	return nil
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
