// Package main 提供 NAT 打洞聊天节点的命令行入口
//
// listen 端在中继上预约并等待连接，dial 端经中继连接 listen 端后打洞，
// 之后双方通过 GossipSub 聊天，标准输入的每一行发布为一条消息。
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
)

var log = logger.Logger("cmd/natpunch")

// flags 命令行参数，只有显式设置的参数覆盖配置文件
type flags struct {
	configFile   string
	preset       string
	mode         string
	seed         uint8
	relayAddress string
	remotePeerID string
	topic        string
	metricsAddr  string
}

func newRootCommand() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "natpunch",
		Short: "NAT hole punching chat over a circuit relay",
		Long: `natpunch connects two peers behind NATs. The listen side reserves a slot on
a public relay; the dial side reaches it through the relay, then both sides
exchange observed addresses and dial each other at the same time to open a
direct connection. The relayed connection stays as a fallback. Lines read from
stdin are published to the chat topic.`,
		Example: `
  # listen side
  natpunch --mode listen --secret-key-seed 2 \
    --relay-address /ip4/1.2.3.4/tcp/4001/p2p/12D3KooW...

  # dial side
  natpunch --mode dial --secret-key-seed 3 \
    --relay-address /ip4/1.2.3.4/tcp/4001/p2p/12D3KooW... \
    --remote-peer-id 12D3KooW...`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := buildConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, f.preset)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.configFile, "config", "c", "", "configuration file (TOML or JSON)")
	fs.StringVar(&f.preset, "preset", natpunch.PresetNameChat, "preset: chat, local")
	fs.StringVar(&f.mode, "mode", "", "dial or listen")
	fs.Uint8Var(&f.seed, "secret-key-seed", 0, "deterministic identity seed, demo only")
	fs.StringVar(&f.relayAddress, "relay-address", "", "relay multiaddr with /p2p/<relay-id>")
	fs.StringVar(&f.remotePeerID, "remote-peer-id", "", "peer to dial in dial mode")
	fs.StringVar(&f.topic, "topic", config.DefaultTopic, "chat topic")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

// buildConfig 依次应用预设、配置文件与显式设置的参数
func buildConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	cfg := config.NewConfig()
	preset, err := natpunch.PresetByName(f.preset)
	if err != nil {
		return nil, err
	}
	preset(cfg)

	if f.configFile != "" {
		if err := config.LoadInto(f.configFile, cfg); err != nil {
			return nil, err
		}
	}

	changed := cmd.Flags().Changed
	if changed("mode") {
		m, err := config.ParseMode(f.mode)
		if err != nil {
			return nil, err
		}
		cfg.Mode = m
	}
	if changed("secret-key-seed") {
		cfg.Identity = cfg.Identity.WithSeed(f.seed)
	}
	if changed("relay-address") {
		cfg.Relay.Address = f.relayAddress
	}
	if changed("remote-peer-id") {
		cfg.RemotePeerID = f.remotePeerID
	}
	if changed("topic") {
		cfg.Gossip.Topic = f.topic
	}
	if changed("metrics-addr") {
		cfg.Metrics.Addr = f.metricsAddr
	}
	if cfg.Mode == config.ModeNone {
		return nil, fmt.Errorf("--mode is required (dial or listen)")
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, cfg *config.Config, preset string) error {
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
	fmt.Fprintf(os.Stderr, "peer id: %s (preset %s, mode %s)\n", node.ID(), preset, cfg.Mode)

	return node.Run(ctx, natpunch.ChatIO{In: os.Stdin, Out: os.Stdout})
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
