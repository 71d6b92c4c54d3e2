package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/helioslabs/solgate/internal/gateway"
	"github.com/helioslabs/solgate/internal/rpc"
	"github.com/helioslabs/solgate/internal/rpc/discovery"
	"github.com/helioslabs/solgate/pkg/common/config"
	"github.com/helioslabs/solgate/pkg/common/logger"
	"github.com/helioslabs/solgate/pkg/events"
	"github.com/helioslabs/solgate/pkg/store/extractionstore"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "solgate",
	Short: "Resilient Solana RPC gateway and block extraction pipeline",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger.Init(&logger.Options{
			Level:      level,
			TimeFormat: time.RFC3339,
		})
	},
}

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run one discovery, probe and pool-update cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, gw, err := setup()
		if err != nil {
			return err
		}
		defer gw.Close()

		ctx, stop := signalContext()
		defer stop()

		if err := gw.MaintainPool(ctx, cfg.Pool.MaxTest, cfg.Pool.MaxEndpoints); err != nil {
			return err
		}
		return printJSON(gw.FilteredEndpointStats())
	},
}

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Fetch and extract a range of blocks",
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := cmd.Flags().GetUint64("from")
		if err != nil {
			return err
		}
		to, err := cmd.Flags().GetUint64("to")
		if err != nil {
			return err
		}
		if to == 0 {
			to = from
		}

		_, gw, err := setup()
		if err != nil {
			return err
		}
		defer gw.Close()

		ctx, stop := signalContext()
		defer stop()

		reports, err := gw.ProcessBlocks(ctx, from, to)
		if err != nil {
			return err
		}
		slog.Info("range processed", "from", from, "to", to, "blocks", len(reports))
		return printJSON(reports)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show network status and pool endpoint statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, gw, err := setup()
		if err != nil {
			return err
		}
		defer gw.Close()

		ctx, stop := signalContext()
		defer stop()

		status, err := gw.NetworkStatus(ctx)
		if err != nil {
			return err
		}
		return printJSON(map[string]any{
			"network":   status,
			"endpoints": gw.FilteredEndpointStats(),
		})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "configs/config.yaml", "path to configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	processCmd.Flags().Uint64("from", 0, "first slot of the range")
	processCmd.Flags().Uint64("to", 0, "last slot of the range (defaults to --from)")
	_ = processCmd.MarkFlagRequired("from")

	rootCmd.AddCommand(maintainCmd, processCmd, statsCmd)
}

// setup loads the config, builds the gateway and initializes the pool on the
// configured static endpoints.
func setup() (config.Config, *gateway.Gateway, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}

	gwCfg := gateway.Config{
		Client:    clientConfig(cfg),
		AuthFor:   authLookup(cfg),
		Providers: providers(cfg),
		DenyHosts: cfg.Discovery.DenyHosts,
		Quick:     cfg.Discovery.Quick,

		StatusTTL:  cfg.Cache.StatusTTL,
		NodesTTL:   cfg.Cache.NodesTTL,
		SamplesTTL: cfg.Cache.SamplesTTL,
	}

	if cfg.NATS.URL != "" {
		emitter, err := events.NewEmitter(cfg.NATS.URL, cfg.NATS.SubjectPrefix, "solana-mainnet")
		if err != nil {
			return cfg, nil, fmt.Errorf("connect event bus: %w", err)
		}
		gwCfg.Emitter = emitter
	}
	if cfg.Store.Directory != "" {
		store, err := extractionstore.New(cfg.Store.Directory, cfg.Store.Prefix)
		if err != nil {
			return cfg, nil, fmt.Errorf("open extraction store: %w", err)
		}
		gwCfg.Store = store
	}

	gw := gateway.New(gwCfg)

	urls := make([]string, 0, len(cfg.Endpoints.Static))
	for _, n := range cfg.Endpoints.Static {
		urls = append(urls, n.URL)
	}
	if len(urls) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if err := gw.Initialize(ctx, urls); err != nil {
			gw.Close()
			return cfg, nil, fmt.Errorf("initialize pool: %w", err)
		}
	}
	return cfg, gw, nil
}

func clientConfig(cfg config.Config) rpc.ClientConfig {
	cc := rpc.DefaultClientConfig()
	if cfg.Client.Timeout > 0 {
		cc.Timeout = cfg.Client.Timeout
	}
	if cfg.Client.MaxRetries > 0 {
		cc.MaxRetries = cfg.Client.MaxRetries
	}
	if cfg.Client.RetryDelay > 0 {
		cc.RetryDelay = cfg.Client.RetryDelay
	}
	if cfg.Client.MaxBackoff > 0 {
		cc.MaxBackoff = cfg.Client.MaxBackoff
	}

	rl := cfg.RateLimit
	if rl.InitialRate > 0 {
		cc.RateLimit.InitialRate = rl.InitialRate
	}
	if rl.MinRate > 0 {
		cc.RateLimit.MinRate = rl.MinRate
	}
	if rl.MaxRate > 0 {
		cc.RateLimit.MaxRate = rl.MaxRate
	}
	if rl.IncreaseFactor > 0 {
		cc.RateLimit.IncreaseFactor = rl.IncreaseFactor
	}
	if rl.DecreaseFactor > 0 {
		cc.RateLimit.DecreaseFactor = rl.DecreaseFactor
	}
	if rl.Burst > 0 {
		cc.RateLimit.Burst = rl.Burst
	}
	if rl.CircuitBreakerThreshold > 0 {
		cc.RateLimit.CircuitBreakerThreshold = rl.CircuitBreakerThreshold
	}
	if rl.CooldownDuration > 0 {
		cc.RateLimit.CooldownDuration = rl.CooldownDuration
	}
	return cc
}

// authLookup maps configured endpoint credentials by host so a key is only
// ever sent to its own provider.
func authLookup(cfg config.Config) func(string) *rpc.AuthConfig {
	byHost := make(map[string]*rpc.AuthConfig)
	for _, n := range cfg.Endpoints.Static {
		u, err := url.Parse(n.URL)
		if err != nil || u.Hostname() == "" {
			continue
		}
		if n.ApiKey != "" {
			byHost[u.Hostname()] = &rpc.AuthConfig{
				Type:  "bearer",
				Token: n.ApiKey,
				Host:  u.Hostname(),
			}
		} else if len(n.Headers) > 0 {
			byHost[u.Hostname()] = &rpc.AuthConfig{
				Type:    "custom",
				Headers: n.Headers,
				Host:    u.Hostname(),
			}
		}
	}
	for _, p := range cfg.Providers {
		u, err := url.Parse(p.URL)
		if err != nil || u.Hostname() == "" || p.ApiKey == "" {
			continue
		}
		byHost[u.Hostname()] = &rpc.AuthConfig{
			Type:  "bearer",
			Token: p.ApiKey,
			Host:  u.Hostname(),
		}
	}

	return func(endpointURL string) *rpc.AuthConfig {
		u, err := url.Parse(endpointURL)
		if err != nil {
			return nil
		}
		return byHost[u.Hostname()]
	}
}

func providers(cfg config.Config) []discovery.Provider {
	out := make([]discovery.Provider, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		out = append(out, discovery.Provider{
			Name:   p.Name,
			URL:    p.URL,
			APIKey: p.ApiKey,
		})
	}
	return out
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "err", err)
		os.Exit(1)
	}
}
