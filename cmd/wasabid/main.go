package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"wasabix/cmd/internal/passphrase"
	"wasabix/config"
	"wasabix/core"
	"wasabix/crypto"
	"wasabix/native/yield"
	"wasabix/observability/logging"
	"wasabix/observability/otel"
	"wasabix/rpc"
	"wasabix/storage"
)

const (
	governancePassEnv = "WASABIX_GOVERNANCE_PASS"
	rpcTokenEnv       = "WASABIX_RPC_TOKEN"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./config.toml", "path to the node configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup("wasabid", cfg.Log.Environment, logging.FileConfig{
		Path:       cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: "wasabid",
			Environment: cfg.Log.Environment,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Metrics:     cfg.Telemetry.Metrics,
			Traces:      cfg.Telemetry.Traces,
		})
		if err != nil {
			logger.Error("telemetry init failed", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", "error", err)
			}
		}()
	}

	governanceKey, err := loadGovernanceKey(cfg.GovernanceKeystorePath)
	if err != nil {
		logger.Error("load governance keystore", "error", err, "path", cfg.GovernanceKeystorePath)
		os.Exit(1)
	}

	gen, err := buildGenesis(cfg, governanceKey.PubKey().Address())
	if err != nil {
		logger.Error("invalid protocol parameters", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("open database", "error", err, "path", cfg.DataDir)
		os.Exit(1)
	}
	defer db.Close()

	registry := yield.NewRegistry()
	if err := registry.Register(gen.AdapterID, yield.NewIdleAdapter(gen.BaseToken)); err != nil {
		logger.Error("register yield adapter", "error", err, "adapter", gen.AdapterID)
		os.Exit(1)
	}

	node, err := core.NewNode(db, registry, gen)
	if err != nil {
		logger.Error("start node", "error", err)
		os.Exit(1)
	}
	logger.Info("node ready",
		"network", cfg.NetworkName,
		"height", node.Height(),
		"governance", gen.Governance.String(),
		"adapter", gen.AdapterID,
	)

	if cfg.MetricsAddress != "" {
		go serveMetrics(cfg.MetricsAddress, logger)
	}

	server := rpc.NewServer(node)
	if os.Getenv(rpcTokenEnv) == "" {
		logger.Warn("no rpc bearer token configured; mutating methods will reject all callers", "env", rpcTokenEnv)
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("rpc listening", "addr", cfg.RPCAddress)
		errCh <- server.Start(cfg.RPCAddress)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("rpc server exited", "error", err)
			os.Exit(1)
		}
	}
}

// loadGovernanceKey opens the keystore written by config.Load. Freshly
// generated keystores are saved without a passphrase, so an empty passphrase
// is attempted before prompting the operator.
func loadGovernanceKey(path string) (*crypto.PrivateKey, error) {
	if key, err := crypto.LoadFromKeystore(path, ""); err == nil {
		return key, nil
	}
	pass, err := passphrase.NewSource(governancePassEnv).Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

func buildGenesis(cfg *config.Config, governanceFallback crypto.Address) (*core.Genesis, error) {
	p := cfg.Protocol

	governance, err := config.ParseAddress(p.Governance)
	if err != nil {
		return nil, fmt.Errorf("governance address: %w", err)
	}
	if governance.IsZero() {
		governance = governanceFallback
	}
	rewards, err := config.ParseAddress(p.Rewards)
	if err != nil {
		return nil, fmt.Errorf("rewards address: %w", err)
	}
	feeCollector, err := config.ParseAddress(p.FeeCollector)
	if err != nil {
		return nil, fmt.Errorf("fee collector address: %w", err)
	}
	collector, err := config.ParseAddress(p.Collector)
	if err != nil {
		return nil, fmt.Errorf("collector address: %w", err)
	}

	amounts := make(map[string]*big.Int, 5)
	for _, field := range []struct {
		name string
		raw  string
	}{
		{"CollateralizationLimit", p.CollateralizationLimit},
		{"FlushActivator", p.FlushActivator},
		{"WaTokenCeiling", p.WaTokenCeiling},
		{"PlantableThreshold", p.PlantableThreshold},
		{"WasabiRatePerBlock", p.WasabiRatePerBlock},
	} {
		value, err := config.ParseAmount(field.raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field.name, err)
		}
		amounts[field.name] = value
	}

	return &core.Genesis{
		Governance:   governance,
		Rewards:      rewards,
		FeeCollector: feeCollector,
		Collector:    collector,

		BaseToken:   p.BaseToken,
		WasabiToken: p.WasabiToken,
		AdapterID:   p.AdapterID,

		CollateralizationLimit: amounts["CollateralizationLimit"],
		MintFeeBps:             p.MintFeeBps,
		WithdrawFeeBps:         p.WithdrawFeeBps,
		HarvestFeeBps:          p.HarvestFeeBps,
		FlushActivator:         amounts["FlushActivator"],
		WaTokenCeiling:         amounts["WaTokenCeiling"],

		TransmutationPeriod: p.TransmutationPeriod,
		PlantableThreshold:  amounts["PlantableThreshold"],
		PlantableMarginBps:  p.PlantableMarginBps,

		WasabiRatePerBlock: amounts["WasabiRatePerBlock"],
		RewardTokens:       append([]string(nil), p.RewardTokens...),
		RewardVesting:      append([]bool(nil), p.RewardVesting...),
	}, nil
}

func serveMetrics(addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	logger.Info("metrics listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("metrics server exited", "error", err)
	}
}
