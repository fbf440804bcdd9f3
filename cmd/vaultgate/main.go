// Command vaultgate runs the authorization gate as an HTTP service.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"

	"github.com/Mindburn-Labs/vaultgate/pkg/api"
	"github.com/Mindburn-Labs/vaultgate/pkg/auth"
	"github.com/Mindburn-Labs/vaultgate/pkg/config"
	"github.com/Mindburn-Labs/vaultgate/pkg/contracts"
	"github.com/Mindburn-Labs/vaultgate/pkg/executor"
	"github.com/Mindburn-Labs/vaultgate/pkg/gate"
	"github.com/Mindburn-Labs/vaultgate/pkg/observability"
	"github.com/Mindburn-Labs/vaultgate/pkg/spend"
	"github.com/Mindburn-Labs/vaultgate/pkg/store"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("vaultgate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "vaultgate.yaml", "path to configuration file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "vaultgate: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewJSONHandler(stdout, nil))
	slog.SetDefault(logger)

	if err := serve(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		return 1
	}
	return 0
}

func serve(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	obsCfg := observability.DefaultConfig()
	if ep := os.Getenv("VAULTGATE_OTLP_ENDPOINT"); ep != "" {
		obsCfg.OTLPEndpoint = ep
	} else {
		obsCfg.Enabled = false
	}
	obs, err := observability.New(ctx, obsCfg)
	if err != nil {
		return fmt.Errorf("observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = obs.Shutdown(shutdownCtx)
	}()

	snapshots, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open snapshot store: %w", err)
	}
	defer func() { _ = snapshots.Close() }()

	exec, err := buildExecutor(cfg, logger)
	if err != nil {
		return err
	}

	opts := []gate.Option{gate.WithLogger(logger), gate.WithMetrics(obs)}
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = client.Close() }()
		opts = append(opts, gate.WithSpendTracker(spend.NewRedis(client, "vaultgate:spend")))
	}
	if cfg.Gate.RequestExpiry > 0 {
		opts = append(opts, gate.WithRequestExpiry(cfg.Gate.RequestExpiry))
	}

	g, err := gate.New(contracts.Principal(cfg.Gate.Owner), exec, opts...)
	if err != nil {
		return fmt.Errorf("create gate: %w", err)
	}

	snap, err := snapshots.LoadLatest(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if snap != nil {
		if err := g.Restore(*snap); err != nil {
			return fmt.Errorf("restore snapshot: %w", err)
		}
		logger.Info("state restored from snapshot",
			"audit_entries", len(snap.AuditEntries),
			"requests", len(snap.Requests))
	} else {
		gateCfg, err := cfg.Gate.ToGateConfig()
		if err != nil {
			return fmt.Errorf("gate config: %w", err)
		}
		if err := g.Initialize(contracts.Principal(cfg.Gate.Owner), gateCfg); err != nil {
			return fmt.Errorf("initialize gate: %w", err)
		}
	}

	// Sweep expired threshold requests in the background.
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				g.CleanupExpired()
			}
		}
	}()

	validator := auth.NewValidator(cfg.Server.JWTSecret)
	limiter := api.NewGlobalRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateBurst)

	var handler http.Handler = api.NewServer(g, logger).Routes()
	handler = auth.NewMiddleware(validator)(handler)
	handler = limiter.Middleware(handler)
	handler = auth.RequestIDMiddleware(handler)

	srv := &http.Server{
		Addr:         cfg.Server.ListenAddr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}

	if err := snapshots.Save(shutdownCtx, g.Snapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	logger.Info("snapshot saved")
	return nil
}

func buildExecutor(cfg *config.Config, logger *slog.Logger) (executor.Executor, error) {
	switch cfg.Executor.Mode {
	case "evm":
		keyHex := os.Getenv(cfg.Executor.PrivateKeyEnv)
		if keyHex == "" {
			return nil, fmt.Errorf("executor mode \"evm\" requires %s", cfg.Executor.PrivateKeyEnv)
		}
		key, err := gethcrypto.HexToECDSA(keyHex)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}

		backends := make(map[string]executor.ChainBackend, len(cfg.Chains))
		for _, chain := range cfg.Chains {
			client, err := ethclient.Dial(chain.RPCURL)
			if err != nil {
				return nil, fmt.Errorf("dial %s: %w", chain.Name, err)
			}
			backends[chain.Name] = executor.ChainBackend{
				Client:  client,
				ChainID: big.NewInt(chain.ChainID),
			}
			logger.Info("chain backend connected", "chain", chain.Name, "chain_id", chain.ChainID)
		}
		return executor.NewEVM(backends, key).WithGasLimit(cfg.Executor.GasLimit), nil

	default:
		logger.Warn("using static executor, transactions are simulated")
		return executor.NewStatic("0xstatic"), nil
	}
}
