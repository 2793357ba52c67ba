package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	_ "github.com/joho/godotenv/autoload"
	flag "github.com/spf13/pflag"

	"github.com/lilzahs/gimme-idea/api/config"
	"github.com/lilzahs/gimme-idea/api/feed"
	"github.com/lilzahs/gimme-idea/api/handlers"
	"github.com/lilzahs/gimme-idea/api/metrics"
	"github.com/lilzahs/gimme-idea/api/prize"
	"github.com/lilzahs/gimme-idea/api/server"
	"github.com/lilzahs/gimme-idea/api/settlement"
	"github.com/lilzahs/gimme-idea/api/solana"
	"github.com/lilzahs/gimme-idea/api/wallet"
	"github.com/lilzahs/gimme-idea/utils/pkg/logger"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	listenAddrFlag := flag.String("listen-addr", "0.0.0.0:8080", "HTTP listen address (or set LISTEN_ADDR env var)")
	corsOriginsFlag := flag.String("cors-origins", "*", "comma-separated allowed CORS origins (or set CORS_ALLOWED_ORIGINS env var)")
	solanaRPCFlag := flag.String("solana-rpc-url", config.DefaultSolanaRPCURL, "Solana RPC URL (or set SOLANA_RPC_URL env var)")
	indexerTokenFlag := flag.String("indexer-token", "", "token the indexer sends to confirm claims (or set INDEXER_TOKEN env var)")
	watcherFlag := flag.Bool("settlement-watcher", true, "poll Solana for pending claim confirmations")
	pollIntervalFlag := flag.Duration("settlement-poll-interval", 30*time.Second, "settlement watcher poll interval")
	notFoundTimeoutFlag := flag.Duration("settlement-not-found-timeout", 10*time.Minute, "fail claims whose transaction is still unknown after this long")
	shutdownTimeoutFlag := flag.Duration("shutdown-timeout", 30*time.Second, "maximum time to wait for in-flight requests on shutdown")

	flag.Parse()

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		*listenAddrFlag = v
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		*corsOriginsFlag = v
	}
	if v := os.Getenv("SOLANA_RPC_URL"); v != "" {
		*solanaRPCFlag = v
	}
	if v := os.Getenv("INDEXER_TOKEN"); v != "" {
		*indexerTokenFlag = v
	}

	log := logger.New(*verboseFlag)
	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: os.Getenv("SENTRY_ENVIRONMENT"),
			Release:     version,
		}); err != nil {
			return fmt.Errorf("failed to initialize sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
		log.Info("sentry initialized")
	}

	pgCfg, err := config.PgConfigFromEnv()
	if err != nil {
		return fmt.Errorf("invalid postgres configuration: %w", err)
	}
	if err := config.LoadPostgres(log, pgCfg); err != nil {
		return err
	}
	defer config.ClosePostgres()

	wallets, err := wallet.NewStore(wallet.StoreConfig{Logger: log, Pool: config.PgPool})
	if err != nil {
		return err
	}
	prizes, err := prize.NewStore(prize.StoreConfig{Logger: log, Pool: config.PgPool})
	if err != nil {
		return err
	}
	feedStore, err := feed.NewStore(feed.StoreConfig{Logger: log, Pool: config.PgPool, Prizes: prizes})
	if err != nil {
		return err
	}

	if *indexerTokenFlag == "" {
		log.Warn("INDEXER_TOKEN not set, claim confirmation endpoints are disabled")
	}
	api, err := handlers.New(handlers.Config{
		Logger:       log,
		Wallets:      wallets,
		Prizes:       prizes,
		Feed:         feedStore,
		IndexerToken: *indexerTokenFlag,
		Version:      handlers.VersionResponse{Version: version, Commit: commit, Date: date},
	})
	if err != nil {
		return err
	}

	srvCfg := server.Config{
		Logger:          log,
		ListenAddr:      *listenAddrFlag,
		ShutdownTimeout: *shutdownTimeoutFlag,
		CORSOrigins:     splitList(*corsOriginsFlag),
		API:             api,
	}

	if *watcherFlag {
		solCfg := config.SolanaConfigFromEnv()
		solCfg.RPCURL = *solanaRPCFlag
		chain, err := solana.NewClient(solana.ClientConfig{
			Logger:         log,
			RPC:            solana.NewRPC(solCfg.RPCURL),
			RequestTimeout: solCfg.RequestTimeout,
		})
		if err != nil {
			return err
		}
		watcher, err := settlement.NewWatcher(settlement.WatcherConfig{
			Logger:          log,
			Claims:          prizes,
			Chain:           chain,
			PollInterval:    *pollIntervalFlag,
			NotFoundTimeout: *notFoundTimeoutFlag,
		})
		if err != nil {
			return err
		}
		srvCfg.Watcher = watcher
		log.Info("settlement watcher enabled", "rpc_url", solCfg.RPCURL, "interval", *pollIntervalFlag)
	}

	srv, err := server.New(srvCfg)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("gimme-api starting", "version", version, "commit", commit)
	return srv.Run(ctx)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
