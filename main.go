package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bsv-blockchain/go-sdk/transaction"
	"github.com/spf13/cobra"
	"github.com/tonicpow/go-minerid/api"
	"github.com/tonicpow/go-minerid/chain"
	"github.com/tonicpow/go-minerid/config"
	"github.com/tonicpow/go-minerid/crawler"
	"github.com/tonicpow/go-minerid/identity"
	"github.com/tonicpow/go-minerid/logger"
	"github.com/tonicpow/go-minerid/minerid"
	"github.com/tonicpow/go-minerid/router"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is built once flags are parsed
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	client   *chain.Client
	scanner  *minerid.Scanner
	registry *identity.Registry
}

func newRootCmd() *cobra.Command {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		cfg = config.Default()
	}
	a := &app{cfg: cfg}

	root := &cobra.Command{
		Use:           "minerid",
		Short:         "Extract and verify miner id coinbase documents",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.ChainAPIEndpoint, "chain-api", cfg.ChainAPIEndpoint, "block explorer REST endpoint")
	flags.StringVar(&cfg.ChainAPIToken, "chain-api-token", cfg.ChainAPIToken, "block explorer api token")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	flags.BoolVar(&cfg.Development, "dev", cfg.Development, "human readable logs")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "concurrent block fetches")

	root.AddCommand(a.serveCmd(), a.scanCmd(), a.crawlCmd())
	return root
}

func (a *app) init() error {
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	log, err := logger.New(a.cfg.LogLevel, a.cfg.Development)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	a.log = log
	a.client = chain.NewClient(a.cfg.ChainAPIEndpoint, a.cfg.ChainAPIToken, chain.WithLogger(log.Named("chain")))
	a.scanner = minerid.NewScanner(minerid.WithLogger(log.Named("minerid")))
	a.registry = identity.NewRegistry()
	return nil
}

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Crawl new blocks and serve the miner id API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := crawler.New(a.client, a.scanner, a.registry, a.log.Named("crawler"), a.cfg.Workers)
			go func() {
				if err := c.Run(ctx, a.cfg.FromBlock, a.cfg.PollInterval); err != nil && !errors.Is(err, context.Canceled) {
					a.log.Error("crawler stopped", zap.Error(err))
				}
			}()

			return a.startServer(ctx)
		},
	}
	cmd.Flags().StringVar(&a.cfg.ListenAddress, "listen", a.cfg.ListenAddress, "http listen address")
	cmd.Flags().Int32Var(&a.cfg.FromBlock, "from", a.cfg.FromBlock, "first block to crawl")
	cmd.Flags().DurationVar(&a.cfg.PollInterval, "interval", a.cfg.PollInterval, "new block poll interval")
	return cmd
}

func (a *app) startServer(ctx context.Context) error {
	a.log.Info("starting web server", zap.String("address", a.cfg.ListenAddress))
	srv := &http.Server{
		Addr: a.cfg.ListenAddress,
		Handler: router.Handlers(&api.Service{
			Scanner:  a.scanner,
			Source:   a.client,
			Registry: a.registry,
		}),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
	}

	errs := make(chan error, 1)
	go func() { errs <- srv.ListenAndServe() }()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *app) scanCmd() *cobra.Command {
	var (
		height int32
		rawTx  string
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Print the miner id of a block's coinbase",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				tx  *transaction.Transaction
				err error
			)
			if rawTx != "" {
				tx, err = transaction.NewTransactionFromHex(rawTx)
			} else {
				tx, err = a.client.Coinbase(cmd.Context(), height)
			}
			if err != nil {
				return err
			}

			m, ok := a.scanner.Find(tx, height)
			if !ok {
				return fmt.Errorf("no miner id in coinbase %s at height %d", tx.TxID(), height)
			}
			return printJSON(cmd, m)
		},
	}
	cmd.Flags().Int32Var(&height, "height", 0, "block height")
	cmd.Flags().StringVar(&rawTx, "tx", "", "raw coinbase transaction hex, fetched from the chain api when empty")
	_ = cmd.MarkFlagRequired("height")
	return cmd
}

func (a *app) crawlCmd() *cobra.Command {
	var from, to int32
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Index a range of blocks and print the miner ids found",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if to == 0 {
				tip, err := a.client.BestHeight(cmd.Context())
				if err != nil {
					return err
				}
				to = tip
			}
			c := crawler.New(a.client, a.scanner, a.registry, a.log.Named("crawler"), a.cfg.Workers)
			last, err := c.SyncBatched(cmd.Context(), from, to)
			if err != nil {
				a.log.Warn("crawl stopped early", zap.Int32("last", last), zap.Error(err))
			}
			return printJSON(cmd, a.registry.All())
		},
	}
	cmd.Flags().Int32Var(&from, "from", a.cfg.FromBlock, "first height")
	cmd.Flags().Int32Var(&to, "to", 0, "last height, the chain tip when zero")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
