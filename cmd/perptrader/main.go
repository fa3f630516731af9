package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gregtusar/perptrader/api"
	"github.com/gregtusar/perptrader/internal/config"
	"github.com/gregtusar/perptrader/pkg/journal"
	"github.com/gregtusar/perptrader/pkg/models"
	"github.com/gregtusar/perptrader/pkg/numeric"
	"github.com/gregtusar/perptrader/pkg/trader"
	"github.com/gregtusar/perptrader/pkg/venue"
)

const (
	exitInput     = 1
	exitVenue     = 2
	exitTransport = 3
)

// app holds everything built once per invocation.
type app struct {
	configDir string
	env       string

	cfg      *config.Config
	logger   *logrus.Logger
	closeLog func() error

	journal *journal.Store
	trader  *trader.Trader
	monitor *api.Server
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{}
	err := a.rootCmd().ExecuteContext(ctx)
	stop()
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "perptrader",
		Short:         "Interactive trader for a perpetual futures venue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
	}
	root.PersistentFlags().StringVar(&a.configDir, "config-dir", "config", "directory holding default.yaml and <env>.yaml")
	root.PersistentFlags().StringVar(&a.env, "env", "", "config environment (default $PERP_ENV or testnet)")

	root.AddCommand(
		a.entryCmd(models.OrderSideBuy),
		a.entryCmd(models.OrderSideSell),
		a.protectCmd(models.TPSLTakeProfit),
		a.protectCmd(models.TPSLStopLoss),
		a.twapCmd(),
		a.scaleCmd(),
		a.pairCmd(),
		a.chaseCmd(),
		a.cancelCmd(),
		a.leverageCmd(),
		a.viewCmd(),
		a.watchCmd(),
	)
	return root
}

func (a *app) loadConfig() error {
	cfg, err := config.Load(a.configDir, a.env)
	if err != nil {
		return usageError(err)
	}
	logger, closeLog, err := cfg.Logging.NewLogger()
	if err != nil {
		return usageError(err)
	}
	a.cfg, a.logger, a.closeLog = cfg, logger, closeLog
	return nil
}

// connect builds the venue stack: wallet, transport, asset table, nonce
// journal and trader. Metadata failure here aborts the invocation.
func (a *app) connect(ctx context.Context) (*trader.Trader, error) {
	if a.trader != nil {
		return a.trader, nil
	}
	cfg, logger := a.cfg, a.logger

	if err := cfg.LoadSecrets(ctx, logger); err != nil {
		return nil, usageError(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, usageError(err)
	}
	if err := cfg.RequireKey(); err != nil {
		return nil, usageError(err)
	}

	wallet, err := venue.NewWallet(cfg.Account.PrivateKey)
	if err != nil {
		return nil, usageError(err)
	}
	client := venue.NewClient(cfg.Network.API, logger,
		venue.WithTimeout(cfg.Network.TimeoutDuration()),
		venue.WithRateLimit(cfg.Network.RateLimit),
	)
	info := venue.NewInfo(client, wallet.Address())

	assets, err := venue.LoadAssets(ctx, info)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0o755); err != nil {
		return nil, fmt.Errorf("journal dir: %w", err)
	}
	store, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return nil, err
	}
	a.journal = store

	nonces, err := venue.NewNonceSource(store, nil)
	if err != nil {
		return nil, err
	}
	opts := []venue.ExchangeOption{venue.WithJournal(store)}
	if cfg.Account.VaultAddress != "" {
		opts = append(opts, venue.WithVault(common.HexToAddress(cfg.Account.VaultAddress)))
	}
	exchange := venue.NewExchange(client, venue.NewSigner(wallet, venue.ExchangeDomain()), nonces, logger, opts...)

	a.trader = trader.New(assets, info, exchange, trader.Defaults{
		Margin:   models.MarginType(cfg.DefaultMargin.Value),
		SizeType: trader.SizeType(cfg.DefaultSize.Type),
		Size:     cfg.DefaultSize.Value,
		Asset:    cfg.DefaultAsset.Value,
	}, logger)

	logger.WithFields(logrus.Fields{
		"env":    cfg.Env,
		"wallet": wallet.Address().Hex(),
		"assets": assets.Len(),
	}).Debug("connected")

	if cfg.Monitor.Port > 0 {
		a.monitor = api.NewServer(a.trader.Registry(), logger, cfg.Monitor.Port, cfg.Monitor.JWTSecret)
		go func() {
			if err := a.monitor.Start(); err != nil {
				logger.WithError(err).Error("monitor server stopped")
			}
		}()
	}
	return a.trader, nil
}

func (a *app) close() {
	if a.monitor != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := a.monitor.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Warn("monitor shutdown")
		}
		cancel()
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.WithError(err).Warn("journal close")
		}
	}
	if a.closeLog != nil {
		a.closeLog()
	}
}

// usageErr marks failures that are the operator's to fix: bad config or
// flags.
type usageErr struct{ err error }

func (e *usageErr) Error() string { return e.err.Error() }
func (e *usageErr) Unwrap() error { return e.err }

func usageError(err error) error { return &usageErr{err: err} }

// exitCode maps an error to 1 (input), 2 (venue) or 3 (transport).
func exitCode(err error) int {
	var (
		inputErr  *trader.InputError
		invariant *trader.InvariantViolation
		rejected  *trader.OrderRejected
		venueErr  *venue.VenueError
		usage     *usageErr
	)
	switch {
	case errors.As(err, &usage),
		errors.As(err, &inputErr),
		errors.As(err, &invariant),
		errors.Is(err, numeric.ErrInvalidPrice),
		errors.Is(err, numeric.ErrInvalidSize),
		errors.Is(err, venue.ErrUnknownAsset):
		return exitInput
	case errors.As(err, &rejected), errors.As(err, &venueErr):
		return exitVenue
	case venue.IsTransport(err):
		return exitTransport
	}
	// Interrupts and cobra argument errors land here.
	return exitInput
}
