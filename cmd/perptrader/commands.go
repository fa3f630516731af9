package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gregtusar/perptrader/pkg/models"
	"github.com/gregtusar/perptrader/pkg/trader"
	"github.com/gregtusar/perptrader/pkg/venue"
)

func parseSide(s string) (models.OrderSide, error) {
	side, err := models.ParseSide(s)
	if err != nil {
		return "", usageError(err)
	}
	return side, nil
}

// runReport connects, runs one intent and prints whatever it produced, even
// on failure.
func (a *app) runReport(cmd *cobra.Command, fn func(ctx context.Context, t *trader.Trader) (*trader.Report, error)) error {
	ctx := cmd.Context()
	t, err := a.connect(ctx)
	if err != nil {
		return err
	}
	report, err := fn(ctx, t)
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	return err
}

func (a *app) entryCmd(side models.OrderSide) *cobra.Command {
	var req trader.EntryRequest
	cmd := &cobra.Command{
		Use:   string(side),
		Short: fmt.Sprintf("Market or limit %s with optional take-profit and stop-loss", side),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Side = side
			return a.runReport(cmd, func(ctx context.Context, t *trader.Trader) (*trader.Report, error) {
				return t.Entry(ctx, req)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Size, "size", "", `notional ("$100") or account share ("10%"); defaults to default_size`)
	f.StringVar(&req.Asset, "asset", "", "asset symbol; defaults to default_asset")
	f.StringVar(&req.Price, "price", "", "limit price; market when omitted")
	f.StringVar(&req.TP, "tp", "", `take-profit trigger ("2100", "10%" or "+100")`)
	f.StringVar(&req.SL, "sl", "", `stop-loss trigger ("1800", "5%" or "-100")`)
	f.BoolVar(&req.Chase, "chase", false, "rest near the mark and trail it until filled")
	return cmd
}

func (a *app) protectCmd(kind models.TPSL) *cobra.Command {
	name, what := "tp", "take-profit"
	if kind == models.TPSLStopLoss {
		name, what = "sl", "stop-loss"
	}
	return &cobra.Command{
		Use:   name + " <size%> <asset> <trigger>",
		Short: "Reduce-only " + what + " on an open position",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := trader.ProtectRequest{Kind: kind, Percent: args[0], Asset: args[1], Trigger: args[2]}
			return a.runReport(cmd, func(ctx context.Context, t *trader.Trader) (*trader.Report, error) {
				return t.Protect(ctx, req)
			})
		},
	}
}

func (a *app) twapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "twap buy|sell <total_size> <asset> <minutes,orders>",
		Short: "Split a notional into equal market slices over time",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := parseSide(args[0])
			if err != nil {
				return err
			}
			req := trader.TwapRequest{Side: side, Total: args[1], Asset: args[2], Schedule: args[3]}
			return a.runReport(cmd, func(ctx context.Context, t *trader.Trader) (*trader.Report, error) {
				return t.Twap(ctx, req)
			})
		},
	}
}

func (a *app) scaleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scale buy|sell <total/levels> <asset> <lower> <upper>",
		Short: "Ladder resting limit orders between two prices",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := parseSide(args[0])
			if err != nil {
				return err
			}
			req := trader.ScaleRequest{Side: side, Ladder: args[1], Asset: args[2], Lower: args[3], Upper: args[4]}
			return a.runReport(cmd, func(ctx context.Context, t *trader.Trader) (*trader.Report, error) {
				return t.Scale(ctx, req)
			})
		},
	}
}

func (a *app) pairCmd() *cobra.Command {
	var ratio, tp, sl string
	cmd := &cobra.Command{
		Use:   "pair buy|sell <size> <base/quote>",
		Short: "Long one asset against another, optionally waiting for a ratio",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			side, err := parseSide(args[0])
			if err != nil {
				return err
			}
			req := trader.PairRequest{Side: side, Size: args[1], Pair: args[2], Ratio: ratio, TP: tp, SL: sl}
			return a.runReport(cmd, func(ctx context.Context, t *trader.Trader) (*trader.Report, error) {
				return t.Pair(ctx, req)
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&ratio, "price", "", "enter once base/quote reaches this ratio")
	f.StringVar(&tp, "tp", "", "unwind when the ratio reaches this take-profit level")
	f.StringVar(&sl, "sl", "", "unwind when the ratio reaches this stop-loss level")
	return cmd
}

func parseOid(s string) (uint64, error) {
	oid, err := strconv.ParseUint(s, 10, 64)
	if err != nil || oid == 0 {
		return 0, usageError(fmt.Errorf("invalid oid %q", s))
	}
	return oid, nil
}

func (a *app) chaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chase <oid> <asset> buy|sell",
		Short: "Trail a resting order toward the mark until it fills",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := parseOid(args[0])
			if err != nil {
				return err
			}
			side, err := parseSide(args[2])
			if err != nil {
				return err
			}
			req := trader.ChaseRequest{Oid: oid, Asset: args[1], Side: side}
			return a.runReport(cmd, func(ctx context.Context, t *trader.Trader) (*trader.Report, error) {
				return t.Chase(ctx, req)
			})
		},
	}
}

func (a *app) cancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <asset> <oid>",
		Short: "Cancel one resting order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := parseOid(args[1])
			if err != nil {
				return err
			}
			return a.runReport(cmd, func(ctx context.Context, t *trader.Trader) (*trader.Report, error) {
				return t.Cancel(ctx, args[0], oid)
			})
		},
	}
}

func (a *app) leverageCmd() *cobra.Command {
	var isolated bool
	cmd := &cobra.Command{
		Use:   "leverage <asset> <n>",
		Short: "Set leverage for an asset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return usageError(fmt.Errorf("invalid leverage %q", args[1]))
			}
			var margin models.MarginType
			if isolated {
				margin = models.MarginIsolated
			}
			t, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			if err := t.SetLeverage(cmd.Context(), args[0], n, margin); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s leverage set to %dx\n", strings.ToUpper(args[0]), n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&isolated, "isolated", false, "use isolated margin instead of default_margin")
	return cmd
}

func (a *app) viewCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:       "view upnl|wallet|unfilled|positions|fills|journal|summary",
		Short:     "Show account state",
		Args:      cobra.MinimumNArgs(1),
		ValidArgs: []string{"upnl", "wallet", "unfilled", "positions", "open", "fills", "journal", "summary"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := a.connect(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			margin := models.MarginType(a.cfg.DefaultMargin.Value)

			// "wallet balance", "unfilled orders" and "open positions" read the
			// same as their first word.
			switch args[0] {
			case "upnl":
				state, err := t.Info().AccountState(ctx)
				if err != nil {
					return err
				}
				printUPnL(out, state)
			case "wallet":
				state, err := t.Info().AccountState(ctx)
				if err != nil {
					return err
				}
				printWallet(out, state, margin)
			case "unfilled":
				orders, err := t.Info().OpenOrders(ctx)
				if err != nil {
					return err
				}
				printOpenOrders(out, orders)
			case "positions", "open":
				state, err := t.Info().AccountState(ctx)
				if err != nil {
					return err
				}
				printPositions(out, state)
			case "fills":
				fills, err := t.Info().UserFills(ctx)
				if err != nil {
					return err
				}
				printFills(out, fills, limit)
			case "journal":
				entries, err := a.journal.Entries(limit)
				if err != nil {
					return err
				}
				printJournal(out, entries)
			case "summary":
				summary, err := t.Summary(ctx)
				if err != nil {
					return err
				}
				printWallet(out, summary.State, summary.Margin)
				printPositions(out, summary.State)
				printOpenOrders(out, summary.OpenOrders)
			default:
				return usageError(fmt.Errorf("unknown view %q", args[0]))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "rows to show for fills and journal (0 for all)")
	return cmd
}

func (a *app) watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <asset|base/quote>",
		Short: "Stream mid prices, or the ratio of two assets, until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			base, quote := strings.ToUpper(args[0]), ""
			if strings.Contains(args[0], "/") {
				var err error
				if base, quote, err = trader.ParsePair(args[0]); err != nil {
					return err
				}
			}

			feed := venue.NewFeed(a.cfg.Network.WSURL(), a.logger)
			if err := feed.Connect(ctx); err != nil {
				return err
			}
			defer feed.Close()

			out := cmd.OutOrStdout()
			err := feed.SubscribeMids(func(mids map[string]float64) {
				bpx, ok := mids[base]
				if !ok {
					return
				}
				if quote == "" {
					fmt.Fprintf(out, "%s %s\n", base, formatFloat(bpx))
					return
				}
				qpx, ok := mids[quote]
				if !ok {
					return
				}
				r := models.NewRatioSnapshot(
					models.MarketSnapshot{Symbol: base, MarkPrice: bpx},
					models.MarketSnapshot{Symbol: quote, MarkPrice: qpx},
				)
				fmt.Fprintf(out, "%s/%s %.2f (%s / %s)\n", base, quote, r.Ratio, formatFloat(bpx), formatFloat(qpx))
			})
			if err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				return nil
			case <-feed.Done():
				return fmt.Errorf("%w: feed closed", venue.ErrNetwork)
			}
		},
	}
}
