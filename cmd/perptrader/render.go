package main

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/gregtusar/perptrader/pkg/journal"
	"github.com/gregtusar/perptrader/pkg/models"
	"github.com/gregtusar/perptrader/pkg/trader"
)

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'f', -1, 64)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func side(isBuy bool) string {
	if isBuy {
		return "buy"
	}
	return "sell"
}

// printReport lists every order a strategy submitted with the venue's answer.
func printReport(w io.Writer, r *trader.Report) {
	fmt.Fprintf(w, "%s %s (%s)\n", r.Strategy, r.Asset, r.ID)
	tw := newTable(w)
	fmt.Fprintln(tw, "STEP\tSIDE\tTYPE\tPX\tSZ\tRESULT")
	for _, step := range r.Steps {
		for i, st := range step.Statuses {
			if i < len(step.Orders) {
				o := step.Orders[i]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", step.Name, side(o.IsBuy), o.OrderType, o.LimitPx, o.Sz, st)
				continue
			}
			fmt.Fprintf(tw, "%s\t\t\t\t\t%s\n", step.Name, st)
		}
	}
	tw.Flush()
	fmt.Fprintf(w, "orders: %d  filled: %s\n", r.Orders(), formatFloat(r.Filled()))
	if r.Note != "" {
		fmt.Fprintln(w, r.Note)
	}
}

func printUPnL(w io.Writer, state *models.AccountState) {
	fmt.Fprintf(w, "unrealized pnl: %.2f\n", state.TotalPnL())
}

func printWallet(w io.Writer, state *models.AccountState, margin models.MarginType) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ACCOUNT VALUE\tMARGIN USED\tWITHDRAWABLE\tMODE")
	summary := state.MarginSummary
	if margin == models.MarginCross {
		summary = state.CrossMarginSummary
	}
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", summary.AccountValue, summary.TotalMarginUsed, state.Withdrawable, margin)
	tw.Flush()
}

func printPositions(w io.Writer, state *models.AccountState) {
	tw := newTable(w)
	fmt.Fprintln(tw, "ASSET\tSIZE\tENTRY\tVALUE\tUPNL\tLIQ\tLEVERAGE")
	for _, ap := range state.AssetPositions {
		p := ap.Position
		if p.Size() == 0 {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%dx %s\n",
			p.Coin, p.Szi, p.EntryPx, p.PositionValue, p.UnrealizedPnl, p.LiquidationPx, p.Leverage.Value, p.Leverage.Type)
	}
	tw.Flush()
}

func printOpenOrders(w io.Writer, orders []models.OpenOrder) {
	tw := newTable(w)
	fmt.Fprintln(tw, "OID\tASSET\tSIDE\tPX\tSZ\tPLACED")
	for _, o := range orders {
		placed := time.UnixMilli(o.Timestamp).Format(time.DateTime)
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", o.Oid, o.Coin, side(o.IsBuy()), o.LimitPx, o.Sz, placed)
	}
	tw.Flush()
}

func printFills(w io.Writer, fills []models.Fill, limit int) {
	if limit > 0 && len(fills) > limit {
		fills = fills[:limit]
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "TIME\tASSET\tDIR\tPX\tSZ\tFEE\tCLOSED PNL\tOID")
	for _, f := range fills {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			time.UnixMilli(f.Time).Format(time.DateTime), f.Coin, f.Dir, f.Px, f.Sz, f.Fee, f.ClosedPnl, f.Oid)
	}
	tw.Flush()
}

func printJournal(w io.Writer, entries []journal.Entry) {
	tw := newTable(w)
	fmt.Fprintln(tw, "NONCE\tTIME\tACTION\tCOUNT\tRESULT")
	for _, e := range entries {
		result := e.Error
		if result == "" {
			for i, st := range e.Statuses {
				if i > 0 {
					result += "; "
				}
				result += st.String()
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", e.Nonce, e.Time.Format(time.DateTime), e.Action, e.Count, result)
	}
	tw.Flush()
}
