package main

import (
	"context"
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var ivFlags contractFlags

var ivCmd = &cobra.Command{
	Use:   "iv",
	Short: "Solve the volatility that reproduces a target option price on the lattice",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImpliedVol(cmd.Context(), cmd.OutOrStdout(), &ivFlags)
	},
}

func init() {
	ivFlags.bind(ivCmd)
	ivCmd.Flags().Float64Var(&ivFlags.row.Target, "target", 0, "observed option price (CSV column: target)")
}

func runImpliedVol(_ context.Context, stdout io.Writer, f *contractFlags) error {
	a, err := newApp(cfg, f.tree, f.depth)
	if err != nil {
		return err
	}
	rows, err := f.rows()
	if err != nil {
		return err
	}
	return emit(stdout, f.output, a.impliedVols(rows, f.tolerance(a)), false, true)
}

func (a *app) impliedVols(rows []ContractRow, eps float64) []ResultRow {
	depth := a.cfg.Pricer.Depth
	out := make([]ResultRow, 0, len(rows))
	for _, row := range rows {
		res := ResultRow{Symbol: row.Symbol, Right: row.Right, Style: row.Style, Strike: row.Strike, Tree: a.tree.Name(), Depth: depth, Price: row.Target}

		c, err := row.Contract()
		if err == nil {
			m, merr := row.Market()
			if merr != nil {
				err = merr
			} else {
				res.Vol, err = a.pricer.ImpliedVol(c, m, row.Target, depth, eps)
			}
		}
		if err != nil {
			log.WithFields(log.Fields{"symbol": row.Symbol, "target": row.Target}).WithError(err).Warn("[Pricer] implied vol failed")
			res.Error = err.Error()
		}
		out = append(out, res)
	}
	return out
}
