package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"max.com/optpricer/pkg/lattice"
	"max.com/optpricer/pkg/risk"
)

func ff(v float64, prec int) string { return strconv.FormatFloat(v, 'f', prec, 64) }

func renderResults(w io.Writer, rows []ResultRow, withGreeks, withVol bool) {
	table := tablewriter.NewWriter(w)
	header := []string{"Symbol", "Right", "Style", "Strike", "Tree", "Depth", "Price"}
	if withGreeks {
		header = append(header, "Delta", "Gamma", "Theta", "Vega", "Rho")
	}
	if withVol {
		header = append(header, "Implied Vol")
	}
	header = append(header, "Error")
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, r := range rows {
		line := []string{r.Symbol, r.Right, r.Style, ff(r.Strike, 2), r.Tree, strconv.Itoa(r.Depth), ff(r.Price, 6)}
		if withGreeks {
			line = append(line, ff(r.Delta, 6), ff(r.Gamma, 6), ff(r.Theta, 6), ff(r.Vega, 6), ff(r.Rho, 6))
		}
		if withVol {
			line = append(line, ff(r.Vol, 6))
		}
		line = append(line, r.Error)
		table.Append(line)
	}
	table.Render()
}

func renderBook(w io.Writer, out risk.BookOutput) {
	table := tablewriter.NewWriter(w)
	header := []string{"Symbol", "Source", "Unit", "Notional", "Value", "PnL"}
	for _, g := range lattice.AllGreeks {
		header = append(header, g.String())
	}
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for _, l := range out.Lines {
		line := []string{l.Symbol, l.Source, ff(l.Unit, 6), ff(l.Notional, 2), ff(l.Value, 4), ff(l.PnL, 4)}
		for _, g := range lattice.AllGreeks {
			line = append(line, ff(l.Greeks[g], 6))
		}
		table.Append(line)
	}

	footer := []string{"TOTAL", "", "", ff(out.Notional, 2), ff(out.Value, 4), ff(out.PnL, 4)}
	for _, g := range lattice.AllGreeks {
		footer = append(footer, ff(out.Greeks[g], 6))
	}
	table.SetFooter(footer)
	table.Render()
	fmt.Fprintf(w, "hedge qty: %s\n", ff(out.HedgeQty, 6))
}
