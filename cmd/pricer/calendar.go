package main

import (
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var calFlags struct {
	from  string
	to    string
	years float64
	year  int
}

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Trading calendar queries",
}

var calDaysCmd = &cobra.Command{
	Use:   "days",
	Short: "Trading days in [from, to) or over --years trading years from --from",
	RunE: func(cmd *cobra.Command, args []string) error {
		cal, err := buildCalendar(cfg.Calendar)
		if err != nil {
			return err
		}
		from, err := time.Parse(time.DateOnly, calFlags.from)
		if err != nil {
			return fmt.Errorf("--from: %w", err)
		}

		out := cmd.OutOrStdout()
		if calFlags.to != "" {
			to, err := time.Parse(time.DateOnly, calFlags.to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			n, err := cal.TradingDays(from, to)
			if err != nil {
				return err
			}
			years, err := cal.YearFraction(from, to)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "trading days: %d\ntrading years: %.10f\n", n, years)
			return nil
		}

		end, err := cal.AddYears(from, calFlags.years)
		if err != nil {
			return err
		}
		n, err := cal.TradingDaysInRange(from, calFlags.years)
		if err != nil {
			return err
		}
		perDay, err := cal.FractionOfYearPerDay(from, calFlags.years)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "end date: %s\ntrading days: %d\nyears per day: %.12f\n", end.Format(time.DateOnly), n, perDay)
		return nil
	},
}

var calHolidaysCmd = &cobra.Command{
	Use:   "holidays",
	Short: "List exchange holidays of a year",
	RunE: func(cmd *cobra.Command, args []string) error {
		cal, err := buildCalendar(cfg.Calendar)
		if err != nil {
			return err
		}
		hs, err := cal.Holidays(calFlags.year)
		if err != nil {
			return err
		}
		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.SetHeader([]string{"Date", "Weekday", "Holiday"})
		for _, h := range hs {
			table.Append([]string{h.Date.Format(time.DateOnly), h.Date.Weekday().String(), h.Name})
		}
		table.Render()
		return nil
	},
}

func init() {
	calDaysCmd.Flags().StringVar(&calFlags.from, "from", "", "start date (YYYY-MM-DD)")
	calDaysCmd.Flags().StringVar(&calFlags.to, "to", "", "end date (YYYY-MM-DD), exclusive")
	calDaysCmd.Flags().Float64Var(&calFlags.years, "years", 1, "trading years from --from (ignored with --to)")
	_ = calDaysCmd.MarkFlagRequired("from")

	calHolidaysCmd.Flags().IntVar(&calFlags.year, "year", time.Now().Year(), "calendar year")

	calendarCmd.AddCommand(calDaysCmd, calHolidaysCmd)
}
