// 文件: cmd/pricer/main.go
// 期权格点定价命令行
//
// 用法:
//
//	pricer price  --strike 120 --maturity 0.5 --spot 100 --rate 0.05 --vol 0.2 --style american
//	pricer greeks --input contracts.csv --output greeks.csv
//	pricer iv     --strike 100 --maturity 1 --spot 100 --rate 0.05 --target 10.45
//	pricer book   --input positions.csv
//	pricer calendar days --from 2024-01-02 --years 0.5
//	pricer watch
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"max.com/optpricer/pkg/config"
)

var (
	cfgPath  string
	envFiles []string
	logLevel string

	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:           "pricer",
	Short:         "Lattice (binomial / trinomial) option pricer",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(cfgPath, envFiles...); err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		log.SetOutput(os.Stderr)
		log.SetLevel(cfg.Level())
		log.WithFields(log.Fields{
			"tree":  cfg.Pricer.Tree,
			"depth": cfg.Pricer.Depth,
			"sink":  cfg.Sink.Kind,
		}).Debug("[Pricer] config loaded")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, ".env files to load (missing files are skipped)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(priceCmd, greeksCmd, ivCmd, bookCmd, calendarCmd, watchCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		log.Errorf("Error: %v", err)
		os.Exit(1)
	}
}
