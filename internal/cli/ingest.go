package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"FactorPipe/internal/di"
	"FactorPipe/internal/repository"
	"FactorPipe/pkg/config"
	applogger "FactorPipe/pkg/logger"
)

type IngestCmd struct{}

func NewIngestCmd() *IngestCmd {
	return &IngestCmd{}
}

func (c *IngestCmd) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <bars.csv>",
		Short: "Load daily bars from a CSV file into ClickHouse",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
			if err != nil {
				return fmt.Errorf("failed to get config flag: %w", err)
			}
			if cfgPath == "" {
				return fmt.Errorf("ingest needs --config with backend.type clickhouse")
			}
			cfg, err := config.LoadWithEnv(cfgPath)
			if err != nil {
				return err
			}
			if cfg.Backend.Type != config.BackendClickHouse {
				return fmt.Errorf("ingest needs backend.type clickhouse, got %s", cfg.Backend.Type)
			}

			bars, err := repository.LoadBarsCSVFile(args[0])
			if err != nil {
				return err
			}

			log := newLogger(cmd)
			ch, err := di.ProvideClickHouseClient(cfg, log)
			if err != nil {
				return err
			}
			defer ch.Close()

			store := repository.NewCHPricingStore(ch)
			store.SetLogger(log)

			began := time.Now()
			if err := store.StoreBars(cmd.Context(), bars); err != nil {
				return err
			}
			log.Info("bars ingested",
				applogger.String("path", args[0]),
				applogger.Int("bars", len(bars)),
				applogger.Duration("duration_ms", time.Since(began)),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %d bars into %s.daily_bars\n", len(bars), cfg.ClickHouse.Database)
			return nil
		},
	}
	return cmd
}
