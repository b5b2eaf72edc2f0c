package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"FactorPipe/internal/di"
	domrepo "FactorPipe/internal/domain/repository"
	"FactorPipe/internal/repository"
	"FactorPipe/pkg/config"
	applogger "FactorPipe/pkg/logger"
)

var errNoBackend = errors.New("one of --csv or --config is required")

// openStore returns the store chosen by --csv or --config and a func that
// releases it. --csv wins when both are set.
func openStore(ctx context.Context, cmd *cobra.Command, log *applogger.Logger) (domrepo.PricingRepository, func(), error) {
	csvPath, err := cmd.Root().PersistentFlags().GetString("csv")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get csv flag: %w", err)
	}
	cfgPath, err := cmd.Root().PersistentFlags().GetString("config")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get config flag: %w", err)
	}

	switch {
	case csvPath != "":
		bars, err := repository.LoadBarsCSVFile(csvPath)
		if err != nil {
			return nil, nil, err
		}
		store := repository.NewMemoryPricingStore()
		if err := store.StoreBars(ctx, bars); err != nil {
			return nil, nil, fmt.Errorf("load %s: %w", csvPath, err)
		}
		log.Debug("loaded bars", applogger.String("path", csvPath), applogger.Int("bars", store.Len()))
		return store, func() {}, nil
	case cfgPath != "":
		cfg, err := config.LoadWithEnv(cfgPath)
		if err != nil {
			return nil, nil, err
		}
		ch, err := di.ProvideClickHouseClient(cfg, log)
		if err != nil {
			return nil, nil, err
		}
		repo, err := di.ProvidePricingRepository(cfg, ch, log)
		if err != nil {
			if ch != nil {
				_ = ch.Close()
			}
			return nil, nil, err
		}
		release := func() {
			if ch != nil {
				_ = ch.Close()
			}
		}
		return repo, release, nil
	default:
		return nil, nil, errNoBackend
	}
}
