package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	infraRepo "github.com/rs-labo46/ec-payments/internal/infra/repository"
	"github.com/rs-labo46/ec-payments/internal/usecase"

	"github.com/spf13/cobra"
)

func cleanupCmd() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Cancel orders that stayed unpaid for too long",
		Example: `  api cleanup
  api cleanup --older-than 72h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			//フラグ未指定なら環境変数の値
			if !cmd.Flags().Changed("older-than") {
				olderThan = a.cfg.AbandonedAfter
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			uc := newCleanupUsecase(a)
			res, err := uc.Run(ctx, olderThan)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "cancel PENDING orders created before now minus this duration")

	return cmd
}

func newCleanupUsecase(a *app) *usecase.CleanupUsecase {
	return usecase.NewCleanupUsecase(
		infraRepo.NewTxManagerGorm(a.db),
		infraRepo.NewOrderGormRepository(a.db),
		usecase.SystemClock{},
		a.logger,
	)
}
