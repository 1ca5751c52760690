package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-tutor/core/lessons"
	"github.com/koscakluka/ema-tutor/internal/config"
)

func newSeedCmd(root *rootOptions) *cobra.Command {
	var catalogPath string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write a catalog of courses, users, characters and sessions to the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if catalogPath == "" {
				catalogPath = cfg.Store.Catalog
			}
			if catalogPath == "" {
				return errors.New("no catalog given, use --catalog or store.catalog")
			}
			if cfg.Store.Backend != config.StoreRedis {
				logger.Warn("seeding the memory store, records are lost on exit")
			}

			backend, err := openBackend(cmd.Context(), cfg.Store)
			if err != nil {
				return err
			}
			defer backend.close()

			if err := seedCatalog(cmd.Context(), catalogPath, lessons.NewRecords(backend.store)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %s\n", catalogPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&catalogPath, "catalog", "", "YAML catalog to seed")
	return cmd
}
