package main

import (
	"fmt"

	"github.com/example/khanpan/pkg/config"
	"github.com/example/khanpan/pkg/models"
	"github.com/example/khanpan/pkg/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var menuFile string

var menuCmd = &cobra.Command{
	Use:   "menu",
	Short: "Manage the restaurant menu",
}

// khanpanctl menu seed --file config/menu.yaml
var menuSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace the menu with the dishes in a YAML file",
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := config.LoadMenu(menuFile)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		cfg, repo, err := bootMongo(ctx)
		if err != nil {
			return err
		}
		defer closeMongo(repo)

		if err := repo.Menu().Replace(ctx, items); err != nil {
			return err
		}

		redis := repository.NewRedisRepository(&cfg.Redis)
		defer redis.Close()
		cached := repository.NewCachedMenu(repo.Menu(), redis, cfg.Redis.MenuTTL, zap.NewNop())
		if err := cached.Invalidate(ctx); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: menu cache not cleared: %v\n", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d dishes\n", len(items))
		return nil
	},
}

var menuListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the menu as the assistant sees it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, repo, err := bootMongo(ctx)
		if err != nil {
			return err
		}
		defer closeMongo(repo)

		items, err := repo.Menu().Menu(ctx)
		if err != nil {
			return err
		}
		for _, item := range models.Indexed(items) {
			fmt.Fprintf(cmd.OutOrStdout(), "%2d. %-28s %8.2f  %s\n", item.Index, item.Name, item.Price, item.Description)
		}
		return nil
	},
}

func init() {
	menuSeedCmd.Flags().StringVarP(&menuFile, "file", "f", "config/menu.yaml", "menu YAML file")
}
