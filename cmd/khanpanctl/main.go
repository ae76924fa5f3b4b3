package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/example/khanpan/pkg/config"
	"github.com/example/khanpan/pkg/repository"
	"github.com/spf13/cobra"
)

var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "khanpanctl",
	Short: "KhanPan operator CLI",
	Long:  "Seed the menu, inspect orders and mark them delivered.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "config/config.yaml", "config file")

	menuCmd.AddCommand(menuSeedCmd, menuListCmd)
	orderCmd.AddCommand(orderListCmd, orderCurrentCmd, orderShowCmd, orderDeliverCmd, orderAuditCmd)
	rootCmd.AddCommand(menuCmd, orderCmd)
}

// bootMongo loads config and connects to MongoDB.
func bootMongo(ctx context.Context) (*config.Config, *repository.MongoRepository, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, nil, err
	}
	repo, err := repository.NewMongoRepository(&cfg.MongoDB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := repo.Ping(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to reach MongoDB: %w", err)
	}
	return cfg, repo, nil
}

func closeMongo(repo *repository.MongoRepository) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = repo.Close(ctx)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
