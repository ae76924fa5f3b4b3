package main

import (
	"context"
	"fmt"

	"github.com/example/khanpan/pkg/config"
	"github.com/example/khanpan/pkg/grpc"
	"github.com/example/khanpan/pkg/ledger"
	"github.com/example/khanpan/pkg/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var auditLimit int64

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Inspect orders and mark them delivered",
}

// withLedger runs fn against the ledger the gateway would use: the remote
// order service in remote mode, otherwise the configured ledger.store.
func withLedger(cmd *cobra.Command, fn func(ctx context.Context, l ledger.Ledger) error) error {
	ctx := cmd.Context()
	cfg, repo, err := bootMongo(ctx)
	if err != nil {
		return err
	}
	defer closeMongo(repo)

	if cfg.Ledger.Mode == "remote" {
		return withRemoteLedger(ctx, cfg, fn)
	}

	store, release, err := repository.OpenOrderStore(cfg, repo)
	if err != nil {
		return err
	}
	defer release()

	recorder := repository.NewAuditRecorder(repo, "khanpanctl", zap.NewNop())
	defer recorder.Wait()
	return fn(ctx, ledger.NewService(store, ledger.WithRecorder(recorder)))
}

func withRemoteLedger(ctx context.Context, cfg *config.Config, fn func(ctx context.Context, l ledger.Ledger) error) error {
	target := cfg.Ledger.Target
	if target == "" {
		target = cfg.Server.Addr()
	}
	conn, err := grpc.Dial(target)
	if err != nil {
		return err
	}
	defer conn.Close()
	return fn(ctx, grpc.NewOrderClient(conn))
}

var orderListCmd = &cobra.Command{
	Use:   "list <userId>",
	Short: "List a user's orders, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd, func(ctx context.Context, l ledger.Ledger) error {
			orders, err := l.ListForUser(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, orders)
		})
	},
}

var orderCurrentCmd = &cobra.Command{
	Use:   "current <userId>",
	Short: "Show the user's current order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd, func(ctx context.Context, l ledger.Ledger) error {
			order, err := l.Current(ctx, args[0])
			if err != nil {
				return err
			}
			if order == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "No current order")
				return nil
			}
			return printJSON(cmd, order)
		})
	},
}

var orderShowCmd = &cobra.Command{
	Use:   "show <orderId>",
	Short: "Show one order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd, func(ctx context.Context, l ledger.Ledger) error {
			order, err := l.Get(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, order)
		})
	},
}

var orderDeliverCmd = &cobra.Command{
	Use:   "deliver <orderId>",
	Short: "Mark an order delivered",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLedger(cmd, func(ctx context.Context, l ledger.Ledger) error {
			order, err := l.MarkDelivered(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order %s marked as %s\n", order.ID, order.Status)
			return nil
		})
	},
}

var orderAuditCmd = &cobra.Command{
	Use:   "audit <orderId>",
	Short: "Show the audit trail of an order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		_, repo, err := bootMongo(ctx)
		if err != nil {
			return err
		}
		defer closeMongo(repo)

		logs, err := repo.GetAuditLogs(ctx, args[0], auditLimit)
		if err != nil {
			return err
		}
		for _, entry := range logs {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %-14s %-13s %v\n",
				entry.CreatedAt.Format("2006-01-02 15:04:05"), entry.Action, entry.Service, entry.Data)
		}
		return nil
	},
}

func init() {
	orderAuditCmd.Flags().Int64VarP(&auditLimit, "limit", "n", 20, "maximum entries")
}
