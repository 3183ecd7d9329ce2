package main

import (
	"fmt"
	"strconv"
	"time"

	"creditbot/config"
	"creditbot/internal/app"
	"creditbot/internal/auth"
	"creditbot/internal/bot"
	"creditbot/internal/database"
	"creditbot/internal/domain"
	"creditbot/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type env struct {
	cfg *config.Config
	log *logrus.Logger
	db  *gorm.DB
}

func openEnv() (*env, error) {
	cfg := config.Load()
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	db, err := database.NewDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	return &env{cfg: cfg, log: log, db: db}, nil
}

// services wires the full service graph. Users are notified through Telegram when a
// bot token is configured.
func (e *env) services() (*app.Services, app.Deps, error) {
	deps, err := app.ExternalDeps(e.cfg, e.log)
	if err != nil {
		return nil, app.Deps{}, err
	}
	if e.cfg.Telegram.Token != "" {
		api, err := tgbotapi.NewBotAPI(e.cfg.Telegram.Token)
		if err != nil {
			deps.Close()
			return nil, app.Deps{}, fmt.Errorf("telegram: %w", err)
		}
		deps.Messenger = bot.NewTelegram(api, e.log)
	}
	return app.NewServices(e.cfg, e.db, deps, e.log), deps, nil
}

func parseUserID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", s)
	}
	return id, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			if err := database.AutoMigrate(e.db); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Fail and refund processing tasks older than the task timeout",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			svc, deps, err := e.services()
			if err != nil {
				return err
			}
			defer deps.Close()
			if batch <= 0 {
				batch = e.cfg.Ledger.SweepBatch
			}
			n, err := svc.Tasks.SweepStale(cmd.Context(), time.Now(), batch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "swept %d stale tasks\n", n)
			return nil
		},
	}
	cmd.Flags().IntVarP(&batch, "batch", "b", 0, "maximum tasks to resolve (default from config)")
	return cmd
}

func balanceCmd() *cobra.Command {
	var history int
	cmd := &cobra.Command{
		Use:   "balance <user-id>",
		Short: "Show a user's credit balance and recent ledger entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			e, err := openEnv()
			if err != nil {
				return err
			}
			svc := app.NewServices(e.cfg, e.db, app.Deps{}, e.log)
			ctx := cmd.Context()
			balance, err := svc.Ledger.GetBalance(ctx, userID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "user %d: %d credits\n", userID, balance)
			if history <= 0 {
				return nil
			}
			entries, err := svc.Ledger.History(ctx, userID, history)
			if err != nil {
				return err
			}
			for _, t := range entries {
				fmt.Fprintf(out, "%s  %+d  %-12s %-32s -> %d\n",
					t.CreatedAt.Format(time.RFC3339), t.Delta, t.Reason, t.Reference, t.BalanceAfter)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&history, "history", "n", 10, "number of ledger entries to print")
	return cmd
}

func adjustCmd() *cobra.Command {
	var note string
	cmd := &cobra.Command{
		Use:   "adjust <user-id> <delta>",
		Short: "Credit or debit a user's balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			delta, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || delta == 0 {
				return fmt.Errorf("invalid delta %q", args[1])
			}
			e, err := openEnv()
			if err != nil {
				return err
			}
			svc := app.NewServices(e.cfg, e.db, app.Deps{}, e.log)
			balance, err := svc.Ledger.AdjustCredits(cmd.Context(), userID, delta, domain.ReasonAdmin, note)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user %d: %d credits\n", userID, balance)
			return nil
		},
	}
	cmd.Flags().StringVar(&note, "note", "ledgerctl", "reference stored on the audit entry")
	return cmd
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token <admin-id>",
		Short: "Mint an admin API token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adminID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			cfg := config.Load()
			if !cfg.Admin.IsAdmin(adminID) {
				return fmt.Errorf("user %d is not listed in ADMIN_IDS", adminID)
			}
			token, err := auth.GenerateAccessToken(&cfg.JWT, adminID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
}
