package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/factbot/internal/config"
	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/internal/service/memory"
	"github.com/sandevgo/factbot/internal/service/quota"
	"github.com/sandevgo/factbot/internal/service/ui"
	"github.com/sandevgo/factbot/pkg/srv"
	"github.com/spf13/cobra"
)

var (
	adminUID string
	adminTZ  string

	memLimit      int
	memKind       string
	memImportance float64
	memTopics     []string
)

// withStorage runs fn against the configured stores and closes them after.
func withStorage(cmd *cobra.Command, fn func(ctx context.Context, cfg *config.AppConfig, st *storage) error) error {
	ctx, flushLog := setupLogger(cmd.Context())
	defer flushLog()

	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		return err
	}
	cfg := config.NewAppConfig(ctx)

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close(ctx)

	return fn(ctx, cfg, st)
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and edit what FactBot remembers about a user",
}

var memoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List active memories",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStorage(cmd, func(ctx context.Context, cfg *config.AppConfig, st *storage) error {
			svc := memory.NewService(st.memories, srv.Inline{}, cfg.DependencyAttempts)
			records, err := svc.List(ctx, adminUID, memLimit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println(ui.DescStyle.Render("no memories"))
				return nil
			}
			for _, r := range records {
				fmt.Printf("%s  %s  %.2f  %s\n",
					ui.UsageStyle.Render(r.ID), r.Kind, r.ImportanceScore, r.Content)
			}
			return nil
		})
	},
}

var memoryAddCmd = &cobra.Command{
	Use:   "add <content>",
	Short: "Store a memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStorage(cmd, func(ctx context.Context, cfg *config.AppConfig, st *storage) error {
			svc := memory.NewService(st.memories, srv.Inline{}, cfg.DependencyAttempts)
			rec, err := svc.Add(ctx, adminUID, memory.Candidate{
				Content:    args[0],
				Kind:       core.MemoryKind(memKind),
				Importance: memImportance,
				Topics:     memTopics,
				Source:     "manual",
			})
			if err != nil {
				return err
			}
			fmt.Println(ui.OkStyle.Render("stored") + " " + rec.ID)
			return nil
		})
	},
}

var memoryForgetCmd = &cobra.Command{
	Use:   "forget <id>",
	Short: "Deactivate a memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStorage(cmd, func(ctx context.Context, cfg *config.AppConfig, st *storage) error {
			svc := memory.NewService(st.memories, srv.Inline{}, cfg.DependencyAttempts)
			if err := svc.Forget(ctx, adminUID, args[0]); err != nil {
				return err
			}
			fmt.Println(ui.OkStyle.Render("forgotten") + " " + args[0])
			return nil
		})
	},
}

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect and change credit plans",
}

var quotaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the remaining credits of a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStorage(cmd, func(ctx context.Context, cfg *config.AppConfig, st *storage) error {
			tz := adminTZ
			if tz == "" {
				tz = cfg.DefaultTimezone
			}
			loc, err := time.LoadLocation(tz)
			if err != nil {
				return fmt.Errorf("invalid timezone %q: %w", tz, err)
			}

			r, err := quota.NewLedger(st.quota).Remaining(ctx, adminUID, loc)
			if err != nil {
				return err
			}
			fmt.Printf("%s %s\n", ui.TitleStyle.Render("plan"), r.Plan)
			fmt.Printf("daily    %s\n", formatLeft(r.Daily))
			fmt.Printf("monthly  %s\n", formatLeft(r.Monthly))
			return nil
		})
	},
}

var quotaSetPlanCmd = &cobra.Command{
	Use:       "set-plan <free|pro|enterprise>",
	Short:     "Change the plan of a user",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(core.PlanFree), string(core.PlanPro), string(core.PlanEnterprise)},
	RunE: func(cmd *cobra.Command, args []string) error {
		plan := core.ParsePlan(args[0])
		if string(plan) != args[0] {
			return fmt.Errorf("unknown plan %q", args[0])
		}
		return withStorage(cmd, func(ctx context.Context, cfg *config.AppConfig, st *storage) error {
			if err := quota.NewLedger(st.quota).SetPlan(ctx, adminUID, plan); err != nil {
				return err
			}
			fmt.Println(ui.OkStyle.Render("plan set") + " " + adminUID + " → " + string(plan))
			return nil
		})
	},
}

func formatLeft(n int) string {
	switch {
	case n == core.Unbounded:
		return ui.OkStyle.Render("unlimited")
	case n <= 0:
		return ui.WarnStyle.Render("0")
	default:
		return fmt.Sprint(n)
	}
}

func init() {
	for _, c := range []*cobra.Command{memoryCmd, quotaCmd} {
		c.PersistentFlags().StringVarP(&adminUID, "user", "u", "", "user id")
		_ = c.MarkPersistentFlagRequired("user")
	}

	memoryListCmd.Flags().IntVarP(&memLimit, "limit", "n", memory.DefaultLimit, "maximum records to show")
	memoryAddCmd.Flags().StringVar(&memKind, "kind", string(core.MemoryFact), "memory kind")
	memoryAddCmd.Flags().Float64Var(&memImportance, "importance", 0.5, "importance between 0 and 1")
	memoryAddCmd.Flags().StringSliceVar(&memTopics, "topics", nil, "comma separated topics")
	memoryCmd.AddCommand(memoryListCmd, memoryAddCmd, memoryForgetCmd)

	quotaShowCmd.Flags().StringVar(&adminTZ, "tz", "", "IANA timezone for the daily window")
	quotaCmd.AddCommand(quotaShowCmd, quotaSetPlanCmd)

	rootCmd.AddCommand(memoryCmd, quotaCmd)
}
