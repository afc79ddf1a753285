package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/models"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/services"
	"github.com/spf13/cobra"
)

func newSyncCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push the local store to the remote mirror",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Mirror every user, calorie goal, fitness item and diet item",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report := get().sync.SyncAll(cmd.Context())
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			return report.Err()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "user EMAIL",
		Short: "Mirror one user profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report := get().sync.SyncUser(cmd.Context(), args[0])
			if err := printJSON(cmd, report); err != nil {
				return err
			}
			return report.Err()
		},
	})
	return cmd
}

func newPlanCmd(get func() *app) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect or regenerate daily plans",
	}
	cmd.PersistentFlags().StringVar(&date, "date", "", "plan date (YYYY-MM-DD), defaults to today")

	resolveDate := func(a *app) (string, error) {
		if date == "" {
			return a.plans.Today(), nil
		}
		if _, err := time.Parse(models.DateLayout, date); err != nil {
			return "", fmt.Errorf("invalid --date %q: want YYYY-MM-DD", date)
		}
		return date, nil
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show EMAIL",
		Short: "Print the stored plan without generating one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			d, err := resolveDate(a)
			if err != nil {
				return err
			}
			plan, err := a.plans.GetOrEmpty(cmd.Context(), args[0], d)
			if err != nil {
				return err
			}
			return printJSON(cmd, plan)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "regenerate EMAIL",
		Short: "Generate a new plan and replace the stored one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			d, err := resolveDate(a)
			if err != nil {
				return err
			}
			user, err := a.users.GetUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			plan, err := a.plans.Regenerate(cmd.Context(), user, d)
			if err != nil {
				if services.IsRetryable(err) {
					return fmt.Errorf("%w (retryable)", err)
				}
				return err
			}
			return printJSON(cmd, plan)
		},
	})
	return cmd
}

func newUserCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Look up user profiles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get EMAIL",
		Short: "Print a profile, falling back to the remote mirror",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, source, err := get().sync.LookupUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if user == nil {
				return errors.New("user not found")
			}
			return printJSON(cmd, map[string]any{"source": source, "profile": user})
		},
	})
	return cmd
}
