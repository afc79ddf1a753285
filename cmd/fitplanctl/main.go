// Command fitplanctl runs sync passes and plan operations against the local store from
// the command line. It reads the same environment as the server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/config"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/database"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/logging"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/mirror"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/services"
	"github.com/ahmetcoskunkizilkaya/fitplan-backend/internal/store"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// app holds the handles a command needs. It is built once per invocation.
type app struct {
	db     *gorm.DB
	mirror mirror.Mirror
	sync   *services.SyncService
	users  *services.UserService
	plans  *services.PlanService
}

func (a *app) Close() {
	if a.mirror != nil {
		_ = a.mirror.Close()
	}
	if a.db != nil {
		_ = database.Close(a.db)
	}
}

func bootstrap(ctx context.Context, cfg *config.Config) (*app, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	m, err := mirror.Open(ctx, cfg)
	if err != nil {
		_ = database.Close(db)
		return nil, err
	}

	st := store.New(db)
	syncService := services.NewSyncService(st, m, cfg.SyncConcurrency)
	return &app{
		db:     db,
		mirror: m,
		sync:   syncService,
		users:  services.NewUserService(st, syncService),
		plans:  services.NewPlanService(st, services.NewGenerationService(cfg)),
	}, nil
}

func newRootCmd(cfg *config.Config, out io.Writer) *cobra.Command {
	var a *app

	root := &cobra.Command{
		Use:           "fitplanctl",
		Short:         "Operate on fitplan profiles, plans and the remote mirror",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = bootstrap(cmd.Context(), cfg)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a != nil {
				a.Close()
			}
		},
	}
	root.SetOut(out)

	get := func() *app { return a }
	root.AddCommand(newSyncCmd(get), newPlanCmd(get), newUserCmd(get))
	return root
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
