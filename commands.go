package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"fieldreport/internal/config"
	"fieldreport/internal/logger"
	"fieldreport/internal/models"
	"fieldreport/internal/services"

	"github.com/spf13/cobra"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

var configPath string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fieldreport",
		Short: "Local-first incident reporting for field workers",
		Long: `fieldreport keeps incident reports in a local database and mirrors
them to a remote REST collection whenever the network allows.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file")

	rootCmd.AddCommand(serveCmd(), syncCmd(), statsCmd(), listCmd(), eventsCmd())
	return rootCmd
}

// withApp loads the configuration, builds the App and runs fn with it.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *App) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := logger.New(logger.Config{
		Level:    cfg.LogLevel,
		Format:   cfg.LogFormat,
		Output:   cfg.LogOutput,
		FilePath: cfg.LogFile,
	})
	defer log.Sync() //nolint:errcheck

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := NewApp(ctx, cfg, log, nil)
	if err != nil {
		log.Error("failed to start", zap.Error(err))
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("shutdown incomplete", zap.Error(err))
		}
	}()

	return fn(ctx, a)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the screen API on APP_PORT",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *App) error {
				// Graceful shutdown handling
				quit := make(chan os.Signal, 1)
				signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

				errCh := make(chan error, 1)
				go func() {
					a.log.Info("starting server", zap.String("port", a.cfg.AppPort))
					errCh <- a.Fiber.Listen(a.cfg.AppPort)
				}()

				select {
				case err := <-errCh:
					return fmt.Errorf("server failed: %w", err)
				case <-quit:
				}

				a.log.Info("shutting down server")
				if err := a.Fiber.ShutdownWithTimeout(10 * time.Second); err != nil {
					a.log.Warn("error during fiber shutdown", zap.Error(err))
				}
				a.log.Info("server gracefully stopped")
				return nil
			})
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Mirror every pending incident to the remote collection",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *App) error {
				if !a.Sync.Online(ctx) {
					fmt.Fprintln(cmd.ErrOrStderr(), "No internet connection")
					return nil
				}

				start := time.Now()
				result, err := a.Sync.SyncAll(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sync complete in %v\n", time.Since(start).Round(time.Millisecond))
				fmt.Fprintf(cmd.OutOrStdout(), "   Synced: %d\n", result.Synced)
				fmt.Fprintf(cmd.OutOrStdout(), "   Failed: %d\n", result.Failed)
				return nil
			})
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show incident counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *App) error {
				stats, err := a.Incidents.Stats(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Total:    %d\n", stats.Total)
				fmt.Fprintf(out, "Pending:  %d\n", stats.Pending)
				fmt.Fprintf(out, "Resolved: %d\n", stats.Resolved)
				fmt.Fprintf(out, "Mirrored: %d\n", stats.Mirrored)
				return nil
			})
		},
	}
}

func listCmd() *cobra.Command {
	var (
		status string
		search string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List incidents in the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *App) error {
				var (
					incidents []models.Incident
					err       error
				)
				if search != "" {
					incidents, err = a.Incidents.Search(ctx, search)
				} else {
					incidents, err = a.Incidents.List(ctx, services.ListFilter{Status: models.IncidentStatus(status)})
				}
				if err != nil {
					return err
				}
				if len(incidents) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), services.EmptyMessage(services.ListFilter{
						Status: models.IncidentStatus(status),
						Query:  search,
					}))
					return nil
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tSTATUS\tPRIORITY\tMIRRORED\tCREATED\tTITLE")
				for _, inc := range incidents {
					fmt.Fprintf(w, "%d\t%s\t%s\t%t\t%s\t%s\n",
						inc.ID, inc.Status, inc.Priority, inc.Mirrored,
						inc.CreatedAt.Format("02/01/2006 15:04"), inc.Title)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", string(models.StatusAll), "status filter (All, Pending, InProgress, Resolved)")
	cmd.Flags().StringVar(&search, "search", "", "match title or description")
	return cmd
}

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print incident events from RABBITMQ_URL until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *App) error {
				mq := a.Events()
				if mq == nil {
					return fmt.Errorf("incident events are disabled, set RABBITMQ_URL")
				}

				out := cmd.OutOrStdout()
				err := mq.ConsumeIncidentEvents(func(msg amqp.Delivery) error {
					_, err := fmt.Fprintf(out, "%s %s %s\n", msg.Timestamp.Format(time.RFC3339), msg.Type, msg.Body)
					return err
				})
				if err != nil {
					return err
				}

				quit := make(chan os.Signal, 1)
				signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
				<-quit
				return nil
			})
		},
	}
}
