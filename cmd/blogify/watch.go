package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/blackmichael/blogify/internal/app"
	"github.com/blackmichael/blogify/internal/realtime"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func (c *cli) watchCmd() *cobra.Command {
	var statusAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stay connected and print notifications as they arrive",
		Long: `Keep the realtime notification channel open and print a line for every
notice until interrupted. A local status server is started when --status-addr
(or status_addr in the config) is set.`,
		Args: cobra.NoArgs,
		RunE: c.withApp(func(ctx context.Context, cmd *cobra.Command, a *app.App, _ []string) error {
			if statusAddr == "" {
				statusAddr = a.Config.StatusAddr
			}
			return watch(ctx, cmd, a, statusAddr)
		}),
	}
	cmd.Flags().StringVar(&statusAddr, "status-addr", "", "listen address of the status server")
	return cmd
}

func watch(ctx context.Context, cmd *cobra.Command, a *app.App, statusAddr string) error {
	if a.Session.ViewerID() == "" {
		a.Logger.Warn("not logged in, notifications will not be delivered")
	}

	a.Channel.OnStateChange(func(s realtime.State) {
		a.Logger.Info("notification channel state changed", "state", s.String())
	})

	notices, stop := a.Notices.Subscribe(16)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.Channel.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("notification channel: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.Inbox.StartRetentionJob(gctx, a.Config.RetentionInterval, a.Config.InboxMaxAge, a.Config.InboxMaxRows)
		return nil
	})

	g.Go(func() error {
		out := cmd.OutOrStdout()
		for {
			select {
			case <-gctx.Done():
				return nil
			case n := <-notices:
				if n.Title != "" {
					fmt.Fprintf(out, "[%s] %s: %s\n", n.Severity, n.Title, n.Message)
				} else {
					fmt.Fprintf(out, "[%s] %s\n", n.Severity, n.Message)
				}
			}
		}
	})

	if statusAddr != "" {
		server := a.StatusServer(statusAddr)
		g.Go(func() error {
			if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				a.Logger.Error("error shutting down status server", "error", err)
			}
			return nil
		})
	}

	a.Logger.Info("watching for notifications", "user_id", a.Session.ViewerID(), "status_addr", statusAddr)
	err := g.Wait()
	a.Logger.Info("shutting down")
	return err
}
