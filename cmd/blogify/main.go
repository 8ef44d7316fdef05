package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/blackmichael/blogify/internal/app"
	"github.com/blackmichael/blogify/internal/config"
	"github.com/spf13/cobra"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

// cli carries the flags shared by every command.
type cli struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "blogify",
		Short:         "Command line client for a Blogify backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file path (default $BLOGIFY_CONFIG)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		c.whoamiCmd(),
		c.loginCmd(),
		c.logoutCmd(),
		c.homeCmd(),
		c.postCmd(),
		c.likeCmd(),
		c.commentCmd(),
		c.replyCmd(),
		c.deleteCmd(),
		c.followCmd(),
		c.listsCmd(),
		c.saveCmd(),
		c.listCmd(),
		c.profileCmd(),
		c.editProfileCmd(),
		c.tagCmd(),
		c.searchCmd(),
		c.notificationsCmd(),
		c.watchCmd(),
	)
	return root
}

func (c *cli) newLogger(cfg *config.Config) *slog.Logger {
	level := cfg.SlogLevel()
	if c.verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// withApp builds and starts the application for the duration of fn.
func (c *cli) withApp(fn func(ctx context.Context, cmd *cobra.Command, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(c.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger := c.newLogger(cfg)

		ctx := cmd.Context()
		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Start(ctx); err != nil {
			return fmt.Errorf("start: %w", err)
		}
		return fn(ctx, cmd, a, args)
	}
}
