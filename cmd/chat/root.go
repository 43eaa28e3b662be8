package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chatapp/chat-cli/internal/app"
	"github.com/chatapp/chat-cli/internal/config"
	logpkg "github.com/chatapp/chat-cli/internal/log"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "chat",
		Short:         "Terminal client for the ChatApp backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newLoginCmd(flags),
		newRegisterCmd(flags),
		newLogoutCmd(flags),
		newRoomsCmd(flags),
		newUsersCmd(flags),
		newOpenCmd(flags),
	)
	return root
}

// loadApp builds the application for one command invocation.
func loadApp(flags *rootFlags) (*app.App, error) {
	bootLog := logpkg.New("info")
	cfg, path, err := config.Load(bootLog, flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}

	logger := logpkg.New(cfg.LogLevel)
	logger.Debug().Str("config", path).Msg("configuration loaded")
	return app.New(cfg, logger)
}

// commandContext cancels on interrupt so open streams tear down cleanly.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}
