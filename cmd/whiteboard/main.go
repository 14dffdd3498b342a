package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	keyServer  = "server"
	keyRoom    = "room"
	keyName    = "name"
	keyContact = "contact"
	keyTimeout = "timeout"
	keyVerbose = "verbose"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "whiteboard",
		Short: "Command line client for the shared whiteboard server",
		Long: `whiteboard talks to a whiteboard room server.

It can list saved snapshots, save an image as a snapshot, export a
snapshot to PNG or PDF and find servers on the local network.

Every flag can also be set through a WHITEBOARD_ environment variable,
for example WHITEBOARD_SERVER=http://board.local:8080.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String(keyServer, "http://localhost:8080", "Server base URL")
	flags.String(keyRoom, "", "Room key")
	flags.String(keyName, "whiteboard-cli", "Participant name used when joining")
	flags.String(keyContact, "cli@localhost", "Participant contact used when joining")
	flags.Duration(keyTimeout, 15*time.Second, "Timeout for a whole command")
	flags.BoolP(keyVerbose, "v", false, "Log protocol activity to stderr")
	cobra.CheckErr(viper.BindPFlags(flags))

	viper.SetEnvPrefix("WHITEBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(
		listCmd(),
		saveCmd(),
		exportCmd(),
		discoverCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

// commandContext bounds cmd by the configured timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), viper.GetDuration(keyTimeout))
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if viper.GetBool(keyVerbose) {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
