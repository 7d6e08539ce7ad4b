package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/npezzotti/go-lag/internal/app"
	"github.com/npezzotti/go-lag/internal/client"
	"github.com/npezzotti/go-lag/internal/config"
	"github.com/spf13/cobra"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:          "lag",
	Short:        "Terminal client for the lag chat server",
	Version:      version,
	SilenceUsage: true,
	RunE:         run,
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "lag", "session.json")
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().String("server", config.Env("SERVER", "http://localhost:8000"), "server base URL")
	rootCmd.PersistentFlags().String("session-file", config.Env("SESSION_FILE", defaultSessionFile()), "file holding the saved session")
	rootCmd.PersistentFlags().Duration("splash", app.DefaultSplash, "splash screen duration")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "log client activity to stderr")
}

func run(cmd *cobra.Command, _ []string) error {
	serverURL, _ := cmd.Flags().GetString("server")
	sessionFile, _ := cmd.Flags().GetString("session-file")
	splash, _ := cmd.Flags().GetDuration("splash")
	verbose, _ := cmd.Flags().GetBool("verbose")

	var w io.Writer = io.Discard
	if verbose {
		w = os.Stderr
	}
	logger := log.New(w, "[lag] ", log.LstdFlags)

	conn, err := client.New(serverURL, sessionFile, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(logger, conn.Auth(), conn.Profiles(), conn.Realtime(), splash)
	return newTerminal(a, os.Stdin, cmd.OutOrStdout()).Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
