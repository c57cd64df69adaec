// Nwa-cli is an interactive client for emulators speaking the NWA protocol.
//
// It connects to the emulator, keeps reconnecting when the emulator goes
// away, and sends every typed line as a command:
//
//	$ nwa-cli --host localhost --port 48879
//	Connected to bsnes 115
//	$ CORE_READ WRAM;$10;16
//
// Settings come from flags, from NWA_* environment variables, and from a
// .env file in the working directory.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/pior/nwa"
)

const historyLimit = 500

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "nwa-cli",
	Short:        "Interactive NWA emulator client",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	bindFlags(rootCmd.Flags())
}

func bindFlags(flags *pflag.FlagSet) {
	flags.String("host", nwa.DefaultHost, "emulator host (NWA_HOST)")
	flags.Int("port", nwa.DefaultPort, "emulator port (NWA_PORT)")
	flags.Bool("show-traffic", true, "echo the bytes exchanged with the emulator (NWA_SHOW_TRAFFIC)")
	flags.String("log-level", "", "debug, info, warn or error; silent when empty (NWA_LOG_LEVEL)")
	flags.Duration("reconnect-interval", nwa.DefaultReconnectInterval, "delay between reconnect attempts (NWA_RECONNECT_INTERVAL)")
	flags.String("history", "", "history file, ~/.nwa_history when empty (NWA_HISTORY_FILE)")
	flags.String("env-file", ".env", "file loaded into the environment before reading NWA_* variables")
}

func run(cmd *cobra.Command, args []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := loadConfig(envFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	rlCfg := &readline.Config{
		Prompt:                 "$ ",
		HistoryFile:            historyPath(cfg.HistoryFile),
		HistoryLimit:           historyLimit,
		DisableAutoSaveHistory: true,
	}
	// Piped input: no prompt, no history.
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		rlCfg.Prompt = ""
		rlCfg.HistoryFile = ""
	}
	rl, err := readline.NewFromConfig(rlCfg)
	if err != nil {
		return fmt.Errorf("initializing line editor: %w", err)
	}
	defer rl.Close()

	out := os.Stdout
	r := newREPL(historyReader{rl}, out)

	clientCfg := nwa.Config{
		Reconnect:     nwa.FixedInterval{Interval: cfg.ReconnectInterval},
		ShowTraffic:   cfg.ShowTraffic,
		TrafficOutput: out,
		Logger:        logger,
	}
	r.bind(&clientCfg)

	client, err := nwa.NewClient(cfg.addr(), clientCfg)
	if err != nil {
		return err
	}
	defer client.Close()
	r.client = client

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Fprintln(out, "Welcome to NWA cli client")
	if err := client.Connect(); err != nil {
		return err
	}

	err = r.run(ctx)
	if err == context.Canceled {
		return nil
	}
	return err
}

// historyReader saves every non-empty line to the history.
type historyReader struct {
	rl *readline.Instance
}

func (h historyReader) Readline() (string, error) {
	line, err := h.rl.Readline()
	if err == nil && line != "" {
		_ = h.rl.SaveToHistory(line)
	}
	return line, err
}

func historyPath(path string) string {
	if path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".nwa_history")
}
