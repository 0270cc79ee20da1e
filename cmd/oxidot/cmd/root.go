// Package cmd implements the oxidot command-line surface: a thin cobra
// layer over pkg/store, pkg/cluster, and pkg/config.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	oxidot "github.com/awkless/oxidot"
	"github.com/awkless/oxidot/pkg/cluster"
)

var (
	storePath string
	verbose   bool
	logger    *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "oxidot",
	Short: "Dotfile cluster manager backed by bare-alias git repositories",
	Long: `oxidot manages collections of dotfiles ("clusters") as bare git
repositories whose work tree is an external directory such as $HOME.
Each cluster deploys only the files its sparse-checkout rules select,
so unrelated clusters can share a single work-tree alias without
stepping on each other's files.`,
	Version:           oxidot.FullVersion(),
	SilenceUsage:      true,
	PersistentPreRunE: initLogger,
}

// Execute runs the oxidot CLI, exiting the process with status 1 on
// error. Escape-hatch invocations (`oxidot <name> <git-args...>`) are
// dispatched before cobra parses anything, since the trailing git args
// carry flags cobra would otherwise reject as unknown.
func Execute() {
	if name, gitArgs, ok := escapeHatchArgs(os.Args[1:]); ok {
		if err := runEscapeGit(name, gitArgs); err != nil {
			fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
			os.Exit(1)
		}
		return
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(err.Error()))
		os.Exit(1)
	}
}

// escapeHatchArgs reports whether args is an escape-hatch invocation:
// a leading non-flag word that names no registered subcommand, followed
// by at least one git argument.
func escapeHatchArgs(args []string) (string, []string, bool) {
	if len(args) < 2 || strings.HasPrefix(args[0], "-") {
		return "", nil, false
	}
	switch args[0] {
	case "help", "completion":
		return "", nil, false
	}
	for _, c := range rootCmd.Commands() {
		if c.Name() == args[0] || c.HasAlias(args[0]) {
			return "", nil, false
		}
	}
	return args[0], args[1:], true
}

func runEscapeGit(name string, gitArgs []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	return st.UseCluster(name, func(c *cluster.Cluster) error {
		return c.GitInteractive(context.Background(), gitArgs...)
	})
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storePath, "store", defaultStorePath(), "directory holding all clusters")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.Args = cobra.ArbitraryArgs
	rootCmd.RunE = runEscapeHatch
}

// defaultStorePath resolves to $XDG_DATA_HOME/oxidot-store, falling
// back to ~/.local/share/oxidot-store when XDG_DATA_HOME is unset.
func defaultStorePath() string {
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "oxidot-store")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "oxidot-store")
}

func initLogger(*cobra.Command, []string) error {
	level := slog.LevelInfo
	switch os.Getenv("OXIDOT_LOG") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// runEscapeHatch is the cobra-side fallback for invocations Execute's
// pre-dispatch declines, such as ones leading with a global flag
// (`oxidot --store X shell log`). Git args containing flags of their
// own must go through the pre-dispatch path, since cobra has already
// rejected any flag it does not recognize by the time control gets
// here.
func runEscapeHatch(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return cmd.Help()
	}
	if len(args) < 2 {
		return fmt.Errorf("usage: oxidot %s <git-args...>", args[0])
	}
	return runEscapeGit(args[0], args[1:])
}
