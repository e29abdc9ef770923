package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bassista/solution_explorer/internal/diagram"
	"github.com/bassista/solution_explorer/internal/domain"
	"github.com/bassista/solution_explorer/internal/explorer"
	"github.com/bassista/solution_explorer/internal/logger"
)

// newRootCmd builds the command tree. Flags live on the returned command so
// every invocation starts from defaults.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "explorer",
		Short:         "Browse and edit solutions of process diagrams",
		Long:          `explorer opens a diagram file or a directory of diagrams and lists, shows, removes, renames or watches them`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, _ := cmd.Flags().GetString("log-level")
			return logger.SetLevel(level)
		},
	}

	rootCmd.PersistentFlags().StringSlice("ext", []string{diagram.DefaultExtension}, "diagram file extensions")
	rootCmd.PersistentFlags().String("ignore-file", ".gitignore", "ignore file read from solution roots (empty disables)")
	rootCmd.PersistentFlags().Duration("debounce", 0, "quiet period before a change is reported (default 200ms)")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug|info|warn|error)")

	rootCmd.AddCommand(newLsCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newRmCmd())
	rootCmd.AddCommand(newMvCmd())
	rootCmd.AddCommand(newWatchCmd())
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// openRepository builds a repository from the persistent flags. The caller closes it.
func openRepository(cmd *cobra.Command) (*explorer.Repository, error) {
	exts, err := cmd.Flags().GetStringSlice("ext")
	if err != nil {
		return nil, fmt.Errorf("failed to get ext flag: %w", err)
	}
	ignoreFile, err := cmd.Flags().GetString("ignore-file")
	if err != nil {
		return nil, fmt.Errorf("failed to get ignore-file flag: %w", err)
	}
	debounce, err := cmd.Flags().GetDuration("debounce")
	if err != nil {
		return nil, fmt.Errorf("failed to get debounce flag: %w", err)
	}

	opts := explorer.DefaultOptions()
	opts.Extensions = exts
	opts.IgnoreFile = ignoreFile
	if debounce > 0 {
		opts.Debounce = debounce
	}
	return explorer.New(cmd.Context(), opts)
}

// openSession opens pathspec. Files that failed to load are reported on
// stderr; the usable diagrams are still served.
func openSession(cmd *cobra.Command, repo *explorer.Repository, pathspec string) (*explorer.Session, error) {
	s, err := repo.OpenPath(cmd.Context(), pathspec, domain.Identity{})
	if s == nil {
		return nil, err
	}
	warnPartial(cmd, err)
	return s, nil
}

func warnPartial(cmd *cobra.Command, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
}
