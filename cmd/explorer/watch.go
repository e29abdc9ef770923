package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/bassista/solution_explorer/internal/watch"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <path>...",
		Short: "Print a line whenever a watched file or directory changes",
		Long:  `watch reports debounced changes until interrupted. Paths that do not exist yet are reported once they appear.`,
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWatch,
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	repo, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	out := &lockedWriter{w: cmd.OutOrStdout()}
	subs := make([]*watch.Subscription, 0, len(args))
	defer func() {
		for _, sub := range subs {
			_ = sub.Close()
		}
	}()

	for _, pathspec := range args {
		sub, err := repo.Watch(pathspec, func(path string) {
			out.printf("%s changed %s\n", time.Now().Format(time.TimeOnly), path)
		})
		if err != nil {
			return err
		}
		subs = append(subs, sub)
		fmt.Fprintf(cmd.ErrOrStderr(), "watching %s\n", sub.Path())
	}

	<-cmd.Context().Done()
	return nil
}

// lockedWriter serializes callbacks of different paths, which run on their own timers.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, format, args...)
}
