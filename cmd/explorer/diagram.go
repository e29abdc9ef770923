package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bassista/solution_explorer/internal/explorer"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <path> <name>",
		Short: "Print the content of a diagram",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, args[0], func(s *explorer.Session) error {
				d, err := s.GetDiagramByName(cmd.Context(), args[1], explorer.CurrentPath())
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(d.Content)
				return err
			})
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path> <name>",
		Short: "Delete a diagram",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, args[0], func(s *explorer.Session) error {
				d, err := s.GetDiagramByName(cmd.Context(), args[1], explorer.CurrentPath())
				if err != nil {
					return err
				}
				if err := s.DeleteDiagram(cmd.Context(), d); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", d.Path)
				return nil
			})
		},
	}
}

func newMvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mv <path> <name> <new-name>",
		Short: "Rename a diagram in place; an existing target is never overwritten",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, args[0], func(s *explorer.Session) error {
				d, err := s.GetDiagramByName(cmd.Context(), args[1], explorer.CurrentPath())
				if err != nil {
					return err
				}
				renamed, err := s.RenameDiagram(cmd.Context(), d, args[2])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "renamed %s -> %s\n", d.Path, renamed.Path)
				return nil
			})
		},
	}
}

func withSession(cmd *cobra.Command, pathspec string, fn func(*explorer.Session) error) error {
	repo, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	s, err := openSession(cmd, repo, pathspec)
	if err != nil {
		return err
	}
	return fn(s)
}
