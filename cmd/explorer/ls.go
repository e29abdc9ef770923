package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bassista/solution_explorer/internal/domain"
)

// listing is the ls output for json and yaml.
type listing struct {
	Path     string         `json:"path" yaml:"path"`
	Kind     string         `json:"kind" yaml:"kind"`
	Diagrams []diagramEntry `json:"diagrams" yaml:"diagrams"`
}

type diagramEntry struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
	Size int    `json:"size" yaml:"size"`
}

func newLsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ls [flags] <path>",
		Short: "List the diagrams of a file or solution directory",
		Args:  cobra.ExactArgs(1),
		RunE:  runLs,
	}
	cmd.Flags().StringP("output", "o", "table", "output format (table|json|yaml)")
	return cmd
}

func runLs(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}
	switch format {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}

	repo, err := openRepository(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	s, err := openSession(cmd, repo, args[0])
	if err != nil {
		return err
	}
	diagrams, err := s.GetDiagrams(cmd.Context())
	var partial *domain.PartialLoadError
	if err != nil && !errors.As(err, &partial) {
		return err
	}

	out := listing{Path: s.Path(), Kind: s.Kind().String(), Diagrams: make([]diagramEntry, len(diagrams))}
	for i, d := range diagrams {
		out.Diagrams[i] = diagramEntry{Name: d.Name, Path: d.Path, Size: len(d.Content)}
	}
	return writeListing(cmd.OutOrStdout(), format, out)
}

func writeListing(w io.Writer, format string, l listing) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(l)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(l); err != nil {
			return err
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tSIZE\tPATH")
		for _, d := range l.Diagrams {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", d.Name, d.Size, d.Path)
		}
		return tw.Flush()
	}
}
