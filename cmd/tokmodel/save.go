package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func newSaveCmd() *cobra.Command {
	var (
		dir    string
		prefix string
	)

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Write the model in its native file format",
		Long:  "Load a model in any supported format and write its native files (vocab.json + merges.txt, unigram.json or vocab.txt).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := loadActiveModel()
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output dir: %w", err)
			}

			paths, err := m.Save(dir, prefix)
			if err != nil {
				return err
			}
			slog.Info("model saved", "dir", dir, "files", len(paths))
			for _, p := range paths {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), p); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "out", ".", "Output directory")
	cmd.Flags().StringVar(&prefix, "prefix", "", "File name prefix")
	return cmd
}
