package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/tokenmodels/models"
)

func newTokenizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokenize [word...]",
		Short: "Tokenize words given as arguments or read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			m, err := openModel(cfg.Model)
			if err != nil {
				return err
			}

			words := args
			if len(words) == 0 {
				if words, err = readWords(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			results, err := tokenizeAll(cmd, m, words, cfg.Tokenize.Workers)
			if err != nil {
				return err
			}

			table := newTable(cmd.OutOrStdout(), "WORD", "TOKENS", "IDS")
			for i, tokens := range results {
				values := make([]string, len(tokens))
				ids := make([]string, len(tokens))
				for j, tok := range tokens {
					values[j] = tok.Value
					ids[j] = strconv.FormatUint(uint64(tok.ID), 10)
				}
				table.Append([]string{words[i], strings.Join(values, " "), strings.Join(ids, " ")})
			}
			table.Render()
			return nil
		},
	}
}

// tokenizeAll tokenizes words concurrently through the shared handle,
// keeping the input order.
func tokenizeAll(cmd *cobra.Command, m *models.Shared, words []string, workers int) ([][]models.Token, error) {
	results := make([][]models.Token, len(words))

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(max(workers, 1))
	for i, w := range words {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tokens, err := m.Tokenize(w)
			if err != nil {
				return fmt.Errorf("tokenize %q: %w", w, err)
			}
			results[i] = tokens
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.Debug("tokenized", "words", len(words), "workers", workers)
	return results, nil
}

// readWords splits r on whitespace.
func readWords(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		words = append(words, strings.Fields(scanner.Text())...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read words: %w", err)
	}
	return words, nil
}
