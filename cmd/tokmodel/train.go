package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/born-ml/tokenmodels/internal/config"
	"github.com/born-ml/tokenmodels/models"
)

func newTrainCmd() *cobra.Command {
	var (
		corpus string
		dir    string
		prefix string
	)

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Learn a vocabulary from a whitespace-separated corpus",
		Long: "Learn a vocabulary of --model-type from the words of --corpus (stdin when omitted) " +
			"and write the model files to --out.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			kind, err := models.ParseKind(cfg.Model.Type)
			if err != nil {
				return err
			}
			trainer, err := models.NewTrainer(kind)
			if err != nil {
				return err
			}
			configureTrainer(trainer, cfg)

			in := cmd.InOrStdin()
			if corpus != "" {
				//nolint:gosec // Reading a user-specified corpus is intentional.
				f, err := os.Open(corpus)
				if err != nil {
					return fmt.Errorf("open corpus: %w", err)
				}
				defer func() {
					_ = f.Close() // Read-only.
				}()
				in = f
			}
			if err := feed(trainer, in); err != nil {
				return err
			}

			m, err := trainer.Train()
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

			slog.Info("model trained", "type", kind.String(), "vocab_size", m.VocabSize(), "words", len(trainer.WordCounts()))
			for _, p := range paths {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), p); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&corpus, "corpus", "", "Corpus file, stdin when empty")
	cmd.Flags().StringVar(&dir, "out", ".", "Output directory")
	cmd.Flags().StringVar(&prefix, "prefix", "", "File name prefix")
	return cmd
}

func feed(trainer models.Trainer, r io.Reader) error {
	words, err := readWords(r)
	if err != nil {
		return err
	}
	trainer.Feed(words...)
	return nil
}

// configureTrainer copies the command line settings into the wrapped
// trainer. The unknown token, when set, is always learned as a special token.
func configureTrainer(trainer models.Trainer, cfg config.Config) {
	specials := slices.Clone(cfg.Train.SpecialTokens)
	unk := cfg.Model.UnkToken
	withUnk := func(defaultUnk string) (string, []string) {
		u := unk
		if u == "" {
			u = defaultUnk
		}
		if u == "" || slices.Contains(specials, u) {
			return u, specials
		}
		return u, append([]string{u}, specials...)
	}

	if t, ok := trainer.BPE(); ok {
		t.VocabSize = cfg.Train.VocabSize
		t.MinFrequency = cfg.Train.MinFrequency
		t.ContinuingSubwordPrefix = cfg.Model.ContinuingSubwordPrefix
		t.EndOfWordSuffix = cfg.Model.EndOfWordSuffix
		t.Model.UnkToken, t.SpecialTokens = withUnk("")
	}
	if t, ok := trainer.Unigram(); ok {
		t.VocabSize = cfg.Train.VocabSize
		t.SpecialTokens = specials
		t.UnkToken = unk
		if t.UnkToken == "" {
			t.UnkToken = "<unk>"
		}
	}
	if t, ok := trainer.WordLevel(); ok {
		t.VocabSize = cfg.Train.VocabSize
		t.MinFrequency = cfg.Train.MinFrequency
		t.UnkToken, t.SpecialTokens = withUnk(t.UnkToken)
	}
	if t, ok := trainer.WordPiece(); ok {
		t.BPE.VocabSize = cfg.Train.VocabSize
		t.BPE.MinFrequency = cfg.Train.MinFrequency
		t.BPE.SpecialTokens = specials
		if cfg.Model.ContinuingSubwordPrefix != "" {
			t.BPE.ContinuingSubwordPrefix = cfg.Model.ContinuingSubwordPrefix
		}
		if unk != "" {
			t.UnkToken = unk
		}
		t.MaxInputCharsPerWord = cfg.Model.MaxInputCharsPerWord
	}
}
