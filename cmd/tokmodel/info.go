package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/born-ml/tokenmodels/internal/config"
	"github.com/born-ml/tokenmodels/models"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the model type, vocabulary size and options",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			m, err := openModel(cfg.Model)
			if err != nil {
				return err
			}

			rows := [][]string{{"path", cfg.Model.Path}, {"format", cfg.Model.Format}}
			err = m.View(func(model models.Model) error {
				rows = append(rows,
					[]string{"type", model.Kind().String()},
					[]string{"vocab size", strconv.Itoa(model.VocabSize())},
				)
				if b, ok := model.BPE(); ok {
					rows = append(rows,
						[]string{"merges", strconv.Itoa(len(b.Merges()))},
						[]string{"unk token", b.UnkToken()},
						[]string{"cache capacity", strconv.Itoa(b.CacheCapacity())},
					)
				}
				if u, ok := model.Unigram(); ok {
					rows = append(rows, []string{"unk token", u.UnkToken()})
				}
				if w, ok := model.WordLevel(); ok {
					rows = append(rows, []string{"unk token", w.UnkToken()})
				}
				if w, ok := model.WordPiece(); ok {
					rows = append(rows,
						[]string{"unk token", w.UnkToken()},
						[]string{"continuing subword prefix", w.ContinuingSubwordPrefix()},
						[]string{"max input chars per word", strconv.Itoa(w.MaxInputCharsPerWord())},
					)
				}
				return nil
			})
			if err != nil {
				return err
			}

			if cfg.Model.Format == config.FormatHuggingFace {
				md, err := models.DetectHuggingFace(cfg.Model.Path)
				if err != nil {
					return err
				}
				rows = append(rows,
					[]string{"has bos", strconv.FormatBool(md.HasBOS)},
					[]string{"has eos", strconv.FormatBool(md.HasEOS)},
				)
			}

			table := newTable(cmd.OutOrStdout(), "KEY", "VALUE")
			table.AppendBulk(rows)
			table.Render()
			return nil
		},
	}
}
