package main

import (
	"cmp"
	"slices"
	"strconv"

	"github.com/spf13/cobra"
)

func newVocabCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "vocab",
		Short: "List vocabulary entries by id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := loadActiveModel()
			if err != nil {
				return err
			}
			v, err := m.Vocab()
			if err != nil {
				return err
			}

			type entry struct {
				token string
				id    uint32
			}
			entries := make([]entry, 0, len(v))
			for tok, id := range v {
				entries = append(entries, entry{token: tok, id: id})
			}
			slices.SortFunc(entries, func(a, b entry) int { return cmp.Compare(a.id, b.id) })
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			table := newTable(cmd.OutOrStdout(), "ID", "TOKEN")
			for _, e := range entries {
				table.Append([]string{strconv.FormatUint(uint64(e.id), 10), e.token})
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many entries, 0 for all")
	return cmd
}
