package bpe

import (
	"cmp"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"slices"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/born-ml/tokenmodels/internal/tokenizer"
	"github.com/born-ml/tokenmodels/internal/vocab"
)

// byteLevel maps every byte to a printable rune, the alphabet used by
// byte-level BPE vocabularies (space becomes 'Ġ', newline 'Ċ', ...).
var byteLevel = func() [256]rune {
	var table [256]rune
	n := 0
	for b := range 256 {
		switch {
		case b >= '!' && b <= '~', b >= 0xA1 && b <= 0xAC, b >= 0xAE && b <= 0xFF:
			table[b] = rune(b)
		default:
			table[b] = rune(256 + n)
			n++
		}
	}
	return table
}()

// ByteLevel rewrites raw bytes in the byte-level alphabet.
func ByteLevel(raw string) string {
	var sb strings.Builder
	for i := 0; i < len(raw); i++ {
		sb.WriteRune(byteLevel[raw[i]])
	}
	return sb.String()
}

// ReadTiktokenFile loads an OpenAI .tiktoken rank file (one "base64 rank"
// pair per line) and converts it to a byte-level vocabulary plus the merge
// list that reproduces the ranks. Token ids are the ranks.
//
// The file is read through tiktoken-go's loader, which keeps a copy in
// TIKTOKEN_CACHE_DIR (or the system temp dir) keyed by path.
func ReadTiktokenFile(path string) (map[string]uint32, vocab.Merges, error) {
	ranks, err := loadRanks(path)
	if err != nil {
		return nil, nil, err
	}

	type ranked struct {
		raw  string
		rank int
	}
	ordered := make([]ranked, 0, len(ranks))
	tokens := make(map[string]uint32, len(ranks))
	for raw, rank := range ranks {
		if rank < 0 || uint64(rank) > math.MaxUint32 {
			return nil, nil, &tokenizer.FormatError{Path: path, Details: fmt.Sprintf("rank %d out of range", rank)}
		}
		tokens[ByteLevel(raw)] = uint32(rank)
		ordered = append(ordered, ranked{raw: raw, rank: rank})
	}
	slices.SortFunc(ordered, func(a, b ranked) int { return cmp.Compare(a.rank, b.rank) })

	merges := vocab.Merges{}
	for _, tok := range ordered {
		if len(tok.raw) < 2 {
			continue
		}
		parts := simulateMerges(ranks, tok.raw, tok.rank)
		if len(parts) != 2 {
			return nil, nil, &tokenizer.FormatError{
				Path:    path,
				Details: fmt.Sprintf("token %q (rank %d) cannot be built from lower-ranked tokens", tok.raw, tok.rank),
			}
		}
		merges = append(merges, vocab.Merge{Left: ByteLevel(parts[0]), Right: ByteLevel(parts[1])})
	}

	return tokens, merges, nil
}

// FromTiktoken reads a .tiktoken file into cfg and builds the model.
func FromTiktoken(path string, cfg Config) (*BPE, error) {
	tokens, merges, err := ReadTiktokenFile(path)
	if err != nil {
		return nil, err
	}
	cfg.Vocab = tokens
	cfg.Merges = merges
	return cfg.Build()
}

// loadRanks calls the tiktoken-go loader and classifies its failures.
func loadRanks(path string) (ranks map[string]int, err error) {
	defer func() {
		// The loader indexes fields without checking line shape.
		if r := recover(); r != nil {
			ranks = nil
			err = &tokenizer.FormatError{Path: path, Details: fmt.Sprint(r)}
		}
	}()

	ranks, err = tiktoken.NewDefaultBpeLoader().LoadTiktokenBpe(path)
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, tokenizer.WrapIO(err)
		}
		return nil, &tokenizer.FormatError{Path: path, Details: err.Error()}
	}
	return ranks, nil
}

// simulateMerges runs rank-ordered BPE over the bytes of raw using only ranks
// below maxRank and returns the final parts.
func simulateMerges(ranks map[string]int, raw string, maxRank int) []string {
	parts := make([]string, len(raw))
	for i := range len(raw) {
		parts[i] = raw[i : i+1]
	}

	for {
		best, bestRank := -1, maxRank
		for i := 0; i+1 < len(parts); i++ {
			if r, ok := ranks[parts[i]+parts[i+1]]; ok && r < bestRank {
				best, bestRank = i, r
			}
		}
		if best < 0 {
			return parts
		}
		parts = slices.Replace(parts, best, best+2, parts[best]+parts[best+1])
	}
}
