// Package config loads the tokmodel command line settings from flags,
// TOKMODEL_* environment variables and an optional config file, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Model file formats.
const (
	FormatNative      = "native"
	FormatHuggingFace = "hf"
	FormatGGUF        = "gguf"
	FormatTiktoken    = "tiktoken"
)

type Config struct {
	Model    ModelConfig    `mapstructure:"model"`
	Tokenize TokenizeConfig `mapstructure:"tokenize"`
	Train    TrainConfig    `mapstructure:"train"`
	LogLevel string         `mapstructure:"log_level"`
}

// ModelConfig selects and configures the model. Empty strings keep the
// per-algorithm defaults.
type ModelConfig struct {
	Type                    string  `mapstructure:"type"`
	Format                  string  `mapstructure:"format"`
	Path                    string  `mapstructure:"path"`
	MergesPath              string  `mapstructure:"merges_path"`
	UnkToken                string  `mapstructure:"unk_token"`
	CacheCapacity           int     `mapstructure:"cache_capacity"`
	Dropout                 float64 `mapstructure:"dropout"`
	ContinuingSubwordPrefix string  `mapstructure:"continuing_subword_prefix"`
	EndOfWordSuffix         string  `mapstructure:"end_of_word_suffix"`
	FuseUnk                 bool    `mapstructure:"fuse_unk"`
	MaxInputCharsPerWord    int     `mapstructure:"max_input_chars_per_word"`
}

type TokenizeConfig struct {
	Workers int `mapstructure:"workers"`
}

type TrainConfig struct {
	VocabSize     int      `mapstructure:"vocab_size"`
	MinFrequency  uint64   `mapstructure:"min_frequency"`
	SpecialTokens []string `mapstructure:"special_tokens"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Model: ModelConfig{
			Type:                 "BPE",
			Format:               FormatNative,
			CacheCapacity:        10000,
			MaxInputCharsPerWord: 100,
		},
		Tokenize: TokenizeConfig{
			Workers: 4,
		},
		Train: TrainConfig{
			VocabSize: 30000,
		},
		LogLevel: "info",
	}
}

// flagKeys maps each flag to its configuration key.
var flagKeys = []struct {
	flag string
	key  string
}{
	{"model-type", "model.type"},
	{"model-format", "model.format"},
	{"model-path", "model.path"},
	{"model-merges-path", "model.merges_path"},
	{"unk-token", "model.unk_token"},
	{"cache-capacity", "model.cache_capacity"},
	{"dropout", "model.dropout"},
	{"continuing-subword-prefix", "model.continuing_subword_prefix"},
	{"end-of-word-suffix", "model.end_of_word_suffix"},
	{"fuse-unk", "model.fuse_unk"},
	{"max-input-chars-per-word", "model.max_input_chars_per_word"},
	{"workers", "tokenize.workers"},
	{"vocab-size", "train.vocab_size"},
	{"min-frequency", "train.min_frequency"},
	{"special-tokens", "train.special_tokens"},
	{"log-level", "log_level"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("model-type", defaults.Model.Type, "Model algorithm: BPE, Unigram, WordLevel or WordPiece")
	fs.String("model-format", defaults.Model.Format, "Model file format: native, hf, gguf or tiktoken")
	fs.String("model-path", defaults.Model.Path, "Model file (vocab.json, unigram.json, vocab.txt, tokenizer.json, .gguf, .tiktoken)")
	fs.String("model-merges-path", defaults.Model.MergesPath, "BPE merges.txt")
	fs.String("unk-token", defaults.Model.UnkToken, "Unknown token, empty for the model default")
	fs.Int("cache-capacity", defaults.Model.CacheCapacity, "BPE merge cache capacity, 0 disables it")
	fs.Float64("dropout", defaults.Model.Dropout, "BPE dropout probability in [0, 1)")
	fs.String("continuing-subword-prefix", defaults.Model.ContinuingSubwordPrefix, "Prefix of non-initial subwords")
	fs.String("end-of-word-suffix", defaults.Model.EndOfWordSuffix, "BPE end-of-word suffix")
	fs.Bool("fuse-unk", defaults.Model.FuseUnk, "BPE: fuse consecutive unknown characters")
	fs.Int("max-input-chars-per-word", defaults.Model.MaxInputCharsPerWord, "WordPiece word length limit")
	fs.Int("workers", defaults.Tokenize.Workers, "Concurrent tokenization workers")
	fs.Int("vocab-size", defaults.Train.VocabSize, "Trainer target vocabulary size")
	fs.Uint64("min-frequency", defaults.Train.MinFrequency, "Trainer minimum word or pair frequency")
	fs.StringSlice("special-tokens", defaults.Train.SpecialTokens, "Trainer special tokens")
	fs.String("log-level", defaults.LogLevel, "Log level: debug, info, warn or error")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		fs := opts.Cmd.Flags()
		for _, fk := range flagKeys {
			f := fs.Lookup(fk.flag)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(fk.key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", fk.flag, err)
			}
		}
	}

	v.SetEnvPrefix("TOKMODEL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("tokmodel")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("model.type", c.Model.Type)
	v.SetDefault("model.format", c.Model.Format)
	v.SetDefault("model.path", c.Model.Path)
	v.SetDefault("model.merges_path", c.Model.MergesPath)
	v.SetDefault("model.unk_token", c.Model.UnkToken)
	v.SetDefault("model.cache_capacity", c.Model.CacheCapacity)
	v.SetDefault("model.dropout", c.Model.Dropout)
	v.SetDefault("model.continuing_subword_prefix", c.Model.ContinuingSubwordPrefix)
	v.SetDefault("model.end_of_word_suffix", c.Model.EndOfWordSuffix)
	v.SetDefault("model.fuse_unk", c.Model.FuseUnk)
	v.SetDefault("model.max_input_chars_per_word", c.Model.MaxInputCharsPerWord)
	v.SetDefault("tokenize.workers", c.Tokenize.Workers)
	v.SetDefault("train.vocab_size", c.Train.VocabSize)
	v.SetDefault("train.min_frequency", c.Train.MinFrequency)
	v.SetDefault("train.special_tokens", c.Train.SpecialTokens)
	v.SetDefault("log_level", c.LogLevel)
}

// BPEOptions returns the keyword options for a BPE constructor.
func (m ModelConfig) BPEOptions() map[string]any {
	opts := map[string]any{
		"cache_capacity": m.CacheCapacity,
		"dropout":        m.Dropout,
		"fuse_unk":       m.FuseUnk,
	}
	if m.UnkToken != "" {
		opts["unk_token"] = m.UnkToken
	}
	if m.ContinuingSubwordPrefix != "" {
		opts["continuing_subword_prefix"] = m.ContinuingSubwordPrefix
	}
	if m.EndOfWordSuffix != "" {
		opts["end_of_word_suffix"] = m.EndOfWordSuffix
	}
	return opts
}

// WordPieceOptions returns the keyword options for a WordPiece constructor.
func (m ModelConfig) WordPieceOptions() map[string]any {
	opts := map[string]any{
		"max_input_chars_per_word": m.MaxInputCharsPerWord,
	}
	if m.UnkToken != "" {
		opts["unk_token"] = m.UnkToken
	}
	if m.ContinuingSubwordPrefix != "" {
		opts["continuing_subword_prefix"] = m.ContinuingSubwordPrefix
	}
	return opts
}

// UnkTokenPtr returns the unknown token, or nil to keep the default.
func (m ModelConfig) UnkTokenPtr() *string {
	if m.UnkToken == "" {
		return nil
	}
	unk := m.UnkToken
	return &unk
}

// ParseLogLevel maps a level name to its slog level.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}
