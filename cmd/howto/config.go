package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/howto/internal/fingerprint"
	"github.com/FranksOps/howto/internal/pipeline"
	"github.com/FranksOps/howto/pkg/howto"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// settings is the resolved configuration from flags, HOWTO_* environment
// variables and an optional howto.yaml.
type settings struct {
	Concurrency   int           `mapstructure:"concurrency"`
	Buffer        int           `mapstructure:"buffer"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Fingerprint   string        `mapstructure:"fingerprint"`
	UserAgent     string        `mapstructure:"user_agent"`
	RPS           float64       `mapstructure:"rps"`
	Jitter        float64       `mapstructure:"jitter"`
	CacheTTL      time.Duration `mapstructure:"cache_ttl"`
	CacheSize     int           `mapstructure:"cache_size"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	SearchRetries int           `mapstructure:"search_retries"`
	SearchURL     string        `mapstructure:"search_url"`
	Site          string        `mapstructure:"site"`
	Store         string        `mapstructure:"store"`
	Format        string        `mapstructure:"format"`
	Num           int           `mapstructure:"num"`
	MetricsAddr   string        `mapstructure:"metrics_addr"`
	LogLevel      string        `mapstructure:"log_level"`
}

// searchFlags registers the flags of the search command. Flag names use
// dashes; the matching config keys use underscores.
func searchFlags(fs *pflag.FlagSet) {
	fs.IntP("concurrency", "c", pipeline.DefaultConcurrency, "maximum answers fetched at once (negative for unbounded)")
	fs.Int("buffer", howto.DefaultBuffer, "answers buffered ahead of the output (0 for none)")
	fs.Duration("timeout", 30*time.Second, "per-request timeout (0 for none)")
	fs.String("fingerprint", string(fingerprint.ProfileChrome), fmt.Sprintf("TLS fingerprint, one of %v", fingerprint.Profiles()))
	fs.String("user-agent", "", "User-Agent header (defaults to a desktop Firefox)")
	fs.Float64("rps", 0, "maximum requests per second (0 for unlimited)")
	fs.Float64("jitter", 0, "random extra delay as a fraction of the request interval")
	fs.Duration("cache-ttl", 15*time.Minute, "how long fetched pages are reused")
	fs.Int("cache-size", 0, "number of fetched pages kept in memory (0 disables the cache)")
	fs.Bool("respect-robots", false, "skip pages disallowed by robots.txt")
	fs.Int("search-retries", 0, "extra attempts when the search request fails")
	fs.String("search-url", "", "search engine endpoint")
	fs.String("site", "", "site the search is restricted to")
	fs.StringP("format", "f", "text", "output format: text, full or json")
	fs.IntP("num", "n", 0, "stop after this many answers (0 for all)")
	fs.String("metrics-addr", "", "serve Prometheus metrics on this address while running")
}

// commonFlags are shared by every command.
func commonFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "config file (default ./howto.yaml or $HOME/howto.yaml)")
	fs.String("store", "", "answer history: sqlite:<path>, json:<path> or a postgres:// URL")
	fs.String("log-level", "warn", "log level: debug, info, warn or error")
}

// loadSettings binds fs to a fresh viper instance and reads the config file.
func loadSettings(fs *pflag.FlagSet) (*settings, error) {
	v := viper.New()
	v.SetEnvPrefix("HOWTO")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return nil, fmt.Errorf("binding flags: %w", bindErr)
	}

	if path, _ := fs.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("howto")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	s := &settings{}
	if err := v.Unmarshal(s); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return s, nil
}

// client converts settings into the library configuration.
func (s *settings) client() howto.Config {
	return howto.Config{
		Concurrency:       s.Concurrency,
		Buffer:            s.Buffer,
		Timeout:           s.Timeout,
		Fingerprint:       s.Fingerprint,
		UserAgent:         s.UserAgent,
		RequestsPerSecond: s.RPS,
		Jitter:            s.Jitter,
		CacheSize:         s.CacheSize,
		CacheTTL:          s.CacheTTL,
		RespectRobots:     s.RespectRobots,
		SearchURL:         s.SearchURL,
		Site:              s.Site,
		SearchRetries:     s.SearchRetries,
	}
}

// clientOptions builds the library options. Buffer goes through WithBuffer,
// where 0 means unbuffered.
func (s *settings) clientOptions(logger *slog.Logger) []howto.Option {
	return []howto.Option{
		howto.WithConfig(s.client()),
		howto.WithBuffer(s.Buffer),
		howto.WithLogger(logger),
	}
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
