package config

import (
	"bytes"
	"io/ioutil"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tcriess/neowatch/globals"
)

const (
	defaultAPIURL            = "http://localhost:8080/api"
	defaultWSURL             = "ws://localhost:8080/ws"
	defaultLogLevel          = "INFO"
	defaultCredentialsType   = "memory"
	defaultAccessTTL         = 15 * time.Minute
	defaultRefreshTTL        = 7 * 24 * time.Hour
	defaultRefreshTimeout    = 10 * time.Second
	defaultRequestTimeout    = 30 * time.Second
	defaultUnreadPoll        = "@every 1m"
	defaultReconnectAttempts = 5
	defaultReconnectDelay    = time.Second
	defaultTypingTimeout     = 2 * time.Second
	defaultSeenCacheSize     = 1000
)

// Config is the global configuration object which is filled via the configuration file, the environment
// (prefix NEOWATCH_) and the command line flags.
type Config struct {
	APIURL            string            `mapstructure:"api_url"`
	WSURL             string            `mapstructure:"ws_url"`
	LogLevel          string            `mapstructure:"log_level"`
	CredentialsConfig CredentialsConfig `mapstructure:"credentials"`
	SessionConfig     SessionConfig     `mapstructure:"session"`
	ChatConfig        ChatConfig        `mapstructure:"chat"`
}

// CredentialsConfig selects the credential store backend. Type is one of "memory", "buntdb", "sqlite" or
// "postgres". Path is used by buntdb, DSN by the sql backends.
type CredentialsConfig struct {
	Type       string        `mapstructure:"type"`
	Path       string        `mapstructure:"path"`
	DSN        string        `mapstructure:"dsn"`
	AccessTTL  time.Duration `mapstructure:"access_ttl"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl"`
}

// SessionConfig configures the session manager. UnreadPoll is a cron spec for the best-effort unread count poll,
// an empty value disables it.
type SessionConfig struct {
	RefreshTimeout time.Duration `mapstructure:"refresh_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UnreadPoll     string        `mapstructure:"unread_poll"`
}

// ChatConfig configures the realtime chat client. Filter is an optional expr expression which inbound messages
// have to satisfy to be buffered.
type ChatConfig struct {
	ReconnectAttempts int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay    time.Duration `mapstructure:"reconnect_delay"`
	TypingTimeout     time.Duration `mapstructure:"typing_timeout"`
	SeenCacheSize     int           `mapstructure:"seen_cache_size"`
	Filter            string        `mapstructure:"filter"`
}

// Secure reports whether the API is served over an encrypted transport.
func (c *Config) Secure() bool {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return false
	}
	return u.Scheme == "https"
}

func GetFlagSet() *pflag.FlagSet {
	flagSet := pflag.NewFlagSet("configuration", pflag.ContinueOnError)
	flagSet.String("api-url", "", "base url of the REST API")
	flagSet.String("ws-url", "", "url of the realtime chat endpoint")
	flagSet.String("log-level", "", "log level (TRACE, DEBUG, INFO, WARN, ERROR)")
	return flagSet
}

// wordSepNormalizeFunc allows for normalization of the flag names (which use - as a separator)
func wordSepNormalizeFunc(f *pflag.FlagSet, name string) pflag.NormalizedName {
	from := "-"
	to := "_"
	name = strings.Replace(name, from, to, -1)
	return pflag.NormalizedName(name)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", defaultAPIURL)
	v.SetDefault("ws_url", defaultWSURL)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("credentials.type", defaultCredentialsType)
	v.SetDefault("credentials.access_ttl", defaultAccessTTL)
	v.SetDefault("credentials.refresh_ttl", defaultRefreshTTL)
	v.SetDefault("session.refresh_timeout", defaultRefreshTimeout)
	v.SetDefault("session.request_timeout", defaultRequestTimeout)
	v.SetDefault("session.unread_poll", defaultUnreadPoll)
	v.SetDefault("chat.reconnect_attempts", defaultReconnectAttempts)
	v.SetDefault("chat.reconnect_delay", defaultReconnectDelay)
	v.SetDefault("chat.typing_timeout", defaultTypingTimeout)
	v.SetDefault("chat.seen_cache_size", defaultSeenCacheSize)
}

// ReadConfiguration reads and parses the configuration located at configPath, which can either point to a single TOML
// file or to a directory, in which case all *.toml files in this directory are concatenated. Flags which were set
// on flagSet take precedence over the environment, which takes precedence over the file. It returns a Config object.
func ReadConfiguration(configPath string, flagSet *pflag.FlagSet) (*Config, error) {
	cfg := Config{}
	v := viper.New()
	setDefaults(v)
	if flagSet != nil {
		flagSet.SetNormalizeFunc(wordSepNormalizeFunc)
		flagSet.VisitAll(func(f *pflag.Flag) {
			if !f.Changed {
				return
			}
			err := v.BindPFlag(f.Name, f)
			if err != nil {
				globals.AppLogger.Error("could not bind flag (ignored)", "flag", f.Name, "error", err)
			}
		})
	}
	v.SetEnvPrefix("NEOWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if configPath != "" {
		fi, err := os.Stat(configPath)
		if err != nil {
			return nil, err
		}
		contents := make([]byte, 0)
		files := []string{configPath}
		if fi.IsDir() {
			files, err = filepath.Glob(filepath.Join(configPath, "*.toml"))
			if err != nil {
				return nil, err
			}
		}
		for _, configFile := range files {
			fileContents, err := ioutil.ReadFile(configFile)
			if err != nil {
				return nil, err
			}
			contents = append(contents, fileContents...)
			contents = append(contents, '\n')
		}
		v.SetConfigType("toml")
		err = v.ReadConfig(bytes.NewBuffer(contents))
		if err != nil {
			return nil, err
		}
	}
	err := v.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	globals.AppLogger.Debug("config", "api_url", cfg.APIURL, "ws_url", cfg.WSURL, "credentials", cfg.CredentialsConfig.Type)
	return &cfg, nil
}
