// Package config loads the talent-auth configuration from defaults, an
// optional YAML file and command line flags, in that order.
package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

type HTTP struct {
	Addr           string `koanf:"addr"`
	IssueRateLimit int    `koanf:"issue_rate_limit"`
}

type Database struct {
	DSN string `koanf:"dsn"`
}

type Reset struct {
	CodeTTL     time.Duration `koanf:"code_ttl"`
	MinPassword int           `koanf:"min_password"`
}

type Token struct {
	SigningKey string        `koanf:"signing_key"`
	Issuer     string        `koanf:"issuer"`
	TTL        time.Duration `koanf:"ttl"`
}

type Log struct {
	Format string `koanf:"format"`
	Debug  bool   `koanf:"debug"`
}

type Config struct {
	HTTP     HTTP     `koanf:"http"`
	Database Database `koanf:"database"`
	Reset    Reset    `koanf:"reset"`
	Token    Token    `koanf:"token"`
	Log      Log      `koanf:"log"`
}

func Defaults() Config {
	return Config{
		HTTP: HTTP{
			Addr:           ":8080",
			IssueRateLimit: 5,
		},
		Database: Database{
			DSN: "file:talent-auth.db?cache=shared",
		},
		Reset: Reset{
			CodeTTL:     15 * time.Minute,
			MinPassword: 6,
		},
		Token: Token{
			Issuer: "talent-auth",
			TTL:    time.Hour,
		},
		Log: Log{
			Format: "json",
		},
	}
}

// BindFlags registers one flag per key. Flag defaults match Defaults.
func BindFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.String("http.addr", d.HTTP.Addr, "HTTP listen address")
	fs.Int("http.issue_rate_limit", d.HTTP.IssueRateLimit, "reset code issue requests per minute per IP (0 disables)")
	fs.String("database.dsn", d.Database.DSN, "sqlite DSN")
	fs.Duration("reset.code_ttl", d.Reset.CodeTTL, "reset code lifetime")
	fs.Int("reset.min_password", d.Reset.MinPassword, "minimum new password length")
	fs.String("token.signing_key", d.Token.SigningKey, "HS256 session token signing key")
	fs.String("token.issuer", d.Token.Issuer, "session token issuer")
	fs.Duration("token.ttl", d.Token.TTL, "session token lifetime")
	fs.String("log.format", d.Log.Format, "log format: json or text")
	fs.Bool("log.debug", d.Log.Debug, "enable debug logging")
}

// Load reads path (if not empty) then overlays flags that were set, or
// that have no value from the file.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

func (h HTTP) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Addr, validation.Required),
		validation.Field(&h.IssueRateLimit, validation.Min(0)),
	)
}

func (d Database) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.DSN, validation.Required),
	)
}

func (r Reset) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.CodeTTL, validation.Required, validation.Min(time.Minute)),
		validation.Field(&r.MinPassword, validation.Required, validation.Min(6)),
	)
}

func (l Log) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Format, validation.In("json", "text")),
	)
}

// Validate checks everything but the token settings, which only the
// server needs.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.HTTP),
		validation.Field(&c.Database),
		validation.Field(&c.Reset),
		validation.Field(&c.Log),
	)
}

// ValidateServe also requires what the HTTP server needs.
func (c Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&c.Token,
		validation.Field(&c.Token.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&c.Token.TTL, validation.Required),
	)
}
