// Package config turns the viper configuration into typed, validated settings.
package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cohesivestack/valgo"
	"github.com/spf13/viper"
	"github.com/theapemachine/docprovider/pkg/documents"
	"github.com/theapemachine/docprovider/pkg/errors"
	"github.com/theapemachine/docprovider/pkg/mirror"
	"github.com/theapemachine/docprovider/pkg/push"
)

type Root struct {
	ID        string   `mapstructure:"id"`
	Title     string   `mapstructure:"title"`
	Summary   string   `mapstructure:"summary"`
	Path      string   `mapstructure:"path"`
	MimeTypes []string `mapstructure:"mime_types"`
	Icon      string   `mapstructure:"icon"`
	Capacity  int64    `mapstructure:"capacity"`
	Flags     []string `mapstructure:"flags"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

type Index struct {
	Path string `mapstructure:"path"`
}

type Server struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type Auth struct {
	Enabled    bool   `mapstructure:"enabled"`
	SigningKey string `mapstructure:"signing_key"`
	RateLimit  int64  `mapstructure:"rate_limit"`
}

type Mirror struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Secure    bool   `mapstructure:"secure"`
	Attempts  int    `mapstructure:"attempts"`
}

type Push struct {
	Retries  int           `mapstructure:"retries"`
	Webhooks []push.Config `mapstructure:"webhooks"`
}

/*
Config is the whole of config.yml.
*/
type Config struct {
	Log    Log    `mapstructure:"log"`
	Index  Index  `mapstructure:"index"`
	Roots  []Root `mapstructure:"roots"`
	Server Server `mapstructure:"server"`
	Auth   Auth   `mapstructure:"auth"`
	Mirror Mirror `mapstructure:"mirror"`
	Push   Push   `mapstructure:"push"`
}

// SetDefaults registers the values used when config.yml leaves a key out.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 3210)
	v.SetDefault("auth.rate_limit", 100)
	v.SetDefault("mirror.attempts", 3)
	v.SetDefault("push.retries", 3)
	v.SetDefault("index.path", DefaultIndexPath())
}

/*
DefaultIndexPath keeps the index in the user cache directory, out of the
home root most configs mount. Empty when no cache directory is known, which
leaves the index in memory.
*/
func DefaultIndexPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}

	return filepath.Join(dir, "docprovider", "index.json")
}

/*
Load reads the configuration from v, expands "~" in paths and validates
it.
*/
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Index.Path = expandHome(cfg.Index.Path)
	cfg.Log.File = expandHome(cfg.Log.File)

	for i := range cfg.Roots {
		cfg.Roots[i].Path = expandHome(cfg.Roots[i].Path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}

	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

/*
Validate checks the settings that would otherwise fail late, at mount or
listen time.
*/
func (c *Config) Validate() error {
	v := valgo.Is(
		valgo.Int(len(c.Roots), "roots").GreaterThan(0),
		valgo.Int(c.Server.Port, "server.port").Between(1, 65535),
	)

	seen := make(map[string]bool, len(c.Roots))

	for i, root := range c.Roots {
		field := fmt.Sprintf("roots[%d]", i)

		v.Is(
			valgo.String(root.ID, field+".id").Not().Blank().Passing(func(id string) bool {
				return !seen[id]
			}, "{{title}} must be unique"),
			valgo.String(root.Path, field+".path").Not().Blank(),
			valgo.Int64(root.Capacity, field+".capacity").GreaterOrEqualTo(0),
		)

		_, flagsErr := documents.ParseRootFlags(root.Flags)
		v.Is(valgo.Any(root.Flags, field+".flags").Passing(func(any) bool {
			return flagsErr == nil
		}, flagsMessage(flagsErr)))

		seen[root.ID] = true
	}

	if c.Auth.Enabled {
		v.Is(valgo.String(c.Auth.SigningKey, "auth.signing_key").MinLength(16))
	}

	if c.Mirror.Enabled {
		v.Is(
			valgo.String(c.Mirror.Endpoint, "mirror.endpoint").Not().Blank(),
			valgo.String(c.Mirror.Bucket, "mirror.bucket").Not().Blank(),
			valgo.Int(c.Mirror.Attempts, "mirror.attempts").GreaterThan(0),
		)
	}

	for i, hook := range c.Push.Webhooks {
		v.Is(valgo.String(hook.URL, fmt.Sprintf("push.webhooks[%d].url", i)).Not().Blank())
	}

	if !v.Valid() {
		return fmt.Errorf("invalid config: %s", errors.ValidationMessage(v))
	}

	return nil
}

func flagsMessage(err error) string {
	if err == nil {
		return ""
	}
	return "{{title}}: " + err.Error()
}

/*
DocumentRoots converts the configured roots for documents.NewProvider. A
root without flags gets documents.DefaultRootFlags.
*/
func (c *Config) DocumentRoots() ([]documents.RootConfig, error) {
	roots := make([]documents.RootConfig, 0, len(c.Roots))

	for _, r := range c.Roots {
		flags := documents.DefaultRootFlags

		if len(r.Flags) > 0 {
			parsed, err := documents.ParseRootFlags(r.Flags)
			if err != nil {
				return nil, fmt.Errorf("root %s: %w", r.ID, err)
			}

			flags = parsed
		}

		title := r.Title
		if title == "" {
			title = r.ID
		}

		roots = append(roots, documents.RootConfig{
			ID:        r.ID,
			Title:     title,
			Summary:   r.Summary,
			Path:      r.Path,
			MimeTypes: r.MimeTypes,
			Icon:      r.Icon,
			Capacity:  r.Capacity,
			Flags:     flags,
		})
	}

	return roots, nil
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

func (c *Config) MinioConfig() mirror.MinioConfig {
	return mirror.MinioConfig{
		Endpoint:  c.Mirror.Endpoint,
		AccessKey: c.Mirror.AccessKey,
		SecretKey: c.Mirror.SecretKey,
		Bucket:    c.Mirror.Bucket,
		Secure:    c.Mirror.Secure,
	}
}
