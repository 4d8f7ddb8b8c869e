package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Grace reference modes for session.grace_from.
const (
	GraceFromActivity = "activity"
	GraceFromCreated  = "created"
)

type Config struct {
	Server struct {
		Addr      string
		StaticDir string
		LogLevel  string
		LogFormat string
	}
	Admin struct {
		Addr     string
		GRPCAddr string
	}
	Session struct {
		MaxAge          time.Duration
		DisconnectGrace time.Duration
		GraceFrom       string
		SweepInterval   time.Duration
		Shards          int
	}
	Signal struct {
		ReadLimit    int64
		SendQueue    int
		WriteTimeout time.Duration
	}
	Fallback struct {
		TTL           time.Duration
		PurgeInterval time.Duration
		MaxBodyBytes  int64
	}
	ICE struct {
		STUNURLs           []string
		TURNAPIURL         string
		TURNAPIKey         string
		TURNTimeout        time.Duration
		TURNURLs           []string
		TURNSharedSecret   string
		TURNTTL            time.Duration
		TURNUsernamePrefix string
	}
}

// NewFlagSet declares the command-line flags understood by Load.
func NewFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "optional YAML config file")
	fs.String("addr", ":8080", "public listen address")
	fs.String("admin-addr", ":8082", "probes/metrics listen address")
	fs.String("admin-grpc-addr", ":9090", "gRPC health listen address")
	fs.String("log-level", "info", "log level (debug, info, warn, error)")
	fs.String("static-dir", "", "directory of front-end assets to serve at /")
	return fs
}

var flagKeys = map[string]string{
	"addr":            "server.addr",
	"admin-addr":      "admin.addr",
	"admin-grpc-addr": "admin.grpc_addr",
	"log-level":       "server.log_level",
	"static-dir":      "server.static_dir",
}

// Load reads defaults, an optional config file, the environment and the given
// flags (may be nil), in increasing order of precedence.
func Load(fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")

	v.SetDefault("admin.addr", ":8082")
	v.SetDefault("admin.grpc_addr", ":9090")

	v.SetDefault("session.max_age", 24*time.Hour)
	v.SetDefault("session.disconnect_grace", time.Hour)
	v.SetDefault("session.grace_from", GraceFromActivity)
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("session.shards", 16)

	v.SetDefault("signal.read_limit", 64*1024)
	v.SetDefault("signal.send_queue", 32)
	v.SetDefault("signal.write_timeout", 5*time.Second)

	v.SetDefault("fallback.ttl", 24*time.Hour)
	v.SetDefault("fallback.purge_interval", 5*time.Minute)
	v.SetDefault("fallback.max_body_bytes", 256*1024)

	v.SetDefault("ice.stun_urls", "stun:stun.l.google.com:19302")
	v.SetDefault("ice.turn_timeout", 3*time.Second)
	v.SetDefault("ice.turn_ttl", time.Hour)
	v.SetDefault("ice.turn_username_prefix", "handoff")

	// Map envs
	v.BindEnv("server.addr", "ADDR")
	v.BindEnv("server.static_dir", "STATIC_DIR")
	v.BindEnv("server.log_level", "LOG_LEVEL")
	v.BindEnv("server.log_format", "LOG_FORMAT")
	v.BindEnv("admin.addr", "ADMIN_ADDR")
	v.BindEnv("admin.grpc_addr", "ADMIN_GRPC_ADDR")

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
		if f := fs.Lookup("config"); f != nil && f.Value.String() != "" {
			v.SetConfigFile(f.Value.String())
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config %s: %w", f.Value.String(), err)
			}
		}
	}

	var c Config
	c.Server.Addr = v.GetString("server.addr")
	c.Server.StaticDir = v.GetString("server.static_dir")
	c.Server.LogLevel = v.GetString("server.log_level")
	c.Server.LogFormat = v.GetString("server.log_format")

	c.Admin.Addr = v.GetString("admin.addr")
	c.Admin.GRPCAddr = v.GetString("admin.grpc_addr")

	c.Session.MaxAge = v.GetDuration("session.max_age")
	c.Session.DisconnectGrace = v.GetDuration("session.disconnect_grace")
	c.Session.GraceFrom = strings.ToLower(strings.TrimSpace(v.GetString("session.grace_from")))
	c.Session.SweepInterval = v.GetDuration("session.sweep_interval")
	c.Session.Shards = v.GetInt("session.shards")

	c.Signal.ReadLimit = v.GetInt64("signal.read_limit")
	c.Signal.SendQueue = v.GetInt("signal.send_queue")
	c.Signal.WriteTimeout = v.GetDuration("signal.write_timeout")

	c.Fallback.TTL = v.GetDuration("fallback.ttl")
	c.Fallback.PurgeInterval = v.GetDuration("fallback.purge_interval")
	c.Fallback.MaxBodyBytes = v.GetInt64("fallback.max_body_bytes")

	c.ICE.STUNURLs = stringList(v, "ice.stun_urls")
	c.ICE.TURNAPIURL = v.GetString("ice.turn_api_url")
	c.ICE.TURNAPIKey = v.GetString("ice.turn_api_key")
	c.ICE.TURNTimeout = v.GetDuration("ice.turn_timeout")
	c.ICE.TURNURLs = stringList(v, "ice.turn_urls")
	c.ICE.TURNSharedSecret = v.GetString("ice.turn_shared_secret")
	c.ICE.TURNTTL = v.GetDuration("ice.turn_ttl")
	c.ICE.TURNUsernamePrefix = v.GetString("ice.turn_username_prefix")

	if err := c.Validate(); err != nil {
		return Config{}, err
	}

	log.Info().Str("module", "config").
		Str("addr", c.Server.Addr).
		Dur("max_age", c.Session.MaxAge).
		Dur("disconnect_grace", c.Session.DisconnectGrace).
		Str("grace_from", c.Session.GraceFrom).
		Int("shards", c.Session.Shards).
		Msg("config loaded")
	return c, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Session.MaxAge <= 0 {
		errs = append(errs, errors.New("session.max_age must be > 0"))
	}
	if c.Session.DisconnectGrace <= 0 {
		errs = append(errs, errors.New("session.disconnect_grace must be > 0"))
	}
	if c.Session.SweepInterval <= 0 {
		errs = append(errs, errors.New("session.sweep_interval must be > 0"))
	}
	switch c.Session.GraceFrom {
	case GraceFromActivity, GraceFromCreated:
	default:
		errs = append(errs, fmt.Errorf("session.grace_from: unknown mode %q", c.Session.GraceFrom))
	}
	if c.Session.Shards < 1 {
		errs = append(errs, errors.New("session.shards must be >= 1"))
	}
	if c.Signal.ReadLimit <= 0 {
		errs = append(errs, errors.New("signal.read_limit must be > 0"))
	}
	if c.Signal.SendQueue < 1 {
		errs = append(errs, errors.New("signal.send_queue must be >= 1"))
	}
	if c.Fallback.TTL <= 0 {
		errs = append(errs, errors.New("fallback.ttl must be > 0"))
	}
	if len(c.ICE.TURNURLs) > 0 && c.ICE.TURNSharedSecret == "" && c.ICE.TURNAPIURL == "" {
		errs = append(errs, errors.New("ice.turn_urls requires ice.turn_shared_secret"))
	}
	return errors.Join(errs...)
}

// stringList accepts either a YAML list or a comma-separated string.
func stringList(v *viper.Viper, key string) []string {
	raw, ok := v.Get(key).(string)
	if !ok {
		return v.GetStringSlice(key)
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
