// Package config reads archivefs settings from the command line, the
// environment and an optional YAML file, in that order of precedence.
package config

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"
)

const (
	envPrefix = "ARCHIVEFS"

	defaultMaxBuffer = "4GiB"
	defaultLogLevel  = "info"
)

// ErrUsage is returned when the positional arguments are missing.
var ErrUsage = errors.New("usage: archivefs [options] <archive> <mountpoint>")

// Config stores all configuration of the application.
type Config struct {
	Archive    string `mapstructure:"-"`
	MountPoint string `mapstructure:"-"`

	AutoMount        bool   `mapstructure:"automount"`
	AllowOther       bool   `mapstructure:"allow-other"`
	Debug            bool   `mapstructure:"debug"`
	LogLevel         string `mapstructure:"log-level"`
	Syslog           bool   `mapstructure:"syslog"`
	StrictDuplicates bool   `mapstructure:"strict-duplicates"`
	MaxBuffer        string `mapstructure:"max-buffer"`
	UID              int64  `mapstructure:"uid"`
	GID              int64  `mapstructure:"gid"`

	Version bool `mapstructure:"version"`
	Help    bool `mapstructure:"help"`

	// MaxBufferBytes is MaxBuffer parsed by Validate.
	MaxBufferBytes int64 `mapstructure:"-"`
}

// NewFlagSet declares every command line option.
func NewFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("archivefs", pflag.ContinueOnError)
	fs.SortFlags = false
	fs.String("config", "", "read settings from this YAML file")
	fs.Bool("automount", false, "create the mount point if missing and remove it on exit")
	fs.Bool("allow-other", false, "allow other users to access the mounted archive")
	fs.BoolP("debug", "d", false, "log every FUSE request")
	fs.String("log-level", defaultLogLevel, "log level: error, warn, info, debug or trace")
	fs.Bool("syslog", false, "also send log output to syslog")
	fs.Bool("strict-duplicates", false, "refuse archives that list a path twice")
	fs.String("max-buffer", defaultMaxBuffer, "largest file that may be held in memory, e.g. 512MiB")
	fs.Int64("uid", -1, "owner of all files (default: effective uid, or $PUID)")
	fs.Int64("gid", -1, "group of all files (default: effective gid, or $PGID)")
	fs.BoolP("version", "V", false, "print version and supported formats")
	fs.BoolP("help", "h", false, "show help")
	return fs
}

// Usage writes the help text for fs to w.
func Usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintf(w, "%s\n\nMount a compressed archive as a read-only filesystem.\n\nOptions:\n", ErrUsage.Error())
	fmt.Fprint(w, fs.FlagUsages())
}

// Load parses args (without the program name) and merges in environment
// variables and the config file. It does not validate.
func Load(args []string) (*Config, error) {
	fs := NewFlagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Wrap(err, "failed to bind flags")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// PUID and PGID are the usual container conventions.
	if err := v.BindEnv("uid", envPrefix+"_UID", "PUID"); err != nil {
		return nil, errors.Wrap(err, "failed to bind uid")
	}
	if err := v.BindEnv("gid", envPrefix+"_GID", "PGID"); err != nil {
		return nil, errors.Wrap(err, "failed to bind gid")
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %s", path)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}

	if rest := fs.Args(); len(rest) > 0 {
		cfg.Archive = rest[0]
		if len(rest) > 1 {
			cfg.MountPoint = rest[1]
		}
		if len(rest) > 2 {
			return nil, errors.Errorf("unexpected arguments: %s", strings.Join(rest[2:], " "))
		}
	}
	return cfg, nil
}

// Validate checks the settings and fills in derived values.
func (c *Config) Validate() error {
	if c.Version || c.Help {
		return nil
	}
	if c.Archive == "" || c.MountPoint == "" {
		return ErrUsage
	}

	size, err := humanize.ParseBytes(c.MaxBuffer)
	if err != nil {
		return errors.Wrapf(err, "invalid max-buffer %q", c.MaxBuffer)
	}
	if size == 0 || size > math.MaxInt64 {
		return errors.Errorf("max-buffer %q out of range", c.MaxBuffer)
	}
	c.MaxBufferBytes = int64(size)

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "invalid log-level")
	}
	if c.UID < -1 || c.UID > math.MaxUint32 {
		return errors.Errorf("uid %d out of range", c.UID)
	}
	if c.GID < -1 || c.GID > math.MaxUint32 {
		return errors.Errorf("gid %d out of range", c.GID)
	}
	return nil
}

// Owner returns the uid and gid that own every node. -1 selects the
// effective identity of the process.
func (c *Config) Owner() (uid, gid uint32) {
	uid = uint32(unix.Geteuid())
	gid = uint32(unix.Getegid())
	if c.UID >= 0 {
		uid = uint32(c.UID)
	}
	if c.GID >= 0 {
		gid = uint32(c.GID)
	}
	return uid, gid
}
