package livereload

import (
	"encoding/json"
	"hash/fnv"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/yookoala/realpath"
	"gopkg.in/yaml.v3"
	"livereload.io/livereload/logger"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 5500
)

type Config struct {
	Host string `yaml:"host"`
	// Port serving content, and the reload channel unless LivePort differs.
	Port int `yaml:"port"`
	// If non-zero and different from Port, live endpoints are served on their own port.
	LivePort int `yaml:"live_port"`
	// Directory served when neither a handler nor Proxy is given.
	Root string `yaml:"root"`
	// URL of an application to reverse proxy to.
	Proxy          string            `yaml:"proxy"`
	Interval       time.Duration     `yaml:"interval"`
	HelloTimeout   time.Duration     `yaml:"hello_timeout"`
	RestartDelay   time.Duration     `yaml:"restart_delay"`
	Throttle       time.Duration     `yaml:"throttle"`
	Notify         bool              `yaml:"notify"`
	Open           bool              `yaml:"open"`
	AlertOnFailure bool              `yaml:"alert_on_failure"`
	NoColors       bool              `yaml:"no_colors"`
	Watches        []WatchDefinition `yaml:"watches"`

	Logger logger.Logger `yaml:"-" json:"-"`
}

type WatchDefinition struct {
	Pattern string           `yaml:"pattern"`
	Delay   Delay            `yaml:"delay"`
	Ignore  []string         `yaml:"ignore"`
	Shell   *ShellDefinition `yaml:"shell"`
}

type ShellDefinition struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Output  string   `yaml:"output"`
	// "w" truncates Output, "a" appends to it.
	Mode     string   `yaml:"mode"`
	Cwd      string   `yaml:"cwd"`
	UseShell bool     `yaml:"use_shell"`
	Env      []string `yaml:"env"`
}

func (d *ShellDefinition) ShellCommand() (ShellCommand, error) {
	c := ShellCommand{
		Command:  d.Command,
		Args:     d.Args,
		Output:   d.Output,
		Dir:      d.Cwd,
		UseShell: d.UseShell,
		Env:      d.Env,
	}
	switch d.Mode {
	case "", "w":
	case "a":
		c.Append = true
	default:
		return ShellCommand{}, errors.Errorf("invalid output mode [%s], expected w or a", d.Mode)
	}
	if _, err := c.argv(); err != nil {
		return ShellCommand{}, err
	}
	return c, nil
}

func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not open config")
	}
	defer f.Close()

	c := &Config{}
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return nil, errors.Wrapf(err, "could not parse config [%s]", path)
	}
	return c, nil
}

// Init fills in defaults and validates the configuration.
func (c *Config) Init() error {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Port < 0 || c.Port > 65535 {
		return errors.Errorf("port %d out of range", c.Port)
	}
	if c.LivePort < 0 || c.LivePort > 65535 {
		return errors.Errorf("live port %d out of range", c.LivePort)
	}
	if c.LivePort == 0 {
		c.LivePort = c.Port
	}

	if c.Proxy != "" {
		u, err := url.Parse(c.Proxy)
		if err != nil {
			return errors.Wrapf(err, "invalid proxy URL [%s]", c.Proxy)
		}
		if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return errors.Errorf("invalid proxy URL [%s], expected http(s)://host[:port]", c.Proxy)
		}
	} else {
		if c.Root == "" {
			c.Root = "."
		}
		root, err := realpath.Realpath(c.Root)
		if err != nil {
			return errors.Wrapf(err, "could not resolve root [%s]", c.Root)
		}
		info, err := os.Stat(root)
		if err != nil {
			return errors.Wrapf(err, "could not stat root [%s]", c.Root)
		} else if !info.IsDir() {
			return errors.Errorf("root [%s] is not a directory", c.Root)
		}
		c.Root = root
	}

	if c.Interval < 0 || c.HelloTimeout < 0 || c.Throttle < 0 {
		return errors.New("durations must not be negative")
	}

	for i, w := range c.Watches {
		if w.Pattern == "" {
			return errors.Errorf("watch #%d: pattern is required", i+1)
		}
		if w.Shell != nil {
			if _, err := w.Shell.ShellCommand(); err != nil {
				return errors.Wrapf(err, "watch #%d [%s]", i+1, w.Pattern)
			}
		}
	}

	if c.Logger == nil {
		c.Logger = newDefaultLogger(c.NoColors)
	}

	return nil
}

// Hash identifies the configuration contents. It changes whenever a serialized field changes.
func (c *Config) Hash() (uint64, error) {
	h := fnv.New64()
	if err := json.NewEncoder(h).Encode(c); err != nil {
		return 0, err
	}
	return h.Sum64(), nil
}

func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c *Config) LiveAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.LivePort))
}

// SplitPorts reports whether live endpoints get a listener of their own.
func (c *Config) SplitPorts() bool {
	return c.LivePort != 0 && c.LivePort != c.Port
}

func (d Delay) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
