// Package config loads a client and its route table from YAML.
//
// A file looks like:
//
//	base_path: https://api.example.com/v1/
//	user_agent: routefetch-example
//	timeout: 10s
//	request_id: X-Request-ID
//	headers:
//	  Accept: application/json
//	throttle:
//	  rps: 5
//	  burst: 10
//	routes:
//	  get_user:
//	    method: GET
//	    path: /users/:id
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/adamwoolhether/routefetch/client"
	"github.com/adamwoolhether/routefetch/client/reqconf"
	"github.com/adamwoolhether/routefetch/client/throttle"
	"github.com/adamwoolhether/routefetch/internal/validate"
	"gopkg.in/yaml.v3"
)

// Config is the file form of a [client.Client] and its routes.
type Config struct {
	BasePath  string                  `yaml:"base_path" validate:"required,url"`
	UserAgent string                  `yaml:"user_agent"`
	Timeout   time.Duration           `yaml:"timeout" validate:"gte=0"`
	RequestID string                  `yaml:"request_id"`
	Headers   map[string]string       `yaml:"headers"`
	Throttle  *throttle.Config        `yaml:"throttle"`
	Routes    map[string]client.Route `yaml:"routes" validate:"dive"`
}

// Load reads and parses the file at path.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("opening config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes and validates a config. Unknown keys are rejected.
func Parse(r io.Reader) (Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return Config{}, errors.New("config is empty")
		}
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// ParseBytes is Parse over an in-memory document.
func ParseBytes(b []byte) (Config, error) {
	return Parse(bytes.NewReader(b))
}

// Validate checks the config and every route in it.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	for name, r := range c.Routes {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("route %q: %w", name, err)
		}
	}

	return nil
}

// Options translates c into [client.Build] options. extra is appended, so
// it overrides anything set by the file.
func (c Config) Options(extra ...client.Option) []client.Option {
	opts := []client.Option{client.WithBasePath(c.BasePath)}

	if c.UserAgent != "" {
		opts = append(opts, client.WithUserAgent(c.UserAgent))
	}
	if c.Timeout > 0 {
		opts = append(opts, client.WithTimeout(c.Timeout))
	}
	if c.RequestID != "" {
		opts = append(opts, client.WithRequestID(c.RequestID))
	}
	if len(c.Headers) > 0 {
		opts = append(opts, client.WithDefaults(reqconf.Init{Headers: reqconf.HeadersFromMap(c.Headers)}))
	}
	if c.Throttle != nil {
		opts = append(opts, client.WithThrottle(c.Throttle.RPS, c.Throttle.Burst))
	}

	return append(opts, extra...)
}

// Build builds the client described by c and binds every route.
func (c Config) Build(extra ...client.Option) (*client.Client, map[string]*client.Endpoint, error) {
	cl, err := client.Build(c.Options(extra...)...)
	if err != nil {
		return nil, nil, err
	}

	endpoints := make(map[string]*client.Endpoint, len(c.Routes))
	for name, r := range c.Routes {
		ep, err := cl.Bind(r, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("binding route %q: %w", name, err)
		}
		endpoints[name] = ep
	}

	return cl, endpoints, nil
}
