// Package routefetch exposes the route client builders.
package routefetch

import (
	"github.com/adamwoolhether/routefetch/client"
	"github.com/adamwoolhether/routefetch/client/config"
)

// New instantiates a new *client.Client with the provided options.
// If not specified, a fresh http.Client over http.DefaultTransport is used.
func New(opts ...client.Option) (*client.Client, error) {
	return client.Build(opts...)
}

// Load builds a client and its named endpoints from the YAML file at path.
// opts are applied after the file's settings.
func Load(path string, opts ...client.Option) (*client.Client, map[string]*client.Endpoint, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	return cfg.Build(opts...)
}
