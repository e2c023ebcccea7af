package client

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/adamwoolhether/routefetch/client/pathtmpl"
	"github.com/adamwoolhether/routefetch/internal/validate"
)

var ErrNoBasePath = errors.New("no base path configured")

// Route declares one remote operation. Path is a template relative to
// BasePath, such as "/users/:id". An empty BasePath falls back to the one
// given to [WithBasePath].
type Route struct {
	Method   Method `yaml:"method" json:"method" validate:"required"`
	Path     string `yaml:"path" json:"path" validate:"required,startswith=/"`
	BasePath string `yaml:"base_path" json:"base_path" validate:"omitempty,url"`
}

// Validate checks r's fields, returning [validate.FieldErrors] on failure.
func (r Route) Validate() error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if !r.Method.Valid() {
		return validate.FieldErrors{{Field: "method", Err: ErrUnknownMethod.Error()}}
	}

	return nil
}

// compiledRoute is the parsed, read-only form of a Route shared by every
// call made through an [Endpoint].
type compiledRoute struct {
	route Route
	tmpl  *pathtmpl.Template
	base  *url.URL
}

func compileRoute(r Route, fallbackBase string) (compiledRoute, error) {
	if err := r.Validate(); err != nil {
		return compiledRoute{}, fmt.Errorf("invalid route: %w", err)
	}

	tmpl, err := pathtmpl.Parse(r.Path)
	if err != nil {
		return compiledRoute{}, fmt.Errorf("route %s %s: %w", r.Method, r.Path, err)
	}

	basePath := r.BasePath
	if basePath == "" {
		basePath = fallbackBase
	}
	if basePath == "" {
		return compiledRoute{}, fmt.Errorf("route %s %s: %w", r.Method, r.Path, ErrNoBasePath)
	}
	base, err := url.Parse(basePath)
	if err != nil || !base.IsAbs() {
		return compiledRoute{}, fmt.Errorf("route %s %s: base path %q must be an absolute url", r.Method, r.Path, basePath)
	}

	return compiledRoute{route: r, tmpl: tmpl, base: base}, nil
}

// resolve places path relative to the base the way a browser resolves
// "."+path: the last segment of a base without a trailing slash is
// replaced.
func (cr compiledRoute) resolve(path string, query url.Values) (*url.URL, error) {
	ref, err := url.Parse("." + path)
	if err != nil {
		return nil, fmt.Errorf("parsing compiled path %q: %w", path, err)
	}

	u := cr.base.ResolveReference(ref)
	u.RawQuery = query.Encode()

	return u, nil
}
