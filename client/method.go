package client

import (
	"github.com/adamwoolhether/routefetch/client/verb"
)

var ErrUnknownMethod = verb.ErrUnknown

// Method is an HTTP verb a route can be bound to. The zero value is not a
// valid method.
type Method = verb.Method

const (
	MethodGet     = verb.Get
	MethodPost    = verb.Post
	MethodPut     = verb.Put
	MethodDelete  = verb.Delete
	MethodOptions = verb.Options
	MethodPatch   = verb.Patch
	MethodConnect = verb.Connect
	MethodTrace   = verb.Trace
)

// ParseMethod maps a verb to its Method, ignoring case.
func ParseMethod(s string) (Method, error) {
	return verb.Parse(s)
}
