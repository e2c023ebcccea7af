// Package client binds declarative route descriptions to typed functions
// that perform HTTP calls on [net/http].
//
// # Building a Client
//
// Use [Build] to create a [Client] with functional options:
//
//	c, err := client.Build(
//		client.WithBasePath("https://api.example.com/v1/"),
//		client.WithTimeout(10 * time.Second),
//		client.WithUserAgent("myapp/1.0"),
//	)
//
// # Binding Routes
//
// A [Route] names a method and a path template. Binding it returns an
// [Endpoint]; pairing the endpoint with a response strategy returns a
// [Func]:
//
//	getUser, err := client.Get[User](c, "/users/:id", nil)
//	u, err := getUser.Call(ctx, map[string]any{"id": 42}, nil)
//
// Data keys named by the template fill the path. The rest becomes a JSON
// body for POST, PUT and PATCH and the query string otherwise. A
// multipart/form-data Content-Type sends the rest as form fields, with
// [body.File] values as file parts.
//
// # Request Configuration
//
// Each call merges three [reqconf.Layer] values: the client default from
// [WithDefaults], the layer given to [Client.Bind], and the per-call
// override. Later layers win field by field and headers are unioned. A
// [reqconf.Deferred] layer replaces the configuration built so far.
//
// Setting OnUploadProgress routes the call through an event-driven
// transport that can observe the request body being sent.
//
// # Errors
//
// A non-2xx response becomes a *[ResponseError] carrying the decoded body.
// Aborted calls match [transport.ErrAborted]; connection failures are a
// *[transport.NetworkError].
//
// # Downloading Files
//
// [File] streams a successful response to disk with optional checksum
// verification and progress reporting:
//
//	fetch := client.File(ep, "/tmp/file.bin",
//		download.WithChecksum(sha256.New(), expectedHex),
//		download.WithProgress(),
//	)
//
// For caching and concurrent prefetching see the
// [github.com/adamwoolhether/routefetch/client/query] package.
package client
