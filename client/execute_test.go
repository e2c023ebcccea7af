package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adamwoolhether/routefetch/client"
	"github.com/adamwoolhether/routefetch/client/body"
	"github.com/adamwoolhether/routefetch/client/pathtmpl"
	"github.com/adamwoolhether/routefetch/client/reqconf"
	"github.com/adamwoolhether/routefetch/client/transport"
	"github.com/google/go-cmp/cmp"
)

// echo describes the request a server received.
type echo struct {
	Method      string              `json:"method"`
	Path        string              `json:"path"`
	Query       string              `json:"query"`
	ContentType string              `json:"content_type"`
	Headers     map[string]string   `json:"headers"`
	Body        string              `json:"body"`
	Form        map[string][]string `json:"form"`
	Files       map[string]string   `json:"files"`
}

// echoServer replies with the echo of each request. Headers named X-* are
// copied into the echo.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		e := echo{
			Method:      r.Method,
			Path:        r.URL.EscapedPath(),
			Query:       r.URL.RawQuery,
			ContentType: r.Header.Get("Content-Type"),
			Headers:     map[string]string{},
		}
		for name := range r.Header {
			if strings.HasPrefix(name, "X-") {
				e.Headers[name] = r.Header.Get(name)
			}
		}

		if body.IsMultipart(e.ContentType) {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			e.Form = r.MultipartForm.Value
			e.Files = map[string]string{}
			for name, fhs := range r.MultipartForm.File {
				f, err := fhs[0].Open()
				if err != nil {
					http.Error(w, err.Error(), http.StatusInternalServerError)
					return
				}
				b, _ := io.ReadAll(f)
				_ = f.Close()
				e.Files[name] = fhs[0].Filename + ":" + fhs[0].Header.Get("Content-Type") + ":" + string(b)
			}
		} else {
			b, _ := io.ReadAll(r.Body)
			e.Body = string(b)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(e)
	}))
	t.Cleanup(ts.Close)

	return ts
}

func bindEcho(t *testing.T, c *client.Client, method client.Method, path string, layer reqconf.Layer) *client.Func[echo] {
	t.Helper()

	ep, err := c.Bind(client.Route{Method: method, Path: path}, layer)
	if err != nil {
		t.Fatalf("failed to bind route: %v", err)
	}

	return client.JSON[echo](ep)
}

func headers(kv ...string) reqconf.Headers {
	var entries []reqconf.Entry
	for i := 0; i+1 < len(kv); i += 2 {
		entries = append(entries, reqconf.Entry{Name: kv[i], Value: kv[i+1]})
	}

	return reqconf.NewHeaders(entries...)
}

func TestEndpoint_Encoding(t *testing.T) {
	ts := echoServer(t)

	testCases := map[string]struct {
		method client.Method
		path   string
		layer  reqconf.Layer
		data   any
		exp    echo
	}{
		"get to query": {
			method: client.MethodGet,
			path:   "/users/:id",
			data:   map[string]any{"id": 7, "q": "query", "zeroNumber": 0, "empty": nil},
			exp:    echo{Method: "GET", Path: "/users/7", Query: "q=query&zeroNumber=0"},
		},
		"nested query": {
			method: client.MethodGet,
			path:   "/search",
			data: map[string]any{
				"filter": map[string]any{"role": "admin"},
				"tags":   []string{"a", "b"},
			},
			exp: echo{Method: "GET", Path: "/search", Query: "filter%5Brole%5D=admin&tags=a&tags=b"},
		},
		"delete to query": {
			method: client.MethodDelete,
			path:   "/users/:id",
			data:   map[string]any{"id": "u1", "hard": true},
			exp:    echo{Method: "DELETE", Path: "/users/u1", Query: "hard=true"},
		},
		"post to json": {
			method: client.MethodPost,
			path:   "/users/:org",
			data:   map[string]any{"org": "acme", "input1": "1", "input2": "2"},
			exp: echo{
				Method:      "POST",
				Path:        "/users/acme",
				ContentType: "application/json",
				Body:        `{"input1":"1","input2":"2"}`,
			},
		},
		"patch struct data": {
			method: client.MethodPatch,
			path:   "/users/:id",
			data: struct {
				ID   int    `json:"id"`
				Name string `json:"name"`
			}{ID: 3, Name: "ada"},
			exp: echo{
				Method:      "PATCH",
				Path:        "/users/3",
				ContentType: "application/json",
				Body:        `{"name":"ada"}`,
			},
		},
		"put without data": {
			method: client.MethodPut,
			path:   "/ping",
			exp:    echo{Method: "PUT", Path: "/ping", ContentType: "application/json", Body: `{}`},
		},
		"escaped path value": {
			method: client.MethodGet,
			path:   "/files/:name",
			data:   map[string]any{"name": "a b/c"},
			exp:    echo{Method: "GET", Path: "/files/a%20b%2Fc"},
		},
		"optional segment dropped": {
			method: client.MethodGet,
			path:   "/docs/:lang?",
			exp:    echo{Method: "GET", Path: "/docs"},
		},
		"method override ignored": {
			method: client.MethodGet,
			path:   "/ping",
			layer:  reqconf.Init{Method: "POST"},
			exp:    echo{Method: "GET", Path: "/ping"},
		},
	}

	c, err := client.Build(client.WithBasePath(ts.URL + "/"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			f := bindEcho(t, c, tc.method, tc.path, nil)

			got, err := f.Call(t.Context(), tc.data, tc.layer)
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}

			got.Body = strings.TrimSpace(got.Body)
			tc.exp.Headers = map[string]string{}
			if diff := cmp.Diff(tc.exp, got); diff != "" {
				t.Errorf("echo mismatch (-exp +got):\n%s", diff)
			}
		})
	}
}

func TestEndpoint_Multipart(t *testing.T) {
	ts := echoServer(t)

	c, err := client.Build(client.WithBasePath(ts.URL + "/"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	// Any multipart Content-Type, parameterised or not, is replaced by the
	// encoder's boundary-bearing one on both transports.
	testCases := map[string]struct {
		method      client.Method
		contentType string
		upload      bool
	}{
		"post":                {method: client.MethodPost, contentType: "multipart/form-data"},
		"get":                 {method: client.MethodGet, contentType: "multipart/form-data"},
		"charset param":       {method: client.MethodPost, contentType: "multipart/form-data; charset=utf-8"},
		"charset param event": {method: client.MethodPost, contentType: "multipart/form-data; charset=utf-8", upload: true},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			layer := reqconf.Init{Headers: headers("Content-Type", tc.contentType)}
			if tc.upload {
				layer.OnUploadProgress = func(reqconf.ProgressEvent) {}
			}
			f := bindEcho(t, c, tc.method, "/upload/:id", layer)

			got, err := f.Call(t.Context(), map[string]any{
				"id":     "9",
				"title":  "report",
				"public": true,
				"tags":   []any{"x", "y"},
				"meta":   map[string]any{"size": 3},
				"doc":    body.File{Name: "r.txt", ContentType: "text/plain", Content: strings.NewReader("abc")},
			}, nil)
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}

			if got.Path != "/upload/9" || got.Query != "" {
				t.Errorf("expected path only, got path %q query %q", got.Path, got.Query)
			}
			if !strings.HasPrefix(got.ContentType, "multipart/form-data; boundary=") {
				t.Errorf("expected boundary in content type, got %q", got.ContentType)
			}

			expForm := map[string][]string{
				"title":      {"report"},
				"public":     {"1"},
				"tags[0]":    {"x"},
				"tags[1]":    {"y"},
				"meta[size]": {"3"},
			}
			if diff := cmp.Diff(expForm, got.Form); diff != "" {
				t.Errorf("form mismatch (-exp +got):\n%s", diff)
			}
			if diff := cmp.Diff(map[string]string{"doc": "r.txt:text/plain:abc"}, got.Files); diff != "" {
				t.Errorf("files mismatch (-exp +got):\n%s", diff)
			}
		})
	}
}

func TestEndpoint_FileOutsideMultipart(t *testing.T) {
	c, err := client.Build(client.WithBasePath("http://127.0.0.1:1/"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	f := bindEcho(t, c, client.MethodGet, "/upload", nil)

	_, err = f.Call(t.Context(), map[string]any{"doc": body.File{Name: "a"}}, nil)
	if !errors.Is(err, body.ErrFileOutsideMultipart) {
		t.Errorf("expected ErrFileOutsideMultipart, got: %v", err)
	}
}

func TestEndpoint_PathErrors(t *testing.T) {
	c, err := client.Build(client.WithBasePath("http://127.0.0.1:1/"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	testCases := map[string]struct {
		path   string
		data   any
		expErr error
	}{
		"missing param": {
			path:   "/users/:id",
			expErr: pathtmpl.ErrMissingParam,
		},
		"pattern mismatch": {
			path:   "/users/:id(\\d+)",
			data:   map[string]any{"id": "abc"},
			expErr: pathtmpl.ErrInvalidParam,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			f := bindEcho(t, c, client.MethodGet, tc.path, nil)

			_, err := f.Call(t.Context(), tc.data, nil)
			if !errors.Is(err, tc.expErr) {
				t.Errorf("expected %v, got: %v", tc.expErr, err)
			}
		})
	}
}

func TestEndpoint_URLResolution(t *testing.T) {
	ts := echoServer(t)

	testCases := map[string]struct {
		clientBase string
		routeBase  string
		path       string
		expPath    string
	}{
		"trailing slash keeps prefix": {
			clientBase: ts.URL + "/api/v1/",
			path:       "/users",
			expPath:    "/api/v1/users",
		},
		"no trailing slash drops last segment": {
			clientBase: ts.URL + "/api/v1",
			path:       "/users",
			expPath:    "/api/users",
		},
		"route base wins": {
			clientBase: ts.URL + "/ignored/",
			routeBase:  ts.URL + "/v2/",
			path:       "/items",
			expPath:    "/v2/items",
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			c, err := client.Build(client.WithBasePath(tc.clientBase))
			if err != nil {
				t.Fatalf("failed to create client: %v", err)
			}

			ep, err := c.Bind(client.Route{Method: client.MethodGet, Path: tc.path, BasePath: tc.routeBase}, nil)
			if err != nil {
				t.Fatalf("failed to bind route: %v", err)
			}

			got, err := client.JSON[echo](ep).Call(t.Context(), nil, nil)
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}
			if got.Path != tc.expPath {
				t.Errorf("expected path %q, got %q", tc.expPath, got.Path)
			}
		})
	}
}

func TestEndpoint_LayerPrecedence(t *testing.T) {
	ts := echoServer(t)

	c, err := client.Build(
		client.WithBasePath(ts.URL+"/"),
		client.WithDefaults(reqconf.Init{Headers: headers("X-A", "builder", "X-B", "builder")}),
	)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	f := bindEcho(t, c, client.MethodGet, "/", reqconf.Init{Headers: headers("X-B", "route", "X-C", "route")})

	testCases := map[string]struct {
		override reqconf.Layer
		exp      map[string]string
	}{
		"no override": {
			exp: map[string]string{"X-A": "builder", "X-B": "route", "X-C": "route"},
		},
		"override wins": {
			override: reqconf.Init{Headers: headers("x-c", "call", "X-D", "call")},
			exp:      map[string]string{"X-A": "builder", "X-B": "route", "X-C": "call", "X-D": "call"},
		},
		"deferred replaces": {
			override: reqconf.Deferred(func(cur reqconf.Init) (reqconf.Init, error) {
				cur.Headers = headers("X-Only", cur.Headers.Get("X-A"))
				return cur, nil
			}),
			exp: map[string]string{"X-Only": "builder"},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got, err := f.Call(t.Context(), nil, tc.override)
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}

			if diff := cmp.Diff(tc.exp, got.Headers); diff != "" {
				t.Errorf("headers mismatch (-exp +got):\n%s", diff)
			}
		})
	}
}

func TestEndpoint_DeferredError(t *testing.T) {
	c, err := client.Build(client.WithBasePath("http://127.0.0.1:1/"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	f := bindEcho(t, c, client.MethodGet, "/", nil)

	wantErr := errors.New("no token")
	_, err = f.Call(t.Context(), nil, reqconf.Deferred(func(reqconf.Init) (reqconf.Init, error) {
		return reqconf.Init{}, wantErr
	}))
	if !errors.Is(err, wantErr) {
		t.Errorf("expected %v, got: %v", wantErr, err)
	}
}

func TestEndpoint_UploadProgressUsesEventTransport(t *testing.T) {
	ts := echoServer(t)

	c, err := client.Build(client.WithBasePath(ts.URL + "/"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	f := bindEcho(t, c, client.MethodPost, "/upload", nil)

	var mu sync.Mutex
	var upload, download []reqconf.ProgressEvent
	layer := reqconf.Init{
		OnUploadProgress: func(ev reqconf.ProgressEvent) {
			mu.Lock()
			defer mu.Unlock()
			upload = append(upload, ev)
		},
		OnDownloadProgress: func(ev reqconf.ProgressEvent) {
			mu.Lock()
			defer mu.Unlock()
			download = append(download, ev)
		},
	}

	payload := strings.Repeat("z", 64<<10)
	got, err := f.Call(t.Context(), map[string]any{"payload": payload}, layer)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if !strings.Contains(got.Body, payload) {
		t.Error("expected payload echoed back")
	}

	mu.Lock()
	defer mu.Unlock()

	if len(upload) == 0 {
		t.Fatal("expected upload progress events")
	}
	last := upload[len(upload)-1]
	if !last.LengthComputable || last.Loaded != last.Total || last.Total != int64(len(`{"payload":""}`)+len(payload)) {
		t.Errorf("expected final upload event to cover the body, got %+v", last)
	}
	if len(download) == 0 {
		t.Error("expected download progress events")
	}
}

func TestEndpoint_Signal(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(5 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()

	c, err := client.Build(client.WithBasePath(ts.URL + "/"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	f := bindEcho(t, c, client.MethodGet, "/", nil)

	testCases := map[string]struct {
		layer  func() reqconf.Layer
		ctx    func() (context.Context, context.CancelFunc)
		expErr error
	}{
		"signal": {
			layer: func() reqconf.Layer {
				signal := make(chan struct{})
				time.AfterFunc(30*time.Millisecond, func() { close(signal) })
				return reqconf.Init{Signal: signal}
			},
			expErr: context.Canceled,
		},
		"context deadline": {
			ctx: func() (context.Context, context.CancelFunc) {
				return context.WithTimeout(t.Context(), 30*time.Millisecond)
			},
			expErr: context.DeadlineExceeded,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(t.Context())
			if tc.ctx != nil {
				cancel()
				ctx, cancel = tc.ctx()
			}
			defer cancel()

			var layer reqconf.Layer
			if tc.layer != nil {
				layer = tc.layer()
			}

			_, err := f.Call(ctx, nil, layer)
			if !errors.Is(err, transport.ErrAborted) {
				t.Errorf("expected ErrAborted, got: %v", err)
			}
			if !errors.Is(err, tc.expErr) {
				t.Errorf("expected %v, got: %v", tc.expErr, err)
			}
		})
	}
}

func TestEndpoint_ExecuteReturnsResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Total", "2")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, "made")
	}))
	defer ts.Close()

	c, err := client.Build(client.WithBasePath(ts.URL + "/"))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	ep := c.MustBind(client.Route{Method: client.MethodPost, Path: "/things"}, nil)

	resp, err := ep.Execute(t.Context(), nil, nil)
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if !resp.OK || resp.Status != http.StatusCreated || resp.StatusText != "Created" {
		t.Errorf("unexpected status: ok=%v %d %q", resp.OK, resp.Status, resp.StatusText)
	}
	if resp.Header.Get("x-total") != "2" {
		t.Errorf("expected X-Total header, got %q", resp.Header.Get("X-Total"))
	}

	text, err := resp.Text()
	if err != nil || text != "made" {
		t.Errorf("expected body %q, got %q (%v)", "made", text, err)
	}
	if _, err := resp.Text(); !errors.Is(err, transport.ErrBodyUsed) {
		t.Errorf("expected ErrBodyUsed on second read, got: %v", err)
	}
}
