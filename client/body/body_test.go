package body_test

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/adamwoolhether/routefetch/client/body"
	"github.com/adamwoolhether/routefetch/client/reqconf"
	"github.com/adamwoolhether/routefetch/client/verb"
	"github.com/google/go-cmp/cmp"
)

func TestEncode_JSON(t *testing.T) {
	for _, method := range []verb.Method{verb.Post, verb.Put, verb.Patch} {
		t.Run(method.String(), func(t *testing.T) {
			in := reqconf.HeadersFromMap(map[string]string{"x-keep": "1"})
			residual := map[string]any{"input1": "1", "input2": "2", "input3": "3"}

			enc, headers, err := body.Encode(method, in, residual)
			if err != nil {
				t.Fatalf("exp nil err; got %v", err)
			}

			if got := string(enc.Body.Bytes()); got != `{"input1":"1","input2":"2","input3":"3"}` {
				t.Errorf("unexpected body %s", got)
			}
			if len(enc.Query) != 0 {
				t.Errorf("exp no query; got %v", enc.Query)
			}
			if headers.Get("Content-Type") != body.MediaJSON || headers.Get("X-Keep") != "1" {
				t.Errorf("unexpected headers %v", headers.Entries())
			}
			if in.Has("Content-Type") {
				t.Errorf("input headers mutated")
			}
		})
	}

	t.Run("nil residual", func(t *testing.T) {
		enc, _, err := body.Encode(verb.Post, reqconf.Headers{}, nil)
		if err != nil {
			t.Fatalf("exp nil err; got %v", err)
		}
		if got := string(enc.Body.Bytes()); got != "{}" {
			t.Errorf("exp empty object; got %s", got)
		}
	})
}

func TestEncode_PlacementFollowsMethod(t *testing.T) {
	for m := verb.Get; m.Valid(); m++ {
		t.Run(m.String(), func(t *testing.T) {
			enc, _, err := body.Encode(m, reqconf.Headers{}, map[string]any{"a": "1"})
			if err != nil {
				t.Fatalf("exp nil err; got %v", err)
			}

			if got := enc.Body != nil; got != m.HasBody() {
				t.Errorf("exp body %v; got %v", m.HasBody(), got)
			}
			if got := len(enc.Query) != 0; got == m.HasBody() {
				t.Errorf("exp query %v; got %v", !m.HasBody(), got)
			}
		})
	}
}

func TestEncode_Query(t *testing.T) {
	testCases := []struct {
		name     string
		method   verb.Method
		residual map[string]any
		exp      string
	}{
		{
			name:     "zero values kept",
			method:   verb.Get,
			residual: map[string]any{"q": "query", "zeroNumber": 0},
			exp:      "q=query&zeroNumber=0",
		},
		{
			name:     "empty residual",
			method:   verb.Get,
			residual: map[string]any{},
			exp:      "",
		},
		{
			name:     "nil residual",
			method:   verb.Delete,
			residual: nil,
			exp:      "",
		},
		{
			name:     "nil dropped empty string kept",
			method:   verb.Get,
			residual: map[string]any{"a": nil, "b": ""},
			exp:      "b=",
		},
		{
			name:     "scalar slice repeats key",
			method:   verb.Get,
			residual: map[string]any{"tags": []any{"a", "b"}, "ids": []string{"1", "2"}},
			exp:      "ids=1&ids=2&tags=a&tags=b",
		},
		{
			name:     "nested map",
			method:   verb.Get,
			residual: map[string]any{"filter": map[string]any{"age": 3, "name": "x"}},
			exp:      "filter%5Bage%5D=3&filter%5Bname%5D=x",
		},
		{
			name:     "slice of maps",
			method:   verb.Get,
			residual: map[string]any{"s": []any{map[string]any{"k": "v"}}},
			exp:      "s%5B0%5D%5Bk%5D=v",
		},
		{
			name:     "booleans",
			method:   verb.Options,
			residual: map[string]any{"on": true},
			exp:      "on=true",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			enc, headers, err := body.Encode(tc.method, reqconf.Headers{}, tc.residual)
			if err != nil {
				t.Fatalf("exp nil err; got %v", err)
			}

			if enc.Body != nil {
				t.Errorf("exp no body; got %q", enc.Body.Bytes())
			}
			if enc.Query == nil {
				t.Fatalf("exp a non-nil query")
			}
			if got := enc.Query.Encode(); got != tc.exp {
				t.Errorf("exp %q; got %q", tc.exp, got)
			}
			if headers.Has("Content-Type") {
				t.Errorf("exp no content type for a query request")
			}
		})
	}
}

func TestEncode_QueryRejectsFile(t *testing.T) {
	_, _, err := body.Encode(verb.Get, reqconf.Headers{}, map[string]any{"f": body.File{Name: "a.txt"}})
	if !errors.Is(err, body.ErrFileOutsideMultipart) {
		t.Errorf("exp ErrFileOutsideMultipart; got %v", err)
	}

	_, _, err = body.Encode(verb.Post, reqconf.Headers{}, map[string]any{"f": body.File{Name: "a.txt"}})
	if !errors.Is(err, body.ErrFileOutsideMultipart) {
		t.Errorf("json: exp ErrFileOutsideMultipart; got %v", err)
	}
}

func TestEncode_Multipart(t *testing.T) {
	headers := reqconf.HeadersFromMap(map[string]string{"content-type": "Multipart/Form-Data"})
	residual := map[string]any{
		"name":   "gopher",
		"admin":  true,
		"guest":  false,
		"skip":   nil,
		"meta":   map[string]any{"age": 3},
		"tags":   []any{"a", "b"},
		"avatar": body.File{Name: "me.png", ContentType: "image/png", Content: strings.NewReader("PNG")},
	}

	for _, method := range []verb.Method{verb.Post, verb.Get} {
		t.Run(method.String(), func(t *testing.T) {
			enc, out, err := body.Encode(method, headers, residual)
			if err != nil {
				t.Fatalf("exp nil err; got %v", err)
			}
			residual["avatar"] = body.File{Name: "me.png", ContentType: "image/png", Content: strings.NewReader("PNG")}

			if out.Get("Content-Type") != "Multipart/Form-Data" {
				t.Errorf("exp header left as-is; got %q", out.Get("Content-Type"))
			}
			if len(enc.Query) != 0 {
				t.Errorf("exp no query; got %v", enc.Query)
			}

			mt, params, err := mime.ParseMediaType(enc.Body.ContentType())
			if err != nil || mt != body.MediaMultipart || params["boundary"] == "" {
				t.Fatalf("unexpected body content type %q: %v", enc.Body.ContentType(), err)
			}

			got := map[string]string{}
			var file string
			mr := multipart.NewReader(enc.Body.Reader(), params["boundary"])
			for {
				p, err := mr.NextPart()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					t.Fatalf("reading part: %v", err)
				}
				data, _ := io.ReadAll(p)
				if p.FileName() != "" {
					file = p.FormName() + ":" + p.FileName() + ":" + p.Header.Get("Content-Type") + ":" + string(data)
					continue
				}
				got[p.FormName()] = string(data)
			}

			exp := map[string]string{
				"name":      "gopher",
				"admin":     "1",
				"guest":     "0",
				"meta[age]": "3",
				"tags[0]":   "a",
				"tags[1]":   "b",
			}
			if diff := cmp.Diff(exp, got); diff != "" {
				t.Errorf("fields mismatch (-exp +got):\n%s", diff)
			}
			if file != "avatar:me.png:image/png:PNG" {
				t.Errorf("unexpected file part %q", file)
			}
		})
	}
}

func TestMediaTypeHelpers(t *testing.T) {
	testCases := []struct {
		ct        string
		json      bool
		multipart bool
	}{
		{ct: "application/json", json: true},
		{ct: "application/json; charset=utf-8", json: true},
		{ct: "Application/JSON", json: true},
		{ct: "application/jsonp"},
		{ct: "multipart/form-data; boundary=x", multipart: true},
		{ct: "multipart/form-data", multipart: true},
		{ct: "text/plain"},
		{ct: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.ct, func(t *testing.T) {
			if got := body.IsJSON(tc.ct); got != tc.json {
				t.Errorf("IsJSON: exp %v; got %v", tc.json, got)
			}
			if got := body.IsMultipart(tc.ct); got != tc.multipart {
				t.Errorf("IsMultipart: exp %v; got %v", tc.multipart, got)
			}
		})
	}
}
