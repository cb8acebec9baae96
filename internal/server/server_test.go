package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/tagnav/api"
	"github.com/agentic-research/tagnav/internal/session"
	"github.com/agentic-research/tagnav/internal/tagtree"
	"github.com/agentic-research/tagnav/internal/transport"
)

func testPage() *api.Page {
	return &api.Page{
		Version:  "1",
		PageName: "index.html",
		Dimensions: []api.Dimension{
			{Name: "Model", Keys: []string{"modelA", "modelB"}},
			{Name: "Lead time", Keys: []string{"t0", "t6", "t12"}},
		},
		Documents: []string{"page.json"},
		URL:       api.URLConfig{Mode: api.URLModeSlug, Separator: "|"},
		Animation: &api.Animation{Dimension: 1},
	}
}

func testServer(t *testing.T, prefetch *transport.Prefetcher) *httptest.Server {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(`{"modelA": {"t0": "img1.png", "t12": "img3.png"}}`), &v))
	tree, err := tagtree.FromValue(v, 2)
	require.NoError(t, err)

	srv, err := New(Config{MaxSessions: 2}, testPage(), tree, prefetch, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func createSession(t *testing.T, ts *httptest.Server, query string) createResponse {
	t.Helper()
	resp := post(t, ts.URL+"/api/sessions?q="+query, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[createResponse](t, resp)
}

func TestHealthz(t *testing.T) {
	ts := testServer(t, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode[map[string]string](t, resp)["status"])
}

func TestResolve(t *testing.T) {
	ts := testServer(t, nil)

	resp, err := http.Get(ts.URL + "/api/resolve?q=" + "%3Fmodela%7Ct12%7C")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	v := decode[session.View](t, resp)
	assert.Equal(t, "t12", v.Dimensions[1].Selected)
	require.NotNil(t, v.Payload)
	assert.Equal(t, []string{"img3.png"}, v.Payload.Refs)
	assert.Equal(t, "?modela|t12|", v.Query)
}

func TestPage(t *testing.T) {
	ts := testServer(t, nil)
	resp, err := http.Get(ts.URL + "/api/page")
	require.NoError(t, err)
	p := decode[api.Page](t, resp)
	assert.Equal(t, []string{"Model", "Lead time"}, p.Names())
}

func TestSessionLifecycle(t *testing.T) {
	ts := testServer(t, nil)

	created := createSession(t, ts, "")
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "t0", created.View.Dimensions[1].Selected)
	base := ts.URL + "/api/sessions/" + created.ID

	resp := post(t, base+"/select", `{"depth": 1, "value": "t12"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "t12", decode[session.View](t, resp).Dimensions[1].Selected)

	resp = post(t, base+"/step", `{"dir": 1}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	step := decode[stepResponse](t, resp)
	assert.True(t, step.Moved)
	assert.Equal(t, "t0", step.View.Dimensions[1].Selected)

	resp, err := http.Get(base)
	require.NoError(t, err)
	assert.Equal(t, "?modela|t0|", decode[session.View](t, resp).Query)

	req, err := http.NewRequest(http.MethodDelete, base, nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Get(base)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSelectErrors(t *testing.T) {
	ts := testServer(t, nil)
	base := ts.URL + "/api/sessions/" + createSession(t, ts, "").ID

	tests := []struct {
		name string
		body string
		want int
	}{
		{"bad json", `{`, http.StatusBadRequest},
		{"neither index nor value", `{"depth": 1}`, http.StatusBadRequest},
		{"both index and value", `{"depth": 1, "index": 0, "value": "t0"}`, http.StatusBadRequest},
		{"absent option", `{"depth": 1, "index": 1}`, http.StatusUnprocessableEntity},
		{"bad depth", `{"depth": 4, "index": 0}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, base+"/select", tt.body)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.want, resp.StatusCode)
		})
	}

	resp := post(t, ts.URL+"/api/sessions/nope/select", `{"depth": 0, "index": 0}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionTableIsBounded(t *testing.T) {
	ts := testServer(t, nil)
	first := createSession(t, ts, "")
	createSession(t, ts, "")
	createSession(t, ts, "")

	resp, err := http.Get(ts.URL + "/api/sessions/" + first.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRefs(t *testing.T) {
	fs := memfs.New()
	png := []byte("\x89PNG\r\n\x1a\nrest")
	require.NoError(t, util.WriteFile(fs, "img1.png", png, 0o644))
	p, err := transport.NewPrefetcher(transport.NewFSFetcher(fs), 8, nil)
	require.NoError(t, err)

	ts := testServer(t, p)

	resp, err := http.Get(ts.URL + "/api/refs/img1.png")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, png, body.Bytes())

	resp, err = http.Get(ts.URL + "/api/refs/missing.png")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	p.Wait()
}

func TestRefsOnlyServesPayloads(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "tagnav.yml", []byte("secret: config"), 0o644))
	require.NoError(t, util.WriteFile(fs, "tags.db", []byte("sqlite"), 0o644))
	require.NoError(t, util.WriteFile(fs, "img1.png", []byte("png"), 0o644))
	p, err := transport.NewPrefetcher(transport.NewFSFetcher(fs), 8, nil)
	require.NoError(t, err)
	ts := testServer(t, p)

	for _, ref := range []string{"tagnav.yml", "tags.db", "page.json"} {
		t.Run(ref, func(t *testing.T) {
			resp, err := http.Get(ts.URL + "/api/refs/" + ref)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		})
	}
	p.Wait()
}

func TestRefsDoNotLeaveHTTPBase(t *testing.T) {
	var internal, images atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/imgs/img1.png" {
			images.Add(1)
			_, _ = w.Write([]byte("png"))
			return
		}
		internal.Add(1)
		_, _ = w.Write([]byte("internal only"))
	}))
	defer backend.Close()

	f, err := transport.NewHTTPFetcher(backend.URL + "/imgs/")
	require.NoError(t, err)
	p, err := transport.NewPrefetcher(f, 8, nil)
	require.NoError(t, err)
	ts := testServer(t, p)

	resp, err := http.Get(ts.URL + "/api/refs/img1.png")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/refs/" + backend.URL + "/secret")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	p.Wait()
	assert.Equal(t, int32(1), images.Load())
	assert.Zero(t, internal.Load())
}
