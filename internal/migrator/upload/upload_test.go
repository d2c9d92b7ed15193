package upload

import (
	"context"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/dmitrijs2005/boletaje/internal/migrator/materialize"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type received struct {
	method      string
	branch      string
	rawQuery    string
	field       string
	filename    string
	contentType string
	content     string
}

func capture(t *testing.T, status int, reply string, got *received) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.branch = r.URL.Query().Get("sucursal")
		got.rawQuery = r.URL.RawQuery

		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err == nil {
			mr := multipart.NewReader(r.Body, params["boundary"])
			if p, err := mr.NextPart(); err == nil {
				got.field = p.FormName()
				got.filename = p.FileName()
				got.contentType = p.Header.Get("Content-Type")
				b, _ := io.ReadAll(p)
				got.content = string(b)
			}
		}
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, reply)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func artifact(t *testing.T, fs afero.Fs) materialize.Artifact {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, "/work/08_Boletaje.xlsx", []byte("PKDATA"), 0o600))
	return materialize.Artifact{
		Path:        "/work/08_Boletaje.xlsx",
		Size:        6,
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}
}

func TestUpload_Success(t *testing.T) {
	var got received
	ts := capture(t, http.StatusOK, `{"ok":true}`, &got)
	fs := afero.NewMemMapFs()

	c, err := New(ts.URL+"/uploadSINUBE_6_Plaza_Reforma", "6 PLAZA REFORMA", fs, Options{Timeout: 5 * time.Second})
	require.NoError(t, err)

	out := c.Upload(context.Background(), artifact(t, fs), "08_Boletaje.xlsx")
	require.True(t, out.Success, out.Err)
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Equal(t, `{"ok":true}`, out.Body)
	assert.NoError(t, out.Err)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "6 PLAZA REFORMA", got.branch)
	assert.Equal(t, "sucursal=6+PLAZA+REFORMA", got.rawQuery)
	assert.Equal(t, "file", got.field)
	assert.Equal(t, "08_Boletaje.xlsx", got.filename)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", got.contentType)
	assert.Equal(t, "PKDATA", got.content)
}

func TestUpload_MergesExistingQuery(t *testing.T) {
	c, err := New("https://host/api?token=abc", "183 VISTA NORTE", afero.NewMemMapFs(), Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://host/api?sucursal=183+VISTA+NORTE&token=abc", c.URL())
}

func TestUpload_Non200IsFailure(t *testing.T) {
	for _, status := range []int{http.StatusCreated, http.StatusBadRequest, http.StatusInternalServerError} {
		var got received
		ts := capture(t, status, "nope", &got)
		fs := afero.NewMemMapFs()
		c, err := New(ts.URL, "14 AXIOMIATLA", fs, Options{})
		require.NoError(t, err)

		out := c.Upload(context.Background(), artifact(t, fs), "")
		assert.False(t, out.Success, status)
		assert.Equal(t, status, out.Status)
		assert.Equal(t, "nope", out.Body)
		assert.ErrorIs(t, out.Err, common.ErrUpload)
		assert.Equal(t, "08_Boletaje.xlsx", got.filename)
	}
}

func TestUpload_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer ts.Close()

	fs := afero.NewMemMapFs()
	c, err := New(ts.URL, "x", fs, Options{Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	out := c.Upload(context.Background(), artifact(t, fs), "a.xlsx")
	assert.False(t, out.Success)
	assert.Zero(t, out.Status)
	assert.ErrorIs(t, out.Err, common.ErrUpload)
}

func TestUpload_MissingArtifact(t *testing.T) {
	c, err := New("http://127.0.0.1:1/x", "x", afero.NewMemMapFs(), Options{})
	require.NoError(t, err)
	out := c.Upload(context.Background(), materialize.Artifact{Path: "/nope"}, "")
	assert.False(t, out.Success)
	assert.ErrorIs(t, out.Err, common.ErrUpload)
}

func TestUpload_BodyTruncated(t *testing.T) {
	var got received
	ts := capture(t, http.StatusInternalServerError, strings.Repeat("é", 1000), &got)
	fs := afero.NewMemMapFs()
	c, err := New(ts.URL, "x", fs, Options{})
	require.NoError(t, err)

	out := c.Upload(context.Background(), artifact(t, fs), "")
	assert.Equal(t, strings.Repeat("é", 800)+"…", out.Body)
}

func TestNew_InvalidEndpoint(t *testing.T) {
	for _, ep := range []string{"", "not a url", "/relative/path"} {
		_, err := New(ep, "x", afero.NewMemMapFs(), Options{})
		assert.ErrorIs(t, err, common.ErrInvalidConfig, ep)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "ab…", Truncate("abc", 2))
	assert.Equal(t, "", Truncate("", 5))
}
