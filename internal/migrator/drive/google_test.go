package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

type fakeDrive struct {
	mu          sync.Mutex
	content     string
	ignoreRange bool
	queries     []string
	ranges      []string
	patches     []string
}

func (f *fakeDrive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/")
	switch {
	case path == "about":
		_, _ = io.WriteString(w, `{"user":{"displayName":"svc"}}`)

	case path == "files" && r.Method == http.MethodGet:
		f.queries = append(f.queries, r.URL.Query().Get("q"))
		if r.URL.Query().Get("pageToken") == "" {
			_, _ = io.WriteString(w, `{"nextPageToken":"p2","files":[`+
				`{"id":"f1","name":"Boletaje.xlsx","mimeType":"application/octet-stream","parents":["th"],"size":"10"}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"files":[{"id":"f2","name":"Hoja","mimeType":"application/vnd.google-apps.spreadsheet","parents":["th"]}]}`)

	case path == "files/missing":
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"File not found"}}`)

	case path == "files/f1" && r.Method == http.MethodGet && r.URL.Query().Get("alt") == "media":
		rng := r.Header.Get("Range")
		f.ranges = append(f.ranges, rng)
		if rng == "" || f.ignoreRange {
			_, _ = io.WriteString(w, f.content)
			return
		}
		var start, end int
		if _, err := fmt.Sscanf(rng, "bytes=%d-%d", &start, &end); err != nil {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		if end >= len(f.content) {
			end = len(f.content) - 1
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(f.content)))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = io.WriteString(w, f.content[start:end+1])

	case path == "files/f1" && r.Method == http.MethodGet:
		_, _ = io.WriteString(w, `{"id":"f1","name":"Boletaje.xlsx","mimeType":"application/octet-stream","parents":["th"],"size":"10"}`)

	case path == "files/f2/export":
		if r.URL.Query().Get("mimeType") != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":{"code":400,"message":"bad export"}}`)
			return
		}
		_, _ = io.WriteString(w, "XLSXDATA")

	case strings.HasPrefix(path, "files/") && r.Method == http.MethodPatch:
		body, _ := io.ReadAll(r.Body)
		var file gdrive.File
		_ = json.Unmarshal(body, &file)
		f.patches = append(f.patches, fmt.Sprintf("%s name=%s add=%s remove=%s",
			strings.TrimPrefix(path, "files/"), file.Name,
			r.URL.Query().Get("addParents"), r.URL.Query().Get("removeParents")))
		_, _ = io.WriteString(w, `{"id":"f1"}`)

	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"code":404,"message":"no route"}}`)
	}
}

func newTestStore(t *testing.T, h http.Handler) *GoogleStore {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	s, err := NewGoogleStore(context.Background(), "",
		option.WithEndpoint(ts.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(ts.Client()),
	)
	require.NoError(t, err)
	return s
}

func TestGoogleStore_ListPages(t *testing.T) {
	fd := &fakeDrive{}
	s := newTestStore(t, fd)
	ctx := context.Background()

	q := Query{Parent: "th", NameExcludes: "_procesado"}
	p1, err := s.List(ctx, q, "")
	require.NoError(t, err)
	require.Len(t, p1.Files, 1)
	assert.Equal(t, File{ID: "f1", Name: "Boletaje.xlsx", MimeType: "application/octet-stream", Parents: []string{"th"}, Size: 10}, p1.Files[0])
	assert.Equal(t, "p2", p1.NextPageToken)

	p2, err := s.List(ctx, q, p1.NextPageToken)
	require.NoError(t, err)
	require.Len(t, p2.Files, 1)
	assert.True(t, p2.Files[0].IsNative())
	assert.Empty(t, p2.NextPageToken)

	assert.Equal(t, []string{q.Expr(), q.Expr()}, fd.queries)
}

func TestGoogleStore_Get(t *testing.T) {
	s := newTestStore(t, &fakeDrive{})
	ctx := context.Background()

	f, err := s.Get(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "Boletaje.xlsx", f.Name)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestGoogleStore_DownloadRange(t *testing.T) {
	fd := &fakeDrive{content: "0123456789"}
	s := newTestStore(t, fd)
	ctx := context.Background()

	rc, err := s.Download(ctx, "f1", 2, 3)
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "234", string(b))

	rc, err = s.Download(ctx, "f1", 0, 0)
	require.NoError(t, err)
	b, _ = io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "0123456789", string(b))

	assert.Equal(t, []string{"bytes=2-4", ""}, fd.ranges)
}

func TestGoogleStore_DownloadRangeIgnored(t *testing.T) {
	fd := &fakeDrive{content: "0123456789", ignoreRange: true}
	s := newTestStore(t, fd)

	rc, err := s.Download(context.Background(), "f1", 4, 3)
	require.NoError(t, err)
	defer rc.Close()
	b, _ := io.ReadAll(rc)
	assert.Equal(t, "456", string(b))
}

func TestGoogleStore_Export(t *testing.T) {
	s := newTestStore(t, &fakeDrive{})
	ctx := context.Background()

	rc, err := s.Export(ctx, "f2", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	require.NoError(t, err)
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "XLSXDATA", string(b))

	_, err = s.Export(ctx, "f2", "text/plain")
	assert.Error(t, err)
}

func TestGoogleStore_RenameAndMove(t *testing.T) {
	fd := &fakeDrive{}
	s := newTestStore(t, fd)
	ctx := context.Background()

	require.NoError(t, s.Rename(ctx, "f1", "Boletaje_procesado.xlsx"))
	require.NoError(t, s.Move(ctx, "f1", "arch", "th"))

	assert.Equal(t, []string{
		"f1 name=Boletaje_procesado.xlsx add= remove=",
		"f1 name= add=arch remove=th",
	}, fd.patches)
}

func TestGoogleStore_Ping(t *testing.T) {
	s := newTestStore(t, &fakeDrive{})
	require.NoError(t, s.Ping(context.Background()))

	denied := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"code":401,"message":"invalid credentials"}}`)
	}))
	err := denied.Ping(context.Background())
	assert.ErrorIs(t, err, common.ErrAuthentication)
}

func TestNewGoogleStore_ServiceError(t *testing.T) {
	orig := newDriveService
	t.Cleanup(func() { newDriveService = orig })
	newDriveService = func(ctx context.Context, opts ...option.ClientOption) (*gdrive.Service, error) {
		return nil, errors.New("bad credentials file")
	}

	_, err := NewGoogleStore(context.Background(), "/nope.json")
	assert.ErrorIs(t, err, common.ErrAuthentication)
}
