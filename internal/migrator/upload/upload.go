// Package upload sends a local artifact to the branch ingestion endpoint as a
// multipart form.
package upload

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/boletaje/internal/common"
	"github.com/dmitrijs2005/boletaje/internal/migrator/materialize"
	"github.com/spf13/afero"
)

const (
	DefaultTimeout   = 20 * time.Minute
	DefaultBodyLimit = 800
)

// Outcome is the result of one upload. Only Success gates completion.
type Outcome struct {
	Success bool
	Status  int
	Body    string
	Err     error
}

type Options struct {
	Timeout            time.Duration
	BodyLimit          int
	InsecureSkipVerify bool
}

type Client struct {
	endpoint *url.URL
	header   string
	fs       afero.Fs
	http     *http.Client
	timeout  time.Duration
	limit    int
}

// New validates the endpoint and returns a client posting to it with the
// branch header in the query.
func New(endpoint, header string, fs afero.Fs, opts Options) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: endpoint %q", common.ErrInvalidConfig, endpoint)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.BodyLimit <= 0 {
		opts.BodyLimit = DefaultBodyLimit
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // legacy endpoint
	}

	return &Client{
		endpoint: u,
		header:   header,
		fs:       fs,
		http:     &http.Client{Transport: tr, Timeout: opts.Timeout},
		timeout:  opts.Timeout,
		limit:    opts.BodyLimit,
	}, nil
}

// URL returns the request URL including the branch parameter merged with any
// query already present on the endpoint.
func (c *Client) URL() string {
	u := *c.endpoint
	q := u.Query()
	q.Set(common.BranchQueryParam, c.header)
	u.RawQuery = q.Encode()
	return u.String()
}

// Upload posts the artifact under filename. It never retries.
func (c *Client) Upload(ctx context.Context, a materialize.Artifact, filename string) Outcome {
	if filename == "" {
		filename = filepath.Base(a.Path)
	}
	f, err := c.fs.Open(a.Path)
	if err != nil {
		return Outcome{Err: fmt.Errorf("%w: open %s: %v", common.ErrUpload, a.Path, err)}
	}
	defer f.Close()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeForm(mw, f, filename, a.ContentType))
	}()
	defer pr.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(), pr)
	if err != nil {
		return Outcome{Err: fmt.Errorf("%w: %v", common.ErrUpload, err)}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return Outcome{Err: fmt.Errorf("%w: %v", common.ErrUpload, err)}
	}
	defer resp.Body.Close()

	body := c.readBody(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return Outcome{
			Status: resp.StatusCode,
			Body:   body,
			Err:    fmt.Errorf("%w: %s", common.ErrUpload, resp.Status),
		}
	}
	return Outcome{Success: true, Status: resp.StatusCode, Body: body}
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func writeForm(mw *multipart.Writer, r io.Reader, filename, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		common.UploadFieldName, quoteEscaper.Replace(filename)))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}

// readBody returns at most limit characters of the response, marking a cut
// with an ellipsis.
func (c *Client) readBody(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, int64(c.limit)*utf8.UTFMax+1))
	return Truncate(string(b), c.limit)
}

// Truncate cuts s to limit runes, appending "…" when it was longer.
func Truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "…"
}
