package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/boletaje/internal/common"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	listFields = "nextPageToken, files(id, name, mimeType, parents, size)"
	fileFields = "id, name, mimeType, parents, size"
	pageSize   = 100
)

// seams for tests
var newDriveService = gdrive.NewService

// GoogleStore talks to the Drive v3 REST API.
type GoogleStore struct {
	svc *gdrive.Service
}

var _ Store = (*GoogleStore)(nil)

// NewGoogleStore builds a store authenticated with a service-account
// credentials file. Extra options are appended after the defaults.
func NewGoogleStore(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*GoogleStore, error) {
	base := []option.ClientOption{option.WithScopes(gdrive.DriveScope)}
	if credentialsFile != "" {
		base = append(base, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := newDriveService(ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrAuthentication, err)
	}
	return &GoogleStore{svc: svc}, nil
}

// Ping verifies that the credentials are accepted.
func (s *GoogleStore) Ping(ctx context.Context) error {
	if _, err := s.svc.About.Get().Fields("user").Context(ctx).Do(); err != nil {
		return fmt.Errorf("%w: %v", common.ErrAuthentication, err)
	}
	return nil
}

func (s *GoogleStore) List(ctx context.Context, q Query, pageToken string) (Page, error) {
	call := s.svc.Files.List().
		Q(q.Expr()).
		Fields(googleapi.Field(listFields)).
		PageSize(pageSize).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx)
	if pageToken != "" {
		call = call.PageToken(pageToken)
	}
	res, err := call.Do()
	if err != nil {
		return Page{}, fmt.Errorf("list files: %w", err)
	}

	page := Page{NextPageToken: res.NextPageToken, Files: make([]File, 0, len(res.Files))}
	for _, f := range res.Files {
		page.Files = append(page.Files, fromAPI(f))
	}
	return page, nil
}

func (s *GoogleStore) Get(ctx context.Context, id string) (File, error) {
	f, err := s.svc.Files.Get(id).
		Fields(googleapi.Field(fileFields)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		if isNotFound(err) {
			return File{}, fmt.Errorf("get file %s: %w", id, common.ErrorNotFound)
		}
		return File{}, fmt.Errorf("get file %s: %w", id, err)
	}
	return fromAPI(f), nil
}

func (s *GoogleStore) Download(ctx context.Context, id string, offset, length int64) (io.ReadCloser, error) {
	call := s.svc.Files.Get(id).SupportsAllDrives(true).Context(ctx)
	ranged := offset > 0 || length > 0
	if ranged {
		call.Header().Set("Range", rangeHeader(offset, length))
	}
	resp, err := call.Download()
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", id, err)
	}

	// A server that ignores Range answers 200 with the full body.
	if ranged && resp.StatusCode == http.StatusOK {
		if offset > 0 {
			if _, err := io.CopyN(io.Discard, resp.Body, offset); err != nil {
				_ = resp.Body.Close()
				return nil, fmt.Errorf("download %s: skip to %d: %w", id, offset, err)
			}
		}
		if length > 0 {
			return limitedReadCloser{Reader: io.LimitReader(resp.Body, length), Closer: resp.Body}, nil
		}
	}
	return resp.Body, nil
}

func (s *GoogleStore) Export(ctx context.Context, id, mimeType string) (io.ReadCloser, error) {
	resp, err := s.svc.Files.Export(id, mimeType).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("export %s as %s: %w", id, mimeType, err)
	}
	return resp.Body, nil
}

func (s *GoogleStore) Rename(ctx context.Context, id, name string) error {
	_, err := s.svc.Files.Update(id, &gdrive.File{Name: name}).
		Fields("id, name").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("rename %s: %w", id, err)
	}
	return nil
}

func (s *GoogleStore) Move(ctx context.Context, id, addParent, removeParent string) error {
	_, err := s.svc.Files.Update(id, &gdrive.File{}).
		AddParents(addParent).
		RemoveParents(removeParent).
		Fields("id, parents").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("move %s: %w", id, err)
	}
	return nil
}

func fromAPI(f *gdrive.File) File {
	return File{
		ID:       f.Id,
		Name:     f.Name,
		MimeType: f.MimeType,
		Parents:  append([]string(nil), f.Parents...),
		Size:     f.Size,
	}
}

func rangeHeader(offset, length int64) string {
	if length <= 0 {
		return "bytes=" + strconv.FormatInt(offset, 10) + "-"
	}
	return fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

type limitedReadCloser struct {
	io.Reader
	io.Closer
}
