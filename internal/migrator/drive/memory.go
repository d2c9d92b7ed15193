package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/dmitrijs2005/boletaje/internal/common"
)

// MoveCall records one Move on a MemStore.
type MoveCall struct {
	ID     string
	Add    string
	Remove string
}

// RenameCall records one Rename on a MemStore.
type RenameCall struct {
	ID   string
	Name string
}

type memItem struct {
	file    File
	trashed bool
	content []byte
	exports map[string][]byte
}

// MemStore is an in-memory Store used by tests and dry runs. Items are listed
// in insertion order; page tokens are offsets into the filtered result.
type MemStore struct {
	mu    sync.Mutex
	items map[string]*memItem
	order []string
	seq   int

	// PageSize limits List results; zero returns everything at once.
	PageSize int

	// Failure injection. DownloadFailures counts down per item.
	ListErr          error
	RenameErr        map[string]error
	MoveErr          map[string]error
	ExportErr        map[string]error
	DownloadFailures map[string]int

	Moves     []MoveCall
	Renames   []RenameCall
	Downloads int
	Lists     int
}

var _ Store = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		items:            map[string]*memItem{},
		RenameErr:        map[string]error{},
		MoveErr:          map[string]error{},
		ExportErr:        map[string]error{},
		DownloadFailures: map[string]int{},
	}
}

func (m *MemStore) nextID(kind string) string {
	m.seq++
	return kind + "-" + strconv.Itoa(m.seq)
}

// AddFolder creates a folder under parent (empty for a top-level folder).
func (m *MemStore) AddFolder(name, parent string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := File{ID: m.nextID("folder"), Name: name, MimeType: FolderMimeType}
	if parent != "" {
		f.Parents = []string{parent}
	}
	m.put(&memItem{file: f})
	return f.ID
}

// AddFile creates a file under parent with the given raw content.
func (m *MemStore) AddFile(name, mimeType, parent string, content []byte) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	f := File{
		ID:       m.nextID("file"),
		Name:     name,
		MimeType: mimeType,
		Parents:  []string{parent},
		Size:     int64(len(content)),
	}
	m.put(&memItem{file: f, content: append([]byte(nil), content...), exports: map[string][]byte{}})
	return f.ID
}

// SetExport registers the bytes returned when id is exported as mimeType.
func (m *MemStore) SetExport(id, mimeType string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.items[id]; ok {
		if it.exports == nil {
			it.exports = map[string][]byte{}
		}
		it.exports[mimeType] = append([]byte(nil), content...)
	}
}

// Trash hides id from listings.
func (m *MemStore) Trash(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if it, ok := m.items[id]; ok {
		it.trashed = true
	}
}

// Children returns the non-trashed items whose parents include id.
func (m *MemStore) Children(id string) []File {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(Query{Parent: id})
}

func (m *MemStore) put(it *memItem) {
	m.items[it.file.ID] = it
	m.order = append(m.order, it.file.ID)
}

func (m *MemStore) filter(q Query) []File {
	var out []File
	for _, id := range m.order {
		it := m.items[id]
		if it.trashed || !q.Matches(it.file) {
			continue
		}
		out = append(out, copyFile(it.file))
	}
	return out
}

func (m *MemStore) List(ctx context.Context, q Query, pageToken string) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Lists++

	if m.ListErr != nil {
		return Page{}, m.ListErr
	}

	all := m.filter(q)
	start := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 || n > len(all) {
			return Page{}, fmt.Errorf("invalid page token %q", pageToken)
		}
		start = n
	}
	end := len(all)
	if m.PageSize > 0 && start+m.PageSize < end {
		end = start + m.PageSize
	}

	page := Page{Files: all[start:end]}
	if end < len(all) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (m *MemStore) Get(ctx context.Context, id string) (File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return File{}, fmt.Errorf("get file %s: %w", id, common.ErrorNotFound)
	}
	return copyFile(it.file), nil
}

func (m *MemStore) Download(ctx context.Context, id string, offset, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Downloads++

	it, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("download %s: %w", id, common.ErrorNotFound)
	}
	if n := m.DownloadFailures[id]; n > 0 {
		m.DownloadFailures[id] = n - 1
		return nil, fmt.Errorf("download %s: transient failure", id)
	}
	if offset > int64(len(it.content)) {
		return nil, fmt.Errorf("download %s: offset %d beyond size %d", id, offset, len(it.content))
	}
	end := int64(len(it.content))
	if length > 0 && offset+length < end {
		end = offset + length
	}
	return io.NopCloser(bytes.NewReader(it.content[offset:end])), nil
}

func (m *MemStore) Export(ctx context.Context, id, mimeType string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ExportErr[id]; err != nil {
		return nil, err
	}
	it, ok := m.items[id]
	if !ok {
		return nil, fmt.Errorf("export %s: %w", id, common.ErrorNotFound)
	}
	b, ok := it.exports[mimeType]
	if !ok {
		return nil, fmt.Errorf("export %s as %s: not exportable", id, mimeType)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (m *MemStore) Rename(ctx context.Context, id, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Renames = append(m.Renames, RenameCall{ID: id, Name: name})

	if err := m.RenameErr[id]; err != nil {
		return err
	}
	it, ok := m.items[id]
	if !ok {
		return fmt.Errorf("rename %s: %w", id, common.ErrorNotFound)
	}
	it.file.Name = name
	return nil
}

func (m *MemStore) Move(ctx context.Context, id, addParent, removeParent string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Moves = append(m.Moves, MoveCall{ID: id, Add: addParent, Remove: removeParent})

	if err := m.MoveErr[id]; err != nil {
		return err
	}
	it, ok := m.items[id]
	if !ok {
		return fmt.Errorf("move %s: %w", id, common.ErrorNotFound)
	}
	parents := []string{addParent}
	for _, p := range it.file.Parents {
		if p != removeParent && p != addParent {
			parents = append(parents, p)
		}
	}
	it.file.Parents = parents
	return nil
}

func copyFile(f File) File {
	f.Parents = append([]string(nil), f.Parents...)
	return f
}
