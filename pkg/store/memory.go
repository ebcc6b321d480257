package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Store used for tests and local experimentation.
// Listing is deterministic: objects are returned in name order and page
// tokens resume exactly where the previous page stopped.
//
// The exported hook fields, when set, run before the corresponding call and
// may inject faults or latency. They must be set before the store is shared
// between goroutines.
type Memory struct {
	// ListPageHook runs before every ListPage call. A returned error is
	// surfaced as the page error.
	ListPageHook func(q PageQuery) error

	// ComposeHook runs before every Compose call.
	ComposeHook func(dst string, sources []string) error

	// DeleteHook runs before every Delete call.
	DeleteHook func(name string) error

	// DownloadTransform, when set, rewrites downloaded bytes. Used to
	// simulate store-side corruption.
	DownloadTransform func(name string, data []byte) []byte

	mu        sync.Mutex
	objects   map[string]memObject
	gen       int64
	listCalls int
}

type memObject struct {
	data  []byte
	class string
	gen   int64
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memObject)}
}

// Put stores an object with the STANDARD storage class.
func (m *Memory) Put(name string, data []byte) {
	m.PutWithClass(name, data, StorageClassStandard)
}

// PutWithClass stores an object with an explicit storage class.
func (m *Memory) PutWithClass(name string, data []byte, class string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.objects[name] = memObject{data: append([]byte(nil), data...), class: class, gen: m.gen}
}

// ListCalls reports how many ListPage calls the store has served.
func (m *Memory) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// ListPage implements Store.
func (m *Memory) ListPage(ctx context.Context, q PageQuery) (Page, error) {
	if err := ctx.Err(); err != nil {
		return Page{}, err
	}
	if m.ListPageHook != nil {
		if err := m.ListPageHook(q); err != nil {
			return Page{}, err
		}
	}

	size := q.MaxResults
	if size <= 0 || size > DefaultPageSize {
		size = DefaultPageSize
	}

	start := q.StartOffset
	if q.PageToken != "" && q.PageToken > start {
		// Tokens encode the name to resume strictly after.
		start = q.PageToken + "\x00"
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++

	names := make([]string, 0, len(m.objects))
	for name := range m.objects {
		if !strings.HasPrefix(name, q.Prefix) {
			continue
		}
		if name < start {
			continue
		}
		if q.EndOffset != "" && name >= q.EndOffset {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var page Page
	for i, name := range names {
		if i == size {
			page.NextPageToken = names[i-1]
			break
		}
		obj := m.objects[name]
		page.Objects = append(page.Objects, ObjectMetadata{
			Name:         name,
			Size:         int64(len(obj.data)),
			StorageClass: obj.class,
			Generation:   obj.gen,
		})
	}
	return page, nil
}

// Compose implements Store.
func (m *Memory) Compose(ctx context.Context, dst string, sources []string) (ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return ObjectMetadata{}, err
	}
	if len(sources) == 0 {
		return ObjectMetadata{}, fmt.Errorf("store: compose requires at least one source")
	}
	if len(sources) > MaxComposeSources {
		return ObjectMetadata{}, fmt.Errorf("store: compose allows at most %d sources, got %d",
			MaxComposeSources, len(sources))
	}
	if m.ComposeHook != nil {
		if err := m.ComposeHook(dst, sources); err != nil {
			return ObjectMetadata{}, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var data []byte
	for _, name := range sources {
		obj, ok := m.objects[name]
		if !ok {
			return ObjectMetadata{}, fmt.Errorf("store: compose %s: source %s: %w", dst, name, ErrNotFound)
		}
		data = append(data, obj.data...)
	}

	m.gen++
	m.objects[dst] = memObject{data: data, class: StorageClassStandard, gen: m.gen}
	return ObjectMetadata{
		Name:         dst,
		Size:         int64(len(data)),
		StorageClass: StorageClassStandard,
		Generation:   m.gen,
	}, nil
}

// Download implements Store.
func (m *Memory) Download(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	obj, ok := m.objects[name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("store: download %s: %w", name, ErrNotFound)
	}
	data := append([]byte(nil), obj.data...)
	if m.DownloadTransform != nil {
		data = m.DownloadTransform(name, data)
	}
	return data, nil
}

// Delete implements Store.
func (m *Memory) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.DeleteHook != nil {
		if err := m.DeleteHook(name); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[name]; !ok {
		return fmt.Errorf("store: delete %s: %w", name, ErrNotFound)
	}
	delete(m.objects, name)
	return nil
}

// Exists reports whether the named object is present.
func (m *Memory) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[name]
	return ok
}
