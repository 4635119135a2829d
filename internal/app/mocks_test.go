package app

import (
	"context"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/0x-mperego/unimec-display/internal/domain"
	"github.com/google/uuid"
)

var testNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// --- Mock PlaylistRepository ---

// mockRepository keeps items in memory. Any fn field that is set replaces
// the in-memory behaviour of that method.
type mockRepository struct {
	mu    sync.Mutex
	items []domain.PlaylistItem

	listFn   func(ctx context.Context) ([]domain.PlaylistItem, error)
	getFn    func(ctx context.Context, id uuid.UUID) (*domain.PlaylistItem, error)
	countFn  func(ctx context.Context) (int, error)
	createFn func(ctx context.Context, item domain.NewItem) (*domain.PlaylistItem, error)
	updateFn func(ctx context.Context, id uuid.UUID, patch domain.ItemPatch) (*domain.PlaylistItem, error)
	deleteFn func(ctx context.Context, id uuid.UUID) (*domain.PlaylistItem, error)
	inUseFn  func(ctx context.Context, storagePath string) (bool, error)
	swapFn   func(ctx context.Context, a, b domain.OrderSlot) error

	swapCalls int
}

func newMockRepository(items ...domain.PlaylistItem) *mockRepository {
	return &mockRepository{items: items}
}

// seedTextItems stores n text items with order indexes 0..n-1.
func seedTextItems(n int) *mockRepository {
	repo := newMockRepository()
	for i := range n {
		repo.items = append(repo.items, domain.PlaylistItem{
			ID:              uuid.New(),
			Kind:            domain.KindText,
			Payload:         []byte(`{"text":"slide"}`),
			DurationSeconds: 10,
			OrderIndex:      i,
			CreatedAt:       testNow,
			UpdatedAt:       testNow,
		})
	}
	return repo
}

func (m *mockRepository) ListOrdered(ctx context.Context) ([]domain.PlaylistItem, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := slices.Clone(m.items)
	slices.SortFunc(out, func(a, b domain.PlaylistItem) int { return a.OrderIndex - b.OrderIndex })
	return out, nil
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (*domain.PlaylistItem, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return m.lookup(id)
}

func (m *mockRepository) lookup(id uuid.UUID) (*domain.PlaylistItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.ID == id {
			return &it, nil
		}
	}
	return nil, domain.ErrItemNotFound
}

func (m *mockRepository) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items), nil
}

func (m *mockRepository) Create(ctx context.Context, item domain.NewItem) (*domain.PlaylistItem, error) {
	if m.createFn != nil {
		return m.createFn(ctx, item)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) >= domain.MaxItems {
		return nil, domain.ErrCapacityReached
	}
	idx := 0
	for _, it := range m.items {
		if it.OrderIndex >= idx {
			idx = it.OrderIndex + 1
		}
	}
	if item.OrderIndex != nil {
		idx = *item.OrderIndex
		for _, it := range m.items {
			if it.OrderIndex == idx {
				return nil, domain.ErrOrderIndexTaken
			}
		}
	}
	created := domain.PlaylistItem{
		ID:              uuid.New(),
		Kind:            item.Kind,
		Payload:         item.Payload,
		DurationSeconds: item.DurationSeconds,
		OrderIndex:      idx,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}
	m.items = append(m.items, created)
	return &created, nil
}

func (m *mockRepository) Update(ctx context.Context, id uuid.UUID, patch domain.ItemPatch) (*domain.PlaylistItem, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, patch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID != id {
			continue
		}
		if patch.DurationSeconds != nil {
			m.items[i].DurationSeconds = *patch.DurationSeconds
		}
		if len(patch.Payload) > 0 {
			m.items[i].Payload = patch.Payload
		}
		m.items[i].UpdatedAt = testNow.Add(time.Minute)
		updated := m.items[i]
		return &updated, nil
	}
	return nil, domain.ErrItemNotFound
}

func (m *mockRepository) Delete(ctx context.Context, id uuid.UUID) (*domain.PlaylistItem, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.items {
		if it.ID == id {
			m.items = slices.Delete(m.items, i, i+1)
			return &it, nil
		}
	}
	return nil, domain.ErrItemNotFound
}

func (m *mockRepository) StoragePathInUse(ctx context.Context, storagePath string) (bool, error) {
	if m.inUseFn != nil {
		return m.inUseFn(ctx, storagePath)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.Kind != domain.KindImage {
			continue
		}
		if img, err := it.ImagePayload(); err == nil && img.StoragePath == storagePath {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepository) SwapOrder(ctx context.Context, a, b domain.OrderSlot) error {
	m.mu.Lock()
	m.swapCalls++
	m.mu.Unlock()
	if m.swapFn != nil {
		return m.swapFn(ctx, a, b)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	ai, bi := -1, -1
	for i, it := range m.items {
		switch it.ID {
		case a.ID:
			ai = i
		case b.ID:
			bi = i
		}
	}
	if ai < 0 || bi < 0 || m.items[ai].OrderIndex != a.OrderIndex || m.items[bi].OrderIndex != b.OrderIndex {
		return domain.ErrReorderConflict
	}
	m.items[ai].OrderIndex, m.items[bi].OrderIndex = b.OrderIndex, a.OrderIndex
	return nil
}

func (m *mockRepository) orderOf() map[uuid.UUID]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]int, len(m.items))
	for _, it := range m.items {
		out[it.ID] = it.OrderIndex
	}
	return out
}

// --- Mock BlobStore ---

type mockBlobStore struct {
	mu       sync.Mutex
	putFn    func(ctx context.Context, path, contentType string, r io.Reader) (string, error)
	removeFn func(ctx context.Context, path string) error

	puts    []string
	removed []string
}

func (m *mockBlobStore) Put(ctx context.Context, path, contentType string, r io.Reader) (string, error) {
	m.mu.Lock()
	m.puts = append(m.puts, path)
	m.mu.Unlock()
	if m.putFn != nil {
		return m.putFn(ctx, path, contentType, r)
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	return "/media/" + path, nil
}

func (m *mockBlobStore) Remove(ctx context.Context, path string) error {
	m.mu.Lock()
	m.removed = append(m.removed, path)
	m.mu.Unlock()
	if m.removeFn != nil {
		return m.removeFn(ctx, path)
	}
	return nil
}

// --- Mock ChangePublisher ---

type mockPublisher struct {
	mu        sync.Mutex
	publishFn func(ctx context.Context) error
	calls     int
}

func (m *mockPublisher) PublishChanged(ctx context.Context) error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.publishFn != nil {
		return m.publishFn(ctx)
	}
	return nil
}

func (m *mockPublisher) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
