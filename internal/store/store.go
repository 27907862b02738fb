// Package store keeps identification history and favorites on top of a
// key-value medium.
//
// Favorites is a denormalized copy maintained only by ToggleFavorite. Clearing
// or truncating history leaves it untouched, so it may reference ids that no
// longer exist in history; Summary reports how many.
package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/example/insect-id/internal/insect"
	"github.com/example/insect-id/internal/logging"
	"github.com/example/insect-id/internal/repository"
)

const (
	HistoryKey   = "insect_identification_history"
	FavoritesKey = "insect_favorites"

	DefaultHistoryLimit = 50
)

// ErrStorage marks a write the medium rejected. The record may not have been saved.
var ErrStorage = errors.New("storage failure")

// Store is safe for concurrent use within one process. Views returned by
// ForDevice share the same lock and id sequence.
type Store struct {
	kv        repository.KV
	namespace string
	limit     int
	logger    *zap.Logger
	shared    *shared
}

type shared struct {
	mu     sync.Mutex
	lastID int64
	now    func() time.Time
}

// New creates a store that keeps at most limit history entries.
func New(kv repository.KV, limit int, logger *zap.Logger) *Store {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Store{
		kv:     kv,
		limit:  limit,
		logger: logger.Named("store"),
		shared: &shared{now: time.Now},
	}
}

// ForDevice returns a view whose keys are scoped to one device.
func (s *Store) ForDevice(deviceID string) *Store {
	view := *s
	view.namespace = deviceID
	view.logger = logging.WithDevice(s.logger, deviceID)
	return &view
}

// Ping checks the underlying medium.
func (s *Store) Ping(ctx context.Context) error {
	return s.kv.Ping(ctx)
}

func (s *Store) key(name string) string {
	if s.namespace == "" {
		return name
	}
	return "device:" + s.namespace + ":" + name
}

// SaveToHistory stamps the record with an id and timestamp, prepends it to
// history and evicts the oldest entries beyond the limit.
func (s *Store) SaveToHistory(ctx context.Context, record insect.IdentificationRecord, image string) (insect.StoredRecord, error) {
	if err := record.Validate(); err != nil {
		return insect.StoredRecord{}, err
	}

	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()

	now := s.shared.now()
	entry := insect.StoredRecord{
		IdentificationRecord: record,
		ID:                   s.nextID(now),
		Timestamp:            now.UnixMilli(),
		Image:                image,
	}

	history, err := s.loadList(ctx, HistoryKey)
	if err != nil {
		return insect.StoredRecord{}, err
	}
	updated := make([]insect.StoredRecord, 0, min(len(history)+1, s.limit))
	updated = append(updated, entry)
	for _, r := range history {
		if len(updated) == s.limit {
			break
		}
		updated = append(updated, r)
	}

	if err := s.writeList(ctx, HistoryKey, updated); err != nil {
		return insect.StoredRecord{}, err
	}
	return entry, nil
}

// GetHistory returns history newest first. Absent, unreadable or corrupted
// data yields an empty slice.
func (s *Store) GetHistory(ctx context.Context) []insect.StoredRecord {
	return s.readList(ctx, HistoryKey)
}

// ClearHistory empties history. Favorites are kept.
func (s *Store) ClearHistory(ctx context.Context) error {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()

	if err := s.kv.Delete(ctx, s.key(HistoryKey)); err != nil {
		s.logger.Error("failed to clear history", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

// ToggleFavorite flips the favorite flag of a history entry and mirrors the
// change into favorites. It returns the new state, or false when id is not
// in history.
func (s *Store) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	s.shared.mu.Lock()
	defer s.shared.mu.Unlock()

	history, err := s.loadList(ctx, HistoryKey)
	if err != nil {
		return false, err
	}
	favorites, err := s.loadList(ctx, FavoritesKey)
	if err != nil {
		return false, err
	}

	index := -1
	for i := range history {
		if history[i].ID == id {
			index = i
			break
		}
	}
	if index < 0 {
		return false, nil
	}

	history[index].IsFavorite = !history[index].IsFavorite
	toggled := history[index]
	if err := s.writeList(ctx, HistoryKey, history); err != nil {
		return false, err
	}

	kept := make([]insect.StoredRecord, 0, len(favorites)+1)
	for _, f := range favorites {
		if f.ID != id {
			kept = append(kept, f)
		}
	}
	if toggled.IsFavorite {
		kept = append(kept, toggled)
	}
	if err := s.writeList(ctx, FavoritesKey, kept); err != nil {
		history[index].IsFavorite = !toggled.IsFavorite
		if rollbackErr := s.writeList(ctx, HistoryKey, history); rollbackErr != nil {
			s.logger.Error("failed to roll back favorite flag", zap.String("id", id), zap.Error(rollbackErr))
		}
		return false, err
	}
	return toggled.IsFavorite, nil
}

// GetFavorites returns favorites in the order they were added.
func (s *Store) GetFavorites(ctx context.Context) []insect.StoredRecord {
	return s.readList(ctx, FavoritesKey)
}

func (s *Store) nextID(now time.Time) string {
	ms := now.UnixMilli()
	if ms <= s.shared.lastID {
		ms = s.shared.lastID + 1
	}
	s.shared.lastID = ms
	return strconv.FormatInt(ms, 10)
}

// readList serves the read operations: any failure yields an empty slice.
func (s *Store) readList(ctx context.Context, name string) []insect.StoredRecord {
	records, err := s.loadList(ctx, name)
	if err != nil {
		s.logger.Warn("failed to read list, treating as empty", zap.String("key", name), zap.Error(err))
		return []insect.StoredRecord{}
	}
	return records
}

// loadList is the read half of a read-modify-write. Absent or corrupted data
// is empty, but a medium error is returned as ErrStorage so the following
// write cannot replace data it never saw.
func (s *Store) loadList(ctx context.Context, name string) ([]insect.StoredRecord, error) {
	records := []insect.StoredRecord{}
	raw, err := s.kv.Get(ctx, s.key(name))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return records, nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrStorage, name, err)
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		s.logger.Warn("corrupted list, treating as empty", zap.String("key", name), zap.Error(err))
		return []insect.StoredRecord{}, nil
	}
	if records == nil {
		records = []insect.StoredRecord{}
	}
	return records, nil
}

func (s *Store) writeList(ctx context.Context, name string, records []insect.StoredRecord) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrStorage, name, err)
	}
	if err := s.kv.Set(ctx, s.key(name), raw); err != nil {
		s.logger.Error("failed to write list", zap.String("key", name), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}
