package regions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/niper/niper-map/internal/pkg/domain"
	"github.com/niper/niper-map/internal/pkg/infrastructure/repositories/storage"
)

//DefaultStorageKey is the key the region document is saved under
const DefaultStorageKey string = "niper-mapped-areas"

var (
	ErrNotFound   = errors.New("region not found")
	ErrPersist    = errors.New("failed to persist regions")
	ErrNoDocument = errors.New("no saved regions")
)

//Store owns the list of regions and keeps durable storage in sync with it.
//The list is either the bundled defaults or the user-persisted document,
//never a mix of both.
type Store struct {
	mu       sync.Mutex
	storage  storage.Storage
	key      string
	defaults []domain.Region
	regions  []domain.Region
	ids      *idGenerator
	log      zerolog.Logger

	fallbackOnCorrupt bool
}

//Option configures a Store
type Option func(*Store)

//WithKey overrides DefaultStorageKey
func WithKey(key string) Option {
	return func(s *Store) {
		s.key = key
	}
}

//WithLogger sets the logger used for store events
func WithLogger(log zerolog.Logger) Option {
	return func(s *Store) {
		s.log = log
	}
}

//WithClock replaces the time source used for new ids
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.ids.now = now
	}
}

//WithCorruptFallback makes Load return the defaults instead of an error when
//the saved document cannot be decoded. The saved document is left as is
//until the next mutation overwrites it.
func WithCorruptFallback(enabled bool) Option {
	return func(s *Store) {
		s.fallbackOnCorrupt = enabled
	}
}

//NewStore creates an empty store. Call Load before using it.
func NewStore(s storage.Storage, defaults []domain.Region, opts ...Option) *Store {
	store := &Store{
		storage:  s,
		key:      DefaultStorageKey,
		defaults: clone(defaults),
		ids:      newIDGenerator(time.Now),
		log:      zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(store)
	}

	return store
}

//Load reads the saved document, falling back to the bundled defaults when
//nothing has been saved
func (s *Store) Load(ctx context.Context) ([]domain.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.storage.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		s.log.Info().Int("count", len(s.defaults)).Msg("no saved regions, using defaults")
		s.replace(clone(s.defaults))
		return s.snapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.key, err)
	}

	saved, err := domain.DecodeRegions(b)
	if err != nil {
		if !s.fallbackOnCorrupt {
			return nil, fmt.Errorf("saved regions under %s: %w", s.key, err)
		}

		s.log.Warn().Err(err).Msg("saved regions are malformed, using defaults")
		s.replace(clone(s.defaults))
		return s.snapshot(), nil
	}

	s.log.Info().Int("count", len(saved)).Msg("loaded saved regions")
	s.replace(saved)

	return s.snapshot(), nil
}

//Create appends a new region and writes the whole list to storage. It also
//returns the number of regions in the list the region was added to.
func (s *Store) Create(ctx context.Context, name string, description *string, paths []domain.Point) (domain.Region, int, error) {
	if name == "" {
		return domain.Region{}, 0, domain.ErrEmptyName
	}

	if err := domain.ValidatePaths(paths); err != nil {
		return domain.Region{}, 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	region := domain.Region{
		ID:    s.ids.next(),
		Name:  name,
		Paths: append([]domain.Point(nil), paths...),
	}

	if description != nil {
		d := *description
		region.Description = &d
	}

	updated := append(clone(s.regions), region)

	if err := s.persist(ctx, updated); err != nil {
		return domain.Region{}, 0, err
	}

	s.log.Info().Int64("id", region.ID).Str("name", region.Name).Msg("region created")

	return cloneRegion(region), len(updated), nil
}

//Remove filters out the region with the given id and writes the remaining
//list, also when no region matched. removed is false when the id was unknown.
func (s *Store) Remove(ctx context.Context, id int64) ([]domain.Region, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := make([]domain.Region, 0, len(s.regions))
	for _, r := range s.regions {
		if r.ID != id {
			updated = append(updated, cloneRegion(r))
		}
	}

	removed := len(updated) < len(s.regions)

	if err := s.persist(ctx, updated); err != nil {
		return nil, false, err
	}

	s.log.Info().Int64("id", id).Bool("removed", removed).Int("count", len(updated)).Msg("region removed")

	return s.snapshot(), removed, nil
}

//ClearAll empties the list and deletes the saved document, so that the next
//Load returns the defaults again
func (s *Store) ClearAll(ctx context.Context) ([]domain.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.storage.Remove(ctx, s.key); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrPersist, err.Error())
	}

	s.replace([]domain.Region{})
	s.log.Info().Msg("all regions cleared")

	return s.snapshot(), nil
}

//Regions returns a copy of the current list
func (s *Store) Regions() []domain.Region {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.snapshot()
}

//Find returns the region with the given id
func (s *Store) Find(id int64) (domain.Region, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.regions {
		if r.ID == id {
			return cloneRegion(r), nil
		}
	}

	return domain.Region{}, fmt.Errorf("%w: %d", ErrNotFound, id)
}

//Export returns the saved document exactly as stored. ErrNoDocument means
//the list is still the defaults or has been cleared.
func (s *Store) Export(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.storage.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoDocument
	}

	return b, err
}

//persist writes the list before it becomes current, so a failed write leaves
//memory and storage as they were. mu must be held.
func (s *Store) persist(ctx context.Context, updated []domain.Region) error {
	b, err := domain.EncodeRegions(updated)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPersist, err.Error())
	}

	if err := s.storage.Set(ctx, s.key, b); err != nil {
		s.log.Error().Err(err).Str("key", s.key).Msg("failed to write regions")
		return fmt.Errorf("%w: %s", ErrPersist, err.Error())
	}

	s.replace(updated)

	return nil
}

//mu must be held
func (s *Store) replace(regions []domain.Region) {
	s.regions = regions
	for _, r := range regions {
		s.ids.observe(r.ID)
	}
}

//mu must be held
func (s *Store) snapshot() []domain.Region {
	return clone(s.regions)
}

func clone(regions []domain.Region) []domain.Region {
	if regions == nil {
		return nil
	}

	c := make([]domain.Region, len(regions))
	for i, r := range regions {
		c[i] = cloneRegion(r)
	}
	return c
}

func cloneRegion(r domain.Region) domain.Region {
	r.Paths = append([]domain.Point(nil), r.Paths...)
	if r.Description != nil {
		d := *r.Description
		r.Description = &d
	}
	return r
}
