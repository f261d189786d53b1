package regions

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/niper/niper-map/internal/pkg/domain"
	"github.com/niper/niper-map/internal/pkg/infrastructure/repositories/storage"
)

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

var square = []domain.Point{{Lat: 10, Lng: 10}, {Lat: 10, Lng: 20}, {Lat: 20, Lng: 20}, {Lat: 20, Lng: 10}}

func defaultRegions() []domain.Region {
	gate := "Campus entrance"
	return []domain.Region{
		{ID: 100, Name: "Main Gate", Description: &gate, Paths: square},
		{ID: 200, Name: "Library", Paths: square},
	}
}

func fixedClock(millis int64) func() time.Time {
	return func() time.Time {
		return time.UnixMilli(millis)
	}
}

func TestThatLoadReturnsDefaultsWhenNothingIsSaved(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	mem := storage.NewMemory()

	store := NewStore(mem, defaultRegions())
	loaded, err := store.Load(ctx)
	is.NoErr(err)

	is.Equal(loaded, defaultRegions())

	_, err = mem.Get(ctx, DefaultStorageKey)
	is.True(errors.Is(err, storage.ErrNotFound)) // defaults are never written back
}

func TestThatLoadPrefersTheSavedDocument(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	mem := storage.NewMemory()
	mem.Set(ctx, DefaultStorageKey, []byte(`[{"id":5,"name":"Lab","paths":[{"lat":1,"lng":1},{"lat":1,"lng":2},{"lat":2,"lng":2}]}]`))

	store := NewStore(mem, defaultRegions())
	loaded, err := store.Load(ctx)
	is.NoErr(err)

	is.Equal(len(loaded), 1)
	is.Equal(loaded[0].Name, "Lab")
}

func TestThatLoadHonoursACustomKey(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	mem := storage.NewMemory()
	mem.Set(ctx, "other-campus", []byte(`[]`))

	store := NewStore(mem, defaultRegions(), WithKey("other-campus"))
	loaded, err := store.Load(ctx)
	is.NoErr(err)

	is.Equal(len(loaded), 0) // an empty saved list is not replaced by defaults
}

func TestThatLoadFailsOnMalformedDocument(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	mem := storage.NewMemory()
	mem.Set(ctx, DefaultStorageKey, []byte(`[{"id":1,"name":"broken"`))

	_, err := NewStore(mem, defaultRegions()).Load(ctx)

	is.True(errors.Is(err, domain.ErrMalformedDocument))
}

func TestThatLoadCanFallBackToDefaultsOnMalformedDocument(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	mem := storage.NewMemory()
	mem.Set(ctx, DefaultStorageKey, []byte(`not json`))

	loaded, err := NewStore(mem, defaultRegions(), WithCorruptFallback(true)).Load(ctx)
	is.NoErr(err)
	is.Equal(loaded, defaultRegions())

	b, _ := mem.Get(ctx, DefaultStorageKey)
	is.Equal(string(b), "not json") // the saved document is left untouched
}

func TestCreateThenReload(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	mem := storage.NewMemory()

	store := NewStore(mem, defaultRegions(), WithClock(fixedClock(1754300000000)))
	_, err := store.Load(ctx)
	is.NoErr(err)

	description := "Chemistry lab"
	created, count, err := store.Create(ctx, "Lab", &description, square)
	is.NoErr(err)
	is.Equal(created.ID, int64(1754300000000))
	is.Equal(count, 3) // two defaults plus the new region

	reloaded, err := NewStore(mem, nil).Load(ctx)
	is.NoErr(err)
	is.Equal(len(reloaded), 3)

	matches := 0
	for _, r := range reloaded {
		if r.ID == created.ID {
			matches++
			is.Equal(r.Name, "Lab")
			is.Equal(*r.Description, "Chemistry lab")
			is.Equal(r.Paths, square)
		}
	}
	is.Equal(matches, 1) // exactly one region with the new id
}

func TestThatCreateAssignsDistinctIncreasingIDs(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	// the clock never moves and lags behind an existing id
	store := NewStore(storage.NewMemory(), defaultRegions(), WithClock(fixedClock(150)))
	store.Load(ctx)

	first, _, _ := store.Create(ctx, "A", nil, square)
	second, _, _ := store.Create(ctx, "B", nil, square)

	is.True(first.ID > 200)       // ids are never below an existing id
	is.True(second.ID > first.ID) // ids increase
}

func TestThatCreateWithEmptyNameStoresNothing(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	mem := storage.NewMemory()

	store := NewStore(mem, defaultRegions())
	store.Load(ctx)

	_, _, err := store.Create(ctx, "", nil, square)
	is.True(errors.Is(err, domain.ErrEmptyName))

	is.Equal(len(store.Regions()), 2)
	_, err = mem.Get(ctx, DefaultStorageKey)
	is.True(errors.Is(err, storage.ErrNotFound)) // no write happened
}

func TestThatCreateRejectsOpenShapes(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	store := NewStore(storage.NewMemory(), nil)
	store.Load(ctx)

	_, _, err := store.Create(ctx, "Line", nil, square[:2])
	is.True(errors.Is(err, domain.ErrTooFewPoints))
}

func TestThatConcurrentCreatesReportTheirOwnCount(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	store := NewStore(storage.NewMemory(), defaultRegions())
	store.Load(ctx)

	const writers = 20
	counts := make(chan int, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, count, err := store.Create(ctx, "Lab", nil, square)
			if err == nil {
				counts <- count
			}
		}()
	}
	wg.Wait()
	close(counts)

	seen := map[int]bool{}
	for c := range counts {
		is.True(!seen[c]) // every create sees a different list length
		seen[c] = true
	}

	is.Equal(len(seen), writers)
	for c := len(defaultRegions()) + 1; c <= len(defaultRegions())+writers; c++ {
		is.True(seen[c])
	}
}

func TestRemove(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	store := NewStore(storage.NewMemory(), defaultRegions())
	store.Load(ctx)

	remaining, removed, err := store.Remove(ctx, 100)
	is.NoErr(err)
	is.True(removed)

	is.Equal(len(remaining), 1)
	is.Equal(remaining[0].ID, int64(200))
}

func TestThatRemovingAnUnknownIDStillPersists(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	mem := storage.NewMemory()

	store := NewStore(mem, defaultRegions())
	store.Load(ctx)

	remaining, removed, err := store.Remove(ctx, 999)
	is.NoErr(err)
	is.True(!removed) // nothing matched
	is.Equal(remaining, defaultRegions())

	b, err := mem.Get(ctx, DefaultStorageKey)
	is.NoErr(err)

	saved, err := domain.DecodeRegions(b)
	is.NoErr(err)
	is.Equal(saved, defaultRegions())
}

func TestClearAllRemovesTheSavedDocument(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	mem := storage.NewMemory()

	store := NewStore(mem, defaultRegions())
	store.Load(ctx)
	store.Create(ctx, "Lab", nil, square)

	cleared, err := store.ClearAll(ctx)
	is.NoErr(err)
	is.Equal(len(cleared), 0)
	is.Equal(len(store.Regions()), 0)

	_, err = mem.Get(ctx, DefaultStorageKey)
	is.True(errors.Is(err, storage.ErrNotFound)) // the key is deleted, not set to []

	reloaded, err := NewStore(mem, defaultRegions()).Load(ctx)
	is.NoErr(err)
	is.Equal(reloaded, defaultRegions())
}

func TestThatAFailedWriteLeavesTheListUnchanged(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	broken := &failingStorage{Storage: storage.NewMemory()}

	store := NewStore(broken, defaultRegions())
	store.Load(ctx)
	broken.fail = true

	_, _, err := store.Create(ctx, "Lab", nil, square)
	is.True(errors.Is(err, ErrPersist))

	_, _, err = store.Remove(ctx, 100)
	is.True(errors.Is(err, ErrPersist))

	_, err = store.ClearAll(ctx)
	is.True(errors.Is(err, ErrPersist))

	is.Equal(store.Regions(), defaultRegions())
}

func TestFind(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	store := NewStore(storage.NewMemory(), defaultRegions())
	store.Load(ctx)

	r, err := store.Find(200)
	is.NoErr(err)
	is.Equal(r.Name, "Library")

	_, err = store.Find(300)
	is.True(errors.Is(err, ErrNotFound))
}

func TestThatRegionsReturnsACopy(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	store := NewStore(storage.NewMemory(), defaultRegions())
	store.Load(ctx)

	list := store.Regions()
	list[0].Name = "Changed"
	list[0].Paths[0].Lat = -1

	is.Equal(store.Regions(), defaultRegions())
}

func TestExport(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	store := NewStore(storage.NewMemory(), defaultRegions(), WithClock(fixedClock(1000)))
	store.Load(ctx)

	_, err := store.Export(ctx)
	is.True(errors.Is(err, ErrNoDocument)) // defaults are not exported

	store.Create(ctx, "Lab", nil, square[:3])

	b, err := store.Export(ctx)
	is.NoErr(err)

	exported, err := domain.DecodeRegions(b)
	is.NoErr(err)
	is.Equal(exported, store.Regions())
}

func TestDrawAndDeleteScenario(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()
	mem := storage.NewMemory()

	store := NewStore(mem, defaultRegions())
	loaded, err := store.Load(ctx)
	is.NoErr(err)
	is.Equal(loaded, defaultRegions())

	lab, _, err := store.Create(ctx, "Lab", nil, square)
	is.NoErr(err)
	is.Equal(len(store.Regions()), len(defaultRegions())+1)

	remaining, removed, err := store.Remove(ctx, lab.ID)
	is.NoErr(err)
	is.True(removed)
	is.Equal(remaining, defaultRegions())

	b, err := mem.Get(ctx, DefaultStorageKey)
	is.NoErr(err) // the key is present, holding the pre-creation list

	saved, _ := domain.DecodeRegions(b)
	is.Equal(len(saved), len(defaultRegions()))
}

type failingStorage struct {
	storage.Storage
	fail bool
}

func (f *failingStorage) Set(ctx context.Context, key string, value []byte) error {
	if f.fail {
		return errors.New("quota exceeded")
	}
	return f.Storage.Set(ctx, key, value)
}

func (f *failingStorage) Remove(ctx context.Context, key string) error {
	if f.fail {
		return errors.New("quota exceeded")
	}
	return f.Storage.Remove(ctx, key)
}
