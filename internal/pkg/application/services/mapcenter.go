package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/niper/niper-map/internal/pkg/domain"
	"github.com/niper/niper-map/internal/pkg/infrastructure/metrics"
)

//MapCenterService resolves where the campus map should be centered
type MapCenterService interface {
	Center() domain.Point
	Shutdown()
}

//NewMapCenterService starts a background place search for query against a
//nominatim style geocoder at geocoderURL. Until a search succeeds, or when no
//geocoderURL is given, Center returns fallback.
func NewMapCenterService(zlog zerolog.Logger, geocoderURL, query string, fallback domain.Point, refresh time.Duration) MapCenterService {
	ctx, cancel := context.WithCancel(context.Background())

	mcs := &mapCenterImpl{
		url:     geocoderURL,
		query:   query,
		center:  fallback,
		refresh: refresh,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     zlog,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	if geocoderURL == "" {
		zlog.Info().Msgf("no geocoder configured, centering map at %f,%f", fallback.Lat, fallback.Lng)
		close(mcs.done)
		return mcs
	}

	go mcs.run(ctx)

	return mcs
}

type mapCenterImpl struct {
	mu     sync.RWMutex
	center domain.Point

	url     string
	query   string
	refresh time.Duration
	client  *http.Client
	log     zerolog.Logger
	cancel  context.CancelFunc
	done    chan struct{}
}

func (mcs *mapCenterImpl) run(ctx context.Context) {
	defer close(mcs.done)

	for {
		center, err := mcs.lookup(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			metrics.GeocoderLookups.WithLabelValues("error").Inc()
			mcs.log.Error().Err(err).Msgf("place search for %q failed", mcs.query)
		} else {
			metrics.GeocoderLookups.WithLabelValues("ok").Inc()
			mcs.mu.Lock()
			mcs.center = center
			mcs.mu.Unlock()
			mcs.log.Info().Msgf("map centered on %q at %f,%f", mcs.query, center.Lat, center.Lng)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(mcs.refresh):
		}
	}
}

var errNoPlaceFound = errors.New("no place found")

func (mcs *mapCenterImpl) lookup(ctx context.Context) (domain.Point, error) {
	u, err := url.Parse(mcs.url)
	if err != nil {
		return domain.Point{}, fmt.Errorf("invalid geocoder url: %w", err)
	}

	q := u.Query()
	q.Set("q", mcs.query)
	q.Set("format", "json")
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return domain.Point{}, fmt.Errorf("failed to create http request: %w", err)
	}

	resp, err := mcs.client.Do(req)
	if err != nil {
		return domain.Point{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Point{}, fmt.Errorf("place search at %s failed with status %d", mcs.url, resp.StatusCode)
	}

	places := []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}{}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.Point{}, err
	}

	if err = json.Unmarshal(body, &places); err != nil {
		return domain.Point{}, fmt.Errorf("failed to unmarshal place search response: %w", err)
	}

	if len(places) == 0 {
		return domain.Point{}, errNoPlaceFound
	}

	lat, errLat := strconv.ParseFloat(places[0].Lat, 64)
	lng, errLng := strconv.ParseFloat(places[0].Lon, 64)
	p := domain.Point{Lat: lat, Lng: lng}

	if errLat != nil || errLng != nil || !p.Valid() {
		return domain.Point{}, fmt.Errorf("place search returned bad coordinates %q,%q", places[0].Lat, places[0].Lon)
	}

	return p, nil
}

func (mcs *mapCenterImpl) Center() domain.Point {
	mcs.mu.RLock()
	defer mcs.mu.RUnlock()
	return mcs.center
}

func (mcs *mapCenterImpl) Shutdown() {
	mcs.cancel()
	<-mcs.done
}
