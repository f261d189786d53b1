package defaults

import (
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/niper/niper-map/internal/pkg/domain"
)

//go:embed niper-areas.json
var bundled []byte

//Bundled returns the dataset shipped with the service
func Bundled() ([]domain.Region, error) {
	regions, err := domain.DecodeRegions(bundled)
	if err != nil {
		return nil, fmt.Errorf("bundled dataset is broken: %w", err)
	}
	return regions, nil
}

//Load returns the dataset published at sourceURL, or the bundled one when
//no url is configured
func Load(sourceURL string, log zerolog.Logger) ([]domain.Region, error) {
	if sourceURL == "" {
		regions, err := Bundled()
		if err == nil {
			log.Info().Int("count", len(regions)).Msg("using bundled default regions")
		}
		return regions, err
	}

	log.Info().Msgf("loading default regions from %s ...", sourceURL)

	client := http.Client{Timeout: 30 * time.Second}

	resp, err := client.Get(sourceURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("loading data from %s failed with status %d", sourceURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", sourceURL, err)
	}

	regions, err := domain.DecodeRegions(body)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal response from %s: %w", sourceURL, err)
	}

	log.Info().Int("count", len(regions)).Msg("loaded default regions")

	return regions, nil
}
