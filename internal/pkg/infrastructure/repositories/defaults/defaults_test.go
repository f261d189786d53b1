package defaults

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog/log"

	"github.com/niper/niper-map/internal/pkg/domain"
)

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}

var response = `[
	{"id":42,"name":"Sports Complex","description":"Cricket ground and courts","paths":[
		{"lat":30.6851,"lng":76.7301},{"lat":30.6853,"lng":76.7312},{"lat":30.6843,"lng":76.7314},{"lat":30.6841,"lng":76.7303}
	]}
]`

func TestBundledDatasetIsValid(t *testing.T) {
	is := is.New(t)

	regions, err := Bundled()
	is.NoErr(err)
	is.True(len(regions) > 0) // bundled dataset should not be empty
}

func TestDataLoadFromURL(t *testing.T) {
	is := is.New(t)
	mockServer := setupMockServiceThatReturns(200, response)
	defer mockServer.Close()

	regions, err := Load(mockServer.URL, log.With().Logger())
	is.NoErr(err)

	is.Equal(len(regions), 1)
	is.Equal(regions[0].ID, int64(42))
	is.Equal(regions[0].Name, "Sports Complex")
}

func TestThatLoadWithoutURLReturnsBundledDataset(t *testing.T) {
	is := is.New(t)

	fromLoad, err := Load("", log.With().Logger())
	is.NoErr(err)

	bundled, _ := Bundled()
	is.Equal(fromLoad, bundled)
}

func TestThatLoadFailsOnErrorStatus(t *testing.T) {
	is := is.New(t)
	mockServer := setupMockServiceThatReturns(http.StatusNotFound, "")
	defer mockServer.Close()

	_, err := Load(mockServer.URL, log.With().Logger())

	is.True(err != nil) // Load should fail when the asset is missing.
}

func TestThatLoadFailsOnMalformedAsset(t *testing.T) {
	is := is.New(t)
	mockServer := setupMockServiceThatReturns(200, `{"type":"FeatureCollection"}`)
	defer mockServer.Close()

	_, err := Load(mockServer.URL, log.With().Logger())

	is.True(errors.Is(err, domain.ErrMalformedDocument))
}

func setupMockServiceThatReturns(responseCode int, body string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Content-Type", "application/json")
		w.WriteHeader(responseCode)
		if body != "" {
			w.Write([]byte(body))
		}
	}))
}
