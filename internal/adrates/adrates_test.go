package adrates

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lucrumlabs/lucrum/internal/models"
	"github.com/lucrumlabs/lucrum/pkg/logger"
)

func TestFallbackIsComplete(t *testing.T) {
	doc := Fallback()
	if len(doc.Locations) == 0 {
		t.Fatal("fallback has no locations")
	}
	if len(doc.Values) == 0 {
		t.Fatal("fallback has no ad-type values")
	}
	for _, loc := range doc.Locations {
		total := 0.0
		for adType, share := range loc.Distribution {
			if _, ok := doc.Values[adType]; !ok {
				t.Errorf("location %s references unpriced ad type %s", loc.Name, adType)
			}
			total += share
		}
		if total < 0.99 || total > 1.01 {
			t.Errorf("location %s distribution sums to %v", loc.Name, total)
		}
	}
	for adType, rng := range doc.Values {
		if rng.Min <= 0 || rng.Max <= rng.Min {
			t.Errorf("ad type %s has range %+v", adType, rng)
		}
	}
}

func TestFetchAndUpdate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"values": {"standard": {"min": 0.01, "max": 0.02}},
			"locations": [{"name": "Oslo", "bot_count": 5, "efficiency": 0.9,
				"ads_per_hour_per_bot": 50, "distribution": {"standard": 1.0}}],
			"updated_at": 1700000000
		}`))
	}))
	defer srv.Close()

	s := NewService(srv.URL, logger.NewNop())
	if err := s.FetchAndUpdate(); err != nil {
		t.Fatalf("FetchAndUpdate: %v", err)
	}

	doc := s.Rates()
	if len(doc.Locations) != 1 || doc.Locations[0].Name != "Oslo" {
		t.Errorf("locations = %+v", doc.Locations)
	}
	if _, ok := doc.Values[models.AdTypeStandard]; !ok {
		t.Errorf("values = %+v", doc.Values)
	}
}

func TestFetchAndUpdateRejectsIncompleteDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"values": {}, "locations": []}`))
	}))
	defer srv.Close()

	s := NewService(srv.URL, logger.NewNop())
	if err := s.FetchAndUpdate(); err == nil {
		t.Fatal("incomplete document accepted")
	}
	// The fallback stays in effect.
	if len(s.Rates().Locations) == 0 {
		t.Error("cache lost the fallback")
	}
}

func TestFetchAndUpdateHandlesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewService(srv.URL, logger.NewNop())
	if err := s.FetchAndUpdate(); err == nil {
		t.Fatal("500 response accepted")
	}
}
