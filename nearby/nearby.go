// Package nearby searches OpenStreetMap (via the Overpass API) for nature
// spots around a point. Results are capped and sorted by proximity; they
// become the candidate list the planner must choose from.
package nearby

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"time"

	"verda/models"
)

var endpoint = "https://overpass-api.de/api/interpreter"

var httpClient = &http.Client{Timeout: 15 * time.Second}

// MaxCandidates bounds the candidate list handed to the planner.
const MaxCandidates = 10

type overpassElement struct {
	Lat  float64           `json:"lat"`
	Lon  float64           `json:"lon"`
	Tags map[string]string `json:"tags"`
}

type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

// Search returns up to MaxCandidates named nature spots within radius
// meters of (lat, lng), closest first.
func Search(ctx context.Context, lat, lng float64, radiusM int) ([]models.Place, error) {
	if radiusM <= 0 {
		radiusM = 3000
	}

	query := fmt.Sprintf(`
[out:json];
(
  node["leisure"="park"]["name"](around:%d,%f,%f);
  node["leisure"="nature_reserve"]["name"](around:%d,%f,%f);
  node["tourism"="viewpoint"]["name"](around:%d,%f,%f);
  node["natural"="peak"]["name"](around:%d,%f,%f);
  node["natural"="water"]["name"](around:%d,%f,%f);
);
out %d;
`, radiusM, lat, lng, radiusM, lat, lng, radiusM, lat, lng, radiusM, lat, lng, radiusM, lat, lng, MaxCandidates*3)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString("data="+query))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("place search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("place search returned %s", resp.Status)
	}

	var over overpassResponse
	if err := json.NewDecoder(resp.Body).Decode(&over); err != nil {
		return nil, fmt.Errorf("decode place search response: %w", err)
	}

	places := make([]models.Place, 0, len(over.Elements))
	for _, el := range over.Elements {
		name := el.Tags["name"]
		if name == "" {
			continue
		}
		places = append(places, models.Place{
			Name:       name,
			Lat:        el.Lat,
			Lng:        el.Lon,
			Type:       placeType(el.Tags),
			Difficulty: difficultyFromTags(el.Tags),
			StarRating: ratingFromTags(el.Tags),
		})
	}

	sort.SliceStable(places, func(i, j int) bool {
		return distSq(lat, lng, places[i]) < distSq(lat, lng, places[j])
	})

	if len(places) > MaxCandidates {
		places = places[:MaxCandidates]
	}
	return places, nil
}

func placeType(tags map[string]string) string {
	for _, key := range []string{"leisure", "tourism", "natural"} {
		if v := tags[key]; v != "" {
			return v
		}
	}
	return "place"
}

// OSM hiking difficulty (sac_scale) collapsed to the app's three labels.
func difficultyFromTags(tags map[string]string) string {
	switch tags["sac_scale"] {
	case "hiking":
		return "easy"
	case "mountain_hiking":
		return "medium"
	case "demanding_mountain_hiking", "alpine_hiking", "demanding_alpine_hiking", "difficult_alpine_hiking":
		return "hard"
	}
	return ""
}

func ratingFromTags(tags map[string]string) float64 {
	var stars float64
	fmt.Sscanf(tags["stars"], "%f", &stars)
	return stars
}

// Sort key only; no need for real great-circle distance here.
func distSq(lat, lng float64, p models.Place) float64 {
	dLat := p.Lat - lat
	dLng := (p.Lng - lng) * math.Cos(lat*math.Pi/180)
	return dLat*dLat + dLng*dLng
}
