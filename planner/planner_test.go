package planner

import (
	"errors"
	"reflect"
	"testing"

	"verda/models"
)

var start = models.GeoPoint{Lat: 52.52, Lng: 13.405}

func candidates() []models.Place {
	return []models.Place{
		{Name: "Stadtpark", Lat: 52.53, Lng: 13.41, Type: "park", Difficulty: "easy", StarRating: 3},
		{Name: "Grunewald Trail", Lat: 52.48, Lng: 13.25, Type: "nature_reserve", Difficulty: "medium", StarRating: 4.5},
		{Name: "Teufelsberg Viewpoint", Lat: 52.497, Lng: 13.241, Type: "viewpoint", Difficulty: "hard", StarRating: 5},
	}
}

func TestGenerateNoCandidates(t *testing.T) {
	_, err := Generate(PlanRequest{Start: start, DurationMinutes: 60})
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

// The destination must always be one of the supplied candidates.
func TestGenerateDestinationMembership(t *testing.T) {
	prefsVariants := []Preferences{
		{},
		{RiskTolerance: "high", EnergyLevel: "high"},
		{RiskTolerance: "low", EnergyLevel: "low", Activities: []string{"Walking"}},
		{TherapeuticGoals: []string{"Stress Relief"}, EnergyLevel: "moderate"},
	}

	for _, prefs := range prefsVariants {
		cands := candidates()
		plan, err := Generate(PlanRequest{Start: start, DurationMinutes: 45, Prefs: prefs, Candidates: cands})
		if err != nil {
			t.Fatal(err)
		}

		found := false
		for _, c := range cands {
			if c.Name == plan.Destination.Name && c.Lat == plan.Destination.Lat && c.Lng == plan.Destination.Lng {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("destination %+v not in candidate list", plan.Destination)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	req := PlanRequest{Start: start, DurationMinutes: 60, Candidates: candidates()}
	a, err := Generate(req)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Generate(req)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("plans differ for identical input:\n%+v\nvs\n%+v", a, b)
	}
}

func TestGenerateDurationDefaults(t *testing.T) {
	plan, err := Generate(PlanRequest{Start: start, DurationMinutes: 45, Candidates: candidates()})
	if err != nil {
		t.Fatal(err)
	}
	if plan.DurationMinutes != 45 {
		t.Fatalf("duration = %d, want requested 45", plan.DurationMinutes)
	}

	plan, err = Generate(PlanRequest{Start: start, Candidates: candidates()})
	if err != nil {
		t.Fatal(err)
	}
	if plan.DurationMinutes != 60 {
		t.Fatalf("duration = %d, want default 60", plan.DurationMinutes)
	}
}

func TestGenerateStepsAndDifficulty(t *testing.T) {
	plan, err := Generate(PlanRequest{
		Start:           start,
		DurationMinutes: 60,
		Prefs:           Preferences{Activities: []string{"Hiking"}, TherapeuticGoals: []string{"Stress Relief"}},
		Candidates:      candidates(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Steps) == 0 {
		t.Fatal("plan has no steps")
	}
	if plan.Difficulty == "" {
		t.Fatal("plan has no difficulty label")
	}
	if plan.Title == "" || plan.Description == "" {
		t.Fatalf("plan missing title/description: %+v", plan)
	}
}

// waypoints[0] and waypoints[8] must equal start and destination under
// exact float comparison, not approximately.
func TestWaypointEndpointsExact(t *testing.T) {
	pairs := []struct {
		start, dest models.GeoPoint
	}{
		{models.GeoPoint{Lat: 52.52, Lng: 13.405}, models.GeoPoint{Lat: 52.48, Lng: 13.25}},
		{models.GeoPoint{Lat: -33.8688, Lng: 151.2093}, models.GeoPoint{Lat: -33.8523, Lng: 151.2108}},
		{models.GeoPoint{Lat: 0.1, Lng: 0.2}, models.GeoPoint{Lat: 0.3, Lng: 0.7}},
		{models.GeoPoint{Lat: 1, Lng: 1}, models.GeoPoint{Lat: 1, Lng: 1}},
	}

	for _, p := range pairs {
		wp := Waypoints(p.start, p.dest)
		if len(wp) != 9 {
			t.Fatalf("got %d waypoints, want 9", len(wp))
		}
		if wp[0] != p.start {
			t.Fatalf("waypoints[0] = %+v, want start %+v", wp[0], p.start)
		}
		if wp[8] != p.dest {
			t.Fatalf("waypoints[8] = %+v, want destination %+v", wp[8], p.dest)
		}
	}
}

func TestWaypointInterpolationIsLinear(t *testing.T) {
	a := models.GeoPoint{Lat: 0, Lng: 0}
	b := models.GeoPoint{Lat: 8, Lng: 16}
	wp := Waypoints(a, b)
	for i, p := range wp {
		wantLat := float64(i)
		wantLng := float64(i) * 2
		if p.Lat != wantLat || p.Lng != wantLng {
			t.Fatalf("waypoints[%d] = %+v, want {%f %f}", i, p, wantLat, wantLng)
		}
	}
}

func TestGeneratePrefersAlignedDifficulty(t *testing.T) {
	cands := []models.Place{
		{Name: "Easy Meadow", Lat: 52.521, Lng: 13.406, Type: "park", Difficulty: "easy", StarRating: 3},
		{Name: "Hard Ridge", Lat: 52.522, Lng: 13.407, Type: "peak", Difficulty: "hard", StarRating: 3},
	}

	plan, err := Generate(PlanRequest{
		Start:           start,
		DurationMinutes: 60,
		Prefs:           Preferences{RiskTolerance: "low", EnergyLevel: "low"},
		Candidates:      cands,
	})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Destination.Name != "Easy Meadow" {
		t.Fatalf("low-energy profile picked %s, want Easy Meadow", plan.Destination.Name)
	}

	plan, err = Generate(PlanRequest{
		Start:           start,
		DurationMinutes: 60,
		Prefs:           Preferences{RiskTolerance: "high", EnergyLevel: "high"},
		Candidates:      cands,
	})
	if err != nil {
		t.Fatal(err)
	}
	if plan.Destination.Name != "Hard Ridge" {
		t.Fatalf("high-energy profile picked %s, want Hard Ridge", plan.Destination.Name)
	}
}
