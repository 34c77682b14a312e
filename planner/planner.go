// Package planner turns collected trip requirements plus a bounded list of
// nearby candidate places into a concrete excursion plan. The destination is
// always one of the supplied candidates; the planner never invents a place.
package planner

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"verda/models"
)

// ErrNoCandidates is returned when the candidate list is empty. Callers
// should prompt the user for a manual location instead of retrying.
var ErrNoCandidates = errors.New("no candidate destinations")

const waypointCount = 9

// Preferences is the bundle collected by the planning dialogue.
type Preferences struct {
	Activities       []string
	TherapeuticGoals []string
	RiskTolerance    string // low | moderate | high
	EnergyLevel      string // low | moderate | high
	Notes            string
	Weather          *models.WeatherSnapshot
}

type PlanRequest struct {
	Start           models.GeoPoint
	DurationMinutes int
	Prefs           Preferences
	Candidates      []models.Place
}

// ExcursionPlan is the generated itinerary. Immutable once generated;
// changes go through a re-generation request.
type ExcursionPlan struct {
	Title           string            `json:"title"`
	Description     string            `json:"description"`
	Steps           []string          `json:"steps"`
	Destination     models.Place      `json:"destination"`
	DurationMinutes int               `json:"duration_minutes"`
	DistanceKm      float64           `json:"distance_km"`
	Difficulty      string            `json:"difficulty"`
	Waypoints       []models.GeoPoint `json:"waypoints"`
}

// Generate selects a destination from the candidates and builds the stepped
// itinerary. Deterministic: equal scores keep the earlier candidate.
func Generate(req PlanRequest) (*ExcursionPlan, error) {
	if len(req.Candidates) == 0 {
		return nil, ErrNoCandidates
	}

	target := targetDifficulty(req.Prefs.RiskTolerance, req.Prefs.EnergyLevel)

	best := 0
	bestScore := score(req.Candidates[0], req.Start, target)
	for i := 1; i < len(req.Candidates); i++ {
		if s := score(req.Candidates[i], req.Start, target); s > bestScore {
			best, bestScore = i, s
		}
	}
	dest := req.Candidates[best]

	duration := req.DurationMinutes
	if duration <= 0 {
		duration = 60
	}

	difficulty := dest.Difficulty
	if difficulty == "" {
		difficulty = target
	}

	oneWayKm := haversineKm(req.Start.Lat, req.Start.Lng, dest.Lat, dest.Lng)
	distanceKm := math.Round(oneWayKm*2*10) / 10 // out and back

	activity := "walk"
	if len(req.Prefs.Activities) > 0 {
		activity = strings.ToLower(req.Prefs.Activities[0])
	}

	plan := &ExcursionPlan{
		Title:           fmt.Sprintf("%s at %s", titleCase(activity), dest.Name),
		Description:     describe(dest, req.Prefs, duration),
		Steps:           buildSteps(dest, req.Prefs, activity, duration, oneWayKm),
		Destination:     dest,
		DurationMinutes: duration,
		DistanceKm:      distanceKm,
		Difficulty:      difficulty,
		Waypoints:       Waypoints(req.Start, models.GeoPoint{Lat: dest.Lat, Lng: dest.Lng}),
	}
	return plan, nil
}

// Waypoints linearly interpolates a fixed 9-point route between start and
// destination. The (1-t)a + tb form keeps the endpoints exact: index 0 is
// the start and index 8 the destination, bit for bit.
func Waypoints(start, dest models.GeoPoint) []models.GeoPoint {
	points := make([]models.GeoPoint, waypointCount)
	for i := 0; i < waypointCount; i++ {
		t := float64(i) / float64(waypointCount-1)
		points[i] = models.GeoPoint{
			Lat: (1-t)*start.Lat + t*dest.Lat,
			Lng: (1-t)*start.Lng + t*dest.Lng,
		}
	}
	return points
}

// score weighs star rating, difficulty alignment with the user's risk and
// energy profile, and proximity. A quality heuristic only; the invariant is
// that the pick stays inside the candidate list.
func score(p models.Place, start models.GeoPoint, target string) float64 {
	s := p.StarRating
	switch {
	case p.Difficulty == "":
		s += 0.5
	case p.Difficulty == target:
		s += 2
	case adjacent(p.Difficulty, target):
		s += 1
	}
	s -= 0.25 * haversineKm(start.Lat, start.Lng, p.Lat, p.Lng)
	return s
}

var difficultyRank = map[string]int{"easy": 0, "medium": 1, "hard": 2}

func adjacent(a, b string) bool {
	ra, oka := difficultyRank[a]
	rb, okb := difficultyRank[b]
	if !oka || !okb {
		return false
	}
	d := ra - rb
	return d == 1 || d == -1
}

func targetDifficulty(risk, energy string) string {
	if risk == "high" && energy == "high" {
		return "hard"
	}
	if risk == "low" || energy == "low" {
		return "easy"
	}
	return "medium"
}

func buildSteps(dest models.Place, prefs Preferences, activity string, duration int, oneWayKm float64) []string {
	mainMinutes := duration * 6 / 10
	if mainMinutes < 5 {
		mainMinutes = 5
	}

	steps := []string{
		fmt.Sprintf("Head to %s (about %.1f km away)", dest.Name, oneWayKm),
		fmt.Sprintf("Spend around %d minutes %s at a comfortable pace", mainMinutes, gerund(activity)),
	}
	if len(prefs.TherapeuticGoals) > 0 {
		steps = append(steps, fmt.Sprintf("Take a quiet pause and focus on %s", strings.ToLower(strings.Join(prefs.TherapeuticGoals, ", "))))
	}
	steps = append(steps, "Make your way back to where you started")
	return steps
}

func describe(dest models.Place, prefs Preferences, duration int) string {
	desc := fmt.Sprintf("A %d-minute excursion to %s", duration, dest.Name)
	if len(prefs.TherapeuticGoals) > 0 {
		desc += ", planned around " + strings.ToLower(strings.Join(prefs.TherapeuticGoals, " and "))
	}
	if prefs.Weather != nil && prefs.Weather.Description != "" {
		desc += fmt.Sprintf(". Expect %s around %.0f°C", strings.ToLower(prefs.Weather.Description), prefs.Weather.Temperature)
	}
	return desc + "."
}

func gerund(activity string) string {
	switch activity {
	case "walk":
		return "walking"
	case "run":
		return "running"
	case "hike":
		return "hiking"
	default:
		return activity
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKm = 6371.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
