// Package intent extracts structured excursion parameters from a single
// free-form utterance. Parsing is pure pattern matching: no I/O, no model
// calls, and a missing match simply leaves the field unset.
package intent

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

type ProximityBias string

const (
	ProximityNone           ProximityBias = "none"
	ProximityNearby         ProximityBias = "nearby"
	ProximityNearHere       ProximityBias = "near_here"
	ProximityWithinDistance ProximityBias = "within_distance"
)

const milesToKm = 1.60934

// Confidence contributions per matched category. The raw sum exceeds 1,
// so the final score is clamped rather than normalized: matching
// everything saturates at 1.0.
const (
	weightDuration   = 0.5
	weightProximity  = 0.25
	weightActivity   = 0.2
	weightDifficulty = 0.1
	weightGoal       = 0.15
)

// ParsedIntent is the structured read of one utterance. Ephemeral: callers
// attach it to session metadata or discard it.
type ParsedIntent struct {
	RawText             string            `json:"raw_text"`
	DurationMinutes     *int              `json:"duration_minutes,omitempty"`
	ProximityBias       ProximityBias     `json:"proximity_bias"`
	ProximityDistanceKm *float64          `json:"proximity_distance_km,omitempty"`
	Activities          []string          `json:"activities"`
	Difficulty          string            `json:"difficulty,omitempty"`
	TherapeuticGoals    []string          `json:"therapeutic_goals"`
	Confidence          float64           `json:"confidence"`
	Matches             map[string]string `json:"matches"`
}

type durationPattern struct {
	re     *regexp.Regexp
	factor float64 // multiplier to minutes
}

// Ordered; first match wins. The fractional-hours pattern is tried before
// integer hours so "1.5 hours" converts to 90 instead of truncating to 60.
var durationPatterns = []durationPattern{
	{regexp.MustCompile(`(?i)\b(\d+\.\d+)\s*(?:hours?|hrs?)\b`), 60},
	{regexp.MustCompile(`(?i)\b(\d+)\s*(?:hours?|hrs?)\b`), 60},
	{regexp.MustCompile(`(?i)\b(\d+)\s*(?:minutes?|mins?)\b`), 1},
}

var withinRe = regexp.MustCompile(`(?i)\bwithin\s+(\d+(?:\.\d+)?)\s*(kilometers?|kilometres?|kms?|km|miles?|mi)\b`)

var nearHerePhrases = []string{"near here", "around here", "close to here"}
var nearbyPhrases = []string{"nearby", "close by", "near me"}

type keywordSet struct {
	label    string
	keywords []*regexp.Regexp
}

func wordRe(kw string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
}

func compileSet(label string, kws ...string) keywordSet {
	set := keywordSet{label: label}
	for _, kw := range kws {
		set.keywords = append(set.keywords, wordRe(kw))
	}
	return set
}

// Canonical activity table. Set accumulation: every matching activity is
// included, in table order.
var activityTable = []keywordSet{
	compileSet("Hiking", "hike", "hikes", "hiking", "trek", "trekking", "trail", "trails"),
	compileSet("Walking", "walk", "walking", "stroll", "strolling"),
	compileSet("Running", "run", "running", "jog", "jogging"),
	compileSet("Cycling", "cycle", "cycling", "bike", "biking"),
	compileSet("Swimming", "swim", "swimming"),
	compileSet("Meditation", "meditate", "meditation", "mindfulness", "breathing"),
	compileSet("Birdwatching", "birdwatching", "birding", "birds"),
	compileSet("Photography", "photography", "photo", "photos"),
	compileSet("Picnic", "picnic"),
}

// Difficulty tiers in fixed order; the first tier with any match wins.
var difficultyTable = []keywordSet{
	compileSet("easy", "easy", "gentle", "relaxed", "light", "beginner"),
	compileSet("medium", "moderate", "medium", "intermediate"),
	compileSet("hard", "hard", "challenging", "difficult", "tough", "intense", "strenuous"),
}

var goalTable = []keywordSet{
	compileSet("Stress Relief", "stress", "destress", "unwind", "relax", "relaxing", "relaxation", "calm"),
	compileSet("Mood Boost", "mood", "uplift", "uplifting", "cheer up", "happier"),
	compileSet("Energy", "energy", "energize", "energise", "invigorate", "recharge"),
	compileSet("Focus", "focus", "clarity", "concentration"),
	compileSet("Better Sleep", "sleep", "insomnia"),
	compileSet("Anxiety Relief", "anxiety", "anxious", "worry", "worries"),
	compileSet("Nature Connection", "nature", "grounding", "fresh air"),
}

// Parse reads one raw utterance into a ParsedIntent. It is deterministic
// and total: it never fails, and the same input always yields the same
// result, confidence and matches included.
func Parse(rawText string) ParsedIntent {
	pi := ParsedIntent{
		RawText:       rawText,
		ProximityBias: ProximityNone,
		Matches:       map[string]string{},
	}
	if strings.TrimSpace(rawText) == "" {
		return pi
	}

	confidence := 0.0

	// 1. Duration: first pattern to match wins.
	for _, dp := range durationPatterns {
		m := dp.re.FindStringSubmatch(rawText)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			mins := int(math.Round(v * dp.factor))
			if mins >= 1 {
				pi.DurationMinutes = &mins
				pi.Matches["duration"] = m[0]
				confidence += weightDuration
			}
		}
		break
	}

	// 2. Proximity: explicit distance beats qualitative phrasing.
	if m := withinRe.FindStringSubmatch(rawText); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			km := v
			unit := strings.ToLower(m[2])
			if strings.HasPrefix(unit, "mi") {
				km = v * milesToKm
			}
			pi.ProximityBias = ProximityWithinDistance
			pi.ProximityDistanceKm = &km
			pi.Matches["proximity"] = m[0]
			confidence += weightProximity
		}
	} else if phrase := firstPhrase(rawText, nearHerePhrases); phrase != "" {
		pi.ProximityBias = ProximityNearHere
		pi.Matches["proximity"] = phrase
		confidence += weightProximity
	} else if phrase := firstPhrase(rawText, nearbyPhrases); phrase != "" {
		pi.ProximityBias = ProximityNearby
		pi.Matches["proximity"] = phrase
		confidence += weightProximity
	}

	// 3. Activities: set accumulation over the whole table.
	for _, set := range activityTable {
		if kw, hit := matchSet(rawText, set); hit {
			pi.Activities = append(pi.Activities, set.label)
			pi.Matches["activity:"+set.label] = kw
		}
	}
	if len(pi.Activities) > 0 {
		confidence += weightActivity
	}

	// 4. Difficulty: tiers tested in order, first tier wins.
	for _, tier := range difficultyTable {
		if kw, hit := matchSet(rawText, tier); hit {
			pi.Difficulty = tier.label
			pi.Matches["difficulty"] = kw
			confidence += weightDifficulty
			break
		}
	}

	// 5. Therapeutic goals: same set accumulation as activities.
	for _, set := range goalTable {
		if kw, hit := matchSet(rawText, set); hit {
			pi.TherapeuticGoals = append(pi.TherapeuticGoals, set.label)
			pi.Matches["goal:"+set.label] = kw
		}
	}
	if len(pi.TherapeuticGoals) > 0 {
		confidence += weightGoal
	}

	pi.Confidence = clamp01(confidence)
	return pi
}

func matchSet(text string, set keywordSet) (string, bool) {
	for _, re := range set.keywords {
		if m := re.FindString(text); m != "" {
			return m, true
		}
	}
	return "", false
}

func firstPhrase(text string, phrases []string) string {
	for _, p := range phrases {
		if re := wordRe(p); re.MatchString(text) {
			return re.FindString(text)
		}
	}
	return ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
