package phase

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Phase is a stage of the excursion conversation. Each phase carries its
// own metadata shape and instruction set.
type Phase string

const (
	InitialChat Phase = "initial_chat"
	Planning    Phase = "excursion_planning"
	Creation    Phase = "excursion_creation"
	Guiding     Phase = "excursion_guiding"
	Followup    Phase = "post_excursion_followup"
)

// Role is the assistant persona, derived from the phase and never set
// independently.
type Role string

const (
	RoleHealthCoach      Role = "health_coach"
	RoleExcursionCreator Role = "excursion_creator"
)

var ErrInvalidTransition = errors.New("invalid phase transition")

// Planning-phase step marker.
const StepCollectingRequirements = "collecting_requirements"

var allPhases = []Phase{InitialChat, Planning, Creation, Guiding, Followup}

func All() []Phase {
	out := make([]Phase, len(allPhases))
	copy(out, allPhases)
	return out
}

func (p Phase) Valid() bool {
	for _, q := range allPhases {
		if p == q {
			return true
		}
	}
	return false
}

// RoleFor maps a phase to the assistant role speaking in it.
func RoleFor(p Phase) Role {
	switch p {
	case InitialChat, Followup:
		return RoleHealthCoach
	default:
		return RoleExcursionCreator
	}
}

var transitions = map[Phase][]Phase{
	InitialChat: {Planning},
	Planning:    {Creation, InitialChat},
	Creation:    {Guiding, InitialChat},
	Guiding:     {Followup},
	Followup:    {InitialChat, Planning},
}

// CanTransition reports whether from → to is in the transition table.
func CanTransition(from, to Phase) bool {
	for _, q := range transitions[from] {
		if q == to {
			return true
		}
	}
	return false
}

// Meta is the phase-tagged metadata union. Each phase has exactly one
// concrete shape, produced by Transition, so an invalid phase/metadata
// combination cannot be constructed.
type Meta interface {
	Phase() Phase
	// Doc renders the persisted metadata document for the session row.
	Doc() bson.M
}

// InitialMeta: empty bag, linked excursion cleared.
type InitialMeta struct{}

func (InitialMeta) Phase() Phase { return InitialChat }
func (InitialMeta) Doc() bson.M  { return bson.M{} }

// PlanningMeta tracks the three facts the planning dialogue collects.
type PlanningMeta struct {
	Step               string
	DurationMinutes    *int
	LocationPreference *string
	AskedConfirmation  bool
}

func (PlanningMeta) Phase() Phase { return Planning }

func (m PlanningMeta) Doc() bson.M {
	doc := bson.M{
		"excursion_step":      m.Step,
		"duration_minutes":    nil,
		"location_preference": nil,
		"asked_confirmation":  m.AskedConfirmation,
	}
	if m.DurationMinutes != nil {
		doc["duration_minutes"] = *m.DurationMinutes
	}
	if m.LocationPreference != nil {
		doc["location_preference"] = *m.LocationPreference
	}
	return doc
}

// PlanningUpdate is a shallow merge onto PlanningMeta; nil fields are
// left untouched.
type PlanningUpdate struct {
	DurationMinutes    *int
	LocationPreference *string
	AskedConfirmation  *bool
}

func (m *PlanningMeta) Apply(u PlanningUpdate) {
	if u.DurationMinutes != nil {
		m.DurationMinutes = u.DurationMinutes
	}
	if u.LocationPreference != nil {
		m.LocationPreference = u.LocationPreference
	}
	if u.AskedConfirmation != nil {
		m.AskedConfirmation = *u.AskedConfirmation
	}
}

// PlanningMetaFromDoc rebuilds the typed planning metadata from a stored
// session document. Unknown keys are ignored; missing keys read as unset.
func PlanningMetaFromDoc(doc bson.M) PlanningMeta {
	m := PlanningMeta{Step: StepCollectingRequirements}
	if s, ok := doc["excursion_step"].(string); ok && s != "" {
		m.Step = s
	}
	if v, ok := toInt(doc["duration_minutes"]); ok {
		m.DurationMinutes = &v
	}
	if s, ok := doc["location_preference"].(string); ok && s != "" {
		m.LocationPreference = &s
	}
	if b, ok := doc["asked_confirmation"].(bool); ok {
		m.AskedConfirmation = b
	}
	return m
}

// bson round-trips numbers as int32/int64/float64 depending on origin.
func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

// CreationMeta tracks the excursion under modification.
type CreationMeta struct {
	ExcursionID       string
	ModificationCount int
}

func (CreationMeta) Phase() Phase { return Creation }

func (m CreationMeta) Doc() bson.M {
	return bson.M{"excursion_id": m.ExcursionID, "modification_count": m.ModificationCount}
}

// GuidingMeta tracks live progress through the excursion steps.
type GuidingMeta struct {
	ExcursionID          string
	StartTime            time.Time
	CurrentStep          int
	CompletionPercentage float64
}

func (GuidingMeta) Phase() Phase { return Guiding }

func (m GuidingMeta) Doc() bson.M {
	return bson.M{
		"excursion_id":          m.ExcursionID,
		"start_time":            m.StartTime,
		"current_step":          m.CurrentStep,
		"completion_percentage": m.CompletionPercentage,
	}
}

// FollowupMeta tracks the post-excursion check-in.
type FollowupMeta struct {
	ExcursionID       string
	CompletedAt       time.Time
	FeedbackCollected bool
}

func (FollowupMeta) Phase() Phase { return Followup }

func (m FollowupMeta) Doc() bson.M {
	return bson.M{
		"excursion_id":       m.ExcursionID,
		"completed_at":       m.CompletedAt,
		"feedback_collected": m.FeedbackCollected,
	}
}

// TransitionResult carries everything a transition changes on the session:
// the new phase, the derived role, the reset metadata, and whether the
// linked excursion is cleared.
type TransitionResult struct {
	Phase          Phase
	Role           Role
	Meta           Meta
	ClearExcursion bool
}

// Transition validates from → to and builds the reset metadata for the
// destination phase. Metadata is replaced wholesale on every transition;
// in-phase merges go through the typed Apply methods instead.
func Transition(from, to Phase, excursionID string, now time.Time) (TransitionResult, error) {
	if !from.Valid() || !to.Valid() || !CanTransition(from, to) {
		return TransitionResult{}, ErrInvalidTransition
	}

	res := TransitionResult{Phase: to, Role: RoleFor(to)}
	switch to {
	case InitialChat:
		res.Meta = InitialMeta{}
		res.ClearExcursion = true
	case Planning:
		res.Meta = PlanningMeta{Step: StepCollectingRequirements}
	case Creation:
		res.Meta = CreationMeta{ExcursionID: excursionID}
	case Guiding:
		res.Meta = GuidingMeta{ExcursionID: excursionID, StartTime: now}
	case Followup:
		res.Meta = FollowupMeta{ExcursionID: excursionID, CompletedAt: now}
	}
	return res, nil
}
