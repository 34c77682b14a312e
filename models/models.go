package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GeoPoint is a lat/lng pair used for starts, destinations and waypoints.
type GeoPoint struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// ConversationSession is one assistant conversation for a user (or an
// anonymous device). The same row transitions through phases in place.
type ConversationSession struct {
	SessionID         string    `json:"sessionid" bson:"sessionid"`
	UserID            string    `json:"user_id,omitempty" bson:"user_id,omitempty"`
	Role              string    `json:"role" bson:"role"`
	Phase             string    `json:"phase" bson:"phase"`
	Title             string    `json:"title" bson:"title"`
	Metadata          bson.M    `json:"metadata" bson:"metadata"`
	LinkedExcursionID string    `json:"linked_excursion_id,omitempty" bson:"linked_excursion_id,omitempty"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" bson:"updated_at"`
}

// SessionMessage is one entry of the append-only conversation log.
// Messages are never mutated or reordered, only appended or bulk-deleted
// when the user clears the chat.
type SessionMessage struct {
	ID          primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	SessionID   string             `json:"sessionid" bson:"sessionid"`
	Role        string             `json:"role" bson:"role"` // user | assistant | system
	Content     string             `json:"content" bson:"content"`
	MessageType string             `json:"message_type,omitempty" bson:"message_type,omitempty"` // text | voice
	AudioRef    string             `json:"audio_ref,omitempty" bson:"audio_ref,omitempty"`
	AudioSecs   float64            `json:"audio_secs,omitempty" bson:"audio_secs,omitempty"`
	Transcript  string             `json:"transcript,omitempty" bson:"transcript,omitempty"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
}

// Place is a nearby nature-spot candidate returned by the place search.
type Place struct {
	Name       string  `json:"name" bson:"name"`
	Lat        float64 `json:"lat" bson:"lat"`
	Lng        float64 `json:"lng" bson:"lng"`
	Type       string  `json:"type" bson:"type"`
	Difficulty string  `json:"difficulty,omitempty" bson:"difficulty,omitempty"`
	StarRating float64 `json:"star_rating,omitempty" bson:"star_rating,omitempty"`
}

// WeatherSnapshot is optional enrichment attached to a plan request.
type WeatherSnapshot struct {
	Temperature float64 `json:"temperature" bson:"temperature"`
	Description string  `json:"description" bson:"description"`
}

// RouteData is the persisted route of an excursion.
type RouteData struct {
	Steps         []string   `json:"steps" bson:"steps"`
	StartLocation GeoPoint   `json:"start_location" bson:"start_location"`
	Destination   Place      `json:"destination" bson:"destination"`
	Waypoints     []GeoPoint `json:"waypoints" bson:"waypoints"`
}

// Excursion is a persisted excursion record.
type Excursion struct {
	ExcursionID     string           `json:"excursionid" bson:"excursionid"`
	UserID          string           `json:"user_id" bson:"user_id"`
	Title           string           `json:"title" bson:"title"`
	Description     string           `json:"description" bson:"description"`
	RouteData       RouteData        `json:"route_data" bson:"route_data"`
	DurationMinutes int              `json:"duration_minutes" bson:"duration_minutes"`
	DistanceKm      float64          `json:"distance_km" bson:"distance_km"`
	Difficulty      string           `json:"difficulty" bson:"difficulty"`
	Weather         *WeatherSnapshot `json:"weather,omitempty" bson:"weather,omitempty"`
	Deleted         bool             `json:"-" bson:"deleted,omitempty"`
	CreatedAt       time.Time        `json:"created_at" bson:"created_at"`
}

// UserPrefs holds the stored wellness preferences folded into the
// dialogue context bundle for known users.
type UserPrefs struct {
	UserID        string   `json:"userid" bson:"userid"`
	Activities    []string `json:"activities" bson:"activities"`
	TherapyGoals  []string `json:"therapy_goals" bson:"therapy_goals"`
	HealthGoals   []string `json:"health_goals" bson:"health_goals"`
	FitnessLevel  string   `json:"fitness_level" bson:"fitness_level"`
	MobilityLevel string   `json:"mobility_level" bson:"mobility_level"`
	RiskTolerance string   `json:"risk_tolerance" bson:"risk_tolerance"`
	EnergyLevel   string   `json:"energy_level" bson:"energy_level"`
	Notes         string   `json:"notes" bson:"notes"`
}

// User is an account document. Auth only needs these fields.
type User struct {
	UserID    string    `json:"userid" bson:"userid"`
	Username  string    `json:"username" bson:"username"`
	Password  string    `json:"-" bson:"password"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
