// Package excursions persists generated excursion plans and runs the
// plan-generation flow that turns a "ready to create" conversation into a
// stored excursion record.
package excursions

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"verda/db"
	"verda/geoloc"
	"verda/globals"
	"verda/models"
	"verda/nearby"
	"verda/phase"
	"verda/planner"
	"verda/rdx"
	"verda/store"
	"verda/utils"
	"verda/weather"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
)

var locationCache *geoloc.Cache

func cache() *geoloc.Cache {
	if locationCache == nil {
		if rdx.Conn == nil {
			rdx.InitRedis()
		}
		locationCache = geoloc.New(rdx.Conn)
	}
	return locationCache
}

type planRequest struct {
	SessionID       string   `json:"session_id"`
	Lat             *float64 `json:"lat"`
	Lng             *float64 `json:"lng"`
	RadiusM         int      `json:"radius_m"`
	DurationMinutes int      `json:"duration_minutes"`
	Preferences     struct {
		Activities       []string `json:"activities"`
		TherapeuticGoals []string `json:"therapeutic_goals"`
		RiskTolerance    string   `json:"risk_tolerance"`
		EnergyLevel      string   `json:"energy_level"`
		Notes            string   `json:"notes"`
	} `json:"preferences"`
}

// PlanExcursion handles POST /api/excursions/plan. Location resolves from
// the request or the geoloc cache; weather and place search run
// concurrently (no data dependency); plan generation only starts once the
// candidate list exists.
func PlanExcursion(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var input planRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	start, ok := resolveLocation(ctx, userID, input)
	if !ok {
		utils.RespondWithError(w, http.StatusBadRequest, "Location required")
		return
	}

	type weatherResult struct {
		snapshot *models.WeatherSnapshot
	}
	type searchResult struct {
		places []models.Place
		err    error
	}

	weatherCh := make(chan weatherResult, 1)
	searchCh := make(chan searchResult, 1)

	go func() {
		snap, err := weather.Current(ctx, start.Lat, start.Lng)
		if err != nil {
			// Optional enrichment; a plan is fine without it.
			log.Println("weather lookup skipped:", err)
			snap = nil
		}
		weatherCh <- weatherResult{snapshot: snap}
	}()

	go func() {
		places, err := nearby.Search(ctx, start.Lat, start.Lng, input.RadiusM)
		searchCh <- searchResult{places: places, err: err}
	}()

	wres := <-weatherCh
	sres := <-searchCh
	if sres.err != nil {
		utils.RespondWithError(w, http.StatusBadGateway, "Place search failed")
		return
	}

	prefs := buildPreferences(ctx, userID, input, wres.snapshot)

	duration := input.DurationMinutes
	if duration <= 0 {
		duration = durationFromSession(ctx, input.SessionID)
	}

	plan, err := planner.Generate(planner.PlanRequest{
		Start:           start,
		DurationMinutes: duration,
		Prefs:           prefs,
		Candidates:      sres.places,
	})
	if errors.Is(err, planner.ErrNoCandidates) {
		// Distinct from generic failure: the client prompts for a manual
		// location instead of retrying blindly.
		utils.RespondWithError(w, http.StatusUnprocessableEntity, "No candidate destinations nearby")
		return
	}
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error generating plan")
		return
	}

	excursion := models.Excursion{
		ExcursionID: utils.GetUUID(),
		UserID:      userID,
		Title:       plan.Title,
		Description: plan.Description,
		RouteData: models.RouteData{
			Steps:         plan.Steps,
			StartLocation: start,
			Destination:   plan.Destination,
			Waypoints:     plan.Waypoints,
		},
		DurationMinutes: plan.DurationMinutes,
		DistanceKm:      plan.DistanceKm,
		Difficulty:      plan.Difficulty,
		Weather:         wres.snapshot,
		CreatedAt:       time.Now(),
	}

	if _, err := db.ExcursionsCollection.InsertOne(ctx, excursion); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error saving excursion")
		return
	}

	if input.SessionID != "" {
		advanceSession(ctx, input.SessionID, excursion.ExcursionID)
	}

	utils.RespondWithJSON(w, http.StatusCreated, excursion)
}

func resolveLocation(ctx context.Context, userID string, input planRequest) (models.GeoPoint, bool) {
	if input.Lat != nil && input.Lng != nil {
		pt := models.GeoPoint{Lat: *input.Lat, Lng: *input.Lng}
		if err := cache().Set(ctx, userID, pt); err != nil {
			log.Println("location cache write failed:", err)
		}
		return pt, true
	}

	pt, ok, err := cache().Get(ctx, userID)
	if err != nil {
		log.Println("location cache read failed:", err)
		return models.GeoPoint{}, false
	}
	return pt, ok
}

func buildPreferences(ctx context.Context, userID string, input planRequest, snap *models.WeatherSnapshot) planner.Preferences {
	prefs := planner.Preferences{
		Activities:       input.Preferences.Activities,
		TherapeuticGoals: input.Preferences.TherapeuticGoals,
		RiskTolerance:    input.Preferences.RiskTolerance,
		EnergyLevel:      input.Preferences.EnergyLevel,
		Notes:            input.Preferences.Notes,
		Weather:          snap,
	}

	stored, err := (store.Profiles{}).Prefs(ctx, userID)
	if err != nil || stored == nil {
		return prefs
	}
	if len(prefs.Activities) == 0 {
		prefs.Activities = stored.Activities
	}
	if len(prefs.TherapeuticGoals) == 0 {
		prefs.TherapeuticGoals = stored.TherapyGoals
	}
	if prefs.RiskTolerance == "" {
		prefs.RiskTolerance = stored.RiskTolerance
	}
	if prefs.EnergyLevel == "" {
		prefs.EnergyLevel = stored.EnergyLevel
	}
	return prefs
}

func durationFromSession(ctx context.Context, sessionID string) int {
	const fallback = 60
	if sessionID == "" {
		return fallback
	}
	sess, err := (store.Sessions{}).Get(ctx, sessionID)
	if err != nil || sess == nil || phase.Phase(sess.Phase) != phase.Planning {
		return fallback
	}
	pm := phase.PlanningMetaFromDoc(sess.Metadata)
	if pm.DurationMinutes != nil {
		return *pm.DurationMinutes
	}
	return fallback
}

// advanceSession moves a planning session into excursion_creation and links
// the new excursion. Best effort: the excursion is already persisted, so a
// stale session only logs.
func advanceSession(ctx context.Context, sessionID, excursionID string) {
	sessions := store.Sessions{}
	sess, err := sessions.Get(ctx, sessionID)
	if err != nil || sess == nil {
		log.Println("session lookup failed after plan:", sessionID)
		return
	}
	res, err := phase.Transition(phase.Phase(sess.Phase), phase.Creation, excursionID, time.Now())
	if err != nil {
		log.Printf("session %s not advanced: %v", sessionID, err)
		return
	}
	if err := sessions.ApplyTransition(ctx, sessionID, res, excursionID); err != nil {
		log.Println("session transition write failed:", err)
	}
}

// GET /api/excursions/:id
func GetExcursion(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	filter := bson.M{"excursionid": ps.ByName("id"), "deleted": bson.M{"$ne": true}}

	var excursion models.Excursion
	if err := db.ExcursionsCollection.FindOne(ctx, filter).Decode(&excursion); err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Excursion not found")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, excursion)
}

// GET /api/excursions
func GetExcursions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	cursor, err := db.ExcursionsCollection.Find(ctx, bson.M{
		"user_id": userID,
		"deleted": bson.M{"$ne": true},
	})
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching excursions")
		return
	}
	defer cursor.Close(ctx)

	var excursions []models.Excursion
	if err := cursor.All(ctx, &excursions); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error decoding excursions")
		return
	}
	if excursions == nil {
		excursions = []models.Excursion{}
	}

	utils.RespondWithJSON(w, http.StatusOK, excursions)
}

// DELETE /api/excursions/:id
func DeleteExcursion(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var excursion models.Excursion
	err := db.ExcursionsCollection.FindOne(ctx, bson.M{"excursionid": ps.ByName("id")}).Decode(&excursion)
	if err != nil {
		utils.RespondWithError(w, http.StatusNotFound, "Excursion not found")
		return
	}
	if excursion.UserID != userID {
		utils.RespondWithError(w, http.StatusForbidden, "Forbidden")
		return
	}

	update := bson.M{"$set": bson.M{"deleted": true}}
	if _, err := db.ExcursionsCollection.UpdateOne(ctx, bson.M{"excursionid": ps.ByName("id")}, update); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error deleting excursion")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Excursion deleted"})
}
