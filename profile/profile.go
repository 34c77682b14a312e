// Package profile stores the wellness preferences the dialogue engine
// folds into its context bundle for known users.
package profile

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"verda/db"
	"verda/globals"
	"verda/models"
	"verda/utils"

	"github.com/julienschmidt/httprouter"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// GET /api/profile/preferences
func GetPreferences(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var prefs models.UserPrefs
	err := db.UserDataCollection.FindOne(ctx, bson.M{"userid": userID}).Decode(&prefs)
	if err == mongo.ErrNoDocuments {
		prefs = models.UserPrefs{UserID: userID}
	} else if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching preferences")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, prefs)
}

// PUT /api/profile/preferences
func UpdatePreferences(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := r.Context().Value(globals.UserIDKey).(string)
	if !ok || userID == "" {
		utils.RespondWithError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var prefs models.UserPrefs
	if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	prefs.UserID = userID

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	opts := options.Replace().SetUpsert(true)
	if _, err := db.UserDataCollection.ReplaceOne(ctx, bson.M{"userid": userID}, prefs, opts); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error saving preferences")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, prefs)
}
