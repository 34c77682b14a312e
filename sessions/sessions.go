// Package sessions exposes the conversation API: session lifecycle, chat
// turns through the dialogue engine, explicit phase transitions, and the
// single-turn utterance parser used by quick-entry screens.
package sessions

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"verda/completion"
	"verda/dialogue"
	"verda/globals"
	"verda/intent"
	"verda/livechat"
	"verda/phase"
	"verda/store"
	"verda/utils"

	"github.com/julienschmidt/httprouter"
)

var (
	sessionsStore = store.Sessions{}

	engineOnce sync.Once
	eng        *dialogue.Engine
)

func engine() *dialogue.Engine {
	engineOnce.Do(func() {
		client, err := completion.NewFromEnv()
		if err != nil {
			// Keep serving; turns will surface the config error verbatim.
			log.Println("completion endpoint not configured:", err)
			client = &completion.Client{}
		}
		eng = &dialogue.Engine{
			Sessions:    store.Sessions{},
			Messages:    store.Messages{},
			Profiles:    store.Profiles{},
			Completions: client,
		}
	})
	return eng
}

func requestUserID(r *http.Request) string {
	userID, _ := r.Context().Value(globals.UserIDKey).(string)
	return userID
}

// POST /api/sessions
func EnsureSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input struct {
		Role string `json:"role"`
	}
	// Empty body is fine; the default persona applies.
	_ = json.NewDecoder(r.Body).Decode(&input)

	role := phase.Role(input.Role)
	if role == "" {
		role = phase.RoleHealthCoach
	}
	if role != phase.RoleHealthCoach && role != phase.RoleExcursionCreator {
		utils.RespondWithError(w, http.StatusBadRequest, "Unknown role")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, err := sessionsStore.GetOrCreate(ctx, requestUserID(r), role)
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error creating session")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, sess)
}

// GET /api/sessions/:id
func GetSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, err := sessionsStore.Get(ctx, ps.ByName("id"))
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching session")
		return
	}
	if sess == nil {
		utils.RespondWithError(w, http.StatusNotFound, "Session not found")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, sess)
}

// GET /api/sessions/:id/messages
func GetMessages(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	msgs, err := store.Messages{}.History(ctx, ps.ByName("id"))
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching messages")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"sessionid": ps.ByName("id"),
		"messages":  msgs,
	})
}

// PostMessage handles POST /api/sessions/:id/messages: one chat turn
// through the engine, with the reply also pushed to websocket listeners.
func PostMessage(hub *livechat.Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		var input struct {
			Content      string                 `json:"content"`
			RoleOverride string                 `json:"role_override"`
			Context      map[string]interface{} `json:"context"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil || input.Content == "" {
			utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
			return
		}

		// Most of this window is spent waiting on the completion call.
		ctx, cancel := context.WithTimeout(r.Context(), 90*time.Second)
		defer cancel()

		res, err := engine().Turn(ctx, dialogue.TurnInput{
			SessionID:    ps.ByName("id"),
			Text:         input.Content,
			RoleOverride: phase.Role(input.RoleOverride),
			Context:      input.Context,
		})
		if err != nil {
			respondTurnError(w, err)
			return
		}

		if hub != nil {
			hub.PushReply(ps.ByName("id"), res.Reply, res.ReadyToCreate)
		}

		utils.RespondWithJSON(w, http.StatusOK, res)
	}
}

// Failures are typed so the client can pick between retry and re-auth;
// the user message is already persisted in every non-404 case.
func respondTurnError(w http.ResponseWriter, err error) {
	var provider *completion.ProviderError
	switch {
	case errors.Is(err, dialogue.ErrSessionNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, completion.ErrNotConfigured):
		utils.RespondWithError(w, http.StatusInternalServerError, err.Error())
	case errors.Is(err, completion.ErrUnavailable),
		errors.Is(err, completion.ErrMalformedReply),
		errors.As(err, &provider):
		utils.RespondWithError(w, http.StatusBadGateway, err.Error())
	default:
		log.Println("turn failed:", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Error processing message")
	}
}

// DELETE /api/sessions/:id/messages
func ClearMessages(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := sessionsStore.Clear(ctx, ps.ByName("id")); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error clearing chat")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{"message": "Chat cleared"})
}

// POST /api/sessions/:id/phase
func TransitionPhase(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var input struct {
		To          string `json:"to"`
		ExcursionID string `json:"excursion_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	sess, err := sessionsStore.Get(ctx, ps.ByName("id"))
	if err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error fetching session")
		return
	}
	if sess == nil {
		utils.RespondWithError(w, http.StatusNotFound, "Session not found")
		return
	}

	res, err := phase.Transition(phase.Phase(sess.Phase), phase.Phase(input.To), input.ExcursionID, time.Now())
	if err != nil {
		// Session stays in its prior phase.
		utils.RespondWithError(w, http.StatusConflict, err.Error())
		return
	}

	if err := sessionsStore.ApplyTransition(ctx, sess.SessionID, res, input.ExcursionID); err != nil {
		utils.RespondWithError(w, http.StatusInternalServerError, "Error applying transition")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.M{
		"sessionid": sess.SessionID,
		"phase":     string(res.Phase),
		"role":      string(res.Role),
		"metadata":  res.Meta.Doc(),
	})
}

// POST /api/intent/parse — single-turn screens parse an utterance and use
// the confidence score to gate their UI.
func ParseUtterance(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var input struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, intent.Parse(input.Text))
}
