// Package dialogue orchestrates one chat turn: persist the user message,
// pick the instruction set for the session's role and phase, call the
// completion endpoint, interpret the structured reply, and record the
// session updates. It owns no transport or storage of its own; those come
// in through the small interfaces below.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"verda/completion"
	"verda/intent"
	"verda/models"
	"verda/phase"

	"go.mongodb.org/mongo-driver/bson"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionStore interface {
	Get(ctx context.Context, sessionID string) (*models.ConversationSession, error)
	UpdateMetadata(ctx context.Context, sessionID string, metadata bson.M) error
}

type MessageLog interface {
	Append(ctx context.Context, msg *models.SessionMessage) error
	History(ctx context.Context, sessionID string) ([]models.SessionMessage, error)
}

type ProfileReader interface {
	Prefs(ctx context.Context, userID string) (*models.UserPrefs, error)
}

type Completer interface {
	Complete(ctx context.Context, req completion.Request) (*completion.Result, error)
}

type Engine struct {
	Sessions    SessionStore
	Messages    MessageLog
	Profiles    ProfileReader
	Completions Completer
	Now         func() time.Time
}

type TurnInput struct {
	SessionID string
	Text      string
	// RoleOverride forces a persona; zero value keeps the phase's derived role.
	RoleOverride phase.Role
	// Context is caller-supplied metadata merged on top of the bundle;
	// the caller wins on key collision.
	Context map[string]interface{}
}

type TurnResult struct {
	Reply         string `json:"reply"`
	ReadyToCreate bool   `json:"readyToCreate"`
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Turn runs one full user turn. The user message is persisted before the
// completion call, so a provider failure loses nothing: the caller can
// retry the same turn against unchanged session state. At most one
// assistant message is written per successful call and none on failure.
func (e *Engine) Turn(ctx context.Context, in TurnInput) (*TurnResult, error) {
	sess, err := e.Sessions.Get(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrSessionNotFound
	}

	userMsg := &models.SessionMessage{
		SessionID: in.SessionID,
		Role:      "user",
		Content:   in.Text,
		CreatedAt: e.now(),
	}
	if err := e.Messages.Append(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	ph := phase.Phase(sess.Phase)
	role := in.RoleOverride
	if role == "" {
		role = phase.RoleFor(ph)
	}

	// In the planning phase the user's own words advance the collected
	// facts deterministically before the model is consulted.
	var pm phase.PlanningMeta
	if ph == phase.Planning {
		pm = phase.PlanningMetaFromDoc(sess.Metadata)
		if mergePlanningFacts(&pm, in.Text, in.Context) {
			sess.Metadata = pm.Doc()
			if err := e.Sessions.UpdateMetadata(ctx, in.SessionID, sess.Metadata); err != nil {
				return nil, fmt.Errorf("update planning metadata: %w", err)
			}
		}
	}

	bundle := map[string]interface{}{
		"phase":    string(ph),
		"metadata": map[string]interface{}(sess.Metadata),
	}
	if sess.UserID != "" && e.Profiles != nil {
		prefs, err := e.Profiles.Prefs(ctx, sess.UserID)
		if err != nil {
			log.Printf("prefs lookup failed for %s: %v", sess.UserID, err)
		} else if prefs != nil {
			bundle["preferences"] = prefs
		}
	}
	for k, v := range in.Context {
		bundle[k] = v
	}

	inst := instructionFor(role, ph, pm)
	bundle["instruction"] = inst.Directive

	history, err := e.Messages.History(ctx, in.SessionID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	req := completion.Request{
		RoleOrAction: inst.Action,
		Input:        completion.Input{Message: in.Text},
		Context:      bundle,
		History:      toHistory(history),
	}

	res, err := e.Completions.Complete(ctx, req)
	if err != nil {
		// The user message stays persisted; session state is untouched.
		return nil, err
	}

	assistantMsg := &models.SessionMessage{
		SessionID: in.SessionID,
		Role:      "assistant",
		Content:   res.Reply,
		CreatedAt: e.now(),
	}
	if err := e.Messages.Append(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	if ph == phase.Planning && res.AskedConfirmation != nil {
		pm.Apply(phase.PlanningUpdate{AskedConfirmation: res.AskedConfirmation})
		if err := e.Sessions.UpdateMetadata(ctx, in.SessionID, pm.Doc()); err != nil {
			return nil, fmt.Errorf("merge confirmation signal: %w", err)
		}
	}

	return &TurnResult{Reply: res.Reply, ReadyToCreate: res.ReadyToCreate}, nil
}

// mergePlanningFacts folds explicit signals into the planning metadata
// before the instruction is chosen: a duration or proximity phrase parsed
// from the utterance, or a location preference the UI passes through the
// caller context (e.g. the user tapped a place on the map). Nothing is
// ever inferred from free text alone, so an uninformative message cannot
// skip a step of the question chain.
func mergePlanningFacts(pm *phase.PlanningMeta, text string, callerCtx map[string]interface{}) bool {
	changed := false

	parsed := intent.Parse(text)
	if pm.DurationMinutes == nil && parsed.DurationMinutes != nil {
		pm.DurationMinutes = parsed.DurationMinutes
		changed = true
	}

	if pm.LocationPreference == nil {
		if parsed.ProximityBias != intent.ProximityNone {
			pref := string(parsed.ProximityBias)
			pm.LocationPreference = &pref
			changed = true
		} else if pref, ok := callerCtx["location_preference"].(string); ok && strings.TrimSpace(pref) != "" {
			pm.LocationPreference = &pref
			changed = true
		}
	}

	return changed
}

func toHistory(msgs []models.SessionMessage) []completion.HistoryEntry {
	entries := make([]completion.HistoryEntry, 0, len(msgs))
	for _, m := range msgs {
		entries = append(entries, completion.HistoryEntry{Role: m.Role, Content: m.Content})
	}
	return entries
}
