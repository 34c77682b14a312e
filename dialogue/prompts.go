package dialogue

import (
	"verda/phase"
)

// Instruction is one turn's marching orders for the completion endpoint:
// the prompt-selection key plus a deterministic directive for what the
// assistant must do next.
type Instruction struct {
	Action    string
	Directive string
	// ExpectAskedConfirmation marks turns where the model is told to set
	// the askedConfirmation side-channel signal.
	ExpectAskedConfirmation bool
	// ExpectReadyToCreate marks turns where an affirmative user reply must
	// produce the readyToCreate signal.
	ExpectReadyToCreate bool
}

type promptKey struct {
	Role  phase.Role
	Phase phase.Phase
}

func action(k promptKey) string {
	return string(k.Role) + "." + string(k.Phase)
}

// prompts maps every (role, phase) pair to its instruction builder. The
// planning entry is the only one parameterized by collected facts.
var prompts = map[promptKey]func(k promptKey, pm phase.PlanningMeta) Instruction{
	{phase.RoleHealthCoach, phase.InitialChat}: func(k promptKey, _ phase.PlanningMeta) Instruction {
		return Instruction{Action: action(k), Directive: "Chat supportively about wellbeing and gently surface the option of a short outdoor excursion."}
	},
	{phase.RoleHealthCoach, phase.Followup}: func(k promptKey, _ phase.PlanningMeta) Instruction {
		return Instruction{Action: action(k), Directive: "Ask how the excursion went and how the user feels now; collect feedback."}
	},
	{phase.RoleExcursionCreator, phase.Planning}: planningInstruction,
	{phase.RoleExcursionCreator, phase.Creation}: func(k promptKey, _ phase.PlanningMeta) Instruction {
		return Instruction{Action: action(k), Directive: "Walk the user through the created excursion and handle modification requests."}
	},
	{phase.RoleExcursionCreator, phase.Guiding}: func(k promptKey, _ phase.PlanningMeta) Instruction {
		return Instruction{Action: action(k), Directive: "Guide the user step by step through the excursion in progress."}
	},

	// Off-diagonal pairs reachable only through an explicit caller role
	// override; they reuse the persona closest to the phase's purpose.
	{phase.RoleExcursionCreator, phase.InitialChat}: func(k promptKey, _ phase.PlanningMeta) Instruction {
		return Instruction{Action: action(k), Directive: "Introduce excursion planning and ask what kind of outing the user has in mind."}
	},
	{phase.RoleExcursionCreator, phase.Followup}: func(k promptKey, _ phase.PlanningMeta) Instruction {
		return Instruction{Action: action(k), Directive: "Review the finished excursion and offer to plan another."}
	},
	{phase.RoleHealthCoach, phase.Planning}: planningInstruction,
	{phase.RoleHealthCoach, phase.Creation}: func(k promptKey, _ phase.PlanningMeta) Instruction {
		return Instruction{Action: action(k), Directive: "Encourage the user as their excursion is prepared."}
	},
	{phase.RoleHealthCoach, phase.Guiding}: func(k promptKey, _ phase.PlanningMeta) Instruction {
		return Instruction{Action: action(k), Directive: "Support the user through the excursion in progress."}
	},
}

// planningInstruction walks the strict priority chain: duration, then
// location preference, then confirmation, then ready-to-create. Steps are
// never skipped even when a later fact is already present.
func planningInstruction(k promptKey, pm phase.PlanningMeta) Instruction {
	base := action(k)
	switch {
	case pm.DurationMinutes == nil:
		return Instruction{
			Action:    base + ".duration",
			Directive: "Ask how much time the user has for the excursion. Do not ask anything else yet.",
		}
	case pm.LocationPreference == nil:
		return Instruction{
			Action:    base + ".location",
			Directive: "Ask whether the user has a specific place in mind or wants suggestions nearby. Do not re-ask the duration.",
		}
	case !pm.AskedConfirmation:
		return Instruction{
			Action:                  base + ".confirm",
			Directive:               "Summarize the planned excursion and ask the user to confirm. Set askedConfirmation to true in your structured reply.",
			ExpectAskedConfirmation: true,
		}
	default:
		return Instruction{
			Action:              base + ".ready",
			Directive:           "If the user confirms, set readyToCreate to true in your structured reply. Otherwise keep refining the plan.",
			ExpectReadyToCreate: true,
		}
	}
}

func instructionFor(role phase.Role, ph phase.Phase, pm phase.PlanningMeta) Instruction {
	key := promptKey{Role: role, Phase: ph}
	if build, ok := prompts[key]; ok {
		return build(key, pm)
	}
	// Unknown pair: fall back to the phase's derived role.
	key.Role = phase.RoleFor(ph)
	return prompts[key](key, pm)
}
