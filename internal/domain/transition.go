package domain

import "sort"

// Action is an admin command that moves an experiment between statuses.
type Action string

const (
	ActionStart    Action = "start"
	ActionPause    Action = "pause"
	ActionResume   Action = "resume"
	ActionComplete Action = "complete"
)

// Transition is one legal edge of the experiment state machine.
type Transition struct {
	Action Action `json:"action"`
	From   Status `json:"from"`
	To     Status `json:"to"`
}

// transitions is the single source of truth for both what the controller
// accepts and which actions a UI may offer.
var transitions = []Transition{
	{Action: ActionStart, From: StatusDraft, To: StatusRunning},
	{Action: ActionPause, From: StatusRunning, To: StatusPaused},
	{Action: ActionComplete, From: StatusRunning, To: StatusCompleted},
	{Action: ActionResume, From: StatusPaused, To: StatusRunning},
	{Action: ActionComplete, From: StatusPaused, To: StatusCompleted},
}

// Transitions returns a copy of the transition table.
func Transitions() []Transition {
	out := make([]Transition, len(transitions))
	copy(out, transitions)
	return out
}

// ParseAction converts a raw action string into an Action.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionStart, ActionPause, ActionResume, ActionComplete:
		return Action(s), nil
	}
	return "", Validationf("unknown action %q", s)
}

// NextStatus resolves the target status for applying action from status from.
func NextStatus(from Status, action Action) (Status, error) {
	for _, t := range transitions {
		if t.From == from && t.Action == action {
			return t.To, nil
		}
	}
	return "", InvalidTransitionf("cannot %s an experiment that is %s", action, from)
}

// TransitionTo finds the edge leading from one status to another.
func TransitionTo(from, to Status) (Transition, error) {
	for _, t := range transitions {
		if t.From == from && t.To == to {
			return t, nil
		}
	}
	return Transition{}, InvalidTransitionf("cannot move experiment from %s to %s", from, to)
}

// AvailableActions lists the actions legal from status, sorted by name.
func AvailableActions(status Status) []Action {
	var actions []Action
	for _, t := range transitions {
		if t.From == status {
			actions = append(actions, t.Action)
		}
	}
	sort.Slice(actions, func(i, j int) bool { return actions[i] < actions[j] })
	return actions
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status Status) bool {
	return len(AvailableActions(status)) == 0
}
