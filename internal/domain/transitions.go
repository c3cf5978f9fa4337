package domain

// allowedTransitions declares the lifecycle adjacency graph. "closed" is
// terminal but revivable through "reopened".
var allowedTransitions = map[Status][]Status{
	StatusNew:             {StatusOpen, StatusEscalated},
	StatusOpen:            {StatusInProgress, StatusWaitingCustomer, StatusEscalated, StatusResolved},
	StatusInProgress:      {StatusWaitingCustomer, StatusResolved, StatusEscalated},
	StatusWaitingCustomer: {StatusInProgress, StatusResolved, StatusClosed},
	StatusEscalated:       {StatusInProgress, StatusResolved},
	StatusResolved:        {StatusClosed, StatusReopened},
	StatusClosed:          {StatusReopened},
	StatusReopened:        {StatusInProgress, StatusEscalated, StatusResolved},
}

// IsValidTransition reports whether moving from current to next is allowed.
func IsValidTransition(current, next Status) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// TransitionsFrom returns the allowed target states for a given state.
func TransitionsFrom(current Status) []Status {
	out := make([]Status, len(allowedTransitions[current]))
	copy(out, allowedTransitions[current])
	return out
}
