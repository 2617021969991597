package model

// Transition is a single allowed status change.
type Transition struct {
	From SubscriptionStatus
	To   SubscriptionStatus
}

// canceled, rejected and expired are terminal: a later attempt creates a new record.
var validTransitions = map[Transition]bool{
	{SubscriptionStatusPending, SubscriptionStatusActive}:   true,
	{SubscriptionStatusPending, SubscriptionStatusRejected}: true,
	{SubscriptionStatusActive, SubscriptionStatusCanceled}:  true,
	{SubscriptionStatusActive, SubscriptionStatusExpired}:   true,
}

func CanTransition(from, to SubscriptionStatus) bool {
	return validTransitions[Transition{From: from, To: to}]
}

// IsTerminal reports whether no transition leaves the status.
func (s SubscriptionStatus) IsTerminal() bool {
	switch s {
	case SubscriptionStatusCanceled, SubscriptionStatusRejected, SubscriptionStatusExpired:
		return true
	}
	return false
}
