package post

// AllowedTransition reports whether a status change is legal. Status only
// moves forward; terminal states accept no further transitions.
func AllowedTransition(from, to Status) bool {
	switch from {
	case StatusScheduled:
		return to == StatusPosting
	case StatusPosting:
		return to == StatusPosted || to == StatusFailed
	}
	return false
}
