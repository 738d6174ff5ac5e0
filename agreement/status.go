package agreement

// CanTransition reports whether an administrative update may move an
// agreement from one status to another. Moves only go forward, cancelled is
// reachable from draft and pending_signature, and signed and cancelled are
// terminal. Setting the current status again is always allowed.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	switch from {
	case StatusDraft:
		return to == StatusPendingSignature || to == StatusSigned || to == StatusCancelled
	case StatusPendingSignature:
		return to == StatusSigned || to == StatusCancelled
	default:
		return false
	}
}
