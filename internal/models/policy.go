package models

// HostsPolicy names one of the two hosts-file variants.
type HostsPolicy string

const (
	PolicyBlocked HostsPolicy = "blocked"
	PolicyAllowed HostsPolicy = "allowed"
)

// PolicyFor selects the hosts-file variant installed for an intent.
func PolicyFor(intent Intent) (HostsPolicy, bool) {
	switch intent {
	case IntentBlock:
		return PolicyBlocked, true
	case IntentAllow:
		return PolicyAllowed, true
	default:
		return "", false
	}
}

// ExecutionResult is the outcome of one remote command.
type ExecutionResult struct {
	ExitCode int
	Output   string
}
