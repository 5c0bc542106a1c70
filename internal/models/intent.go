package models

import "fmt"

// Intent is the decided action for an inbound command.
type Intent int

const (
	IntentUnrecognized Intent = iota
	IntentBlock
	IntentAllow
)

func (i Intent) String() string {
	switch i {
	case IntentBlock:
		return "block"
	case IntentAllow:
		return "allow"
	default:
		return "unrecognized"
	}
}

// Progressive is the "-ing" form used in acknowledgements ("blocking").
func (i Intent) Progressive() string {
	switch i {
	case IntentBlock:
		return "blocking"
	case IntentAllow:
		return "allowing"
	default:
		return ""
	}
}

// ParseAction maps a CLI or config action name onto an Intent.
func ParseAction(action string) (Intent, error) {
	switch action {
	case "block":
		return IntentBlock, nil
	case "allow":
		return IntentAllow, nil
	default:
		return IntentUnrecognized, fmt.Errorf("unknown action %q (expected block or allow)", action)
	}
}

func (i Intent) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}
