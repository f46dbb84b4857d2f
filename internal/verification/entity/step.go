package entity

// Step is a state of the verification flow.
type Step int

const (
	StepAwaitingSubject Step = iota
	StepAwaitingCode
	StepVerified
)

func (s Step) String() string {
	switch s {
	case StepAwaitingSubject:
		return "AWAITING_SUBJECT"
	case StepAwaitingCode:
		return "AWAITING_CODE"
	case StepVerified:
		return "VERIFIED"
	default:
		return "UNKNOWN"
	}
}
