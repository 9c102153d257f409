package contract

import "fmt"

// Stage is the contract-tracked phase of a poll.
type Stage uint8

const (
	NotStarted Stage = iota
	Commit
	Reveal
	Cancelled
	Ended
)

func (s Stage) String() string {
	switch s {
	case NotStarted:
		return "not started"
	case Commit:
		return "commit"
	case Reveal:
		return "reveal"
	case Cancelled:
		return "cancelled"
	case Ended:
		return "ended"
	default:
		return fmt.Sprintf("stage(%d)", uint8(s))
	}
}

// Finished reports whether the poll can no longer change stage.
func (s Stage) Finished() bool {
	return s == Cancelled || s == Ended
}
