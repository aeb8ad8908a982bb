package gate

// State is a step of the per-request state machine. Steps are taken strictly
// in order; the first failing check moves the request to Rejected.
type State int

const (
	Received State = iota
	FreshnessChecked
	IntegrityChecked
	NonceChecked
	RateChecked
	LedgerApplied
	Completed
	Rejected
)

var stateNames = [...]string{
	Received:         "Received",
	FreshnessChecked: "FreshnessChecked",
	IntegrityChecked: "IntegrityChecked",
	NonceChecked:     "NonceChecked",
	RateChecked:      "RateChecked",
	LedgerApplied:    "LedgerApplied",
	Completed:        "Completed",
	Rejected:         "Rejected",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "Unknown"
	}

	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Completed || s == Rejected
}
