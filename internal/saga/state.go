package saga

// State is the progress of one saga instance. Within an instance, transitions
// run strictly forward through the happy path; any failure after RecordCreated
// branches to Compensating and terminates in Compensated or Inconsistent.
type State int

const (
	StateInitiated State = iota
	StateRecordCreated
	StateDebitApplied
	StateCreditApplied
	StateEventEmitted
	StateCompleted
	StateCompensating
	StateCompensated
	StateInconsistent
)

func (s State) String() string {
	switch s {
	case StateInitiated:
		return "initiated"
	case StateRecordCreated:
		return "record_created"
	case StateDebitApplied:
		return "debit_applied"
	case StateCreditApplied:
		return "credit_applied"
	case StateEventEmitted:
		return "event_emitted"
	case StateCompleted:
		return "completed"
	case StateCompensating:
		return "compensating"
	case StateCompensated:
		return "compensated"
	case StateInconsistent:
		return "inconsistent"
	default:
		return "unknown"
	}
}
