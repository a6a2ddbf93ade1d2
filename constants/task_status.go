package constants

const (
	TaskStatusPreparing  = "PREPARING"
	TaskStatusReady      = "READY"
	TaskStatusInProgress = "IN_PROGRESS"
	TaskStatusOnHold     = "ON_HOLD"
	TaskStatusCompleted  = "COMPLETED"
)

// transitions holds the legal status graph. COMPLETED is terminal;
// corrections after completion are audited edits, not transitions.
var transitions = map[string][]string{
	TaskStatusPreparing:  {TaskStatusReady},
	TaskStatusReady:      {TaskStatusInProgress},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusOnHold},
	TaskStatusOnHold:     {TaskStatusInProgress},
	TaskStatusCompleted:  {},
}

func CanTransition(from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}
