package constants

const (
	EventTypeArrival      = "ARRIVAL"
	EventTypeDeparture    = "DEPARTURE"
	EventTypeCommentary   = "COMMENTARY"
	EventTypeStatusChange = "STATUS_CHANGE"
)

// SubjectKeyPrefix namespaces activity-log subjects so the same log can
// later carry non-task subjects without a schema change.
const SubjectKeyPrefix = "TASK_"
