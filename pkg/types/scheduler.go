package types

// SchedulerStatus is one snapshot of the backend scheduler.
type SchedulerStatus struct {
	Running   bool       `json:"running"`
	NextRun   *Timestamp `json:"next_run"`
	JobsCount int        `json:"jobs_count"`
}

// SchedulerAction is a control verb accepted by /admin/scheduler/{action}.
type SchedulerAction string

const (
	ActionStart  SchedulerAction = "start"
	ActionStop   SchedulerAction = "stop"
	ActionRunNow SchedulerAction = "run-now"
)

// Progress is the label shown while the action is pending.
func (a SchedulerAction) Progress() string {
	switch a {
	case ActionStart:
		return "starting"
	case ActionStop:
		return "stopping"
	case ActionRunNow:
		return "running"
	default:
		return "idle"
	}
}

func (a SchedulerAction) Valid() bool {
	return a == ActionStart || a == ActionStop || a == ActionRunNow
}
