package presenter

// Status is the state shown on the badge, the result pane and history rows.
type Status string

const (
	StatusNeutral    Status = "neutral"
	StatusVerified   Status = "good"
	StatusFailed     Status = "bad"
	StatusProcessing Status = "warn"
)

// BadgeLabel is the text of the status badge.
func (s Status) BadgeLabel() string {
	switch s {
	case StatusVerified:
		return "Verified"
	case StatusFailed:
		return "Not Verified"
	case StatusProcessing:
		return "Processing"
	default:
		return "Waiting"
	}
}

// ResultLabel is the text of the status chip in the result pane.
func (s Status) ResultLabel() string {
	switch s {
	case StatusVerified:
		return "Verified"
	case StatusProcessing:
		return "Processing"
	default:
		return "Not Verified"
	}
}

// HistoryLabel is the text of the status chip on a history row.
func (s Status) HistoryLabel() string {
	switch s {
	case StatusVerified:
		return "Verified"
	case StatusProcessing:
		return "Processing"
	default:
		return "Failed"
	}
}
