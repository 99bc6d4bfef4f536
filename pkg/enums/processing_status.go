package enums

// ProcessingStatus tracks where an uploaded video sits in the transcoding pipeline.
type ProcessingStatus string

const (
	ProcessingStatusPending    ProcessingStatus = "pending"
	ProcessingStatusProcessing ProcessingStatus = "processing"
	ProcessingStatusCompleted  ProcessingStatus = "completed"
	ProcessingStatusFailed     ProcessingStatus = "failed"
)

// String returns the literal string for the status.
func (p ProcessingStatus) String() string {
	return string(p)
}

// IsTerminal reports whether the pipeline will make no further writes for this status.
func (p ProcessingStatus) IsTerminal() bool {
	return p == ProcessingStatusCompleted || p == ProcessingStatusFailed
}
