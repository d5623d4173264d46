package models

import "time"

// MaintenanceProgress is the ordinal progress scale of a maintenance record.
// Merging never regresses progress: the more advanced value always wins.
type MaintenanceProgress string

const (
	ProgressReported   MaintenanceProgress = "reported"
	ProgressScheduled  MaintenanceProgress = "scheduled"
	ProgressInProgress MaintenanceProgress = "inProgress"
	ProgressCompleted  MaintenanceProgress = "completed"
)

var progressRank = map[MaintenanceProgress]int{
	ProgressReported:   0,
	ProgressScheduled:  1,
	ProgressInProgress: 2,
	ProgressCompleted:  3,
}

// Rank returns the ordinal position of the progress value. Unknown values
// rank below every known value.
func (p MaintenanceProgress) Rank() int {
	if r, ok := progressRank[p]; ok {
		return r
	}
	return -1
}

// MaintenanceNote is one annotation on a maintenance record. Notes are
// identified by the (Timestamp, Author, Text) composite during merging.
type MaintenanceNote struct {
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
}

// MaintenanceAttachment is a reference to an external artifact attached to a
// maintenance record.
type MaintenanceAttachment struct {
	Name     string    `json:"name"`
	URI      string    `json:"uri"`
	AddedAt  time.Time `json:"added_at"`
	MimeType string    `json:"mime_type,omitempty"`
}

// MaintenanceRecord is the one entity kind with mutable collection fields
// that supports a best-effort field merge during conflict resolution.
type MaintenanceRecord struct {
	ID           string                  `json:"id"`
	Progress     MaintenanceProgress     `json:"progress"`
	Notes        []MaintenanceNote       `json:"notes,omitempty"`
	Attachments  []MaintenanceAttachment `json:"attachments,omitempty"`
	ScheduledFor *time.Time              `json:"scheduled_for,omitempty"`
	Technician   *string                 `json:"technician,omitempty"`
}
