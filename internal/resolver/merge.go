package resolver

import (
	"fmt"
	"sort"

	"dario.cat/mergo"

	"github.com/pkritskov/shellsync/models"
)

// MergeMaintenanceRecords combines two divergent maintenance records into a
// single best-effort result. This is not a three-way merge: there is no
// verified common ancestor, so concurrent edits to the same scalar field
// silently prefer one side instead of raising a sub-conflict.
//
// The rules, in order:
//   - identifiers must match or the merge fails
//   - progress takes the more advanced ordinal value, never regressing
//   - notes and attachments are merged as a set union and sorted by
//     timestamp so the output is deterministic and idempotent
//   - optional scalars prefer the non-null side; when both sides carry a
//     scheduled date, the later one wins
func MergeMaintenanceRecords(local, server models.MaintenanceRecord) (models.MaintenanceRecord, error) {
	if local.ID != server.ID {
		return models.MaintenanceRecord{}, fmt.Errorf("cannot merge records with different ids %q and %q", local.ID, server.ID)
	}

	merged := local
	if err := mergo.Merge(&merged, server); err != nil {
		return models.MaintenanceRecord{}, fmt.Errorf("merge optional fields: %w", err)
	}

	if server.Progress.Rank() > local.Progress.Rank() {
		merged.Progress = server.Progress
	} else {
		merged.Progress = local.Progress
	}

	if local.ScheduledFor != nil && server.ScheduledFor != nil && server.ScheduledFor.After(*local.ScheduledFor) {
		scheduled := *server.ScheduledFor
		merged.ScheduledFor = &scheduled
	}

	merged.Notes = unionNotes(local.Notes, server.Notes)
	merged.Attachments = unionAttachments(local.Attachments, server.Attachments)

	return merged, nil
}

func unionNotes(local, server []models.MaintenanceNote) []models.MaintenanceNote {
	seen := make(map[models.MaintenanceNote]struct{}, len(local)+len(server))
	var union []models.MaintenanceNote
	for _, note := range append(append([]models.MaintenanceNote{}, local...), server...) {
		key := note
		key.Timestamp = note.Timestamp.UTC()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		union = append(union, note)
	}

	sort.SliceStable(union, func(i, j int) bool {
		if !union[i].Timestamp.Equal(union[j].Timestamp) {
			return union[i].Timestamp.Before(union[j].Timestamp)
		}
		if union[i].Author != union[j].Author {
			return union[i].Author < union[j].Author
		}
		return union[i].Text < union[j].Text
	})

	return union
}

func unionAttachments(local, server []models.MaintenanceAttachment) []models.MaintenanceAttachment {
	seen := make(map[models.MaintenanceAttachment]struct{}, len(local)+len(server))
	var union []models.MaintenanceAttachment
	for _, att := range append(append([]models.MaintenanceAttachment{}, local...), server...) {
		key := att
		key.AddedAt = att.AddedAt.UTC()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		union = append(union, att)
	}

	sort.SliceStable(union, func(i, j int) bool {
		if !union[i].AddedAt.Equal(union[j].AddedAt) {
			return union[i].AddedAt.Before(union[j].AddedAt)
		}
		return union[i].Name < union[j].Name
	})

	return union
}
