package models

import "time"

// ImportState classifies the outcome of one processed file.
type ImportState string

const (
	ImportStatePending ImportState = "pending"
	ImportStateDone    ImportState = "done"
	ImportStateError   ImportState = "error"
)

// ImportLog is one append-only record per (provider, file) pair processed.
// Records are never updated after being finalized.
type ImportLog struct {
	ID         int         `db:"id" json:"id"`
	RunID      string      `db:"run_id" json:"runId"`
	ProviderID int         `db:"provider_id" json:"providerId"`
	Protocol   Protocol    `db:"protocol" json:"protocol"`
	FileName   string      `db:"file_name" json:"fileName"`
	State      ImportState `db:"state" json:"state"`

	StartedAt   time.Time  `db:"started_at" json:"startedAt"`
	EndedAt     *time.Time `db:"ended_at" json:"endedAt,omitempty"`
	DurationSec float64    `db:"duration_sec" json:"durationSec"`

	TotalLines   int `db:"total_lines" json:"totalLines"`
	SuccessCount int `db:"success_count" json:"successCount"`
	ErrorCount   int `db:"error_count" json:"errorCount"`

	// Rules-applied counters surfaced alongside the HTML detail block.
	RefClean      string `db:"ref_clean" json:"refClean"`
	DedupCount    int    `db:"dedup_count" json:"dedupCount"`
	ConflictCount int    `db:"conflict_count" json:"conflictCount"`
	NotFoundCount int    `db:"not_found_count" json:"notFoundCount"`

	Message    string `db:"message" json:"message"`
	DetailHTML string `db:"detail_html" json:"detailHtml"`

	RemoteModTime *time.Time `db:"remote_mod_time" json:"remoteModTime,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`

	// Joined fields
	ProviderName string `db:"provider_name" json:"providerName,omitempty"`
}
