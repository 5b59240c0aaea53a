package models

// History statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// HistoryRecord is one entry in the rolling scrape/upload log.
type HistoryRecord struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
	RemoteID  string `json:"remote_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}
