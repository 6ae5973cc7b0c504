package domain

// ImportResult partitions every examined package entry into created, updated or skipped:
// TotalProcessed == Created + Updated + Skipped. Errors describe the skipped entries that
// were malformed, ordered by source line.
type ImportResult struct {
	TotalProcessed int           `json:"totalProcessed"`
	Created        int           `json:"created"`
	Updated        int           `json:"updated"`
	Skipped        int           `json:"skipped"`
	Errors         []ImportError `json:"errors"`
}

type ImportError struct {
	Line    int            `json:"line"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}
