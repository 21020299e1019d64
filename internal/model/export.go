package model

import "time"

// VerdictExport is the top-level JSON structure for verdict export.
type VerdictExport struct {
	ExportedAt time.Time      `json:"exported_at"`
	Source     string         `json:"source"`
	Counts     StatusCounts   `json:"counts"`
	Questions  []VerdictEntry `json:"questions"`
}

// VerdictEntry holds one question and its persisted verdict.
type VerdictEntry struct {
	ID        string       `json:"id"`
	Type      QuestionType `json:"type"`
	Statement string       `json:"statement"`
	Options   []string     `json:"options,omitempty"`
	Status    Status       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}

// StatusCounts tallies questions per display status.
type StatusCounts struct {
	NotChecked int `json:"not_checked"`
	Checking   int `json:"checking"`
	Correct    int `json:"correct"`
	Wrong      int `json:"wrong"`
	Error      int `json:"error"`
}

// Add counts one question with status s.
func (c *StatusCounts) Add(s Status) {
	switch s {
	case StatusNotChecked:
		c.NotChecked++
	case StatusChecking:
		c.Checking++
	case StatusCorrect:
		c.Correct++
	case StatusWrong:
		c.Wrong++
	case StatusError:
		c.Error++
	}
}
