// Package record defines the records that flow through a refinement batch.
package record

import "fmt"

// #region input

// Input is one raw item as submitted. Only Text is required; missing
// ratings and timestamps are derived per batch.
type Input struct {
	Text      *string  `json:"text"`
	Rating    *float64 `json:"rating,omitempty"`
	Timestamp *string  `json:"timestamp,omitempty"`
}

// #endregion input

// #region record

// Record is a batch item after ingestion. Fields are only ever added as it
// moves through masking and refinement; it is immutable once persisted.
type Record struct {
	AssetID        string  `json:"asset_id"`
	Text           string  `json:"text"`
	Rating         float64 `json:"rating"`
	OrigRating     float64 `json:"orig_rating"`
	Timestamp      string  `json:"timestamp"`
	MaskedText     string  `json:"masked_text,omitempty"`
	SentimentLabel string  `json:"sentiment_label,omitempty"`
	Confidence     float64 `json:"confidence"`
	RefinedQuality float64 `json:"refined_quality"`
}

// AssetID returns the identifier for the record at position i (0-based):
// asset_001, asset_002, ...
func AssetID(i int) string {
	return fmt.Sprintf("asset_%03d", i+1)
}

// #endregion record

// #region log-entry

// LogEntry is the audit row written for every refined record.
type LogEntry struct {
	AssetID      string  `json:"asset_id"`
	OriginalText string  `json:"original_text"`
	MaskedText   string  `json:"masked_text"`
	Action       string  `json:"action"`
	Reward       float64 `json:"reward"`
}

// #endregion log-entry

// #region metadata

// Entity is a named entity found in a record's text.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Metadata is the auxiliary entity listing for one record.
type Metadata struct {
	AssetID  string   `json:"asset_id"`
	Text     string   `json:"text"`
	Entities []Entity `json:"entities"`
}

// #endregion metadata

// #region batch

// Batch is the payload handed to the durable store.
type Batch struct {
	RunID   string     `json:"run_id"`
	Records []Record   `json:"records"`
	Log     []LogEntry `json:"log"`
}

// #endregion batch
