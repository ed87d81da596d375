package domain

import (
	"io"
	"strings"
	"time"
)

// Document is one uploaded claim document. It is owned by the caller and is
// never mutated by the pipeline.
type Document struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

type Category string

const (
	CategoryMedicalRecords Category = "medical_records"
	CategoryPersonalInjury Category = "personal_injury"
	CategoryOthers         Category = "others"
)

// Categories lists the closed category set in display order.
func Categories() []Category {
	return []Category{CategoryMedicalRecords, CategoryPersonalInjury, CategoryOthers}
}

// ParseCategory maps a loosely formatted label onto the closed category set.
// ok is false when the label is not recognized.
func ParseCategory(label string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(label))
	normalized = strings.Trim(normalized, "*_`\"'.:")
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(normalized))

	switch normalized {
	case "medical_records", "medical_record", "medical":
		return CategoryMedicalRecords, true
	case "personal_injury", "injury":
		return CategoryPersonalInjury, true
	case "others", "other":
		return CategoryOthers, true
	default:
		return CategoryOthers, false
	}
}

type Classification struct {
	Category   Category `json:"category"`
	Confidence int      `json:"confidence"`
	Reasoning  string   `json:"reasoning,omitempty"`
	// Degraded marks a classification that was substituted or normalized
	// because the classifier output could not be mapped.
	Degraded bool `json:"degraded,omitempty"`
}

type StorageReceipt struct {
	Key      string `json:"key"`
	Location string `json:"location"`
}

// StoredRecord is the persisted form of a processed document.
type StoredRecord struct {
	DocumentID     string    `json:"document_id,omitempty" firestore:"document_id"`
	Filename       string    `json:"filename,omitempty" firestore:"filename"`
	Classification string    `json:"classification" firestore:"classification"`
	Confidence     int       `json:"confidence" firestore:"confidence"`
	Reasoning      string    `json:"reasoning,omitempty" firestore:"reasoning"`
	Chunks         []string  `json:"chunks" firestore:"chunks"`
	StoredAt       time.Time `json:"stored_at" firestore:"stored_at"`
}

// Submission is the inbound request to process one document.
type Submission struct {
	Filename string
	MimeType string
	Body     io.Reader
	// ExpectedCategory is optional ground truth used only for the accuracy metric.
	ExpectedCategory Category
}

type PipelineResult struct {
	DocumentID      string          `json:"document_id"`
	Filename        string          `json:"filename"`
	State           PipelineState   `json:"state"`
	ExtractedText   string          `json:"extracted_text"`
	QualityScore    int             `json:"quality_score"`
	Classification  Classification  `json:"classification"`
	Summary         string          `json:"summary"`
	SummaryDegraded bool            `json:"summary_degraded,omitempty"`
	StorageReceipt  StorageReceipt  `json:"storage_receipt"`
	Metrics         MetricsSnapshot `json:"metrics"`
}

// ProcessedEvent is published after a run completes.
type ProcessedEvent struct {
	DocumentID      string    `json:"document_id"`
	Filename        string    `json:"filename"`
	Category        Category  `json:"category"`
	Confidence      int       `json:"confidence"`
	StorageKey      string    `json:"storage_key"`
	QualityScore    int       `json:"quality_score"`
	SummaryDegraded bool      `json:"summary_degraded"`
	ProcessedAt     time.Time `json:"processed_at"`
}
