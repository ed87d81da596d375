package domain

import "time"

type PipelineState string

const (
	StateStarted    PipelineState = "started"
	StateOCRDone    PipelineState = "ocr_done"
	StateClassified PipelineState = "classified"
	StateStored     PipelineState = "stored"
	StateSummarized PipelineState = "summarized"
	StateCompleted  PipelineState = "completed"
	StateFailed     PipelineState = "failed"
)

func (s PipelineState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

type Stage string

const (
	StageIntake    Stage = "intake"
	StageOCR       Stage = "ocr"
	StageClassify  Stage = "classification"
	StageStorage   Stage = "storage"
	StageSummarize Stage = "summarization"
)

// Observation is one capability call recorded by a stage.
type Observation struct {
	Stage      Stage
	Category   Category
	Confidence int
	Quality    int
	Latency    time.Duration
	Failed     bool
}

type MetricsSnapshot struct {
	ExternalCalls         int                  `json:"external_calls"`
	FailedCalls           int                  `json:"failed_calls"`
	OCRQuality            int                  `json:"ocr_quality"`
	CategoryCounts        map[Category]int     `json:"category_counts"`
	CategoryAvgConfidence map[Category]float64 `json:"category_avg_confidence"`
	AverageLatencyMS      float64              `json:"average_latency_ms"`
	// OverallAccuracy is only set when an expected category was supplied.
	OverallAccuracy *float64 `json:"overall_accuracy,omitempty"`
}
