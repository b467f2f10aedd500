// Package retrieval implements the retrieval-service core: named
// pipelines that fan a query out across embedding models, search the
// vector store per collection, deduplicate by chunk id, and optionally
// rerank and LLM-filter the candidates.
package retrieval

import (
	"fmt"
	"time"
)

// Hit is one pipeline-internal candidate. Scores never leave the
// pipeline; the external shape is Chunk.
type Hit struct {
	ChunkID int64
	Text    string
	Score   float64
}

// Chunk is the externally surfaced result shape.
type Chunk struct {
	ChunkID int64  `json:"chunk_id"`
	Text    string `json:"text"`
}

// StageDebug captures one stage's outcome for debug mode.
type StageDebug struct {
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration"`
	Hits     []Hit         `json:"hits"`
}

// Debug is the full intermediate trace of one pipeline run.
type Debug struct {
	Stages []StageDebug `json:"stages"`
}

// ErrPipelineNotFound distinguishes a caller error (unknown pipeline)
// from upstream failures; the HTTP layer maps it to a 4xx.
type ErrPipelineNotFound struct {
	Name string
}

func (e *ErrPipelineNotFound) Error() string {
	return fmt.Sprintf("pipeline %q not found", e.Name)
}

// Error wraps a stage failure with its pipeline and stage.
type Error struct {
	Pipeline string
	Stage    string
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("retrieval pipeline %q: %s: %s", e.Pipeline, e.Stage, e.Message)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func newError(pipeline, stage, message string, err error) *Error {
	return &Error{Pipeline: pipeline, Stage: stage, Message: message, Err: err}
}
