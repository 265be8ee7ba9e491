// Package chain composes prompt formatting, model invocation and output
// parsing into the two single-turn chains the call service runs.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Rrens/voice-agent/internal/domain"
	"github.com/Rrens/voice-agent/internal/llm"
	"github.com/Rrens/voice-agent/internal/rag"
)

var (
	// ErrEmptyReply is returned when the model produced no usable text
	ErrEmptyReply = errors.New("model returned an empty reply")

	// ErrNoContext is returned when retrieval found nothing to ground an answer on
	ErrNoContext = errors.New("no document context retrieved")
)

// State is the blackboard shared by the stages of one run
type State struct {
	History []domain.Turn
	Query   string
	Index   rag.Index

	Sources  []domain.Chunk
	Request  llm.Request
	Response *llm.Response
	Answer   string

	Trace []StageTrace
}

// StageTrace records one executed stage
type StageTrace struct {
	Stage      string `json:"stage"`
	DurationMs int64  `json:"duration_ms"`
}

// Stage is a single step of a chain
type Stage interface {
	Name() string
	Run(ctx context.Context, state *State) error
}

// Pipeline runs stages in order and stops at the first error
type Pipeline struct {
	name   string
	stages []Stage
}

// NewPipeline creates a named pipeline
func NewPipeline(name string, stages ...Stage) *Pipeline {
	return &Pipeline{name: name, stages: stages}
}

// Execute runs every stage against state
func (p *Pipeline) Execute(ctx context.Context, state *State) error {
	start := time.Now()

	for _, stage := range p.stages {
		stageStart := time.Now()
		if err := stage.Run(ctx, state); err != nil {
			return fmt.Errorf("%s: stage %s failed: %w", p.name, stage.Name(), err)
		}
		state.Trace = append(state.Trace, StageTrace{
			Stage:      stage.Name(),
			DurationMs: time.Since(stageStart).Milliseconds(),
		})
	}

	log.Debug().
		Str("chain", p.name).
		Interface("trace", state.Trace).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("Chain completed")

	return nil
}
