// Package clone implements the clone-job orchestration core: the phase
// state machine, the event stream, and the job and redeploy controllers.
package clone

import (
	"fmt"

	"github.com/mirrorlabs/siteclone/internal/models"
)

// DefaultMaxBuildAttempts bounds the deploy/fix loop. The first deploy is
// attempt one; each later attempt is preceded by a fixing pass.
const DefaultMaxBuildAttempts = 3

// transitions lists the allowed successor phases for each phase. Terminal
// phases have no successors.
var transitions = map[models.JobStatus][]models.JobStatus{
	models.JobStatusPending:    {models.JobStatusScraping, models.JobStatusError},
	models.JobStatusScraping:   {models.JobStatusGenerating, models.JobStatusError},
	models.JobStatusGenerating: {models.JobStatusDeploying, models.JobStatusError},
	models.JobStatusDeploying:  {models.JobStatusFixing, models.JobStatusDone, models.JobStatusError},
	models.JobStatusFixing:     {models.JobStatusDeploying, models.JobStatusError},
	models.JobStatusDone:       nil,
	models.JobStatusError:      nil,
}

// CanTransition reports whether a job may move from one phase to another.
func CanTransition(from, to models.JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Pipeline tracks one job run's position in the phase order and enforces
// the transition contract, including the bounded fixing loop.
type Pipeline struct {
	current          models.JobStatus
	fixAttempts      int
	maxBuildAttempts int
}

// NewPipeline creates a pipeline in the pending phase.
func NewPipeline(maxBuildAttempts int) *Pipeline {
	if maxBuildAttempts < 1 {
		maxBuildAttempts = DefaultMaxBuildAttempts
	}
	return &Pipeline{
		current:          models.JobStatusPending,
		maxBuildAttempts: maxBuildAttempts,
	}
}

// Current returns the pipeline's current phase.
func (p *Pipeline) Current() models.JobStatus {
	return p.current
}

// FixAttempts returns how many times the pipeline has entered fixing.
func (p *Pipeline) FixAttempts() int {
	return p.fixAttempts
}

// CanFix reports whether another fixing pass is allowed under the build
// attempt bound.
func (p *Pipeline) CanFix() bool {
	return p.fixAttempts+1 < p.maxBuildAttempts
}

// Advance moves the pipeline to the given phase. It rejects transitions
// outside the phase order, transitions out of a terminal phase, and fixing
// entries beyond the build attempt bound.
func (p *Pipeline) Advance(to models.JobStatus) error {
	if p.current.Terminal() {
		return fmt.Errorf("job already in terminal phase %q", p.current)
	}
	if !CanTransition(p.current, to) {
		return fmt.Errorf("invalid phase transition %q -> %q", p.current, to)
	}
	if to == models.JobStatusFixing {
		if !p.CanFix() {
			return fmt.Errorf("fix attempts exhausted after %d builds", p.maxBuildAttempts)
		}
		p.fixAttempts++
	}

	p.current = to
	return nil
}

// Fail moves the pipeline to the terminal error phase from any
// non-terminal phase.
func (p *Pipeline) Fail() error {
	return p.Advance(models.JobStatusError)
}
