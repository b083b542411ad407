package workflows

import (
	"context"
	"fmt"

	"github.com/qmuntal/stateless"
)

// Trigger is an event that moves a workflow between states.
type Trigger string

const (
	TriggerAnalyze           Trigger = "analyze"
	TriggerAnalysisCompleted Trigger = "analysis_completed"
	TriggerSamplesExtracted  Trigger = "samples_extracted"
	TriggerFail              Trigger = "fail"
	TriggerPublish           Trigger = "publish"
	TriggerReExtract         Trigger = "re_extract"
)

// analysis_completed carries one bool argument: whether sample data came back.
func withSamples(_ context.Context, args ...any) bool {
	has, _ := args[0].(bool)
	return has
}

func withoutSamples(ctx context.Context, args ...any) bool {
	return !withSamples(ctx, args...)
}

func machine(current Status) *stateless.StateMachine {
	sm := stateless.NewStateMachine(current)

	sm.Configure(StatusDraft).
		Permit(TriggerAnalyze, StatusAnalyzing)

	sm.Configure(StatusAnalyzing).
		Permit(TriggerAnalysisCompleted, StatusConfiguring, withSamples).
		Permit(TriggerAnalysisCompleted, StatusExtracting, withoutSamples).
		Permit(TriggerFail, StatusError)

	sm.Configure(StatusExtracting).
		Permit(TriggerSamplesExtracted, StatusConfiguring).
		Permit(TriggerFail, StatusError)

	sm.Configure(StatusConfiguring).
		Permit(TriggerPublish, StatusActive).
		Permit(TriggerReExtract, StatusExtracting)

	sm.Configure(StatusActive).
		Permit(TriggerReExtract, StatusExtracting)

	sm.Configure(StatusError)

	return sm
}

// Next returns the state reached by firing trigger in current, or
// ErrInvalidTransition when the graph has no such edge.
func Next(current Status, trigger Trigger, args ...any) (Status, error) {
	if trigger == TriggerAnalysisCompleted && len(args) == 0 {
		args = []any{false}
	}

	sm := machine(current)
	if err := sm.Fire(trigger, args...); err != nil {
		return current, fmt.Errorf("%w: %s not permitted from %s", ErrInvalidTransition, trigger, current)
	}
	return sm.MustState().(Status), nil
}
