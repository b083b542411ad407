package workflows_test

import (
	"errors"
	"testing"

	"github.com/JaimeStill/sift/internal/workflows"
)

func TestNext(t *testing.T) {
	tests := []struct {
		name    string
		from    workflows.Status
		trigger workflows.Trigger
		args    []any
		want    workflows.Status
	}{
		{"analyze draft", workflows.StatusDraft, workflows.TriggerAnalyze, nil, workflows.StatusAnalyzing},
		{"analysis with samples", workflows.StatusAnalyzing, workflows.TriggerAnalysisCompleted, []any{true}, workflows.StatusConfiguring},
		{"analysis without samples", workflows.StatusAnalyzing, workflows.TriggerAnalysisCompleted, []any{false}, workflows.StatusExtracting},
		{"analysis default args", workflows.StatusAnalyzing, workflows.TriggerAnalysisCompleted, nil, workflows.StatusExtracting},
		{"analysis fails", workflows.StatusAnalyzing, workflows.TriggerFail, nil, workflows.StatusError},
		{"samples extracted", workflows.StatusExtracting, workflows.TriggerSamplesExtracted, nil, workflows.StatusConfiguring},
		{"extraction fails", workflows.StatusExtracting, workflows.TriggerFail, nil, workflows.StatusError},
		{"publish", workflows.StatusConfiguring, workflows.TriggerPublish, nil, workflows.StatusActive},
		{"re-extract configuring", workflows.StatusConfiguring, workflows.TriggerReExtract, nil, workflows.StatusExtracting},
		{"re-extract active", workflows.StatusActive, workflows.TriggerReExtract, nil, workflows.StatusExtracting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := workflows.Next(tt.from, tt.trigger, tt.args...)
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNextRejects(t *testing.T) {
	tests := []struct {
		from    workflows.Status
		trigger workflows.Trigger
	}{
		{workflows.StatusDraft, workflows.TriggerPublish},
		{workflows.StatusAnalyzing, workflows.TriggerAnalyze},
		{workflows.StatusExtracting, workflows.TriggerPublish},
		{workflows.StatusConfiguring, workflows.TriggerAnalyze},
		{workflows.StatusActive, workflows.TriggerPublish},
		{workflows.StatusActive, workflows.TriggerFail},
		{workflows.StatusError, workflows.TriggerAnalyze},
		{workflows.StatusError, workflows.TriggerReExtract},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"/"+string(tt.trigger), func(t *testing.T) {
			got, err := workflows.Next(tt.from, tt.trigger)
			if !errors.Is(err, workflows.ErrInvalidTransition) {
				t.Fatalf("err = %v, want ErrInvalidTransition", err)
			}
			if got != tt.from {
				t.Errorf("state = %s, want unchanged %s", got, tt.from)
			}
		})
	}
}
