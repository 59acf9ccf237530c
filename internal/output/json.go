package output

import (
	"encoding/json"

	"screc/internal/dialect"
	"screc/internal/exec"
	"screc/internal/plan"
)

type jsonFormatter struct {
	renderer dialect.Renderer
}

type planSummary struct {
	Steps       int  `json:"steps"`
	Destructive bool `json:"destructive"`
}

type planStepPayload struct {
	plan.Step
	SQL []string `json:"sql,omitempty"`
}

type planPayload struct {
	Format    string            `json:"format"`
	Summary   planSummary       `json:"summary"`
	Steps     []planStepPayload `json:"steps,omitempty"`
	Preflight *exec.Preflight   `json:"preflight,omitempty"`
}

type resultSummary struct {
	Applied int `json:"applied"`
	Skipped int `json:"skipped"`
}

type resultPayload struct {
	Format  string            `json:"format"`
	Status  exec.Status       `json:"status"`
	Summary resultSummary     `json:"summary"`
	Backup  string            `json:"backup,omitempty"`
	Steps   []exec.StepResult `json:"steps,omitempty"`
}

type Payload interface {
	planPayload | resultPayload
}

func (f jsonFormatter) FormatPlan(p *plan.Plan, preflight *exec.Preflight) (string, error) {
	payload := planPayload{Format: string(FormatJSON), Preflight: preflight}
	if p != nil {
		payload.Summary = planSummary{
			Steps:       len(p.Steps),
			Destructive: p.HasDestructive(),
		}
		for _, s := range p.Steps {
			payload.Steps = append(payload.Steps, planStepPayload{
				Step: s,
				SQL:  s.Render(f.renderer),
			})
		}
	}
	return marshalJSON(payload)
}

func (f jsonFormatter) FormatResult(res *exec.Result) (string, error) {
	payload := resultPayload{Format: string(FormatJSON)}
	if res != nil {
		payload.Status = res.Status
		payload.Steps = res.Steps
		payload.Summary = resultSummary{Applied: res.Applied(), Skipped: res.Skipped()}
		if res.Backup != nil {
			payload.Backup = res.Backup.Path
		}
	}
	return marshalJSON(payload)
}

func marshalJSON[T Payload](payload T) (string, error) {
	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
