package turn

import (
	"fmt"

	chatErrors "github.com/harunnryd/stackchat/internal/errors"
)

// Normalize flattens a raw turn into reasoning steps and correlated tool usage.
// It never panics. A malformed step stops extraction, marks the result as
// failed and keeps everything collected up to that point.
func Normalize(raw *RawTurn) (nt NormalizedTurn) {
	nt = NormalizedTurn{
		Success:        true,
		FinalResponse:  Placeholder,
		ReasoningSteps: []ReasoningStep{},
		ToolUsage:      []ToolUsage{},
		TurnID:         UnknownID,
		Status:         "unknown",
	}
	if raw == nil {
		return nt
	}

	defer func() {
		if r := recover(); r != nil {
			nt.fail(chatErrors.Extraction(fmt.Sprintf("unexpected turn shape: %v", r)))
		}
	}()

	nt.Raw = raw.String()
	nt.TurnID = resolveTurnID(raw)
	if !raw.Valid() {
		nt.fail(errNotJSON)
		return nt
	}
	if status, ok := Probe(raw.doc, "status"); ok {
		nt.Status = status
	}
	if createdAt, ok := Probe(raw.doc, "created_at", "started_at"); ok {
		nt.CreatedAt = createdAt
	}
	if completedAt, ok := Probe(raw.doc, "completed_at"); ok {
		nt.CompletedAt = completedAt
	}

	list, err := raw.stepList()
	if err != nil {
		nt.fail(err)
		return nt
	}

	n := normalizer{turn: &nt, byCallID: make(map[string]int)}
	for i, elem := range list {
		step, err := decodeStep(i, elem)
		if err != nil {
			nt.fail(err)
			return nt
		}
		n.apply(step)
	}

	return nt
}

func resolveTurnID(raw *RawTurn) string {
	if id, ok := Probe(raw.doc, TurnIDFields...); ok {
		return id
	}
	if id, ok := ProbeText(raw.String()); ok {
		return id
	}
	return UnknownID
}

type normalizer struct {
	turn     *NormalizedTurn
	byCallID map[string]int
}

func (n *normalizer) apply(step Step) {
	switch s := step.(type) {
	case InferenceStep:
		n.inference(s)
	case ToolExecutionStep:
		n.toolExecution(s)
	default:
		// unknown step types carry nothing to render
	}
}

func (n *normalizer) inference(s InferenceStep) {
	if len(s.ToolCalls) > 0 {
		n.turn.ReasoningSteps = append(n.turn.ReasoningSteps, ReasoningStep{
			Kind:          KindInference,
			Content:       "Assistant decided to use tools. Stop reason: " + s.StopReason,
			StepID:        s.ID,
			ToolCallCount: len(s.ToolCalls),
		})
		for _, call := range s.ToolCalls {
			n.track(ToolUsage{
				ToolName:  call.ToolName,
				Arguments: call.Arguments,
				CallID:    call.CallID,
				StepID:    s.ID,
				Status:    StatusRequested,
			})
		}
		return
	}

	if s.Content == "" {
		return
	}

	n.turn.FinalResponse = s.Content
	n.turn.ReasoningSteps = append(n.turn.ReasoningSteps, ReasoningStep{
		Kind:    KindFinalResponse,
		Content: "Final response generated. Stop reason: " + s.StopReason,
		StepID:  s.ID,
	})
}

func (n *normalizer) toolExecution(s ToolExecutionStep) {
	for _, resp := range s.ToolResponses {
		if idx, ok := n.byCallID[resp.CallID]; ok {
			usage := &n.turn.ToolUsage[idx]
			usage.Output = resp.Content
			usage.Status = StatusCompleted
			usage.StepID = s.ID
			continue
		}

		n.track(ToolUsage{
			ToolName: resp.ToolName,
			CallID:   resp.CallID,
			StepID:   s.ID,
			Status:   StatusCompleted,
			Output:   resp.Content,
		})
	}
}

// track appends a usage entry; the first entry seen for a call id owns it.
func (n *normalizer) track(usage ToolUsage) {
	if _, exists := n.byCallID[usage.CallID]; !exists {
		n.byCallID[usage.CallID] = len(n.turn.ToolUsage)
	}
	n.turn.ToolUsage = append(n.turn.ToolUsage, usage)
}

func (nt *NormalizedTurn) fail(err error) {
	nt.Success = false
	nt.Error = err.Error()
}
