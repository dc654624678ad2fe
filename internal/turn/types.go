package turn

// Placeholder is the final response of a turn that never produced one.
const Placeholder = "Sorry, I couldn't process your request properly."

// UnknownID is the turn id used when no identifier can be found.
const UnknownID = "unknown"

type Kind string

const (
	KindInference     Kind = "inference"
	KindFinalResponse Kind = "final_response"
)

type ToolStatus string

const (
	StatusRequested ToolStatus = "requested"
	StatusCompleted ToolStatus = "completed"
)

type ToolCall struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments"`
	CallID    string         `json:"call_id"`
}

type ToolResponse struct {
	CallID   string `json:"call_id"`
	ToolName string `json:"tool_name"`
	Content  string `json:"content"`
}

// Step is one entry of a turn's step list. The set of implementations is closed.
type Step interface {
	StepID() string
	isStep()
}

type InferenceStep struct {
	ID         string
	Content    string
	Role       string
	StopReason string
	ToolCalls  []ToolCall
}

type ToolExecutionStep struct {
	ID            string
	ToolCalls     []ToolCall
	ToolResponses []ToolResponse
}

// UnknownStep is any step type this package does not interpret.
type UnknownStep struct {
	ID   string
	Type string
}

func (s InferenceStep) StepID() string     { return s.ID }
func (s ToolExecutionStep) StepID() string { return s.ID }
func (s UnknownStep) StepID() string       { return s.ID }

func (InferenceStep) isStep()     {}
func (ToolExecutionStep) isStep() {}
func (UnknownStep) isStep()       {}

type ReasoningStep struct {
	Kind          Kind   `json:"kind"`
	Content       string `json:"content"`
	StepID        string `json:"step_id"`
	ToolCallCount int    `json:"tool_call_count,omitempty"`
}

type ToolUsage struct {
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments,omitempty"`
	CallID    string         `json:"call_id"`
	StepID    string         `json:"step_id"`
	Status    ToolStatus     `json:"status"`
	Output    string         `json:"output,omitempty"`
}

// NormalizedTurn is the flattened, render-ready view of one agent turn.
type NormalizedTurn struct {
	Success        bool            `json:"success"`
	FinalResponse  string          `json:"final_response"`
	ReasoningSteps []ReasoningStep `json:"reasoning_steps"`
	ToolUsage      []ToolUsage     `json:"tool_usage"`
	TurnID         string          `json:"turn_id"`
	Status         string          `json:"status"`
	CreatedAt      string          `json:"created_at,omitempty"`
	CompletedAt    string          `json:"completed_at,omitempty"`
	Error          string          `json:"error,omitempty"`
	Raw            string          `json:"raw_turn,omitempty"`
}
