package turn

import (
	"fmt"
	"strings"

	chatErrors "github.com/harunnryd/stackchat/internal/errors"

	"github.com/tidwall/gjson"
)

const unknownTool = "unknown_tool"

func decodeStep(index int, r gjson.Result) (Step, error) {
	if !r.IsObject() {
		return nil, chatErrors.Extraction(fmt.Sprintf("step %d is %s, not an object", index, kindOf(r)))
	}

	id, ok := Probe(r, "step_id")
	if !ok {
		id = fmt.Sprintf("step_%d", index)
	}

	switch stepType := r.Get("step_type").String(); stepType {
	case "inference":
		return decodeInference(id, r)
	case "tool_execution":
		return decodeToolExecution(id, r)
	default:
		if stepType == "" {
			stepType = "unknown"
		}
		return UnknownStep{ID: id, Type: stepType}, nil
	}
}

func decodeInference(id string, r gjson.Result) (Step, error) {
	step := InferenceStep{ID: id, Role: "assistant"}

	// Newer servers use model_response, older ones api_model_response.
	payload := r.Get("model_response")
	if !payload.IsObject() {
		payload = r.Get("api_model_response")
	}
	if !payload.IsObject() {
		return step, nil
	}

	step.Content = contentText(payload.Get("content"))
	if role := payload.Get("role").String(); role != "" {
		step.Role = role
	}
	step.StopReason = payload.Get("stop_reason").String()

	calls, err := decodeToolCalls(id, payload.Get("tool_calls"))
	if err != nil {
		return nil, err
	}
	step.ToolCalls = calls
	return step, nil
}

func decodeToolExecution(id string, r gjson.Result) (Step, error) {
	calls, err := decodeToolCalls(id, r.Get("tool_calls"))
	if err != nil {
		return nil, err
	}

	responses, err := decodeToolResponses(id, r.Get("tool_responses"))
	if err != nil {
		return nil, err
	}

	return ToolExecutionStep{ID: id, ToolCalls: calls, ToolResponses: responses}, nil
}

func decodeToolCalls(stepID string, r gjson.Result) ([]ToolCall, error) {
	items, err := list(stepID, "tool_calls", r)
	if err != nil {
		return nil, err
	}

	calls := make([]ToolCall, 0, len(items))
	for i, item := range items {
		if !item.IsObject() {
			return nil, chatErrors.Extraction(fmt.Sprintf("%s: tool call %d is %s, not an object", stepID, i, kindOf(item)))
		}
		calls = append(calls, ToolCall{
			ToolName:  toolName(item),
			Arguments: arguments(item),
			CallID:    item.Get("call_id").String(),
		})
	}
	return calls, nil
}

func decodeToolResponses(stepID string, r gjson.Result) ([]ToolResponse, error) {
	items, err := list(stepID, "tool_responses", r)
	if err != nil {
		return nil, err
	}

	responses := make([]ToolResponse, 0, len(items))
	for i, item := range items {
		if !item.IsObject() {
			return nil, chatErrors.Extraction(fmt.Sprintf("%s: tool response %d is %s, not an object", stepID, i, kindOf(item)))
		}
		responses = append(responses, ToolResponse{
			CallID:   item.Get("call_id").String(),
			ToolName: toolName(item),
			Content:  contentText(item.Get("content")),
		})
	}
	return responses, nil
}

func list(stepID, field string, r gjson.Result) ([]gjson.Result, error) {
	if !r.Exists() || r.Type == gjson.Null {
		return nil, nil
	}
	if !r.IsArray() {
		return nil, chatErrors.Extraction(fmt.Sprintf("%s: %s is %s, not a list", stepID, field, kindOf(r)))
	}
	return r.Array(), nil
}

func toolName(r gjson.Result) string {
	if name := strings.TrimSpace(r.Get("tool_name").String()); name != "" {
		return name
	}
	return unknownTool
}

// arguments accepts an object, a JSON-encoded object or free text.
func arguments(r gjson.Result) map[string]any {
	args := r.Get("arguments")
	if !args.Exists() || args.Type == gjson.Null {
		args = r.Get("arguments_json")
	}

	switch {
	case !args.Exists() || args.Type == gjson.Null:
		return map[string]any{}
	case args.IsObject():
		if m, ok := args.Value().(map[string]any); ok {
			return m
		}
		return map[string]any{}
	case args.Type == gjson.String:
		text := strings.TrimSpace(args.Str)
		if text == "" {
			return map[string]any{}
		}
		if parsed := gjson.Parse(text); gjson.Valid(text) && parsed.IsObject() {
			if m, ok := parsed.Value().(map[string]any); ok {
				return m
			}
		}
		return map[string]any{"input": args.Str}
	default:
		return map[string]any{"input": args.Value()}
	}
}

// contentText flattens string, text item and item list content into text.
func contentText(r gjson.Result) string {
	switch {
	case !r.Exists() || r.Type == gjson.Null:
		return ""
	case r.Type == gjson.String:
		return r.Str
	case r.IsArray():
		var b strings.Builder
		for _, item := range r.Array() {
			b.WriteString(contentText(item))
		}
		return b.String()
	case r.IsObject():
		text := r.Get("text")
		if text.Type == gjson.String && (r.Get("type").String() == "text" || !r.Get("type").Exists()) {
			return text.Str
		}
		return compact(r)
	default:
		return r.Raw
	}
}

func compact(r gjson.Result) string {
	return gjson.Get(r.Raw, "@ugly").Raw
}

func kindOf(r gjson.Result) string {
	switch {
	case !r.Exists():
		return "missing"
	case r.IsObject():
		return "an object"
	case r.IsArray():
		return "a list"
	case r.Type == gjson.String:
		return "a string"
	case r.Type == gjson.Number:
		return "a number"
	case r.Type == gjson.True, r.Type == gjson.False:
		return "a boolean"
	default:
		return "null"
	}
}
