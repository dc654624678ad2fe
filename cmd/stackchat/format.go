package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harunnryd/stackchat/internal/turn"

	"charm.land/lipgloss/v2"
	"charm.land/lipgloss/v2/table"
)

type TableFormatter struct {
	headerStyle  lipgloss.Style
	oddRowStyle  lipgloss.Style
	evenRowStyle lipgloss.Style
	borderStyle  lipgloss.Style
}

func NewTableFormatter() *TableFormatter {
	purple := lipgloss.Color("99")
	gray := lipgloss.Color("245")
	lightGray := lipgloss.Color("241")

	return &TableFormatter{
		headerStyle: lipgloss.NewStyle().
			Foreground(purple).
			Bold(true).
			Align(lipgloss.Center).
			Padding(0, 1),
		oddRowStyle: lipgloss.NewStyle().
			Foreground(gray).
			Padding(0, 1),
		evenRowStyle: lipgloss.NewStyle().
			Foreground(lightGray).
			Padding(0, 1),
		borderStyle: lipgloss.NewStyle().
			Foreground(purple),
	}
}

func (f *TableFormatter) newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(f.borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return f.headerStyle
			case row%2 == 0:
				return f.evenRowStyle
			default:
				return f.oddRowStyle
			}
		}).
		Headers(headers...)
}

// FormatModels renders the model list, marking the selected model.
func (f *TableFormatter) FormatModels(models []string, selected string) string {
	if len(models) == 0 {
		return "No models available"
	}

	t := f.newTable("#", "Model", "")
	for i, model := range models {
		marker := ""
		if model == selected {
			marker = "*"
		}
		t.Row(fmt.Sprintf("%d", i+1), model, marker)
	}

	return t.String()
}

func (f *TableFormatter) FormatReasoning(steps []turn.ReasoningStep) string {
	if len(steps) == 0 {
		return "No reasoning steps"
	}

	t := f.newTable("Step", "Kind", "Tool Calls", "Content")
	for _, step := range steps {
		calls := ""
		if step.ToolCallCount > 0 {
			calls = fmt.Sprintf("%d", step.ToolCallCount)
		}
		t.Row(step.StepID, string(step.Kind), calls, truncateString(step.Content, 60))
	}

	return t.String()
}

func (f *TableFormatter) FormatToolUsage(usage []turn.ToolUsage) string {
	if len(usage) == 0 {
		return "No tools used"
	}

	t := f.newTable("Tool", "Status", "Arguments", "Output")
	for _, u := range usage {
		t.Row(u.ToolName, string(u.Status), truncateString(formatArguments(u.Arguments), 40), truncateString(u.Output, 40))
	}

	return t.String()
}

func formatArguments(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("%v", args)
	}
	return string(data)
}

func truncateString(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
