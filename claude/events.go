package claude

// EventKind identifies the type of a stream event
type EventKind string

const (
	EventSystem    EventKind = "system"
	EventAssistant EventKind = "assistant"
	EventUser      EventKind = "user"
	EventResult    EventKind = "result"
)

// ToolCategory groups tool names for status display
type ToolCategory string

const (
	ToolCategoryRead    ToolCategory = "read"
	ToolCategoryEdit    ToolCategory = "edit"
	ToolCategoryCommand ToolCategory = "command"
	ToolCategoryWeb     ToolCategory = "web"
	ToolCategoryAsk     ToolCategory = "ask"
	ToolCategoryOther   ToolCategory = "other"
)

// CategorizeTool derives a category from a tool name
func CategorizeTool(name string) ToolCategory {
	switch name {
	case "Read", "Glob", "Grep", "LS":
		return ToolCategoryRead
	case "Write", "Edit", "NotebookEdit":
		return ToolCategoryEdit
	case "Bash":
		return ToolCategoryCommand
	case "WebFetch", "WebSearch":
		return ToolCategoryWeb
	case "AskUserQuestion":
		return ToolCategoryAsk
	default:
		return ToolCategoryOther
	}
}

// ToolUse describes one tool invocation inside an assistant event
type ToolUse struct {
	ID       string
	Name     string
	Input    map[string]any
	Category ToolCategory
}

// AskQuestion is one question from an AskUserQuestion tool input
type AskQuestion struct {
	Question    string      `json:"question"`
	Header      string      `json:"header,omitempty"`
	MultiSelect bool        `json:"multi_select,omitempty"`
	Options     []AskOption `json:"options,omitempty"`
}

// AskOption is one selectable answer to an AskQuestion
type AskOption struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
}

// Usage carries the token counters from a result event
type Usage struct {
	InputTokens         int
	OutputTokens        int
	CacheReadTokens     int
	CacheCreationTokens int
}

// StreamEvent is one parsed event from the CLI's stream-json output.
// Only the fields relevant to the event's Kind are populated.
type StreamEvent struct {
	Kind      EventKind
	SessionID string

	// Assistant content
	Text                string
	Thinking            string
	HasRedactedThinking bool
	IsPartial           bool
	ToolUse             *ToolUse
	AskQuestions        []AskQuestion

	// User (tool result)
	ToolResultID      string
	ToolResultContent string

	// Terminal (result)
	IsComplete bool
	Error      string
	CostUSD    float64
	DurationMs int
	Usage      Usage
}
