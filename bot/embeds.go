package bot

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ccdb/ccdb/claude"
	"github.com/ccdb/ccdb/discord"
)

// Embed accent colors
const (
	colorBlue   = 0x3498db
	colorGreen  = 0x2ecc71
	colorRed    = 0xe74c3c
	colorOrange = 0xe67e22
	colorGray   = 0x95a5a6
	colorPurple = 0x9b59b6
)

const (
	// embedDescriptionLimit is Discord's cap on embed descriptions
	embedDescriptionLimit = 4096

	// toolOutputLimit caps a completed tool's fenced output
	toolOutputLimit = 3000

	// toolTitleArgLimit right-truncates long commands in tool titles
	toolTitleArgLimit = 60

	truncatedNotice = "\n(truncated)"
)

// contextWindowWarnPct is where the context banner switches to a warning
const contextWindowWarnPct = 83.5

var timeoutErrorPattern = regexp.MustCompile(`Timed out after (\d+) seconds`)

// SessionStartedEmbed announces a fresh CLI session
func SessionStartedEmbed(sessionID, model, workingDir string) *discord.Embed {
	e := &discord.Embed{
		Title: "🚀 Session started",
		Color: colorBlue,
	}
	var parts []string
	if model != "" {
		parts = append(parts, "Model: `"+model+"`")
	}
	if workingDir != "" {
		parts = append(parts, "Dir: `"+workingDir+"`")
	}
	e.Description = strings.Join(parts, "\n")
	if sessionID != "" {
		e.Footer = sessionID
	}
	return e
}

// ThinkingEmbed renders extended thinking in a plain code block
func ThinkingEmbed(thinking string) *discord.Embed {
	const fenceOverhead = len("```\n") + len("\n```")
	limit := embedDescriptionLimit - fenceOverhead - len(truncatedNotice)
	body := thinking
	truncated := false
	if len(body) > limit {
		body = body[:limit]
		truncated = true
	}
	desc := "```\n" + body + "\n```"
	if truncated {
		desc += truncatedNotice
	}
	return &discord.Embed{
		Title:       "💭 Thinking",
		Description: desc,
		Color:       colorPurple,
	}
}

// RedactedThinkingEmbed is the placeholder for thinking the API withheld
func RedactedThinkingEmbed() *discord.Embed {
	return &discord.Embed{
		Title:       "💭 Thinking",
		Description: "*(redacted)*",
		Color:       colorGray,
	}
}

// toolTitle summarizes one tool invocation. The title stays stable across
// timer ticks so elapsed time lives in the description only.
func toolTitle(tool *claude.ToolUse) string {
	arg := toolPrimaryArg(tool)
	glyph := CategoryGlyph(tool.Category)
	if arg == "" {
		return fmt.Sprintf("%s %s", glyph, tool.Name)
	}
	return fmt.Sprintf("%s %s: %s", glyph, tool.Name, discord.Truncate(arg, toolTitleArgLimit))
}

// toolPrimaryArg picks the most descriptive input value for the title
func toolPrimaryArg(tool *claude.ToolUse) string {
	for _, key := range []string{"command", "file_path", "path", "pattern", "url", "query", "description"} {
		if v, ok := tool.Input[key].(string); ok && v != "" {
			return strings.ReplaceAll(v, "\n", " ")
		}
	}
	return ""
}

// ToolInProgressEmbed is the initial embed for a running tool
func ToolInProgressEmbed(tool *claude.ToolUse) *discord.Embed {
	return &discord.Embed{
		Title:       toolTitle(tool),
		Description: "⏳ running…",
		Color:       colorOrange,
	}
}

// ToolCompletedEmbed folds the tool result into the existing embed
func ToolCompletedEmbed(title, output string) *discord.Embed {
	body := output
	if len(body) > toolOutputLimit {
		body = body[:toolOutputLimit] + "\n… (truncated)"
	}
	return &discord.Embed{
		Title:       title,
		Description: "```\n" + body + "\n```",
		Color:       colorGreen,
	}
}

// DoneEmbed summarizes a finished run. contextWindow of 0 disables the
// context usage banner.
func DoneEmbed(ev *claude.StreamEvent, contextWindow int) *discord.Embed {
	e := &discord.Embed{
		Title: "✅ Done",
		Color: colorGreen,
		Description: fmt.Sprintf("⏱️ %.1fs | 💰 $%.4f",
			float64(ev.DurationMs)/1000.0, ev.CostUSD),
	}

	u := ev.Usage
	if u.InputTokens > 0 || u.OutputTokens > 0 {
		tokens := fmt.Sprintf("in %d · out %d", u.InputTokens, u.OutputTokens)
		if u.CacheReadTokens > 0 {
			hitRate := float64(u.CacheReadTokens) /
				float64(u.InputTokens+u.CacheReadTokens+u.CacheCreationTokens) * 100
			tokens += fmt.Sprintf(" · cache %d (%.0f%% hit)", u.CacheReadTokens, hitRate)
		}
		e.Fields = append(e.Fields, discord.EmbedField{Name: "Tokens", Value: tokens, Inline: true})
	}

	if banner, warn := contextBanner(u, contextWindow); banner != "" {
		if warn {
			e.Footer = "⚠️ " + banner + " — compaction imminent"
		} else {
			e.Fields = append(e.Fields, discord.EmbedField{Name: "Context", Value: banner, Inline: true})
		}
	}

	return e
}

// contextBanner reports context-window usage. Output tokens are excluded;
// they are not in context until the next turn.
func contextBanner(u claude.Usage, window int) (string, bool) {
	if window <= 0 {
		return "", false
	}
	used := u.InputTokens + u.CacheReadTokens + u.CacheCreationTokens
	if used <= 0 {
		return "", false
	}
	pct := float64(used) / float64(window) * 100
	if pct > 100 {
		pct = 100
	}
	untilCompact := contextWindowWarnPct - pct
	if untilCompact < 0 {
		untilCompact = 0
	}
	banner := fmt.Sprintf("%.0f%% ctx (%.0f%% until compact)", pct, untilCompact)
	return banner, pct >= contextWindowWarnPct
}

// ErrorEmbed is the generic failure embed
func ErrorEmbed(message string) *discord.Embed {
	return &discord.Embed{
		Title:       "❌ Error",
		Description: discord.Truncate(message, embedDescriptionLimit),
		Color:       colorRed,
	}
}

// TimeoutEmbed is the actionable variant for timeout terminals
func TimeoutEmbed(seconds int) *discord.Embed {
	return &discord.Embed{
		Title: "⏰ Timed out",
		Description: fmt.Sprintf(
			"The run exceeded the %d second limit and was stopped.\nSend a new message to continue from where it left off.",
			seconds),
		Color: colorOrange,
	}
}

// TimeoutSeconds extracts N from a "Timed out after N seconds" error.
// Returns 0 when the error is not a timeout.
func TimeoutSeconds(errMsg string) int {
	m := timeoutErrorPattern.FindStringSubmatch(errMsg)
	if m == nil {
		return 0
	}
	var n int
	fmt.Sscanf(m[1], "%d", &n)
	return n
}
