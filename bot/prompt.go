package bot

import (
	"fmt"
	"strings"

	"github.com/ccdb/ccdb/db"
	"github.com/ccdb/ccdb/log"
)

// loungePromptMessages is how many recent lounge messages are injected
const loungePromptMessages = 20

const loungeInvitation = `You share a lounge channel with other agent sessions. Post short status notes there via the HTTP API (POST $CCDB_API_URL/api/lounge) so concurrent sessions can coordinate. Recent lounge activity:`

const concurrencyTemplate = `You are running inside Discord thread %s. Other agent sessions may be working in the same repositories at the same time; avoid destructive operations on shared state without checking the lounge first.`

// BuildSystemPrompt assembles the ephemeral system prompt for one run:
// the lounge block followed by the concurrency notice. Passed via
// --append-system-prompt so it never accumulates in session history.
func BuildSystemPrompt(threadID string, registry *SessionRegistry, loungeEnabled bool) string {
	var blocks []string

	if loungeEnabled {
		if block := loungeBlock(); block != "" {
			blocks = append(blocks, block)
		}
	}

	blocks = append(blocks, concurrencyNotice(threadID, registry))

	return strings.Join(blocks, "\n\n")
}

func loungeBlock() string {
	messages, err := db.GetRecentLoungeMessages(loungePromptMessages)
	if err != nil {
		log.Warn().Err(err).Msg("lounge fetch for prompt failed")
		return ""
	}

	var b strings.Builder
	b.WriteString(loungeInvitation)
	if len(messages) == 0 {
		b.WriteString("\n(no messages yet)")
		return b.String()
	}
	for _, m := range messages {
		b.WriteString("\n[")
		b.WriteString(clockOf(m.PostedAt))
		b.WriteString("] ")
		b.WriteString(m.Label)
		b.WriteString(": ")
		b.WriteString(m.Message)
	}
	return b.String()
}

// clockOf reduces a stored "2006-01-02 15:04:05" timestamp to HH:MM
func clockOf(ts string) string {
	t := db.ParseTime(ts)
	if t.IsZero() {
		return ts
	}
	return t.Format("15:04")
}

func concurrencyNotice(threadID string, registry *SessionRegistry) string {
	notice := fmt.Sprintf(concurrencyTemplate, threadID)

	if registry == nil {
		return notice
	}
	others := registry.Others(threadID)
	if len(others) == 0 {
		return notice
	}

	var b strings.Builder
	b.WriteString(notice)
	b.WriteString("\nCurrently active sessions:")
	for _, s := range others {
		b.WriteString("\n- ")
		b.WriteString(s.Description)
		if s.WorkingDir != "" {
			b.WriteString(" (in ")
			b.WriteString(s.WorkingDir)
			b.WriteString(")")
		}
	}
	return b.String()
}
