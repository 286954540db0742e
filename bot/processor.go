package bot

import (
	"time"

	"github.com/ccdb/ccdb/claude"
	"github.com/ccdb/ccdb/discord"
	"github.com/ccdb/ccdb/log"
)

// interrupter is the slice of the Runner the processor needs
type interrupter interface {
	Interrupt()
}

// ProcessorConfig bundles everything one Processor instance is built with.
// Treated as a value; a follow-up turn constructs a fresh Processor.
type ProcessorConfig struct {
	Thread discord.Channel
	Runner interrupter
	Status *StatusIndicator

	// ResumeID is the inbound session id when resuming; suppresses the
	// session-started embed
	ResumeID string

	// OnSessionID persists the thread-to-session mapping. May be nil.
	OnSessionID func(sessionID string)

	// OnBump moves the stop control to the bottom of the thread. May be nil.
	OnBump func()

	// ContextWindow enables the context usage banner when > 0
	ContextWindow int

	// ToolTickInterval overrides the live tool timer period (tests)
	ToolTickInterval time.Duration
}

// Processor converts one run's stream events into Discord side-effects.
// It owns thread-local state only; one instance per run, never shared.
type Processor struct {
	cfg ProcessorConfig

	sessionID string
	streamer  *Streamer

	activeTools  map[string]discord.Message
	activeTitles map[string]string
	activeTimers map[string]*LiveToolTimer

	sessionStartSent  bool
	assistantTextSent bool
	partialText       string

	pendingAsk []claude.AskQuestion
	draining   bool
	finalized  bool
}

func NewProcessor(cfg ProcessorConfig) *Processor {
	p := &Processor{
		cfg:          cfg,
		sessionID:    cfg.ResumeID,
		activeTools:  make(map[string]discord.Message),
		activeTitles: make(map[string]string),
		activeTimers: make(map[string]*LiveToolTimer),
	}
	p.streamer = NewStreamer(cfg.Thread, cfg.OnBump)
	return p
}

// SessionID returns the most recent session id seen on the stream
func (p *Processor) SessionID() string { return p.sessionID }

// PendingAsk returns the questions that suspended this run, if any
func (p *Processor) PendingAsk() []claude.AskQuestion { return p.pendingAsk }

// ShouldDrain reports whether the caller should skip handing events to
// Process. Terminal events must still be delivered.
func (p *Processor) ShouldDrain(ev *claude.StreamEvent) bool {
	return p.draining && !ev.IsComplete
}

// Process handles one event. Events are handled strictly in order; the
// caller must not invoke Process concurrently.
func (p *Processor) Process(ev *claude.StreamEvent) {
	if ev.IsComplete {
		p.handleTerminal(ev)
		return
	}
	if p.draining {
		return
	}

	switch ev.Kind {
	case claude.EventSystem:
		p.handleSystem(ev)
	case claude.EventAssistant:
		p.handleAssistant(ev)
	case claude.EventUser:
		p.handleToolResult(ev)
	}
}

func (p *Processor) handleSystem(ev *claude.StreamEvent) {
	if ev.SessionID != "" {
		p.sessionID = ev.SessionID
		if p.cfg.OnSessionID != nil {
			p.cfg.OnSessionID(ev.SessionID)
		}
	}

	// Hook feedback arrives as extra SYSTEM events; announce only once,
	// and never when resuming
	if !p.sessionStartSent && p.cfg.ResumeID == "" {
		p.sessionStartSent = true
		p.postEmbed(SessionStartedEmbed(ev.SessionID, "", ""))
	}
}

func (p *Processor) handleAssistant(ev *claude.StreamEvent) {
	if len(ev.AskQuestions) > 0 {
		p.handleAsk(ev)
		return
	}

	if !ev.IsPartial {
		if ev.Thinking != "" {
			p.postEmbed(ThinkingEmbed(ev.Thinking))
		}
		if ev.HasRedactedThinking {
			p.postEmbed(RedactedThinkingEmbed())
		}
	}

	if ev.Text != "" {
		p.handleText(ev)
	}

	if ev.ToolUse != nil {
		p.handleToolUse(ev.ToolUse)
	}
}

// handleText folds partial snapshots into the streamer as deltas. A
// snapshot equal to its predecessor yields an empty delta and no wire call.
func (p *Processor) handleText(ev *claude.StreamEvent) {
	delta := ev.Text
	if len(p.partialText) > 0 && len(ev.Text) >= len(p.partialText) {
		delta = ev.Text[len(p.partialText):]
	}

	if ev.IsPartial {
		p.partialText = ev.Text
		p.streamer.Append(delta)
		return
	}

	if p.streamer.HasContent() {
		p.streamer.Append(delta)
		p.streamer.Finalize()
	} else if p.partialText == "" {
		p.postText(ev.Text)
	}

	p.partialText = ""
	p.assistantTextSent = true
	p.streamer = NewStreamer(p.cfg.Thread, p.cfg.OnBump)
}

func (p *Processor) handleToolUse(tool *claude.ToolUse) {
	// Settle any in-flight text before the tool embed
	if p.streamer.HasContent() {
		p.streamer.Finalize()
		p.streamer = NewStreamer(p.cfg.Thread, p.cfg.OnBump)
		p.partialText = ""
		p.assistantTextSent = true
	}

	if p.cfg.Status != nil {
		p.cfg.Status.Set(CategoryGlyph(tool.Category))
	}

	embed := ToolInProgressEmbed(tool)
	msg := p.postEmbed(embed)
	if msg == nil {
		return
	}

	p.activeTools[tool.ID] = msg
	p.activeTitles[tool.ID] = embed.Title
	p.activeTimers[tool.ID] = StartToolTimer(msg, *embed, p.cfg.ToolTickInterval)

	if p.cfg.OnBump != nil {
		p.cfg.OnBump()
	}
}

func (p *Processor) handleAsk(ev *claude.StreamEvent) {
	p.pendingAsk = ev.AskQuestions
	p.draining = true
	if p.cfg.Status != nil {
		p.cfg.Status.Set(StatusAsk)
	}
	if p.cfg.Runner != nil {
		// Asynchronous: Interrupt waits for the stream to settle, and this
		// goroutine is the one draining it. A synchronous call here would
		// block the pump once the event buffer fills and deadlock the run.
		go p.cfg.Runner.Interrupt()
	}
}

func (p *Processor) handleToolResult(ev *claude.StreamEvent) {
	if ev.ToolResultID == "" {
		return
	}

	if timer, ok := p.activeTimers[ev.ToolResultID]; ok {
		timer.Stop()
		delete(p.activeTimers, ev.ToolResultID)
	}

	msg, ok := p.activeTools[ev.ToolResultID]
	delete(p.activeTools, ev.ToolResultID)
	title := p.activeTitles[ev.ToolResultID]
	delete(p.activeTitles, ev.ToolResultID)

	if ok && msg != nil && ev.ToolResultContent != "" {
		if err := msg.EditEmbed(ToolCompletedEmbed(title, ev.ToolResultContent), nil); err != nil {
			log.Warn().Err(err).Msg("tool result embed edit failed")
		}
	}

	if p.cfg.Status != nil {
		p.cfg.Status.Set(StatusThinking)
	}
}

func (p *Processor) handleTerminal(ev *claude.StreamEvent) {
	if ev.SessionID != "" {
		p.sessionID = ev.SessionID
		if p.cfg.OnSessionID != nil {
			p.cfg.OnSessionID(ev.SessionID)
		}
	}

	p.streamer.Finalize()

	if ev.Error != "" {
		if secs := TimeoutSeconds(ev.Error); secs > 0 {
			p.postEmbed(TimeoutEmbed(secs))
		} else {
			p.postEmbed(ErrorEmbed(ev.Error))
		}
		if p.cfg.Status != nil {
			p.cfg.Status.Finish(StatusError)
		}
	} else {
		if ev.Text != "" && !p.assistantTextSent {
			p.postText(ev.Text)
		}
		p.postEmbed(DoneEmbed(ev, p.cfg.ContextWindow))
		if p.cfg.Status != nil {
			p.cfg.Status.Finish(StatusDone)
		}
	}

	// A next turn may follow in the same run stream
	p.assistantTextSent = false
	p.partialText = ""
	p.streamer = NewStreamer(p.cfg.Thread, p.cfg.OnBump)
}

// Finalize releases everything the run still holds. Safe to call after a
// terminal event and after an abort; idempotent.
func (p *Processor) Finalize() {
	if p.finalized {
		return
	}
	p.finalized = true

	for id, timer := range p.activeTimers {
		timer.Stop()
		delete(p.activeTimers, id)
	}
	p.streamer.Finalize()
}

// postText chunks and posts plain text, bumping controls after
func (p *Processor) postText(text string) {
	for _, chunk := range discord.ChunkMessage(text) {
		if chunk == "" {
			continue
		}
		if _, err := p.cfg.Thread.Send(chunk); err != nil {
			log.Warn().Err(err).Str("thread_id", p.cfg.Thread.ID()).Msg("text post failed")
		}
	}
	if p.cfg.OnBump != nil {
		p.cfg.OnBump()
	}
}

// postEmbed sends an embed, swallowing transport errors
func (p *Processor) postEmbed(embed *discord.Embed) discord.Message {
	msg, err := p.cfg.Thread.SendEmbed(embed, nil)
	if err != nil {
		log.Warn().Err(err).Str("thread_id", p.cfg.Thread.ID()).Msg("embed post failed")
		return nil
	}
	return msg
}
