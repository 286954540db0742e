package bot

import (
	"sync"
	"time"

	"github.com/ccdb/ccdb/claude"
	"github.com/ccdb/ccdb/discord"
	"github.com/ccdb/ccdb/log"
)

// Status glyphs shown as a reaction on the user's message
const (
	StatusThinking = "🤔"
	StatusRead     = "📖"
	StatusEdit     = "✏️"
	StatusCommand  = "💻"
	StatusWeb      = "🌐"
	StatusAsk      = "❓"
	StatusDone     = "✅"
	StatusError    = "❌"
	StatusWaiting  = "⏳"
	StatusStalled  = "🐢"
	StatusHung     = "😴"
)

const (
	// statusMinInterval throttles reaction swaps; Discord rate-limits
	// reactions aggressively
	statusMinInterval = 700 * time.Millisecond

	softStallAfter = 10 * time.Second
	hardStallAfter = 30 * time.Second

	errorGlyphHold = 2500 * time.Millisecond
)

// CategoryGlyph maps a tool category to its status glyph
func CategoryGlyph(cat claude.ToolCategory) string {
	switch cat {
	case claude.ToolCategoryRead:
		return StatusRead
	case claude.ToolCategoryEdit:
		return StatusEdit
	case claude.ToolCategoryCommand:
		return StatusCommand
	case claude.ToolCategoryWeb:
		return StatusWeb
	case claude.ToolCategoryAsk:
		return StatusAsk
	default:
		return StatusThinking
	}
}

// StatusIndicator drives the emoji reaction on the triggering user message.
// Transitions are debounced and serialized; a stall monitor upgrades the
// glyph when no activity arrives for a while.
type StatusIndicator struct {
	msg discord.Message

	// OnHardStall fires once per hard-stall episode. May be nil.
	OnHardStall func()

	mu           sync.Mutex
	current      string
	lastChange   time.Time
	lastActivity time.Time
	stalled      bool
	hardFired    bool
	stopped      bool

	stopOnce sync.Once
	stop     chan struct{}
}

func NewStatusIndicator(msg discord.Message) *StatusIndicator {
	return &StatusIndicator{
		msg:          msg,
		lastActivity: time.Now(),
		stop:         make(chan struct{}),
	}
}

// Set transitions the reaction to the given glyph. Debounced to one API
// round-trip per interval; redundant transitions are dropped.
func (s *StatusIndicator) Set(glyph string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastActivity = time.Now()
	s.stalled = false
	s.hardFired = false

	if s.stopped || glyph == s.current {
		return
	}

	if wait := statusMinInterval - time.Since(s.lastChange); wait > 0 {
		s.mu.Unlock()
		time.Sleep(wait)
		s.mu.Lock()
		if s.stopped || glyph == s.current {
			return
		}
	}

	s.applyLocked(glyph)
}

// applyLocked swaps the reaction on the wire. Transport errors are
// swallowed with a log line.
func (s *StatusIndicator) applyLocked(glyph string) {
	if s.current != "" {
		if err := s.msg.RemoveReaction(s.current); err != nil {
			log.Debug().Err(err).Msg("status reaction remove failed")
		}
	}
	if glyph != "" {
		if err := s.msg.AddReaction(glyph); err != nil {
			log.Debug().Err(err).Msg("status reaction add failed")
		}
	}
	s.current = glyph
	s.lastChange = time.Now()
}

// SetError shows the error glyph briefly, then clears the reaction
func (s *StatusIndicator) SetError() {
	s.Set(StatusError)
	time.AfterFunc(errorGlyphHold, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.current == StatusError {
			s.applyLocked("")
		}
	})
}

// StartStallMonitor watches for inactivity and upgrades the glyph at the
// soft and hard thresholds. The hard threshold fires OnHardStall once per
// episode.
func (s *StatusIndicator) StartStallMonitor() {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.checkStall()
			}
		}
	}()
}

func (s *StatusIndicator) checkStall() {
	s.mu.Lock()
	idle := time.Since(s.lastActivity)
	stopped := s.stopped

	switch {
	case stopped || idle < softStallAfter:
		s.mu.Unlock()

	case idle >= hardStallAfter:
		fire := !s.hardFired
		s.hardFired = true
		if s.current != StatusHung {
			s.applyLocked(StatusHung)
		}
		cb := s.OnHardStall
		s.mu.Unlock()
		if fire && cb != nil {
			cb()
		}

	default:
		if !s.stalled {
			s.stalled = true
			s.applyLocked(StatusStalled)
		}
		s.mu.Unlock()
	}
}

// Finish sets a terminal glyph and stops the stall monitor
func (s *StatusIndicator) Finish(glyph string) {
	s.stopOnce.Do(func() { close(s.stop) })

	if glyph == StatusError {
		s.SetError()
		s.mu.Lock()
		s.stopped = true
		s.mu.Unlock()
		return
	}

	s.Set(glyph)
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}
