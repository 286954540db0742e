package bot

import (
	"strings"
	"sync"
	"time"

	"github.com/ccdb/ccdb/discord"
	"github.com/ccdb/ccdb/log"
)

const (
	// streamerEditInterval rate-limits message edits; Discord throttles
	// around 5 edits per 5 seconds per channel
	streamerEditInterval = 1500 * time.Millisecond
)

// Streamer maintains one in-flight Discord message that grows by edits.
// When the accumulated text outgrows the chunk limit, the current message
// is finalized and a new one carries the overflow.
type Streamer struct {
	channel discord.Channel

	// onMessage fires after each message send so the caller can bump
	// controls below it. May be nil.
	onMessage func()

	mu        sync.Mutex
	buf       string
	msg       discord.Message
	lastEdit  time.Time
	editTimer *time.Timer
	finalized bool
}

func NewStreamer(channel discord.Channel, onMessage func()) *Streamer {
	return &Streamer{channel: channel, onMessage: onMessage}
}

// HasContent reports whether any text has been appended
func (s *Streamer) HasContent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf != "" || s.msg != nil
}

// Append adds a delta to the in-flight message. Empty deltas never touch
// the wire.
func (s *Streamer) Append(delta string) {
	if delta == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}

	s.buf += delta

	if len(s.buf) > discord.DefaultChunkLimit {
		s.rollOverLocked()
		return
	}

	if s.msg == nil {
		s.sendLocked(s.buf)
		return
	}

	s.scheduleEditLocked()
}

// rollOverLocked finalizes the current message at a chunk boundary and
// starts a new one with the overflow.
func (s *Streamer) rollOverLocked() {
	chunks := discord.ChunkMessage(s.buf)

	// All but the last chunk become settled messages
	for i := 0; i < len(chunks)-1; i++ {
		if i == 0 && s.msg != nil {
			s.editLocked(chunks[0])
			s.msg = nil
			continue
		}
		s.msg = nil
		s.sendLocked(chunks[i])
		s.msg = nil
	}

	s.buf = chunks[len(chunks)-1]
	s.msg = nil
	s.sendLocked(s.buf)
}

func (s *Streamer) sendLocked(content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	msg, err := s.channel.Send(content)
	if err != nil {
		log.Warn().Err(err).Str("channel_id", s.channel.ID()).Msg("streamer send failed")
		return
	}
	s.msg = msg
	s.lastEdit = time.Now()
	if s.onMessage != nil {
		fn := s.onMessage
		s.mu.Unlock()
		fn()
		s.mu.Lock()
	}
}

func (s *Streamer) editLocked(content string) {
	if s.msg == nil {
		return
	}
	if err := s.msg.Edit(content); err != nil {
		log.Warn().Err(err).Str("message_id", s.msg.ID()).Msg("streamer edit failed")
	}
	s.lastEdit = time.Now()
}

// scheduleEditLocked coalesces edits into at most one per interval
func (s *Streamer) scheduleEditLocked() {
	if time.Since(s.lastEdit) >= streamerEditInterval {
		s.editLocked(s.buf)
		return
	}
	if s.editTimer != nil {
		return
	}
	wait := streamerEditInterval - time.Since(s.lastEdit)
	s.editTimer = time.AfterFunc(wait, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.editTimer = nil
		if s.finalized {
			return
		}
		s.editLocked(s.buf)
	})
}

// Finalize cancels pending edits and flushes the remaining text
func (s *Streamer) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return
	}
	s.finalized = true

	if s.editTimer != nil {
		s.editTimer.Stop()
		s.editTimer = nil
	}

	if s.msg != nil {
		s.editLocked(s.buf)
	} else if strings.TrimSpace(s.buf) != "" {
		s.sendLocked(s.buf)
	}
}
