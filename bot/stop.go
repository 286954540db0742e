package bot

import (
	"sync"

	"github.com/ccdb/ccdb/discord"
	"github.com/ccdb/ccdb/log"
)

// StopCustomIDPrefix routes stop-button clicks
const StopCustomIDPrefix = "stop:"

// StopControl owns the persistent stop button under a run's status
// message. The button is re-sent ("bumped") after each content block so it
// stays reachable at the bottom of long threads.
type StopControl struct {
	thread   discord.Channel
	threadID string

	mu      sync.Mutex
	msg     discord.Message
	stopped bool
}

func NewStopControl(thread discord.Channel) *StopControl {
	return &StopControl{thread: thread, threadID: thread.ID()}
}

func (c *StopControl) view(disabled bool) *discord.View {
	return &discord.View{
		Buttons: []discord.Button{{
			Label:    "Stop",
			Emoji:    "🛑",
			Style:    discord.ButtonDanger,
			CustomID: StopCustomIDPrefix + c.threadID,
			Disabled: disabled,
		}},
	}
}

// Show posts the initial stop button
func (c *StopControl) Show() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped || c.msg != nil {
		return
	}
	c.sendLocked()
}

// Bump deletes the old button message and re-sends it at the bottom of
// the thread. No-op after the session has been stopped.
func (c *StopControl) Bump() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	if c.msg != nil {
		if err := c.msg.Delete(); err != nil {
			log.Debug().Err(err).Msg("stop button delete failed")
		}
		c.msg = nil
	}
	c.sendLocked()
}

func (c *StopControl) sendLocked() {
	msg, err := c.thread.SendComplex("", nil, c.view(false))
	if err != nil {
		log.Warn().Err(err).Str("thread_id", c.threadID).Msg("stop button send failed")
		return
	}
	c.msg = msg
}

// Disable greys the button out. Idempotent; called both on natural run end
// and after a click.
func (c *StopControl) Disable() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return
	}
	c.stopped = true
	if c.msg == nil {
		return
	}
	if err := c.msg.EditEmbed(nil, c.view(true)); err != nil {
		log.Debug().Err(err).Msg("stop button disable failed")
	}
}

// Stopped reports whether the control has been disabled
func (c *StopControl) Stopped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopped
}
