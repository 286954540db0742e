package bot

import (
	"fmt"
	"sync"
	"time"

	"github.com/ccdb/ccdb/discord"
	"github.com/ccdb/ccdb/log"
)

// defaultToolTickInterval is how often an in-progress tool embed gets its
// elapsed-time description refreshed
const defaultToolTickInterval = 10 * time.Second

// LiveToolTimer periodically rewrites a tool embed's description with the
// elapsed time. The title never changes so users can scan the thread.
type LiveToolTimer struct {
	msg   discord.Message
	embed discord.Embed

	stopOnce sync.Once
	stop     chan struct{}
}

// StartToolTimer begins ticking on the given message. The embed is the
// in-progress embed the message was sent with; only its description is
// rewritten on each tick.
func StartToolTimer(msg discord.Message, embed discord.Embed, interval time.Duration) *LiveToolTimer {
	if interval <= 0 {
		interval = defaultToolTickInterval
	}
	t := &LiveToolTimer{
		msg:   msg,
		embed: embed,
		stop:  make(chan struct{}),
	}
	go t.loop(interval)
	return t
}

func (t *LiveToolTimer) loop(interval time.Duration) {
	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			elapsed := int(time.Since(start).Seconds())
			embed := t.embed
			embed.Description = fmt.Sprintf("⏳ %ds elapsed…", elapsed)
			if err := t.msg.EditEmbed(&embed, nil); err != nil {
				log.Debug().Err(err).Str("message_id", t.msg.ID()).Msg("tool timer edit failed")
			}
		}
	}
}

// Stop cancels the timer. Idempotent.
func (t *LiveToolTimer) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}
