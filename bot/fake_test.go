package bot

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ccdb/ccdb/discord"
)

// fakeTransport records every outbound call so tests can assert on the
// exact Discord side-effects of a run.
type fakeTransport struct {
	mu       sync.Mutex
	channels map[string]*fakeChannel
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{channels: make(map[string]*fakeChannel)}
}

func (t *fakeTransport) Channel(id string) discord.Channel {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ch, ok := t.channels[id]; ok {
		return ch
	}
	ch := &fakeChannel{transport: t, id: id}
	t.channels[id] = ch
	return ch
}

func (t *fakeTransport) MessageHandle(channelID, messageID string) discord.Message {
	ch := t.Channel(channelID).(*fakeChannel)
	return &fakeMessage{channel: ch, id: messageID}
}

func (t *fakeTransport) Open() error                                            { return nil }
func (t *fakeTransport) Close() error                                           { return nil }
func (t *fakeTransport) BotUserID() string                                      { return "bot" }
func (t *fakeTransport) OnMessage(fn func(m *discord.IncomingMessage))          {}
func (t *fakeTransport) OnComponent(prefix string, fn func(discord.Interaction)) {}
func (t *fakeTransport) OnModal(prefix string, fn func(discord.ModalSubmit))    {}
func (t *fakeTransport) RemoveComponentHandler(prefix string)                   {}

type sentMessage struct {
	content string
	embed   *discord.Embed
	view    *discord.View
	edits   int
	deleted bool

	reactions []string
}

type fakeChannel struct {
	transport *fakeTransport
	id        string

	mu      sync.Mutex
	sent    []*sentMessage
	nextID  int
	threads int

	failSends bool
}

func (c *fakeChannel) ID() string { return c.id }

func (c *fakeChannel) Send(text string) (discord.Message, error) {
	return c.SendComplex(text, nil, nil)
}

func (c *fakeChannel) SendEmbed(embed *discord.Embed, view *discord.View) (discord.Message, error) {
	return c.SendComplex("", embed, view)
}

func (c *fakeChannel) SendComplex(text string, embed *discord.Embed, view *discord.View) (discord.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSends {
		return nil, fmt.Errorf("transport down")
	}
	c.nextID++
	sm := &sentMessage{content: text, embed: embed, view: view}
	c.sent = append(c.sent, sm)
	return &fakeMessage{channel: c, id: fmt.Sprintf("m%d", c.nextID), record: sm}, nil
}

func (c *fakeChannel) CreateThread(name string) (discord.Channel, error) {
	c.mu.Lock()
	c.threads++
	threadID := fmt.Sprintf("%s-thread-%d", c.id, c.threads)
	c.mu.Unlock()
	return c.transport.Channel(threadID), nil
}

// messages returns a snapshot of everything sent so far
func (c *fakeChannel) messages() []*sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*sentMessage, len(c.sent))
	copy(out, c.sent)
	return out
}

// embedsTitled counts non-deleted embeds whose title contains the needle
func (c *fakeChannel) embedsTitled(needle string) int {
	n := 0
	for _, m := range c.messages() {
		if !m.deleted && m.embed != nil && strings.Contains(m.embed.Title, needle) {
			n++
		}
	}
	return n
}

// textMessages returns non-deleted plain-text message contents
func (c *fakeChannel) textMessages() []string {
	var out []string
	for _, m := range c.messages() {
		if !m.deleted && m.embed == nil && m.view == nil && m.content != "" {
			out = append(out, m.content)
		}
	}
	return out
}

type fakeMessage struct {
	channel *fakeChannel
	id      string
	record  *sentMessage
}

func (m *fakeMessage) ID() string        { return m.id }
func (m *fakeMessage) ChannelID() string { return m.channel.id }

func (m *fakeMessage) Edit(text string) error {
	m.channel.mu.Lock()
	defer m.channel.mu.Unlock()
	if m.record != nil {
		m.record.content = text
		m.record.edits++
	}
	return nil
}

func (m *fakeMessage) EditEmbed(embed *discord.Embed, view *discord.View) error {
	m.channel.mu.Lock()
	defer m.channel.mu.Unlock()
	if m.record != nil {
		if embed != nil {
			m.record.embed = embed
		}
		m.record.view = view
		m.record.edits++
	}
	return nil
}

func (m *fakeMessage) Delete() error {
	m.channel.mu.Lock()
	defer m.channel.mu.Unlock()
	if m.record != nil {
		m.record.deleted = true
	}
	return nil
}

func (m *fakeMessage) AddReaction(emoji string) error {
	m.channel.mu.Lock()
	defer m.channel.mu.Unlock()
	if m.record != nil {
		m.record.reactions = append(m.record.reactions, emoji)
	}
	return nil
}

func (m *fakeMessage) RemoveReaction(emoji string) error {
	m.channel.mu.Lock()
	defer m.channel.mu.Unlock()
	if m.record == nil {
		return nil
	}
	for i, r := range m.record.reactions {
		if r == emoji {
			m.record.reactions = append(m.record.reactions[:i], m.record.reactions[i+1:]...)
			break
		}
	}
	return nil
}

// fakeInterrupter records interrupt calls
type fakeInterrupter struct {
	mu    sync.Mutex
	count int
}

func (f *fakeInterrupter) Interrupt() {
	f.mu.Lock()
	f.count++
	f.mu.Unlock()
}

func (f *fakeInterrupter) interrupts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.count
}
