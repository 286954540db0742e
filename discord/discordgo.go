package discord

import (
	"fmt"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/ccdb/ccdb/log"
)

// Gateway adapts a discordgo session to the Transport interface
type Gateway struct {
	session *discordgo.Session

	mu             sync.RWMutex
	messageFns     []func(m *IncomingMessage)
	componentFns   map[string]func(ic Interaction)
	modalFns       map[string]func(ms ModalSubmit)
	threadParents  map[string]string
	threadChannels map[string]bool
}

// NewGateway creates a Transport backed by discordgo. The token is the raw
// bot token without the "Bot " prefix.
func NewGateway(token string) (*Gateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent

	g := &Gateway{
		session:        session,
		componentFns:   make(map[string]func(ic Interaction)),
		modalFns:       make(map[string]func(ms ModalSubmit)),
		threadParents:  make(map[string]string),
		threadChannels: make(map[string]bool),
	}

	session.AddHandler(g.handleMessageCreate)
	session.AddHandler(g.handleInteractionCreate)
	session.AddHandler(g.handleThreadCreate)

	return g, nil
}

// Open connects to the gateway
func (g *Gateway) Open() error {
	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}
	log.Info().Str("user", g.BotUserID()).Msg("discord gateway connected")
	return nil
}

// Close disconnects from the gateway
func (g *Gateway) Close() error {
	return g.session.Close()
}

// BotUserID returns the bot's own user id
func (g *Gateway) BotUserID() string {
	if g.session.State != nil && g.session.State.User != nil {
		return g.session.State.User.ID
	}
	return ""
}

// Channel returns a handle for a channel or thread id. No API call is made
// until the handle is used.
func (g *Gateway) Channel(id string) Channel {
	return &gwChannel{gw: g, id: id}
}

// MessageHandle wraps an existing message id as a mutable handle
func (g *Gateway) MessageHandle(channelID, messageID string) Message {
	return &gwMessage{gw: g, channelID: channelID, id: messageID}
}

// OnMessage registers a handler for inbound user messages
func (g *Gateway) OnMessage(fn func(m *IncomingMessage)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messageFns = append(g.messageFns, fn)
}

// OnComponent registers a click handler for CustomIDs with the given prefix
func (g *Gateway) OnComponent(prefix string, fn func(ic Interaction)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.componentFns[prefix] = fn
}

// OnModal registers a submit handler for modal CustomIDs with the given prefix
func (g *Gateway) OnModal(prefix string, fn func(ms ModalSubmit)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.modalFns[prefix] = fn
}

// RemoveComponentHandler drops a previously registered click handler
func (g *Gateway) RemoveComponentHandler(prefix string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.componentFns, prefix)
}

func (g *Gateway) handleThreadCreate(_ *discordgo.Session, t *discordgo.ThreadCreate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.threadChannels[t.ID] = true
	g.threadParents[t.ID] = t.ParentID
}

// isThread resolves whether a channel id is a thread, caching the answer
func (g *Gateway) isThread(channelID string) (bool, string) {
	g.mu.RLock()
	if g.threadChannels[channelID] {
		parent := g.threadParents[channelID]
		g.mu.RUnlock()
		return true, parent
	}
	g.mu.RUnlock()

	ch, err := g.session.State.Channel(channelID)
	if err != nil {
		ch, err = g.session.Channel(channelID)
		if err != nil {
			return false, ""
		}
	}
	thread := ch.IsThread()
	g.mu.Lock()
	if thread {
		g.threadChannels[channelID] = true
		g.threadParents[channelID] = ch.ParentID
	}
	g.mu.Unlock()
	if thread {
		return true, ch.ParentID
	}
	return false, ""
}

func (g *Gateway) handleMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil {
		return
	}

	isThread, parentID := g.isThread(m.ChannelID)

	in := &IncomingMessage{
		MessageID:  m.ID,
		ChannelID:  m.ChannelID,
		ParentID:   parentID,
		AuthorID:   m.Author.ID,
		AuthorName: m.Author.Username,
		Content:    m.Content,
		IsThread:   isThread,
		IsBot:      m.Author.Bot,
	}

	g.mu.RLock()
	fns := make([]func(m *IncomingMessage), len(g.messageFns))
	copy(fns, g.messageFns)
	g.mu.RUnlock()

	for _, fn := range fns {
		go fn(in)
	}
}

// matchHandler finds the registered handler with the longest matching prefix
func matchPrefix[T any](handlers map[string]T, customID string) (T, bool) {
	var best T
	bestLen := -1
	found := false
	for prefix, fn := range handlers {
		if strings.HasPrefix(customID, prefix) && len(prefix) > bestLen {
			best = fn
			bestLen = len(prefix)
			found = true
		}
	}
	return best, found
}

func (g *Gateway) handleInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		g.mu.RLock()
		fn, ok := matchPrefix(g.componentFns, data.CustomID)
		g.mu.RUnlock()
		if !ok {
			log.Debug().Str("custom_id", data.CustomID).Msg("no handler for component interaction")
			return
		}
		go fn(&gwInteraction{gw: g, ic: i.Interaction, data: data})

	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		g.mu.RLock()
		fn, ok := matchPrefix(g.modalFns, data.CustomID)
		g.mu.RUnlock()
		if !ok {
			log.Debug().Str("custom_id", data.CustomID).Msg("no handler for modal submit")
			return
		}
		go fn(&gwModalSubmit{gw: g, ic: i.Interaction, data: data})
	}
}

// --- wire conversion ---

func toMessageEmbed(e *Embed) *discordgo.MessageEmbed {
	if e == nil {
		return nil
	}
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	return embed
}

func toButtonStyle(s ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case ButtonPrimary:
		return discordgo.PrimaryButton
	case ButtonDanger:
		return discordgo.DangerButton
	default:
		return discordgo.SecondaryButton
	}
}

func toComponents(v *View) []discordgo.MessageComponent {
	if v == nil {
		return nil
	}

	var rows []discordgo.MessageComponent

	if len(v.Buttons) > 0 {
		var row discordgo.ActionsRow
		for _, b := range v.Buttons {
			btn := discordgo.Button{
				Label:    b.Label,
				Style:    toButtonStyle(b.Style),
				CustomID: b.CustomID,
				Disabled: b.Disabled,
			}
			if b.Emoji != "" {
				btn.Emoji = &discordgo.ComponentEmoji{Name: b.Emoji}
			}
			row.Components = append(row.Components, btn)
		}
		rows = append(rows, row)
	}

	if v.Select != nil {
		minValues := v.Select.MinValues
		menu := discordgo.SelectMenu{
			CustomID:    v.Select.CustomID,
			Placeholder: v.Select.Placeholder,
			MinValues:   &minValues,
			MaxValues:   v.Select.MaxValues,
		}
		for _, o := range v.Select.Options {
			menu.Options = append(menu.Options, discordgo.SelectMenuOption{
				Label:       o.Label,
				Value:       o.Value,
				Description: o.Description,
			})
		}
		rows = append(rows, discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{menu},
		})
	}

	return rows
}

// --- channel handle ---

type gwChannel struct {
	gw *Gateway
	id string
}

func (c *gwChannel) ID() string { return c.id }

func (c *gwChannel) Send(text string) (Message, error) {
	return c.SendComplex(text, nil, nil)
}

func (c *gwChannel) SendEmbed(embed *Embed, view *View) (Message, error) {
	return c.SendComplex("", embed, view)
}

func (c *gwChannel) SendComplex(text string, embed *Embed, view *View) (Message, error) {
	send := &discordgo.MessageSend{Content: text}
	if e := toMessageEmbed(embed); e != nil {
		send.Embeds = []*discordgo.MessageEmbed{e}
	}
	send.Components = toComponents(view)

	m, err := c.gw.session.ChannelMessageSendComplex(c.id, send)
	if err != nil {
		return nil, fmt.Errorf("send to channel %s: %w", c.id, err)
	}
	return &gwMessage{gw: c.gw, channelID: c.id, id: m.ID}, nil
}

func (c *gwChannel) CreateThread(name string) (Channel, error) {
	thread, err := c.gw.session.ThreadStart(c.id, name, discordgo.ChannelTypeGuildPublicThread, 1440)
	if err != nil {
		return nil, fmt.Errorf("create thread in %s: %w", c.id, err)
	}
	c.gw.mu.Lock()
	c.gw.threadChannels[thread.ID] = true
	c.gw.threadParents[thread.ID] = c.id
	c.gw.mu.Unlock()
	return &gwChannel{gw: c.gw, id: thread.ID}, nil
}

// --- message handle ---

type gwMessage struct {
	gw        *Gateway
	channelID string
	id        string
}

func (m *gwMessage) ID() string        { return m.id }
func (m *gwMessage) ChannelID() string { return m.channelID }

func (m *gwMessage) Edit(text string) error {
	_, err := m.gw.session.ChannelMessageEdit(m.channelID, m.id, text)
	return err
}

func (m *gwMessage) EditEmbed(embed *Embed, view *View) error {
	edit := discordgo.NewMessageEdit(m.channelID, m.id)
	if e := toMessageEmbed(embed); e != nil {
		edit.Embeds = &[]*discordgo.MessageEmbed{e}
	}
	components := toComponents(view)
	edit.Components = &components
	_, err := m.gw.session.ChannelMessageEditComplex(edit)
	return err
}

func (m *gwMessage) Delete() error {
	return m.gw.session.ChannelMessageDelete(m.channelID, m.id)
}

func (m *gwMessage) AddReaction(emoji string) error {
	return m.gw.session.MessageReactionAdd(m.channelID, m.id, emoji)
}

func (m *gwMessage) RemoveReaction(emoji string) error {
	return m.gw.session.MessageReactionRemove(m.channelID, m.id, emoji, "@me")
}

// --- interaction handles ---

type gwInteraction struct {
	gw   *Gateway
	ic   *discordgo.Interaction
	data discordgo.MessageComponentInteractionData
}

func (i *gwInteraction) CustomID() string { return i.data.CustomID }

func (i *gwInteraction) UserID() string {
	if i.ic.Member != nil && i.ic.Member.User != nil {
		return i.ic.Member.User.ID
	}
	if i.ic.User != nil {
		return i.ic.User.ID
	}
	return ""
}

func (i *gwInteraction) Values() []string { return i.data.Values }

func (i *gwInteraction) Respond(text string, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{Content: text}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return i.gw.session.InteractionRespond(i.ic, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

func (i *gwInteraction) Defer() error {
	return i.gw.session.InteractionRespond(i.ic, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

func (i *gwInteraction) UpdateMessage(embed *Embed, view *View) error {
	data := &discordgo.InteractionResponseData{
		Components: toComponents(view),
	}
	if e := toMessageEmbed(embed); e != nil {
		data.Embeds = []*discordgo.MessageEmbed{e}
	}
	return i.gw.session.InteractionRespond(i.ic, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: data,
	})
}

func (i *gwInteraction) OpenModal(modal *Modal) error {
	style := discordgo.TextInputShort
	if modal.Multiline {
		style = discordgo.TextInputParagraph
	}
	return i.gw.session.InteractionRespond(i.ic, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: modal.CustomID,
			Title:    modal.Title,
			Components: []discordgo.MessageComponent{
				discordgo.ActionsRow{
					Components: []discordgo.MessageComponent{
						discordgo.TextInput{
							CustomID: modal.FieldID,
							Label:    modal.FieldName,
							Style:    style,
							Required: true,
						},
					},
				},
			},
		},
	})
}

func (i *gwInteraction) Message() Message {
	if i.ic.Message == nil {
		return nil
	}
	return &gwMessage{gw: i.gw, channelID: i.ic.ChannelID, id: i.ic.Message.ID}
}

type gwModalSubmit struct {
	gw   *Gateway
	ic   *discordgo.Interaction
	data discordgo.ModalSubmitInteractionData
}

func (m *gwModalSubmit) CustomID() string { return m.data.CustomID }

func (m *gwModalSubmit) UserID() string {
	if m.ic.Member != nil && m.ic.Member.User != nil {
		return m.ic.Member.User.ID
	}
	if m.ic.User != nil {
		return m.ic.User.ID
	}
	return ""
}

func (m *gwModalSubmit) Value(fieldID string) string {
	for _, row := range m.data.Components {
		ar, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, comp := range ar.Components {
			ti, ok := comp.(*discordgo.TextInput)
			if !ok {
				continue
			}
			if ti.CustomID == fieldID {
				return ti.Value
			}
		}
	}
	return ""
}

func (m *gwModalSubmit) Respond(text string, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{Content: text}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return m.gw.session.InteractionRespond(m.ic, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
}

func (m *gwModalSubmit) Defer() error {
	return m.gw.session.InteractionRespond(m.ic, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}
