// Package discord defines the transport surface the bot core talks to.
// The core never imports the SDK directly; everything goes through these
// interfaces so the processor and supervisor can be driven by fakes in tests.
package discord

// Embed is a renderable rich message
type Embed struct {
	Title       string
	Description string
	Color       int
	Footer      string
	Fields      []EmbedField
}

// EmbedField is one name/value pair inside an Embed
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// ButtonStyle maps onto the SDK's button styles
type ButtonStyle int

const (
	ButtonPrimary ButtonStyle = iota
	ButtonSecondary
	ButtonDanger
)

// Button is one clickable component. CustomID routes the click back to a
// registered handler.
type Button struct {
	Label    string
	CustomID string
	Style    ButtonStyle
	Emoji    string
	Disabled bool
}

// SelectOption is one entry in a dropdown select
type SelectOption struct {
	Label       string
	Value       string
	Description string
}

// Select is a dropdown component
type Select struct {
	CustomID    string
	Placeholder string
	MinValues   int
	MaxValues   int
	Options     []SelectOption
}

// View is the component tray attached under a message. Buttons render as
// one row; a Select renders as its own row.
type View struct {
	Buttons []Button
	Select  *Select
}

// Modal is a free-text input dialog opened from an interaction
type Modal struct {
	CustomID  string
	Title     string
	FieldID   string
	FieldName string
	Multiline bool
}

// Message is a sent message that can still be mutated
type Message interface {
	ID() string
	ChannelID() string
	Edit(text string) error
	EditEmbed(embed *Embed, view *View) error
	Delete() error
	AddReaction(emoji string) error
	RemoveReaction(emoji string) error
}

// Channel is a text channel or a thread
type Channel interface {
	ID() string
	Send(text string) (Message, error)
	SendEmbed(embed *Embed, view *View) (Message, error)
	SendComplex(text string, embed *Embed, view *View) (Message, error)
	CreateThread(name string) (Channel, error)
}

// IncomingMessage is a user message the gateway delivered
type IncomingMessage struct {
	MessageID string
	ChannelID string
	// ParentID is the parent channel when the message arrived in a thread,
	// otherwise empty
	ParentID   string
	AuthorID   string
	AuthorName string
	Content    string
	IsThread   bool
	IsBot      bool
}

// Interaction is a component click (button or select)
type Interaction interface {
	CustomID() string
	UserID() string
	// Values holds the selected entries for select interactions
	Values() []string
	// Respond sends a visible or ephemeral reply
	Respond(text string, ephemeral bool) error
	// Defer acknowledges without replying, leaving the message untouched
	Defer() error
	// UpdateMessage acknowledges by editing the component's own message
	UpdateMessage(embed *Embed, view *View) error
	OpenModal(modal *Modal) error
	Message() Message
}

// ModalSubmit is a submitted modal dialog
type ModalSubmit interface {
	CustomID() string
	UserID() string
	Value(fieldID string) string
	Respond(text string, ephemeral bool) error
	Defer() error
}

// Transport is the full surface the bot needs from the chat backend.
// Handlers are matched by CustomID prefix; the longest registered prefix
// wins.
type Transport interface {
	Open() error
	Close() error
	BotUserID() string

	Channel(id string) Channel

	// MessageHandle wraps an already-delivered message so it can be
	// reacted to or edited without refetching it
	MessageHandle(channelID, messageID string) Message

	OnMessage(fn func(m *IncomingMessage))
	OnComponent(prefix string, fn func(ic Interaction))
	OnModal(prefix string, fn func(ms ModalSubmit))
	RemoveComponentHandler(prefix string)
}
