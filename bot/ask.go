package bot

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ccdb/ccdb/claude"
	"github.com/ccdb/ccdb/db"
	"github.com/ccdb/ccdb/discord"
	"github.com/ccdb/ccdb/log"
)

// Component id prefixes for the ask flow
const (
	askButtonPrefix = "ask:"
	askSelectPrefix = "ask-select:"
	askOtherPrefix  = "ask-other:"
	askModalPrefix  = "ask-modal:"
	askModalFieldID = "answer"
)

const (
	// askTimeout is how long a question waits for a click
	askTimeout = 24 * time.Hour

	// askButtonMax is the option count above which a dropdown is used
	askButtonMax = 4

	buttonLabelLimit = 80
)

// AskCollector renders AskUserQuestion UI and bridges clicks back to the
// suspended run through the AnswerBus.
type AskCollector struct {
	transport discord.Transport
	bus       *AnswerBus

	// Timeout overrides askTimeout when non-zero (tests)
	Timeout time.Duration

	mu     sync.Mutex
	active map[string]*askState
}

type askState struct {
	question claude.AskQuestion
	msg      discord.Message
}

func NewAskCollector(transport discord.Transport, bus *AnswerBus) *AskCollector {
	return &AskCollector{
		transport: transport,
		bus:       bus,
		active:    make(map[string]*askState),
	}
}

// RegisterHandlers wires the persistent component handlers. Done once at
// startup; clicks arriving for threads with no live waiter (e.g. after a
// restart) get a graceful ephemeral reply instead of a dead interaction.
func (a *AskCollector) RegisterHandlers() {
	a.transport.OnComponent(askButtonPrefix, a.handleButton)
	a.transport.OnComponent(askSelectPrefix, a.handleSelect)
	a.transport.OnComponent(askOtherPrefix, a.handleOther)
	a.transport.OnModal(askModalPrefix, a.handleModal)
}

// Collect walks the questions in order, rendering UI for each and awaiting
// the answer. Returns the next prompt for the same session, or "" when no
// question produced an answer.
func (a *AskCollector) Collect(thread discord.Channel, threadID, sessionID string, questions []claude.AskQuestion) string {
	timeout := a.Timeout
	if timeout == 0 {
		timeout = askTimeout
	}

	var answered []string

	for i, q := range questions {
		if err := db.SavePendingAsk(threadID, sessionID, questions, i); err != nil {
			log.Error().Err(err).Str("thread_id", threadID).Msg("pending ask save failed")
		}

		// Waiter goes on the bus before the UI exists, so a click can
		// never beat the receive
		answers := a.bus.Register(threadID)

		msg := a.renderQuestion(thread, threadID, q)
		a.mu.Lock()
		a.active[threadID] = &askState{question: q, msg: msg}
		a.mu.Unlock()

		select {
		case labels := <-answers:
			a.teardown(threadID)
			if len(labels) > 0 {
				answered = append(answered, fmt.Sprintf("**%s**\nAnswer: %s", q.Question, strings.Join(labels, ", ")))
			}

		case <-time.After(timeout):
			a.teardown(threadID)
			if msg != nil {
				embed := questionEmbed(q)
				embed.Footer = "timed out — send a new message to continue"
				if err := msg.EditEmbed(embed, &discord.View{}); err != nil {
					log.Debug().Err(err).Msg("ask timeout edit failed")
				}
			}
		}
	}

	if len(answered) == 0 {
		return ""
	}
	return "[Response to AskUserQuestion]\n\n" +
		strings.Join(answered, "\n\n") +
		"\n\nPlease continue based on these answers."
}

func (a *AskCollector) teardown(threadID string) {
	a.bus.Unregister(threadID)
	a.mu.Lock()
	delete(a.active, threadID)
	a.mu.Unlock()
	if err := db.DeletePendingAsk(threadID); err != nil {
		log.Warn().Err(err).Str("thread_id", threadID).Msg("pending ask delete failed")
	}
}

func questionEmbed(q claude.AskQuestion) *discord.Embed {
	title := q.Header
	if title == "" {
		title = "Question"
	}
	return &discord.Embed{
		Title:       "❓ " + title,
		Description: q.Question,
		Color:       colorBlue,
	}
}

// renderQuestion posts the question with its controls: 2-4 options as
// buttons, more (or multi-select) as a dropdown, always plus "Other"
func (a *AskCollector) renderQuestion(thread discord.Channel, threadID string, q claude.AskQuestion) discord.Message {
	view := &discord.View{}

	useSelect := q.MultiSelect || len(q.Options) > askButtonMax

	if useSelect && len(q.Options) > 0 {
		maxValues := 1
		if q.MultiSelect {
			maxValues = len(q.Options)
		}
		sel := &discord.Select{
			CustomID:    askSelectPrefix + threadID,
			Placeholder: "Choose an answer…",
			MinValues:   1,
			MaxValues:   maxValues,
		}
		for _, o := range q.Options {
			sel.Options = append(sel.Options, discord.SelectOption{
				Label:       discord.Truncate(o.Label, buttonLabelLimit),
				Value:       discord.Truncate(o.Label, buttonLabelLimit),
				Description: discord.Truncate(o.Description, 100),
			})
		}
		view.Select = sel
	} else {
		for i, o := range q.Options {
			view.Buttons = append(view.Buttons, discord.Button{
				Label:    discord.Truncate(o.Label, buttonLabelLimit),
				Style:    discord.ButtonPrimary,
				CustomID: askButtonPrefix + threadID + ":" + strconv.Itoa(i),
			})
		}
	}

	view.Buttons = append(view.Buttons, discord.Button{
		Label:    "✏️ Other",
		Style:    discord.ButtonSecondary,
		CustomID: askOtherPrefix + threadID,
	})

	msg, err := thread.SendEmbed(questionEmbed(q), view)
	if err != nil {
		log.Error().Err(err).Str("thread_id", threadID).Msg("question post failed")
		return nil
	}
	return msg
}

func (a *AskCollector) lookup(threadID string) *askState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active[threadID]
}

// deliver hands the labels to the waiter and settles the question message
func (a *AskCollector) deliver(threadID string, labels []string) bool {
	state := a.lookup(threadID)
	if !a.bus.PostAnswer(threadID, labels) {
		return false
	}
	if state != nil && state.msg != nil {
		embed := questionEmbed(state.question)
		embed.Color = colorGreen
		embed.Footer = "Answered: " + strings.Join(labels, ", ")
		if err := state.msg.EditEmbed(embed, &discord.View{}); err != nil {
			log.Debug().Err(err).Msg("answered question edit failed")
		}
	}
	return true
}

func sessionEndedReply(ic discord.Interaction) {
	if err := ic.Respond("This session has ended. Send a new message in the thread to continue.", true); err != nil {
		log.Debug().Err(err).Msg("session ended reply failed")
	}
}

func (a *AskCollector) handleButton(ic discord.Interaction) {
	rest := strings.TrimPrefix(ic.CustomID(), askButtonPrefix)
	threadID, idxStr, ok := strings.Cut(rest, ":")
	if !ok {
		return
	}
	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return
	}

	state := a.lookup(threadID)
	if state == nil || idx < 0 || idx >= len(state.question.Options) {
		sessionEndedReply(ic)
		return
	}

	label := state.question.Options[idx].Label
	if !a.deliver(threadID, []string{label}) {
		sessionEndedReply(ic)
		return
	}
	if err := ic.Defer(); err != nil {
		log.Debug().Err(err).Msg("ask button defer failed")
	}
}

func (a *AskCollector) handleSelect(ic discord.Interaction) {
	threadID := strings.TrimPrefix(ic.CustomID(), askSelectPrefix)

	values := ic.Values()
	if len(values) == 0 {
		sessionEndedReply(ic)
		return
	}
	if !a.deliver(threadID, values) {
		sessionEndedReply(ic)
		return
	}
	if err := ic.Defer(); err != nil {
		log.Debug().Err(err).Msg("ask select defer failed")
	}
}

func (a *AskCollector) handleOther(ic discord.Interaction) {
	threadID := strings.TrimPrefix(ic.CustomID(), askOtherPrefix)

	if a.lookup(threadID) == nil {
		sessionEndedReply(ic)
		return
	}

	err := ic.OpenModal(&discord.Modal{
		CustomID:  askModalPrefix + threadID,
		Title:     "Your answer",
		FieldID:   askModalFieldID,
		FieldName: "Answer",
		Multiline: true,
	})
	if err != nil {
		log.Warn().Err(err).Msg("ask modal open failed")
	}
}

func (a *AskCollector) handleModal(ms discord.ModalSubmit) {
	threadID := strings.TrimPrefix(ms.CustomID(), askModalPrefix)

	text := strings.TrimSpace(ms.Value(askModalFieldID))
	if text == "" {
		if err := ms.Defer(); err != nil {
			log.Debug().Err(err).Msg("ask modal defer failed")
		}
		return
	}

	if !a.deliver(threadID, []string{text}) {
		if err := ms.Respond("This session has ended. Send a new message in the thread to continue.", true); err != nil {
			log.Debug().Err(err).Msg("session ended reply failed")
		}
		return
	}
	if err := ms.Defer(); err != nil {
		log.Debug().Err(err).Msg("ask modal defer failed")
	}
}

// RecoverPendingAsks re-arms the UI bookkeeping for asks that survived a
// restart. The waiters are gone, so clicks resolve to the graceful
// session-ended reply; the rows themselves age out via the TTL sweep.
func (a *AskCollector) RecoverPendingAsks() {
	asks, err := db.ListPendingAsks()
	if err != nil {
		log.Error().Err(err).Msg("pending ask recovery list failed")
		return
	}
	for _, ask := range asks {
		log.Info().Str("thread_id", ask.ThreadID).Msg("pending ask survives restart; clicks will be answered gracefully")
	}
}
