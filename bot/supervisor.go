package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ccdb/ccdb/claude"
	"github.com/ccdb/ccdb/config"
	"github.com/ccdb/ccdb/db"
	"github.com/ccdb/ccdb/discord"
	"github.com/ccdb/ccdb/log"
)

const threadNameLimit = 80

// threadRun tracks one claimed conversation turn from claim to cleanup.
// The claim exists before the semaphore wait, so a later message in the
// same thread always finds its predecessor and supersedes it instead of
// racing it into a duplicate run.
type threadRun struct {
	// done closes when the turn has fully cleaned up
	done chan struct{}

	// admission gates the semaphore wait; superseding cancels it so a
	// queued turn exits without ever starting a process
	admission context.Context
	supersede context.CancelFunc

	mu          sync.Mutex
	runner      *claude.Runner
	stop        *StopControl
	interrupted bool
}

func newThreadRun() *threadRun {
	ctx, cancel := context.WithCancel(context.Background())
	return &threadRun{
		done:      make(chan struct{}),
		admission: ctx,
		supersede: cancel,
	}
}

// setRunner installs the live runner for the turn. Returns false when the
// turn was interrupted while queued; the caller must not start a process.
func (t *threadRun) setRunner(r *claude.Runner) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.interrupted {
		return false
	}
	t.runner = r
	return true
}

func (t *threadRun) setStop(stop *StopControl) {
	t.mu.Lock()
	t.stop = stop
	t.mu.Unlock()
}

func (t *threadRun) current() (*claude.Runner, *StopControl) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runner, t.stop
}

// interrupt supersedes the turn: a queued turn is released from the
// semaphore wait, a live one gets a soft interrupt, and no further runner
// may start under this claim.
func (t *threadRun) interrupt() {
	t.mu.Lock()
	t.interrupted = true
	r := t.runner
	t.mu.Unlock()

	t.supersede()
	if r != nil {
		go r.Interrupt()
	}
}

// Supervisor owns the lifecycle of every run: admission, per-thread
// claims, interrupt coordination, the stop control, and resume after
// restart.
type Supervisor struct {
	cfg       *config.Config
	transport discord.Transport
	base      *claude.Runner
	registry  *SessionRegistry
	bus       *AnswerBus
	collector *AskCollector
	sem       *semaphore.Weighted

	mu           sync.Mutex
	runs         map[string]*threadRun
	shuttingDown bool
}

func NewSupervisor(cfg *config.Config, transport discord.Transport, base *claude.Runner) *Supervisor {
	bus := NewAnswerBus()
	return &Supervisor{
		cfg:       cfg,
		transport: transport,
		base:      base,
		registry:  NewSessionRegistry(),
		bus:       bus,
		collector: NewAskCollector(transport, bus),
		sem:       semaphore.NewWeighted(int64(cfg.MaxConcurrentSessions)),
		runs:      make(map[string]*threadRun),
	}
}

// Registry exposes the session registry for the coordination notice
func (s *Supervisor) Registry() *SessionRegistry { return s.registry }

// Start wires the gateway handlers
func (s *Supervisor) Start() {
	s.transport.OnMessage(s.HandleMessage)
	s.transport.OnComponent(StopCustomIDPrefix, s.handleStopClick)
	s.collector.RegisterHandlers()
	s.collector.RecoverPendingAsks()
}

// HandleMessage is the entry point for every inbound gateway message
func (s *Supervisor) HandleMessage(in *discord.IncomingMessage) {
	if in.IsBot || strings.TrimSpace(in.Content) == "" {
		return
	}
	if s.cfg.DiscordOwnerID != "" && in.AuthorID != s.cfg.DiscordOwnerID {
		return
	}

	s.mu.Lock()
	down := s.shuttingDown
	s.mu.Unlock()
	if down {
		return
	}

	switch {
	case in.ChannelID == s.cfg.DiscordChannelID && !in.IsThread:
		s.handleChannelMessage(in)

	case in.IsThread && in.ParentID == s.cfg.DiscordChannelID:
		s.handleThreadMessage(in)
	}
}

// claimThread atomically replaces the thread's run slot. Claiming happens
// before any blocking wait, so two quick messages can never both spawn.
func (s *Supervisor) claimThread(threadID string) (run, prior *threadRun) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prior = s.runs[threadID]
	run = newThreadRun()
	s.runs[threadID] = run
	return run, prior
}

// handleChannelMessage starts a fresh conversation: a new thread, no resume
func (s *Supervisor) handleChannelMessage(in *discord.IncomingMessage) {
	parent := s.transport.Channel(in.ChannelID)

	thread, err := parent.CreateThread(threadName(in.Content))
	if err != nil {
		log.Error().Err(err).Msg("thread create failed")
		return
	}

	status := s.transport.MessageHandle(in.ChannelID, in.MessageID)
	run, _ := s.claimThread(thread.ID())
	go s.runSession(run, thread, in.Content, "", status, true)
}

// handleThreadMessage continues a conversation. Any turn already claimed
// for the thread, queued or live, is superseded and awaited first.
func (s *Supervisor) handleThreadMessage(in *discord.IncomingMessage) {
	threadID := in.ChannelID
	thread := s.transport.Channel(threadID)
	content := in.Content
	messageID := in.MessageID

	run, prior := s.claimThread(threadID)

	go func() {
		if prior != nil {
			if runner, _ := prior.current(); runner != nil {
				if _, err := thread.Send("⚡ Interrupted — handling your new message."); err != nil {
					log.Debug().Err(err).Msg("interrupt notice failed")
				}
			}
			prior.interrupt()
			// The old turn must fully clean up before the new one starts
			<-prior.done
		}

		resumeID := ""
		if session, err := db.GetSession(threadID); err != nil {
			log.Warn().Err(err).Str("thread_id", threadID).Msg("session lookup failed")
		} else if session != nil {
			resumeID = session.SessionID
		}

		status := s.transport.MessageHandle(threadID, messageID)
		s.runSession(run, thread, content, resumeID, status, true)
	}()
}

// threadName derives a thread title from the first message
func threadName(content string) string {
	name := strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])
	if name == "" {
		name = "claude session"
	}
	return discord.Truncate(name, threadNameLimit)
}

// runSession drives one admission-to-cleanup cycle, recursing internally
// when an interactive question produces a follow-up prompt.
func (s *Supervisor) runSession(run *threadRun, thread discord.Channel, prompt, resumeID string, statusMsg discord.Message, persist bool) {
	s.runSessionWith(run, s.base, thread, prompt, resumeID, statusMsg, persist)
}

func (s *Supervisor) runSessionWith(run *threadRun, base *claude.Runner, thread discord.Channel, prompt, resumeID string, statusMsg discord.Message, persist bool) {
	threadID := thread.ID()

	defer func() {
		s.mu.Lock()
		if s.runs[threadID] == run {
			delete(s.runs, threadID)
		}
		s.mu.Unlock()
		close(run.done)
	}()

	if !s.sem.TryAcquire(1) {
		if _, err := thread.Send("⏳ Waiting for a free session slot…"); err != nil {
			log.Debug().Err(err).Msg("waiting notice failed")
		}
		// Superseded or shut down while queued
		if err := s.sem.Acquire(run.admission, 1); err != nil {
			return
		}
	}
	defer s.sem.Release(1)

	stop := NewStopControl(thread)
	run.setStop(stop)

	var status *StatusIndicator
	if statusMsg != nil {
		status = NewStatusIndicator(statusMsg)
		status.Set(StatusThinking)
		status.StartStallMonitor()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("thread_id", threadID).Interface("panic", r).Msg("run panicked")
			if _, err := thread.SendEmbed(ErrorEmbed("Something went wrong. Send a new message to continue."), nil); err != nil {
				log.Debug().Err(err).Msg("panic embed failed")
			}
			if status != nil {
				status.Finish(StatusError)
			}
		}

		stop.Disable()
		s.registry.Unregister(threadID)
	}()

	stop.Show()
	s.registry.Register(threadID, threadName(prompt), base.Options().WorkingDir)

	sessionID := resumeID

	for {
		systemPrompt := BuildSystemPrompt(threadID, s.registry, s.cfg.CoordinationChannel != "")
		runner := base.Clone(
			claude.WithThreadID(threadID),
			claude.WithAppendSystemPrompt(systemPrompt),
		)

		if !run.setRunner(runner) {
			return
		}

		processor := NewProcessor(ProcessorConfig{
			Thread:   thread,
			Runner:   runner,
			Status:   status,
			ResumeID: sessionID,
			OnBump:   stop.Bump,
			OnSessionID: func(sid string) {
				if !persist {
					return
				}
				if err := db.SaveSession(threadID, sid,
					db.WithWorkingDir(base.Options().WorkingDir),
					db.WithModel(base.Options().Model),
				); err != nil {
					log.Error().Err(err).Str("thread_id", threadID).Msg("session save failed")
				}
			},
			ContextWindow: s.cfg.ContextWindowTokens,
		})

		events, err := runner.Run(context.Background(), prompt, sessionID)
		if err != nil {
			log.Error().Err(err).Str("thread_id", threadID).Msg("run start failed")
			if _, serr := thread.SendEmbed(ErrorEmbed(err.Error()), nil); serr != nil {
				log.Debug().Err(serr).Msg("start error embed failed")
			}
			if status != nil {
				status.Finish(StatusError)
			}
			return
		}

		for ev := range events {
			ev := ev
			if processor.ShouldDrain(&ev) {
				continue
			}
			processor.Process(&ev)
		}
		processor.Finalize()

		ask := processor.PendingAsk()
		if len(ask) == 0 || processor.SessionID() == "" {
			return
		}

		answer := s.collector.Collect(thread, threadID, processor.SessionID(), ask)
		if answer == "" {
			return
		}
		prompt = answer
		sessionID = processor.SessionID()
	}
}

// handleStopClick interrupts the thread's runner. Idempotent: a second
// click only defers.
func (s *Supervisor) handleStopClick(ic discord.Interaction) {
	threadID := strings.TrimPrefix(ic.CustomID(), StopCustomIDPrefix)

	s.mu.Lock()
	run := s.runs[threadID]
	s.mu.Unlock()

	var runner *claude.Runner
	var stop *StopControl
	if run != nil {
		runner, stop = run.current()
	}

	if stop == nil || stop.Stopped() || runner == nil {
		if err := ic.Defer(); err != nil {
			log.Debug().Err(err).Msg("stop click defer failed")
		}
		return
	}

	stop.Disable()
	runner.Interrupt()
	if err := ic.Defer(); err != nil {
		log.Debug().Err(err).Msg("stop click defer failed")
	}
	log.Info().Str("thread_id", threadID).Msg("run stopped by button")
}

// RunTask executes one scheduled task: a new thread in the task's channel,
// an announcement, then the normal pipeline without session persistence.
func (s *Supervisor) RunTask(task db.Task) {
	channelID := task.ChannelID
	if channelID == "" {
		channelID = s.cfg.DiscordChannelID
	}
	channel := s.transport.Channel(channelID)

	name := fmt.Sprintf("⏰ %s — %s", task.Name, time.Now().Format("Jan 2 15:04"))
	thread, err := channel.CreateThread(discord.Truncate(name, threadNameLimit))
	if err != nil {
		log.Error().Err(err).Str("task", task.Name).Msg("task thread create failed")
		return
	}
	if _, err := thread.Send(fmt.Sprintf("⏰ Scheduled task **%s** starting.", task.Name)); err != nil {
		log.Debug().Err(err).Msg("task announcement failed")
	}

	base := s.base
	if task.WorkingDir != "" {
		base = base.Clone(claude.WithWorkingDir(task.WorkingDir))
	}
	run, _ := s.claimThread(thread.ID())
	s.runSessionWith(run, base, thread, task.Prompt, "", nil, false)
}

// ResumePending replays runs that were alive when the process last exited.
// Each row is deleted before its run is spawned so a crash mid-resume
// cannot double-fire.
func (s *Supervisor) ResumePending() {
	rows, err := db.GetPendingResumes(db.DefaultResumeTTLMinutes)
	if err != nil {
		log.Error().Err(err).Msg("pending resume read failed")
		return
	}

	for _, row := range rows {
		if err := db.DeletePendingResume(row.ID); err != nil {
			log.Error().Err(err).Int64("id", row.ID).Msg("pending resume delete failed")
			continue
		}

		thread := s.transport.Channel(row.ThreadID)
		if _, err := thread.Send("🔄 Bot restarted — resuming previous work."); err != nil {
			log.Warn().Err(err).Str("thread_id", row.ThreadID).Msg("resume notice failed; thread likely gone")
			continue
		}

		prompt := row.ResumePrompt
		if prompt == "" {
			prompt = "Please continue the previous work."
		}
		run, _ := s.claimThread(row.ThreadID)
		go s.runSession(run, thread, prompt, row.SessionID, nil, true)
	}
}

// Shutdown marks every live run for resume, supersedes every claim, and
// waits for cleanup until the context expires. Queued turns that never
// started a process exit without a resume mark.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.mu.Lock()
	s.shuttingDown = true
	runs := make(map[string]*threadRun, len(s.runs))
	for id, r := range s.runs {
		runs[id] = r
	}
	s.mu.Unlock()

	for threadID, run := range runs {
		if runner, _ := run.current(); runner != nil {
			sessionID := ""
			if session, err := db.GetSession(threadID); err == nil && session != nil {
				sessionID = session.SessionID
			}
			if err := db.MarkPendingResume(threadID, sessionID, "shutdown", ""); err != nil {
				log.Error().Err(err).Str("thread_id", threadID).Msg("pending resume mark failed")
			}
		}
		run.interrupt()
	}

	for _, run := range runs {
		select {
		case <-run.done:
		case <-ctx.Done():
			return
		}
	}
}
