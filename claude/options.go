package claude

// Options configures one Runner. A Runner is single-use; Clone derives a
// fresh unstarted Runner for each run.
type Options struct {
	// Command is the CLI binary path (argv[0])
	Command string

	// Model is passed as --model when non-empty
	Model string

	// PermissionMode is passed as --permission-mode when non-empty
	PermissionMode string

	// WorkingDir is the spawn cwd
	WorkingDir string

	// TimeoutSeconds is a soft deadline; on expiry a terminal event with
	// a timeout error is synthesized. Zero disables the deadline.
	TimeoutSeconds int

	// AllowedTools is joined with commas into --allowedTools when non-empty
	AllowedTools []string

	// DangerouslySkipPermissions appends --dangerously-skip-permissions
	DangerouslySkipPermissions bool

	// IncludePartialMessages appends --include-partial-messages
	IncludePartialMessages bool

	// APIPort and APISecret are injected as CCDB_API_URL / CCDB_API_SECRET
	// so the child can reach the embedded HTTP API
	APIPort   int
	APISecret string

	// ThreadID is injected as DISCORD_THREAD_ID
	ThreadID string

	// AppendSystemPrompt is passed verbatim via --append-system-prompt
	// when non-empty
	AppendSystemPrompt string
}

// CloneOption overrides a field on a cloned Runner
type CloneOption func(*Options)

// WithThreadID overrides the injected thread id
func WithThreadID(threadID string) CloneOption {
	return func(o *Options) { o.ThreadID = threadID }
}

// WithAppendSystemPrompt overrides the ephemeral system prompt
func WithAppendSystemPrompt(prompt string) CloneOption {
	return func(o *Options) { o.AppendSystemPrompt = prompt }
}

// WithWorkingDir overrides the spawn cwd
func WithWorkingDir(dir string) CloneOption {
	return func(o *Options) { o.WorkingDir = dir }
}

// WithModel overrides the model
func WithModel(model string) CloneOption {
	return func(o *Options) { o.Model = model }
}
