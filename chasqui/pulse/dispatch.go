package pulse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/kballard/go-shellquote"

	"github.com/teranos/yanantin/errors"
)

// VerdictDenied marks a claim the verifier refuted.
const VerdictDenied = "DENIED"

// Verdict is a verifier's judgement on one claim.
type Verdict struct {
	Claim   string `json:"claim"`
	Verdict string `json:"verdict"`
	Report  string `json:"report"`
}

// Result is the structured output of a dispatcher.
type Result struct {
	ReportPath    string    `json:"report_path,omitempty"`
	Verdicts      []Verdict `json:"verdicts,omitempty"`
	Discrepancies []string  `json:"discrepancies,omitempty"`
}

// Dispatcher processes one work item. Implementations are typically LLM
// runners living outside this process.
type Dispatcher interface {
	Dispatch(ctx context.Context, item Item) (*Result, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, item Item) (*Result, error)

func (f DispatcherFunc) Dispatch(ctx context.Context, item Item) (*Result, error) {
	return f(ctx, item)
}

// Registry maps item types to dispatchers.
type Registry struct {
	mu          sync.RWMutex
	dispatchers map[ItemType]Dispatcher
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{dispatchers: make(map[ItemType]Dispatcher)}
}

// Register sets the dispatcher for t, replacing any previous one.
func (r *Registry) Register(t ItemType, d Dispatcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dispatchers[t] = d
}

// Get returns the dispatcher for t, or nil.
func (r *Registry) Get(t ItemType) Dispatcher {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dispatchers[t]
}

// Auditor checks the blueprint against the repository. An empty result
// means they agree.
type Auditor interface {
	Audit() ([]string, error)
}

// AuditDispatcher serves tinkuy_audit items in-process.
type AuditDispatcher struct {
	Auditor Auditor
}

func (d AuditDispatcher) Dispatch(_ context.Context, _ Item) (*Result, error) {
	lines, err := d.Auditor.Audit()
	if err != nil {
		return nil, err
	}
	return &Result{Discrepancies: lines}, nil
}

// DefaultCommandTimeout bounds one external dispatcher run.
const DefaultCommandTimeout = 30 * time.Minute

// CommandDispatcher runs an external command for each item. The item is
// passed in YANANTIN_ITEM_* environment variables and the command prints a
// JSON Result on stdout; empty output is an empty result.
type CommandDispatcher struct {
	Args    []string
	Dir     string
	Timeout time.Duration
}

// NewCommandDispatcher splits a shell-style command line.
func NewCommandDispatcher(commandLine string) (*CommandDispatcher, error) {
	args, err := shellquote.Split(commandLine)
	if err != nil {
		return nil, errors.Wrapf(err, "parse dispatcher command %q", commandLine)
	}
	if len(args) == 0 {
		return nil, errors.New("dispatcher command is empty")
	}
	return &CommandDispatcher{Args: args, Timeout: DefaultCommandTimeout}, nil
}

// Env returns the environment entries describing item.
func Env(item Item) []string {
	return []string{
		"YANANTIN_ITEM_TYPE=" + string(item.Type),
		"YANANTIN_ITEM_TRIGGER=" + item.Trigger,
		"YANANTIN_ITEM_CREATED=" + item.Created.UTC().Format(time.RFC3339),
		"YANANTIN_ITEM_REPORT=" + item.Report,
		"YANANTIN_ITEM_CLAIM=" + item.Claim,
	}
}

func (d *CommandDispatcher) Dispatch(ctx context.Context, item Item) (*Result, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	cmd := exec.CommandContext(ctx, d.Args[0], d.Args[1:]...)
	cmd.Dir = d.Dir
	cmd.Env = append(os.Environ(), Env(item)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		err = errors.Wrapf(err, "dispatch %s", item.Type)
		err = errors.WithDetail(err, fmt.Sprintf("Command: %s", shellquote.Join(d.Args...)))
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = errors.WithDetail(err, fmt.Sprintf("Stderr: %s", msg))
		}
		return nil, err
	}
	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return &Result{}, nil
	}
	var res Result
	if err := json.Unmarshal(out, &res); err != nil {
		return nil, errors.Wrapf(err, "decode %s dispatcher output", item.Type)
	}
	return &res, nil
}
