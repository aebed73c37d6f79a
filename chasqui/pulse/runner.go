package pulse

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/yanantin/logger"
	"github.com/teranos/yanantin/sym"
)

// Defaults for Config.
const (
	DefaultMinScoutInterval  = 30 * time.Minute
	DefaultHeartbeatInterval = 6 * time.Hour
)

// Config locates the pulse files and sets its intervals.
type Config struct {
	StateFile         string
	QueueFile         string
	LockFile          string
	RepoPath          string // empty disables change detection
	WatchedPrefixes   []string
	MinScoutInterval  time.Duration
	HeartbeatInterval time.Duration
	Now               func() time.Time
}

// Outcome reports what one pulse did.
type Outcome struct {
	Skipped     bool     `json:"skipped"` // another pulse held the lock
	Head        string   `json:"head,omitempty"`
	Enqueued    []Item   `json:"enqueued,omitempty"`
	Processed   *Item    `json:"processed,omitempty"`
	Deferred    *Item    `json:"deferred,omitempty"` // head item with no dispatcher
	DispatchErr string   `json:"dispatch_error,omitempty"`
	Audit       []string `json:"audit,omitempty"`
	QueueLength int      `json:"queue_length"`
}

// Runner executes pulses.
type Runner struct {
	cfg         Config
	dispatchers *Registry
	auditor     Auditor
	logger      *zap.SugaredLogger
}

// NewRunner creates a runner. auditor may be nil, in which case changed
// code is always scouted and tinkuy_audit items wait for a dispatcher.
func NewRunner(cfg Config, dispatchers *Registry, auditor Auditor, log *zap.SugaredLogger) *Runner {
	if cfg.MinScoutInterval <= 0 {
		cfg.MinScoutInterval = DefaultMinScoutInterval
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if dispatchers == nil {
		dispatchers = NewRegistry()
	}
	if auditor != nil && dispatchers.Get(ItemTinkuyAudit) == nil {
		dispatchers.Register(ItemTinkuyAudit, AuditDispatcher{Auditor: auditor})
	}
	return &Runner{
		cfg:         cfg,
		dispatchers: dispatchers,
		auditor:     auditor,
		logger:      logger.OrNop(log).Named("pulse"),
	}
}

// Pulse runs one pass. When another pulse holds the lock it returns an
// outcome with Skipped set and no error.
func (r *Runner) Pulse(ctx context.Context) (*Outcome, error) {
	lock, ok, err := TryLock(r.cfg.LockFile)
	if err != nil {
		return nil, err
	}
	if !ok {
		r.logger.Debugw(sym.Pulse + " another pulse is running")
		return &Outcome{Skipped: true}, nil
	}
	defer func() {
		if err := lock.Release(); err != nil {
			r.logger.Warnw(sym.Pulse+" release lock", logger.FieldError, err)
		}
	}()

	state, err := LoadState(r.cfg.StateFile)
	if err != nil {
		return nil, err
	}
	queue, err := LoadQueue(r.cfg.QueueFile)
	if err != nil {
		return nil, err
	}
	now := r.cfg.Now().UTC()
	out := &Outcome{}
	enqueue := func(item Item) {
		item.Created = now
		if queue.Enqueue(item) {
			out.Enqueued = append(out.Enqueued, item)
			r.logger.Infow(sym.Pulse+" enqueued",
				logger.FieldItemType, item.Type,
				logger.FieldTrigger, item.Trigger)
		}
	}

	r.observeChange(&state, now, out, enqueue)

	if since, ok := state.SinceScout(now); !ok || since >= r.cfg.HeartbeatInterval {
		enqueue(Item{Type: ItemScout, Trigger: "heartbeat:" + now.Format("2006-01-02T15")})
		state.LastScout = &now
	}

	if item, ok := queue.Pop(); ok {
		d := r.dispatchers.Get(item.Type)
		if d == nil {
			queue.PushFront(item)
			out.Deferred = &item
			r.logger.Warnw(sym.Pulse+" no dispatcher for item",
				logger.FieldItemType, item.Type,
				logger.FieldTrigger, item.Trigger)
		} else {
			out.Processed = &item
			res, err := d.Dispatch(ctx, item)
			if err != nil {
				out.DispatchErr = err.Error()
				r.logger.Warnw(sym.Pulse+" dispatch failed",
					logger.FieldItemType, item.Type,
					logger.FieldTrigger, item.Trigger,
					logger.FieldError, err)
			} else {
				for _, next := range FollowUps(item, res) {
					enqueue(next)
				}
			}
		}
	}

	if err := SaveState(r.cfg.StateFile, state); err != nil {
		return nil, err
	}
	if err := queue.Save(); err != nil {
		return nil, err
	}
	out.QueueLength = queue.Len()
	return out, nil
}

// observeChange handles a moved HEAD: audit, then queue governance on
// failure or a scout on success.
func (r *Runner) observeChange(state *State, now time.Time, out *Outcome, enqueue func(Item)) {
	if r.cfg.RepoPath == "" {
		return
	}
	change, err := DetectChange(r.cfg.RepoPath, state.LastCommit, r.cfg.WatchedPrefixes)
	if err != nil {
		r.logger.Warnw(sym.Pulse+" change detection failed", logger.FieldPath, r.cfg.RepoPath, logger.FieldError, err)
		return
	}
	out.Head = change.Head
	if !change.Changed {
		return
	}
	state.LastCommit = change.Head
	if !change.Watched || change.Head == state.LastCommitScouted {
		return
	}
	if since, ok := state.SinceScout(now); ok && since < r.cfg.MinScoutInterval {
		r.logger.Debugw(sym.Pulse+" change seen inside scout interval", logger.FieldCommit, short(change.Head))
		return
	}

	if r.auditor != nil {
		lines, err := r.auditor.Audit()
		if err != nil {
			r.logger.Warnw(sym.Audit+" audit failed", logger.FieldError, err)
			lines = []string{"audit failed: " + err.Error()}
		}
		out.Audit = lines
		if len(lines) > 0 {
			enqueue(Item{Type: ItemGovernance, Trigger: "audit:" + short(change.Head)})
			return
		}
	}
	enqueue(Item{Type: ItemScout, Trigger: "commit:" + short(change.Head)})
	state.LastCommitScouted = change.Head
	state.LastScout = &now
}

// FollowUps derives the items a finished item schedules.
func FollowUps(done Item, res *Result) []Item {
	if res == nil {
		return nil
	}
	var out []Item
	switch done.Type {
	case ItemScout:
		if res.ReportPath != "" {
			out = append(out, Item{Type: ItemVerify, Trigger: res.ReportPath, Report: res.ReportPath})
		}
	case ItemVerify:
		// Only refuted claims need a response.
		for _, v := range res.Verdicts {
			if !strings.EqualFold(strings.TrimSpace(v.Verdict), VerdictDenied) {
				continue
			}
			report := v.Report
			if report == "" {
				report = done.Report
			}
			out = append(out, Item{
				Type:    ItemRespond,
				Trigger: report + "#" + v.Claim,
				Report:  report,
				Claim:   v.Claim,
			})
		}
	case ItemTinkuyAudit:
		if len(res.Discrepancies) > 0 {
			out = append(out, Item{Type: ItemGovernance, Trigger: "tinkuy:" + done.Trigger})
		}
	}
	return out
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}
