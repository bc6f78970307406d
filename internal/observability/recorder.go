package observability

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danmuck/ttcp/internal/protocol"
	"github.com/danmuck/ttcp/internal/protocol/frame"
	"github.com/danmuck/ttcp/internal/protocol/session"
)

const (
	OutcomeOK      = "ok"
	OutcomeRunning = "running"

	DefaultRecentLimit = 64
)

// SessionRecord is the admin view of one session.
type SessionRecord struct {
	ID           string    `json:"id"`
	Role         string    `json:"role"`
	Remote       string    `json:"remote,omitempty"`
	Outcome      string    `json:"outcome"`
	Count        int32     `json:"count"`
	Length       int32     `json:"length"`
	Frames       int32     `json:"frames"`
	PayloadBytes int64     `json:"payload_bytes"`
	StartedAt    time.Time `json:"started_at"`
	ElapsedMS    int64     `json:"elapsed_ms"`
	MiBPerSecond float64   `json:"mib_per_sec"`
	Error        string    `json:"error,omitempty"`
}

// Recorder feeds session progress into metrics and keeps the most recent
// sessions by id. It is safe for concurrent sessions.
type Recorder struct {
	node  string
	limit int

	mu    sync.RWMutex
	items map[string]SessionRecord
	order []string
}

var _ session.Observer = (*Recorder)(nil)

func NewRecorder(node string, limit int) *Recorder {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	RegisterMetrics()
	return &Recorder{
		node:  node,
		limit: limit,
		items: make(map[string]SessionRecord),
	}
}

func (r *Recorder) SessionStarted(id string, role session.Role) {
	RecordSessionStarted(r.node, role.String())
	key := strings.TrimSpace(id)
	if key == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[key]; !ok {
		r.order = append(r.order, key)
	}
	r.items[key] = SessionRecord{
		ID:        key,
		Role:      role.String(),
		Outcome:   OutcomeRunning,
		StartedAt: time.Now(),
	}
	r.evictLocked()
}

func (r *Recorder) FrameCompleted(ev session.FrameEvent) {
	RecordFrame(r.node, ev.Role.String(), ev.RTT)
	key := strings.TrimSpace(ev.SessionID)
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[key]
	if !ok {
		return
	}
	item.Frames = ev.Iteration
	if ev.Bytes > frame.LengthPrefixLen {
		item.PayloadBytes += int64(ev.Bytes - frame.LengthPrefixLen)
	}
	r.items[key] = item
}

func (r *Recorder) SessionClosed(res session.Result) {
	outcome := Outcome(res.Err)
	role := res.Role.String()
	RecordSessionClosed(r.node, role, outcome, res.Stats.BytesSent, res.Stats.BytesReceived, res.Stats.MiBPerSecond())

	key := strings.TrimSpace(res.SessionID)
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[key]
	if !ok {
		return
	}
	item.Remote = res.Remote
	item.Outcome = outcome
	item.Count = res.Stats.Descriptor.RepetitionCount
	item.Length = res.Stats.Descriptor.PayloadLength
	item.Frames = res.Stats.Frames
	item.PayloadBytes = res.Stats.PayloadBytes
	item.ElapsedMS = res.Stats.Elapsed.Milliseconds()
	item.MiBPerSecond = res.Stats.MiBPerSecond()
	if res.Err != nil {
		item.Error = res.Err.Error()
	}
	r.items[key] = item
}

func (r *Recorder) Get(id string) (SessionRecord, bool) {
	key := strings.TrimSpace(id)
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[key]
	return item, ok
}

// List returns records newest first.
func (r *Recorder) List() []SessionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionRecord, 0, len(r.items))
	for _, item := range r.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// Running counts sessions that have not closed yet.
func (r *Recorder) Running() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, item := range r.items {
		if item.Outcome == OutcomeRunning {
			n++
		}
	}
	return n
}

// evictLocked drops the oldest finished records once over the limit.
func (r *Recorder) evictLocked() {
	for i := 0; len(r.items) > r.limit && i < len(r.order); {
		key := r.order[i]
		if r.items[key].Outcome == OutcomeRunning {
			i++
			continue
		}
		delete(r.items, key)
		r.order = append(r.order[:i], r.order[i+1:]...)
	}
}

// Outcome labels a session result for metrics: "ok" or the error kind.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	return protocol.KindOf(err).String()
}
