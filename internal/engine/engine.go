// Package engine wires the conversation intelligence pipeline: per
// inbound message it classifies intent and extracts artifacts
// concurrently, generates the decoy's reply, merges everything into the
// session atomically, and finalizes the conversation when it has yielded
// enough value.
package engine

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/decoynet/decoyd/internal/aggregate"
	"github.com/decoynet/decoyd/internal/intel"
	"github.com/decoynet/decoyd/internal/reply"
	"github.com/decoynet/decoyd/internal/report"
	"github.com/decoynet/decoyd/internal/session"
	"github.com/decoynet/decoyd/pkg/observability"
)

// Request-shape errors, rejected before any session state is touched.
var (
	ErrMissingSessionID = errors.New("missing session id")
	ErrEmptyMessage     = errors.New("empty message text")
)

// ErrSessionNotFound aliases the store sentinel for callers that only
// import the engine.
var ErrSessionNotFound = session.ErrSessionNotFound

// Classifier judges one message in conversation context.
type Classifier func(text string, history []string) intel.Verdict

// Extractor finds artifact candidates in one message.
type Extractor func(text string) intel.Extraction

// Inbound is one message handed to the engine by the transport layer.
type Inbound struct {
	SessionID string
	Sender    string
	Text      string
	Timestamp time.Time
	// History is cold-start context, used only when the store has no
	// session for this id. Once a session exists the store is
	// authoritative and this is ignored.
	History []session.Turn
}

// Engine is the per-conversation state machine. Safe for concurrent use.
type Engine struct {
	store      *session.Store
	sink       report.Sink
	classify   Classifier
	extract    Extractor
	generator  reply.Generator
	thresholds aggregate.Thresholds

	// inflight guards finalization so concurrent triggers for the same
	// session attempt delivery once, not once each.
	mu       sync.Mutex
	inflight map[string]struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithClassifier replaces the default keyword classifier.
func WithClassifier(c Classifier) Option {
	return func(e *Engine) { e.classify = c }
}

// WithExtractor replaces the default regex extractor.
func WithExtractor(x Extractor) Option {
	return func(e *Engine) { e.extract = x }
}

// WithGenerator replaces the default canned persona.
func WithGenerator(g reply.Generator) Option {
	return func(e *Engine) { e.generator = g }
}

// WithThresholds overrides the termination caps.
func WithThresholds(t aggregate.Thresholds) Option {
	return func(e *Engine) { e.thresholds = t }
}

// New creates an engine over store that reports terminated conversations
// to sink.
func New(store *session.Store, sink report.Sink, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		sink:       sink,
		classify:   intel.Classify,
		extract:    intel.Extract,
		generator:  reply.CannedGenerator{},
		thresholds: aggregate.DefaultThresholds(),
		inflight:   make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleMessage processes one inbound message and returns the decoy's
// reply. The reply is produced regardless of reporting outcome; delivery
// failures are absorbed and the session retained for a later attempt.
func (e *Engine) HandleMessage(ctx context.Context, in Inbound) (string, error) {
	if in.SessionID == "" {
		return "", ErrMissingSessionID
	}
	if strings.TrimSpace(in.Text) == "" {
		return "", ErrEmptyMessage
	}

	priorTurns := e.priorTurns(in)

	// Classification and extraction are independent pure functions; run
	// them concurrently per message.
	var (
		verdict intel.Verdict
		found   intel.Extraction
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		verdict = e.classify(in.Text, turnTexts(priorTurns))
		return nil
	})
	g.Go(func() error {
		found = e.extract(in.Text)
		return nil
	})
	_ = g.Wait()

	replyText := e.generateReply(ctx, in, priorTurns, verdict.Signals)

	now := time.Now().UTC()
	ts := in.Timestamp
	if ts.IsZero() {
		ts = now
	}
	sender := in.Sender
	if sender == "" {
		sender = session.SpeakerScammer
	}
	inboundTurn := session.Turn{ID: uuid.New().String(), Speaker: sender, Text: in.Text, Timestamp: ts}
	replyTurn := session.Turn{ID: uuid.New().String(), Speaker: session.SpeakerAgent, Text: replyText, Timestamp: now}

	snap := e.store.ApplyOrCreate(in.SessionID, in.History, func(s *session.Session) {
		aggregate.Merge(s, verdict, found, inboundTurn, replyTurn)
	})

	observability.RecordMessage("ok")
	if verdict.IsScam {
		observability.RecordScamVerdict()
	}
	for cat, vals := range found {
		observability.RecordArtifacts(string(cat), len(vals))
	}
	observability.SetActiveSessions(e.store.Len())

	if aggregate.ShouldFinalize(&snap, e.thresholds) {
		e.finalize(ctx, snap)
	}

	return replyText, nil
}

// Inspect returns a point-in-time snapshot for diagnostics.
func (e *Engine) Inspect(id string) (session.Session, error) {
	snap, ok := e.store.Get(id)
	if !ok {
		return session.Session{}, ErrSessionNotFound
	}
	return snap, nil
}

// Evict removes a session without reporting. Administrative path.
func (e *Engine) Evict(id string) bool {
	deleted := e.store.Delete(id)
	if deleted {
		observability.SetActiveSessions(e.store.Len())
	}
	return deleted
}

// SweepIdle evicts sessions idle longer than ttl.
func (e *Engine) SweepIdle(ttl time.Duration) int {
	evicted := e.store.SweepIdle(ttl)
	if evicted > 0 {
		log.Printf("[ENGINE] evicted %d idle session(s)", evicted)
		observability.RecordEviction(evicted)
		observability.SetActiveSessions(e.store.Len())
	}
	return evicted
}

// priorTurns returns the conversation context for this message: the
// stored history when the session exists, otherwise the cold-start
// history supplied with the request.
func (e *Engine) priorTurns(in Inbound) []session.Turn {
	if snap, ok := e.store.Get(in.SessionID); ok {
		return snap.History
	}
	return in.History
}

// generateReply asks the persona collaborator for the next line, falling
// back to the canned rotation on any failure. Reply generation can never
// fail the inbound request.
func (e *Engine) generateReply(ctx context.Context, in Inbound, prior []session.Turn, signals []string) string {
	text, err := e.generator.Generate(ctx, in.Text, prior, signals)
	if err == nil && text != "" {
		return text
	}
	if err != nil {
		log.Printf("[ENGINE] reply generation failed for session %s: %v", in.SessionID, err)
	}
	text, _ = reply.CannedGenerator{}.Generate(ctx, in.Text, prior, signals)
	return text
}

// finalize builds the dossier and attempts delivery. On confirmed
// success the session is deleted in the same logical step; on failure it
// is retained untouched so the next trigger retries. Concurrent triggers
// for the same session collapse into a single attempt.
func (e *Engine) finalize(ctx context.Context, snap session.Session) {
	e.mu.Lock()
	if _, busy := e.inflight[snap.ID]; busy {
		e.mu.Unlock()
		return
	}
	e.inflight[snap.ID] = struct{}{}
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.inflight, snap.ID)
		e.mu.Unlock()
	}()

	// Re-read the freshest state: merges may have landed since the
	// triggering snapshot was taken.
	if fresh, ok := e.store.Get(snap.ID); ok {
		snap = fresh
	}

	dossier := report.Build(snap)
	start := time.Now()
	err := e.sink.Deliver(ctx, dossier)
	duration := time.Since(start)

	if err != nil {
		observability.RecordDossierDelivery("failed", duration)
		log.Printf("[REPORT] delivery failed for session %s, retaining: %v", snap.ID, err)
		return
	}

	snap.Reported = true
	e.store.Delete(snap.ID)
	observability.RecordDossierDelivery("delivered", duration)
	observability.SetActiveSessions(e.store.Len())
	log.Printf("[REPORT] dossier delivered for session %s (%d artifacts, %d turns)",
		snap.ID, snap.CountableArtifacts(), snap.TurnCount)
}

func turnTexts(turns []session.Turn) []string {
	texts := make([]string, 0, len(turns))
	for _, t := range turns {
		texts = append(texts, t.Text)
	}
	return texts
}
