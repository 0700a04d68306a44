package relay

import (
	"context"
	"errors"
	"io"
	"strconv"
	"time"

	"chatrelay/internal/metrics"
	"chatrelay/internal/models"
	"chatrelay/internal/upstream"
)

// GenericErrorMessage is the only failure text clients ever see from the
// relay itself; internals stay in the server log.
const GenericErrorMessage = "an unexpected error occurred"

// ConversationStore is the narrow persistence surface the relay consumes.
type ConversationStore interface {
	GetOrCreate(ctx context.Context, sessionID string, now time.Time) (*models.Conversation, error)
	Append(ctx context.Context, conversationID int64, role models.Role, content string, at time.Time) (*models.Message, error)
	RecentHistory(ctx context.Context, conversationID int64, limit int) ([]models.HistoryEntry, error)
}

// Upstream opens the streaming completion request.
type Upstream interface {
	OpenStream(ctx context.Context, messages []models.HistoryEntry) (io.ReadCloser, error)
}

// Orchestrator drives one chat turn end to end: resolve the conversation,
// record the user message, stream the completion through the parser, and
// durably record the assistant reply exactly once however the stream ends.
type Orchestrator struct {
	store        ConversationStore
	upstream     Upstream
	systemPrompt string
	historyLimit int
	metrics      *metrics.Metrics
}

func NewOrchestrator(store ConversationStore, up Upstream, systemPrompt string, historyLimit int, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		store:        store,
		upstream:     up,
		systemPrompt: systemPrompt,
		historyLimit: historyLimit,
		metrics:      m,
	}
}

// prepare resolves the conversation, appends the user turn, and loads the
// history window (which therefore includes the turn just appended). Failures
// here happen before any response bytes, so callers map them to a status.
func (o *Orchestrator) prepare(ctx context.Context, turn ChatTurn) (*models.Conversation, []models.HistoryEntry, error) {
	now := time.Now().UTC()
	conv, err := o.store.GetOrCreate(ctx, turn.SessionID, now)
	if err != nil {
		return nil, nil, err
	}
	if _, err := o.store.Append(ctx, conv.ID, models.RoleUser, turn.Message, time.Now().UTC()); err != nil {
		return nil, nil, err
	}
	history, err := o.store.RecentHistory(ctx, conv.ID, o.historyLimit)
	if err != nil {
		return nil, nil, err
	}
	messages := make([]models.HistoryEntry, 0, len(history)+1)
	messages = append(messages, models.HistoryEntry{Role: models.RoleSystem, Content: o.systemPrompt})
	messages = append(messages, history...)
	return conv, messages, nil
}

// Stream runs the relay in streaming mode. An error returned with
// ew.Started() false means nothing was written and the caller owes the client
// a status; once the stream has begun the orchestrator settles the connection
// itself with a single terminal event.
func (o *Orchestrator) Stream(ctx context.Context, turn ChatTurn, ew *EventWriter) error {
	conv, messages, err := o.prepare(ctx, turn)
	if err != nil {
		return err
	}
	convID := strconv.FormatInt(conv.ID, 10)

	if err := ew.Send(Start{ConversationID: convID}); err != nil {
		return err
	}

	body, err := o.upstream.OpenStream(ctx, messages)
	if err != nil {
		o.metrics.UpstreamFailed()
		return o.failStream(ctx, ew, err)
	}
	defer body.Close()

	final, err := upstream.Drain(body, func(fragment string) error {
		o.metrics.TokenRelayed()
		return ew.Send(Token{Token: fragment})
	})
	if err != nil {
		// the stream never finished; there is no assistant turn to keep
		return o.failStream(ctx, ew, err)
	}

	// the upstream stream completed: persist even if the client has since
	// disconnected, fetched data is not discarded
	if _, err := o.store.Append(context.WithoutCancel(ctx), conv.ID, models.RoleAssistant, final, time.Now().UTC()); err != nil {
		return o.failStream(ctx, ew, err)
	}

	if err := ew.Send(Done{Message: final, ConversationID: convID}); err != nil {
		return err
	}
	ew.Close()
	return nil
}

// Complete runs the same pipeline with tokens buffered, for the
// non-streaming variant.
func (o *Orchestrator) Complete(ctx context.Context, turn ChatTurn) (conversationID string, message string, err error) {
	conv, messages, err := o.prepare(ctx, turn)
	if err != nil {
		return "", "", err
	}

	body, err := o.upstream.OpenStream(ctx, messages)
	if err != nil {
		o.metrics.UpstreamFailed()
		return "", "", err
	}
	defer body.Close()

	final, err := upstream.Drain(body, func(string) error {
		o.metrics.TokenRelayed()
		return nil
	})
	if err != nil {
		return "", "", err
	}

	if _, err := o.store.Append(context.WithoutCancel(ctx), conv.ID, models.RoleAssistant, final, time.Now().UTC()); err != nil {
		return "", "", err
	}
	return strconv.FormatInt(conv.ID, 10), final, nil
}

// failStream settles an already-started stream: one error event with a
// generic message, then close. When the client itself is gone no further
// write is attempted.
func (o *Orchestrator) failStream(ctx context.Context, ew *EventWriter, err error) error {
	if ctx.Err() == nil && !errors.Is(err, context.Canceled) {
		_ = ew.Send(Error{Error: GenericErrorMessage})
	}
	ew.Close()
	return err
}
