package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"goa.design/clue/log"

	"github.com/estia-labs/chatbridge/agentapi"
	"github.com/estia-labs/chatbridge/components"
	"github.com/estia-labs/chatbridge/ident"
	"github.com/estia-labs/chatbridge/preferences"
	"github.com/estia-labs/chatbridge/telemetry"
)

// upstreamErrorText is the single user-visible message for upstream
// failures. The turn is never retried automatically; the user may resend.
const upstreamErrorText = "I apologize, but I encountered an issue generating a response. Please try again."

type (
	// EventStream is the consumed side of an agent run.
	EventStream interface {
		Next() (agentapi.StateEvent, error)
		Close() error
	}

	// AgentStreamer starts agent runs. *agentapi.Client satisfies it via
	// NewAgentStreamer.
	AgentStreamer interface {
		Stream(ctx context.Context, threadID, userMessage string) (EventStream, error)
	}

	// MessageHandler may claim a turn before the upstream is consulted.
	// Handlers run in registration order; the first to return true stops
	// the chain and the upstream call is skipped. Events emitted by the
	// handler are the whole turn.
	MessageHandler interface {
		Handle(ctx context.Context, turn Turn, sink Sink) (bool, error)
	}

	// Turn is one user message within a front-end thread.
	Turn struct {
		// ThreadID is the front-end thread identifier.
		ThreadID string
		// UserID is the opaque session user identifier.
		UserID string
		// Text is the user's message.
		Text string
	}

	// Options configures a Bridge.
	Options struct {
		// Agent streams upstream runs. Required.
		Agent AgentStreamer
		// Mapper resolves front-end thread IDs to agent thread UUIDs.
		// Required.
		Mapper ident.Mapper
		// Preferences provides the per-user, per-thread preference records
		// applied at render time. Required.
		Preferences preferences.Store
		// Registry renders widgets from turn payloads. Required.
		Registry *components.Registry
		// Metrics records turn counters. Optional.
		Metrics *telemetry.Metrics
		// Handlers are consulted in order before the upstream. Optional.
		Handlers []MessageHandler
	}

	// Bridge drives one upstream run per turn and emits front-end events
	// once the run is terminal. Bridges are safe for concurrent turns on
	// distinct threads; turns within one thread are expected to be
	// serialized by the protocol layer.
	Bridge struct {
		agent    AgentStreamer
		mapper   ident.Mapper
		prefs    preferences.Store
		registry *components.Registry
		metrics  *telemetry.Metrics
		handlers []MessageHandler
	}

	// TurnOutcome reports what a completed turn produced, so callers can
	// persist the payload for historical re-rendering.
	TurnOutcome struct {
		// Payload is the structured turn payload, empty when the turn
		// produced no structured state.
		Payload components.Payload
		// AssistantText is the emitted assistant text, synthesized or not.
		AssistantText string
	}

	clientStreamer struct {
		client *agentapi.Client
	}
)

// NewAgentStreamer adapts the concrete agent client to AgentStreamer.
func NewAgentStreamer(client *agentapi.Client) AgentStreamer {
	return clientStreamer{client: client}
}

func (s clientStreamer) Stream(ctx context.Context, threadID, userMessage string) (EventStream, error) {
	return s.client.Stream(ctx, threadID, userMessage)
}

// New builds a Bridge.
func New(opts Options) (*Bridge, error) {
	if opts.Agent == nil {
		return nil, errors.New("agent streamer is required")
	}
	if opts.Mapper == nil {
		return nil, errors.New("mapper is required")
	}
	if opts.Preferences == nil {
		return nil, errors.New("preference store is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("registry is required")
	}
	return &Bridge{
		agent:    opts.Agent,
		mapper:   opts.Mapper,
		prefs:    opts.Preferences,
		registry: opts.Registry,
		metrics:  opts.Metrics,
		handlers: opts.Handlers,
	}, nil
}

// HandleTurn runs one turn: it resolves the agent thread, streams the run
// to its terminal frame, then emits the assistant message (or a synthesized
// intro when only structured results arrived) followed by the rendered
// widgets. Upstream failures become a single error event; the thread and
// its mapping stay intact for a retry.
func (b *Bridge) HandleTurn(ctx context.Context, turn Turn, sink Sink) (TurnOutcome, error) {
	for _, h := range b.handlers {
		handled, err := h.Handle(ctx, turn, sink)
		if err != nil {
			return TurnOutcome{}, err
		}
		if handled {
			return TurnOutcome{}, nil
		}
	}

	agentThreadID, err := b.mapper.Resolve(ctx, turn.ThreadID)
	if err != nil {
		return TurnOutcome{}, fmt.Errorf("resolve thread: %w", err)
	}

	final, err := b.consumeRun(ctx, agentThreadID, turn.Text)
	if err != nil {
		log.Errorf(ctx, err, "upstream run failed")
		b.metrics.UpstreamError(ctx)
		b.metrics.Turn(ctx, "error")
		if sendErr := sink.Send(ctx, NewTurnError(turn.ThreadID, upstreamErrorText)); sendErr != nil {
			return TurnOutcome{}, sendErr
		}
		return TurnOutcome{}, nil
	}

	payload := turnPayload(turn, final)

	var assistantText string
	if msg := final.LatestAssistantMessage(); msg != nil && msg.Content != "" {
		assistantText = msg.Content
	} else if results := payload.Results(); len(results) > 0 {
		assistantText = fmt.Sprintf("Found %d results", len(results))
	}
	payload.AssistantText = assistantText

	if assistantText == "" && len(payload.Fields) == 0 {
		// An empty turn: nothing to say, nothing to render.
		b.metrics.Turn(ctx, "empty")
		return TurnOutcome{}, nil
	}

	if assistantText != "" {
		if err := sink.Send(ctx, NewAssistantMessage(turn.ThreadID, assistantText)); err != nil {
			return TurnOutcome{}, err
		}
	}

	if err := b.EmitWidgets(ctx, turn, payload, sink); err != nil {
		return TurnOutcome{}, err
	}

	b.metrics.Turn(ctx, "message")
	return TurnOutcome{Payload: payload, AssistantText: assistantText}, nil
}

// EmitWidgets renders the payload through the registry with the user's
// current preferences and sends one widget event per rendered widget, in
// registry order.
func (b *Bridge) EmitWidgets(ctx context.Context, turn Turn, payload components.Payload, sink Sink) error {
	prefs, err := b.prefs.Get(ctx, turn.UserID, turn.ThreadID)
	if err != nil {
		log.Errorf(ctx, err, "loading preferences, rendering without them")
		prefs = preferences.NewRecord()
	}
	for _, w := range b.registry.Widgets(ctx, payload, prefs) {
		if err := sink.Send(ctx, NewWidget(turn.ThreadID, w)); err != nil {
			return err
		}
		b.metrics.Widget(ctx, w.Rule)
	}
	return nil
}

// consumeRun drains the upstream stream until its terminal frame and
// returns that frame. When the stream closes without an explicit terminal
// frame, the last state frame observed is treated as terminal.
func (b *Bridge) consumeRun(ctx context.Context, agentThreadID, text string) (agentapi.StateEvent, error) {
	stream, err := b.agent.Stream(ctx, agentThreadID, text)
	if err != nil {
		return agentapi.StateEvent{}, err
	}
	defer stream.Close()

	var final agentapi.StateEvent
	for {
		ev, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return final, nil
		}
		if err != nil {
			return agentapi.StateEvent{}, err
		}
		if ev.Meta != nil {
			continue
		}
		final = ev
		if ev.IsTerminal() {
			return final, nil
		}
	}
}

// turnPayload assembles the render payload from the terminal frame.
func turnPayload(turn Turn, final agentapi.StateEvent) components.Payload {
	var fields map[string]json.RawMessage
	if len(final.Fields) > 0 {
		fields = make(map[string]json.RawMessage, len(final.Fields))
		for k, v := range final.Fields {
			fields[k] = v
		}
	}
	return components.Payload{
		UserQuery: turn.Text,
		Fields:    fields,
	}
}
