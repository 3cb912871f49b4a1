package runtime

import (
	"context"
	"fmt"

	"github.com/agentrt/runtime/internal/eventstore"
	"github.com/agentrt/runtime/internal/hub"
	"github.com/agentrt/runtime/internal/ids"
)

// eventStoreReplayer adapts an eventstore.Store into a hub.Replayer: it
// turns the durable event log back into the same Envelope shape a live
// subscriber receives, so Subscribe's replay-then-live handoff (§4.6)
// doesn't need a second representation of session history.
//
// Only the event kinds that have a durable, replayable meaning are
// converted: message_appended, active_message_changed, and the
// session_metadata_updated keys the runtime itself writes (title,
// default_model). session_created, tool_call_status_changed, and
// approval_recorded are either redundant with what message_appended
// already implies (tool status) or process-internal bookkeeping
// (approvals) that a client never needs replayed.
type eventStoreReplayer struct {
	store eventstore.Store
}

// NewEventStoreReplayer wraps store for use as a hub.Replayer.
func NewEventStoreReplayer(store eventstore.Store) hub.Replayer {
	return &eventStoreReplayer{store: store}
}

func (r *eventStoreReplayer) ReplaySince(ctx context.Context, session ids.SessionID, sinceSeq uint64) ([]hub.Envelope, error) {
	events, err := r.store.LoadSince(ctx, session, sinceSeq)
	if err != nil {
		if err == eventstore.ErrNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("load session log since %d: %w", sinceSeq, err)
	}

	var defaultModel string
	envelopes := make([]hub.Envelope, 0, len(events))
	for _, e := range events {
		base := hub.Envelope{SessionID: session, Seq: e.Seq, Timestamp: e.Timestamp}

		switch e.Type {
		case eventstore.EventSessionCreated:
			if e.SessionCreated != nil {
				defaultModel = e.SessionCreated.DefaultModel
			}
			continue

		case eventstore.EventMessageAppended:
			if e.MessageAppended == nil {
				continue
			}
			msg, err := e.MessageAppended.DecodeMessage()
			if err != nil {
				return nil, fmt.Errorf("decode message at seq %d: %w", e.Seq, err)
			}
			base.Event = hub.Event{Kind: hub.KindMessageAdded, MessageAdded: &hub.MessageAddedData{Message: msg, Model: defaultModel}}

		case eventstore.EventActiveMessageChanged:
			if e.ActiveMessageChanged == nil {
				continue
			}
			base.Event = hub.Event{Kind: hub.KindActiveMessageIDChanged, ActiveMessageChanged: &hub.ActiveMessageChangedData{MessageID: e.ActiveMessageChanged.MessageID}}

		case eventstore.EventSessionMetadataUpdated:
			if e.SessionMetadataUpdated == nil {
				continue
			}
			md := e.SessionMetadataUpdated.Metadata
			if model, ok := md["default_model"]; ok {
				defaultModel = model
				envelopes = append(envelopes, hub.Envelope{
					SessionID: session, Seq: e.Seq, Timestamp: e.Timestamp,
					Event: hub.Event{Kind: hub.KindModelChanged, ModelChanged: &hub.ModelChangedData{Model: model}},
				})
			}
			if title, ok := md["title"]; ok {
				envelopes = append(envelopes, hub.Envelope{
					SessionID: session, Seq: e.Seq, Timestamp: e.Timestamp,
					Event: hub.Event{Kind: hub.KindTitleGenerated, TitleGenerated: &hub.TitleGeneratedData{Title: title}},
				})
			}
			continue

		default:
			continue
		}

		envelopes = append(envelopes, base)
	}
	return envelopes, nil
}
