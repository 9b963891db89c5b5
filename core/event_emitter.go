package orchestration

import "github.com/koscakluka/ema-vision/core/events"

type eventEmitter func(events.Event)

func noopEventEmitter(events.Event) {}

func newCallbackEventEmitter(opts OrchestrateOptions) eventEmitter {
	return func(event events.Event) {
		if opts.onEvent != nil {
			opts.onEvent(event)
		}

		switch typedEvent := event.(type) {
		case events.UserAudioFrame:
			if opts.onInputAudio != nil {
				opts.onInputAudio(typedEvent.Audio)
			}
		case events.UserTurnStarted:
			if opts.onTurnStarted != nil {
				opts.onTurnStarted(typedEvent.TurnID)
			}
		case events.UserTurnEnded:
			if opts.onTurnEnded != nil {
				opts.onTurnEnded(typedEvent.TurnID)
			}
		case events.UserTranscriptInterimUpdated:
			if opts.onInterimTranscription != nil {
				opts.onInterimTranscription(typedEvent.Transcript)
			}
		case events.UserTranscriptFinal:
			if opts.onTranscription != nil {
				opts.onTranscription(typedEvent.Transcript)
			}
		case events.SnapshotCaptured:
			if opts.onSnapshot != nil {
				opts.onSnapshot(typedEvent.TrackID, typedEvent.Width, typedEvent.Height)
			}
		case events.AssistantResponseSegment:
			if opts.onResponse != nil {
				opts.onResponse(typedEvent.Segment)
			}
		case events.AssistantResponseFinal:
			if opts.onResponseEnd != nil {
				opts.onResponseEnd(typedEvent.Text)
			}
		case events.AssistantSpeechFrame:
			if opts.onAudio != nil {
				opts.onAudio(typedEvent.Audio)
			}
		case events.AssistantPlaybackEnded:
			if opts.onAudioEnded != nil {
				opts.onAudioEnded(typedEvent.Transcript)
			}
		case events.ResponseStateChanged:
			if opts.onStateChanged != nil {
				opts.onStateChanged(parseState(typedEvent.From), parseState(typedEvent.To))
			}
		case events.ResponseCancelled:
			if opts.onCancellation != nil {
				opts.onCancellation()
			}
		case events.ResponseFailed:
			if opts.onFailure != nil {
				opts.onFailure(typedEvent.Err)
			}
		}
	}
}
