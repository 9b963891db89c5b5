package events

const (
	// KindUserAudioFrame identifies raw audio captured from user input.
	KindUserAudioFrame Kind = "user_input.audio_frame"
	// KindUserTurnStarted identifies the start of a detected user turn.
	KindUserTurnStarted Kind = "user_input.turn_started"
	// KindUserTurnEnded identifies the end of a detected user turn.
	KindUserTurnEnded Kind = "user_input.turn_ended"
	// KindUserTranscriptInterimUpdated identifies mutable interim full transcript updates.
	KindUserTranscriptInterimUpdated Kind = "user_input.transcript_interim_updated"
	// KindUserTranscriptSegment identifies finalized append-only transcript segments.
	KindUserTranscriptSegment Kind = "user_input.transcript_segment"
	// KindUserTranscriptFinal identifies the final transcript for the utterance.
	KindUserTranscriptFinal Kind = "user_input.transcript_final"
	// KindUserPrompt identifies typed user input.
	KindUserPrompt Kind = "user_input.prompt"
)

// UserAudioFrame carries a user input audio frame.
type UserAudioFrame struct {
	Base
	Audio []byte
}

// NewUserAudioFrame creates a user input audio frame event.
func NewUserAudioFrame(audio []byte) UserAudioFrame {
	return UserAudioFrame{Base: NewBase(KindUserAudioFrame), Audio: audio}
}

// UserTurnStarted marks when the turn detector opens a user turn.
type UserTurnStarted struct {
	Base
	TurnID string
}

// NewUserTurnStarted creates a user turn started event.
func NewUserTurnStarted(turnID string) UserTurnStarted {
	return UserTurnStarted{Base: NewBase(KindUserTurnStarted), TurnID: turnID}
}

// UserTurnEnded marks when the turn detector closes a user turn.
type UserTurnEnded struct {
	Base
	TurnID string
}

// NewUserTurnEnded creates a user turn ended event.
func NewUserTurnEnded(turnID string) UserTurnEnded {
	return UserTurnEnded{Base: NewBase(KindUserTurnEnded), TurnID: turnID}
}

// UserTranscriptInterimUpdated carries the mutable interim full transcript snapshot.
type UserTranscriptInterimUpdated struct {
	Base
	Transcript string
}

// NewUserTranscriptInterimUpdated creates an interim transcript snapshot update event.
func NewUserTranscriptInterimUpdated(transcript string) UserTranscriptInterimUpdated {
	return UserTranscriptInterimUpdated{Base: NewBase(KindUserTranscriptInterimUpdated), Transcript: transcript}
}

// UserTranscriptSegment carries a finalized transcript segment.
type UserTranscriptSegment struct {
	Base
	Segment string
}

// NewUserTranscriptSegment creates a finalized transcript segment event.
func NewUserTranscriptSegment(segment string) UserTranscriptSegment {
	return UserTranscriptSegment{Base: NewBase(KindUserTranscriptSegment), Segment: segment}
}

// UserTranscriptFinal carries the final transcript for the utterance.
type UserTranscriptFinal struct {
	Base
	Transcript string
}

// NewUserTranscriptFinal creates a final transcript event.
func NewUserTranscriptFinal(transcript string) UserTranscriptFinal {
	return UserTranscriptFinal{Base: NewBase(KindUserTranscriptFinal), Transcript: transcript}
}

// UserPrompt carries typed user input.
type UserPrompt struct {
	Base
	Prompt string
}

// NewUserPrompt creates a user prompt event.
func NewUserPrompt(prompt string) UserPrompt {
	return UserPrompt{Base: NewBase(KindUserPrompt), Prompt: prompt}
}
