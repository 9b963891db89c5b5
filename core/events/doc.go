// Package events defines the typed orchestration event contract.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - user_input.*
//   - vision.*
//   - assistant_response.*
//   - assistant_speech.*
//   - assistant_playback.*
//   - response_state.*
//
// Semantics used across the package:
//
//   - Frame: binary audio frame/chunk payload.
//   - Segment: append-only text piece emitted in stream order.
//   - Updated: mutable point-in-time snapshot that can change over time.
//   - Final: terminal immutable text for the current stream.
//   - Ended: lifecycle boundary indicating stream completion.
//
// user_input events
//
//   - UserAudioFrame (user_input.audio_frame): raw user input audio frame.
//   - UserTurnStarted (user_input.turn_started): the turn detector opened a
//     user turn.
//   - UserTurnEnded (user_input.turn_ended): the turn detector closed the
//     user turn after the endpointing delay.
//   - UserTranscriptInterimUpdated (user_input.transcript_interim_updated):
//     mutable interim full transcript snapshot.
//   - UserTranscriptSegment (user_input.transcript_segment): finalized,
//     append-only transcript segment.
//   - UserTranscriptFinal (user_input.transcript_final): terminal full
//     transcript for the utterance.
//   - UserPrompt (user_input.prompt): typed text submitted instead of speech.
//
// vision events
//
//   - SnapshotCaptured (vision.snapshot_captured): a frame was attached to the
//     user turn.
//   - SnapshotAbsent (vision.snapshot_absent): the user turn is text-only;
//     carries the capture error when there was one.
//
// assistant_response events
//
//   - AssistantResponseStarted (assistant_response.started): response
//     generation started.
//   - AssistantResponseSegment (assistant_response.segment): streamed response
//     text segment.
//   - AssistantResponseFinal (assistant_response.final): response text stream
//     is complete; carries the full text.
//
// assistant_speech events
//
//   - AssistantSpeechFrame (assistant_speech.frame): synthesized speech audio
//     frame forwarded to the playback sink.
//
// assistant_playback events
//
//   - AssistantPlaybackEnded (assistant_playback.ended): every synthesized
//     frame of the response was handed to the playback sink.
//
// response_state events
//
//   - ResponseStateChanged (response_state.changed): the orchestrator moved
//     between listening, assembling, generating and speaking.
//   - ResponseCompleted (response_state.completed): the response was appended
//     to the conversation.
//   - ResponseCancelled (response_state.cancelled): the response was abandoned
//     because the user started a new turn.
//   - ResponseFailed (response_state.failed): a model or synthesis backend
//     failed and the response was aborted.
package events
