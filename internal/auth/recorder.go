// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package auth

// Outcome labels passed to Recorder.AuthAttempt.
const (
	OutcomeSuccess   = "success"
	OutcomeAnonymous = "anonymous"
	OutcomeMalformed = "malformed"
	OutcomeRejected  = "rejected"
	OutcomeError     = "error"
)

// Session and reset event labels.
const (
	EventSessionCreated   = "created"
	EventSessionDestroyed = "destroyed"
	EventSessionExpired   = "expired"
	EventResetIssued      = "issued"
	EventResetApplied     = "applied"
	EventResetRejected    = "rejected"
)

// Recorder receives authentication outcomes for metrics.
type Recorder interface {
	AuthAttempt(strategy, outcome string)
	SessionEvent(event string)
	ResetEvent(event string)
}

// NopRecorder discards everything.
type NopRecorder struct{}

// AuthAttempt implements Recorder.
func (NopRecorder) AuthAttempt(string, string) {}

// SessionEvent implements Recorder.
func (NopRecorder) SessionEvent(string) {}

// ResetEvent implements Recorder.
func (NopRecorder) ResetEvent(string) {}
