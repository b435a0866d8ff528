// Package state persists per-user conversation sessions for Telegram bots.
//
// A Store keeps the current conversation step and a small string map of
// selections. Stores expire sessions after a retention period; what counts as
// "idle" is decided by the caller from Session.UpdatedAt.
package state
