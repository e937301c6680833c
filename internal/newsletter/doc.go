// Package newsletter holds the domain model shared by the publishing pipeline:
// newsletters, editions and their content blocks, subscribers, and per-recipient
// tracking records.
//
// The edition lifecycle is a small forward-only state machine:
//
//	draft -> scheduled -> sending -> sent
//	                              \-> failed
//
// Transitions are validated by EditionStatus.CanTransitionTo and applied through
// the Edition mutators (Schedule, BeginSending, MarkSent, MarkFailed), which leave
// the edition untouched when the move is not legal.
//
// An edition ends in StatusSent once the fan-out loop completes, even when some
// recipients failed. StatusFailed is reserved for errors that abort a send after
// it entered StatusSending.
package newsletter
