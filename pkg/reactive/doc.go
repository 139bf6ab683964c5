// Package reactive provides the signal core underneath the secdash store:
// Signal[T] value containers, lazy Memo[T] derivations with automatic
// dependency tracking, and Batch for coalescing notifications.
//
// Dependency tracking is scoped per goroutine. A read inside a tracked
// context (a memo computation, or an explicit WithListener scope) subscribes
// the active listener to the signal; untracked reads use Peek or Untracked.
package reactive
