// Package ledger implements the soulbound token registry: a unique-asset
// ledger in which each holder owns at most one token, tokens are issued only
// by the administrator, and a token can leave its holder only by being
// burned by that holder.
//
// Every state-changing operation runs in one storage transaction. Effects are
// written before any receiver callback so a callback that re-enters the
// registry through its Session observes them. Transfer events reach the
// EventSink only after the transaction commits.
package ledger
