// Package scheduler debounces file changes into commit attempts.
//
// A Scheduler keeps, per repository key, the set of paths changed since the
// last commit and one timer. Each RecordChange restarts the key's timer, so
// a commit attempt happens once the key has been quiet for the configured
// delay. When the timer fires the pending set is swapped for an empty one
// under the scheduler's mutex and handed to the Committer after the mutex
// is released: git work for one key never blocks another key or the event
// producer. A key never has two commits running at once.
//
// Close stops every timer, waits for running commits and commits whatever
// is still pending, so a clean shutdown loses nothing.
package scheduler
