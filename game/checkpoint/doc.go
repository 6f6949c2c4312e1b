// Package checkpoint implements single-slot checkpoint and restore for a
// running level.
//
// When the runner issues G the simulation freezes. Create then suspends the
// live units, deep copies the board into a fork and plays the rest of the
// session on the fork in its own goroutine while the original waits on a
// channel. A branch that loses restores the original exactly as it was; a
// branch that quits abandons it; a branch that finishes every level
// completes the session. Branches never take checkpoints of their own.
package checkpoint
