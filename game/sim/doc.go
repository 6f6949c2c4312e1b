// Package sim runs a level as a set of concurrent agent units.
//
// Each agent gets its own goroutine (an errgroup per run). Every unit sleeps
// without holding the simulation lock, then takes the lock, re-checks that
// the level is still running and applies at most one command. The runner
// unit polls for injected input every InputPoll and pauses for one Tick after
// a scripted command; chaser units move once per Tick.
//
// A G command marks a checkpoint as pending. While pending, units skip their
// turns so the board stays exactly as it was when G was consumed; the
// checkpoint package then suspends the units, forks the simulation and
// resumes or finishes it depending on the branch result.
package sim
