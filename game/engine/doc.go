// Package engine provides the board model and movement rules for the maze
// chase game.
//
// A Board is a fixed grid of cells. Each cell may be a wall, hold a
// collectible, be the level's portal, and carry at most one agent marker.
// Agents are either the Runner (player controlled or scripted) or Chasers
// (scripted or random). The engine is single threaded: callers serialise
// access, which the sim package does with one lock per simulation.
//
// Usage:
//
//	board := engine.NewBoard(5, 5)
//	runner := &engine.Agent{Script: []engine.Command{engine.NewCommand(engine.OpEast, 1)}}
//	if err := board.PlaceRunner(runner); err != nil {
//		log.Fatal(err)
//	}
//
//	switch board.Step(runner) {
//	case engine.PortalReached:
//		// level won
//	case engine.RunnerDestroyed:
//		// level lost
//	}
//
// Movement Rules:
//
// Every command first honours the agent's PASSO throttle. Direction commands
// move one cell; the portal is checked before walls, so a runner stepping on
// the portal always wins. Runners walking into a chaser and chasers walking
// into the runner both destroy the runner. A charged chaser slides until it
// meets a wall, another chaser, the portal or the grid edge, destroying the
// runner if the slide enters its cell.
//
// Clone produces the deep copy used for checkpoints and Validate checks that
// markers and agent records agree before a copy is trusted.
package engine
