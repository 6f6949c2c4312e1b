// Package session runs maze chase sessions.
//
// A Controller plays every level returned by a LevelLoader in order. Each
// level runs as a sim.Simulation; the controller renders a Frame roughly 30
// times a second, forwards key presses from an InputSource and reacts to
// pending checkpoints by handing the simulation to a checkpoint.Manager.
// Points carry over between levels. A level that fails to load is skipped.
//
// The Manager keeps a registry of sessions running in the background for
// the HTTP, websocket and MCP transports. Session IDs are case-insensitive.
//
// Usage:
//
//	levels, _ := config.NewManager("levels")
//	ctrl := session.NewController(levels, screen, keyboard, session.Options{})
//	result, err := ctrl.Run(ctx)
package session
