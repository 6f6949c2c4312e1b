// Package service provides the business logic layer for the maze chase game.
//
// The service package implements:
//   - Starting sessions over all levels or a chosen subset
//   - Routing player commands to the running session
//   - Session and level listings for the HTTP and MCP transports
//
// Core Interfaces:
//
// GameService is the main service interface providing high-level game operations.
// SessionManager runs and tracks live sessions.
// LevelManager lists and builds levels from the level directory.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the session controller. Every session plays in its own goroutine; the
// service only queues input and reads the latest rendered frame, so calls
// never block on the simulation.
//
// Usage:
//
//	levels, _ := config.NewManager("levels")
//	svc := service.NewGameService(session.NewManager(), levels, hub, session.Options{})
//
//	info, err := svc.CreateSession(ctx, service.CreateSessionRequest{})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	res, err := svc.SendCommand(ctx, info.ID, "E")
package service
