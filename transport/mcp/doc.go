// Package mcp exposes grid explorer sessions to AI agents over the Model
// Context Protocol.
//
// Client is a thin proxy: every tool call becomes a REST request against a
// running API server, so agents and browsers share the same sessions.
//
// Tools:
//   - create_session, list_sessions, get_session
//   - world_state: pose, heading, progress and overlay status
//   - drive: hold keys for N fixed frames; stops when an overlay opens
//   - close_overlay: close the open overlay and resume
//   - reset_world, list_zones (with distance and bearing), list_configs
//   - game_instructions
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
