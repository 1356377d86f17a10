// Package ws implements the WebSocket hub mounted at /ws/stream.
//
// Hub.Run broadcasts the current stats snapshot to every connected client
// on a fixed interval (5s by default). Hub.ServeHTTP upgrades a connection
// and sends the snapshot immediately, so a new client has data right away.
// Clients whose send buffer is full are disconnected.
//
// Message format:
//
//	{
//	  "event": "stats",
//	  "data":  { /* same schema as GET /api/stats */ }
//	}
package ws
