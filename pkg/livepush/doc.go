// Package livepush delivers in-app notifications to connected clients over
// WebSocket.
//
// A Hub keeps every open session keyed by user. The engine asks it which
// sessions a user has (Sessions) and the dispatcher writes to each one
// (SendInAppLive):
//
//	hub := livepush.NewHub(cfg, livepush.WithLogger(log))
//	senders := notifications.Senders{Live: hub}
//	engine := notifications.NewEngine(store, prefs, subs, dispatcher,
//	    notifications.WithSessions(hub))
//
// Frames are JSON envelopes:
//
//	{"type":"connected","data":{"session_id":"...","ping_interval_ms":25000}}
//	{"type":"notification","data":{...}}
//	{"type":"digest","data":{...}}
//
// Clients send {"type":"ping"} every PingInterval and receive
// {"type":"pong"}. A connection that stays silent for PongTimeout is closed;
// reconnecting is up to the client. A session whose send buffer fills up is
// dropped rather than slowing down delivery to everyone else.
package livepush
