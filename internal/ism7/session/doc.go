// Package session runs the ISM7 protocol over one gateway connection.
//
// The session logs on, fetches the bus configuration, pulls every
// configured parameter once per bus address, subscribes to push updates
// and keeps the connection alive:
//
//	connecting → authenticating → fetching_config → bootstrapping → subscribed
//
// Every step after the logon request is the continuation of a dispatcher
// callback. Three loops share the connection: socket read, frame
// decode-and-dispatch and keep-alive. Any protocol or decode error ends
// [Session.Run]; reconnecting is the caller's job:
//
//	s := session.New(conn, registry, publisher, session.Config{Host: host, Password: pw}, session.Options{Logger: log})
//	err := s.Run(ctx)
//
// Commands are sent with [Session.Write] once the session is subscribed.
package session
