// Package dispatch correlates asynchronous ISM7 responses to the requests
// waiting for them.
//
// Handlers are registered against a typed [Key]: the message kind plus, for
// bundle responses, the bundle id. One-shot handlers ([Dispatcher.Once])
// serve request/response pairs; persistent handlers
// ([Dispatcher.Subscribe]) serve push bundles and keep-alives.
package dispatch
