package session

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// Session states.
const (
	StateConnecting     = "connecting"
	StateAuthenticating = "authenticating"
	StateFetchingConfig = "fetching_config"
	StateBootstrapping  = "bootstrapping"
	StateSubscribed     = "subscribed"
	StateClosed         = "closed"
)

// State machine events.
const (
	eventAuthenticate = "authenticate"
	eventFetchConfig  = "fetch_config"
	eventBootstrap    = "bootstrap"
	eventSubscribe    = "subscribe"
	eventClose        = "close"
)

func newStateMachine(onEnter func(from, to string)) *fsm.FSM {
	return fsm.NewFSM(
		StateConnecting,
		fsm.Events{
			{Name: eventAuthenticate, Src: []string{StateConnecting}, Dst: StateAuthenticating},
			{Name: eventFetchConfig, Src: []string{StateAuthenticating}, Dst: StateFetchingConfig},
			{Name: eventBootstrap, Src: []string{StateFetchingConfig}, Dst: StateBootstrapping},
			{Name: eventSubscribe, Src: []string{StateBootstrapping, StateSubscribed}, Dst: StateSubscribed},
			{Name: eventClose, Src: []string{
				StateConnecting, StateAuthenticating, StateFetchingConfig, StateBootstrapping, StateSubscribed,
			}, Dst: StateClosed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				onEnter(e.Src, e.Dst)
			},
		},
	)
}

// transition fires a state machine event. Re-entering the current state
// is not an error.
func (s *Session) transition(ctx context.Context, event string) error {
	err := s.state.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	if err == nil || errors.As(err, &noTransition) {
		return nil
	}
	return err
}

// State returns the current session state.
func (s *Session) State() string {
	return s.state.Current()
}
