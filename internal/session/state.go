package session

// State is the negotiation state of one side of a call.
type State int

const (
	StateIdle State = iota
	StateAwaitingPeer
	StateNegotiating
	StateConnected
	StateEnded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingPeer:
		return "awaiting-peer"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateEnded:
		return "ended"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further negotiation can happen.
func (s State) Terminal() bool {
	return s == StateEnded || s == StateFailed
}

// Role says which side of the call this is. The host creates the room and
// makes the offer; the joiner answers.
type Role int

const (
	RoleHost Role = iota
	RoleJoiner
)

func (r Role) String() string {
	if r == RoleJoiner {
		return "joiner"
	}
	return "host"
}

// Event is anything that can move the state machine.
type Event int

const (
	// EventLocalReady fires once local media and transport exist.
	EventLocalReady Event = iota
	EventPeerJoined
	EventOffer
	EventAnswer
	EventCandidate
	EventFilterChange
	EventLocalCandidate
	EventLocalFilter
	EventTransportConnected
	EventTransportFailed
	EventHangup
	// EventJoinRetry asks a joiner whose join notice never reached the
	// relay to send it again.
	EventJoinRetry
)

func (e Event) String() string {
	switch e {
	case EventLocalReady:
		return "local-ready"
	case EventPeerJoined:
		return "peer-joined"
	case EventOffer:
		return "offer"
	case EventAnswer:
		return "answer"
	case EventCandidate:
		return "candidate"
	case EventFilterChange:
		return "filter-change"
	case EventLocalCandidate:
		return "local-candidate"
	case EventLocalFilter:
		return "local-filter"
	case EventTransportConnected:
		return "transport-connected"
	case EventTransportFailed:
		return "transport-failed"
	case EventHangup:
		return "hangup"
	case EventJoinRetry:
		return "join-retry"
	}
	return "unknown"
}

// Action is a side effect the orchestrator performs after a transition.
type Action int

const (
	// ActionSendJoin announces the joiner through the relay.
	ActionSendJoin Action = iota
	// ActionSendOffer creates a local offer and relays it.
	ActionSendOffer
	// ActionSendAnswer applies a remote offer, flushes buffered candidates
	// and relays the answer.
	ActionSendAnswer
	// ActionApplyAnswer applies a remote answer and flushes buffered
	// candidates.
	ActionApplyAnswer
	// ActionAddCandidate applies a remote candidate, or buffers it until a
	// remote description exists.
	ActionAddCandidate
	ActionSendCandidate
	ActionSendFilter
	ActionUpdateRemoteFilter
	ActionStartTimer
	ActionStopTimer
	ActionTeardown
)

func (a Action) String() string {
	switch a {
	case ActionSendJoin:
		return "send-join"
	case ActionSendOffer:
		return "send-offer"
	case ActionSendAnswer:
		return "send-answer"
	case ActionApplyAnswer:
		return "apply-answer"
	case ActionAddCandidate:
		return "add-candidate"
	case ActionSendCandidate:
		return "send-candidate"
	case ActionSendFilter:
		return "send-filter"
	case ActionUpdateRemoteFilter:
		return "update-remote-filter"
	case ActionStartTimer:
		return "start-timer"
	case ActionStopTimer:
		return "stop-timer"
	case ActionTeardown:
		return "teardown"
	}
	return "unknown"
}

// Transition is the whole negotiation protocol. It returns the next state
// and the actions to run, or ErrIgnored when the event does not apply in
// the current state and role. An ignored event never changes state.
func Transition(s State, r Role, e Event) (State, []Action, error) {
	if e == EventHangup {
		if s == StateEnded {
			return s, nil, nil
		}
		return StateEnded, []Action{ActionStopTimer, ActionTeardown}, nil
	}
	if s.Terminal() {
		return s, nil, ErrIgnored
	}

	switch e {
	case EventLocalReady:
		if s != StateIdle {
			break
		}
		if r == RoleHost {
			return StateAwaitingPeer, nil, nil
		}
		return StateNegotiating, []Action{ActionSendJoin}, nil

	case EventJoinRetry:
		if r == RoleJoiner && s == StateNegotiating {
			return s, []Action{ActionSendJoin}, nil
		}

	case EventPeerJoined:
		// Only a waiting host offers. A repeated join-room must not start a
		// second negotiation.
		if r == RoleHost && s == StateAwaitingPeer {
			return StateNegotiating, []Action{ActionSendOffer}, nil
		}

	case EventOffer:
		if r == RoleJoiner && s == StateNegotiating {
			return s, []Action{ActionSendAnswer}, nil
		}

	case EventAnswer:
		if r == RoleHost && s == StateNegotiating {
			return s, []Action{ActionApplyAnswer}, nil
		}

	case EventCandidate:
		if s == StateAwaitingPeer || s == StateNegotiating || s == StateConnected {
			return s, []Action{ActionAddCandidate}, nil
		}

	case EventLocalCandidate:
		if s == StateNegotiating || s == StateConnected {
			return s, []Action{ActionSendCandidate}, nil
		}

	case EventFilterChange:
		if s == StateNegotiating || s == StateConnected {
			return s, []Action{ActionUpdateRemoteFilter}, nil
		}

	case EventLocalFilter:
		if s == StateNegotiating || s == StateConnected {
			return s, []Action{ActionSendFilter}, nil
		}

	case EventTransportConnected:
		if s == StateNegotiating {
			return StateConnected, []Action{ActionStartTimer}, nil
		}

	case EventTransportFailed:
		if s == StateAwaitingPeer || s == StateNegotiating || s == StateConnected {
			return StateFailed, []Action{ActionStopTimer}, nil
		}
	}

	return s, nil, ErrIgnored
}
