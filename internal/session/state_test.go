package session

import (
	"errors"
	"slices"
	"testing"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		state   State
		role    Role
		event   Event
		want    State
		actions []Action
		ignored bool
	}{
		{"host ready", StateIdle, RoleHost, EventLocalReady, StateAwaitingPeer, nil, false},
		{"joiner ready", StateIdle, RoleJoiner, EventLocalReady, StateNegotiating, []Action{ActionSendJoin}, false},
		{"ready twice", StateAwaitingPeer, RoleHost, EventLocalReady, StateAwaitingPeer, nil, true},
		{"joiner retries join", StateNegotiating, RoleJoiner, EventJoinRetry, StateNegotiating, []Action{ActionSendJoin}, false},
		{"join retry when connected", StateConnected, RoleJoiner, EventJoinRetry, StateConnected, nil, true},
		{"host join retry", StateAwaitingPeer, RoleHost, EventJoinRetry, StateAwaitingPeer, nil, true},
		{"host sees join", StateAwaitingPeer, RoleHost, EventPeerJoined, StateNegotiating, []Action{ActionSendOffer}, false},
		{"duplicate join while negotiating", StateNegotiating, RoleHost, EventPeerJoined, StateNegotiating, nil, true},
		{"duplicate join while connected", StateConnected, RoleHost, EventPeerJoined, StateConnected, nil, true},
		{"joiner sees join", StateNegotiating, RoleJoiner, EventPeerJoined, StateNegotiating, nil, true},
		{"join before ready", StateIdle, RoleHost, EventPeerJoined, StateIdle, nil, true},
		{"joiner gets offer", StateNegotiating, RoleJoiner, EventOffer, StateNegotiating, []Action{ActionSendAnswer}, false},
		{"joiner gets offer when connected", StateConnected, RoleJoiner, EventOffer, StateConnected, nil, true},
		{"host gets offer", StateAwaitingPeer, RoleHost, EventOffer, StateAwaitingPeer, nil, true},
		{"host gets answer", StateNegotiating, RoleHost, EventAnswer, StateNegotiating, []Action{ActionApplyAnswer}, false},
		{"host gets answer when connected", StateConnected, RoleHost, EventAnswer, StateConnected, nil, true},
		{"joiner gets answer", StateNegotiating, RoleJoiner, EventAnswer, StateNegotiating, nil, true},
		{"candidate while waiting", StateAwaitingPeer, RoleHost, EventCandidate, StateAwaitingPeer, []Action{ActionAddCandidate}, false},
		{"candidate while negotiating", StateNegotiating, RoleJoiner, EventCandidate, StateNegotiating, []Action{ActionAddCandidate}, false},
		{"candidate while connected", StateConnected, RoleHost, EventCandidate, StateConnected, []Action{ActionAddCandidate}, false},
		{"candidate before setup", StateIdle, RoleJoiner, EventCandidate, StateIdle, nil, true},
		{"local candidate", StateNegotiating, RoleHost, EventLocalCandidate, StateNegotiating, []Action{ActionSendCandidate}, false},
		{"remote filter while waiting", StateAwaitingPeer, RoleHost, EventFilterChange, StateAwaitingPeer, nil, true},
		{"remote filter while connected", StateConnected, RoleJoiner, EventFilterChange, StateConnected, []Action{ActionUpdateRemoteFilter}, false},
		{"local filter while negotiating", StateNegotiating, RoleHost, EventLocalFilter, StateNegotiating, []Action{ActionSendFilter}, false},
		{"local filter while waiting", StateAwaitingPeer, RoleHost, EventLocalFilter, StateAwaitingPeer, nil, true},
		{"connected", StateNegotiating, RoleHost, EventTransportConnected, StateConnected, []Action{ActionStartTimer}, false},
		{"connected twice", StateConnected, RoleHost, EventTransportConnected, StateConnected, nil, true},
		{"failed while waiting", StateAwaitingPeer, RoleHost, EventTransportFailed, StateFailed, []Action{ActionStopTimer}, false},
		{"failed while connected", StateConnected, RoleJoiner, EventTransportFailed, StateFailed, []Action{ActionStopTimer}, false},
		{"failed before setup", StateIdle, RoleHost, EventTransportFailed, StateIdle, nil, true},
		{"hangup when idle", StateIdle, RoleHost, EventHangup, StateEnded, []Action{ActionStopTimer, ActionTeardown}, false},
		{"hangup when connected", StateConnected, RoleJoiner, EventHangup, StateEnded, []Action{ActionStopTimer, ActionTeardown}, false},
		{"hangup after failure", StateFailed, RoleHost, EventHangup, StateEnded, []Action{ActionStopTimer, ActionTeardown}, false},
		{"hangup twice", StateEnded, RoleHost, EventHangup, StateEnded, nil, false},
		{"offer after end", StateEnded, RoleJoiner, EventOffer, StateEnded, nil, true},
		{"connected after failure", StateFailed, RoleHost, EventTransportConnected, StateFailed, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, actions, err := Transition(tt.state, tt.role, tt.event)
			if tt.ignored != errors.Is(err, ErrIgnored) {
				t.Fatalf("err=%v, ignored=%v", err, tt.ignored)
			}
			if got != tt.want {
				t.Fatalf("state=%s, want %s", got, tt.want)
			}
			if !slices.Equal(actions, tt.actions) {
				t.Fatalf("actions=%v, want %v", actions, tt.actions)
			}
		})
	}
}

func TestTransition_IgnoredEventsNeverChangeState(t *testing.T) {
	states := []State{StateIdle, StateAwaitingPeer, StateNegotiating, StateConnected, StateEnded, StateFailed}
	roles := []Role{RoleHost, RoleJoiner}

	for _, s := range states {
		for _, r := range roles {
			for e := EventLocalReady; e <= EventHangup; e++ {
				next, actions, err := Transition(s, r, e)
				if err != nil && (next != s || len(actions) != 0) {
					t.Errorf("%s/%s/%s ignored but moved to %s with %v", s, r, e, next, actions)
				}
			}
		}
	}
}

func TestTransition_ConnectedOnlyFromNegotiating(t *testing.T) {
	states := []State{StateIdle, StateAwaitingPeer, StateNegotiating, StateConnected, StateEnded, StateFailed}
	for _, s := range states {
		for _, r := range []Role{RoleHost, RoleJoiner} {
			for e := EventLocalReady; e <= EventHangup; e++ {
				next, _, err := Transition(s, r, e)
				if err == nil && next == StateConnected && s != StateConnected && s != StateNegotiating {
					t.Errorf("%s/%s/%s reached connected", s, r, e)
				}
				if err == nil && s == StateConnected && next == StateNegotiating {
					t.Errorf("%s/%s/%s went back to negotiating", s, r, e)
				}
			}
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[int64]string{
		0:    "0:00:00",
		59:   "0:00:59",
		61:   "0:01:01",
		3600: "1:00:00",
		3725: "1:02:05",
	}
	for secs, want := range tests {
		if got := FormatDuration(timeSeconds(secs)); got != want {
			t.Errorf("FormatDuration(%ds)=%q, want %q", secs, got, want)
		}
	}
}

func TestLookupFilter(t *testing.T) {
	if f, ok := LookupFilter(" noir "); !ok || f != "Noir" {
		t.Fatalf("LookupFilter(noir)=%q,%v, want Noir", f, ok)
	}
	if _, ok := LookupFilter("sepia"); ok {
		t.Fatalf("LookupFilter(sepia) succeeded")
	}
	if _, ok := LookupFilter(DefaultFilter); !ok {
		t.Fatalf("default filter %q not in the filter set", DefaultFilter)
	}
}
