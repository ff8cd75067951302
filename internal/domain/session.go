package domain

// SessionState is the single shared value the client holds between server
// events. Phase mirrors Room.Phase whenever Room is non-nil; with no room the
// phase is PhaseVoting.
type SessionState struct {
	Room  *Room
	Self  *Identity
	Phase Phase
}

// EmptySession is the state at process start and after leaving a room.
func EmptySession() SessionState {
	return SessionState{Phase: PhaseVoting}
}

// Delta is a partial update of SessionState. The Set flags distinguish
// "set the field to nil" from "leave the field alone".
type Delta struct {
	Room    *Room
	SetRoom bool
	Self    *Identity
	SetSelf bool
	Phase   *Phase
}

// Merge applies d on top of s field by field and returns the result,
// re-establishing the phase invariant afterwards.
func (s SessionState) Merge(d Delta) SessionState {
	if d.SetRoom {
		s.Room = d.Room
	}
	if d.SetSelf {
		s.Self = d.Self
	}
	if d.Phase != nil {
		s.Phase = *d.Phase
	}
	if s.Room != nil {
		s.Phase = s.Room.Phase
	} else {
		s.Phase = PhaseVoting
	}
	return s
}
