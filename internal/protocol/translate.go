package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/pocketscrum/internal/domain"
)

var ErrUnknownEvent = errors.New("unknown event")

// Update is what one inbound event translates to. A nil Delta leaves the
// session state alone; Results/ClearResults and ErrMessage are side channels
// published independently of the state.
type Update struct {
	Delta        *domain.Delta
	Results      *domain.ResultSet
	ClearResults bool
	ErrMessage   string
}

// MapRoom converts a server room snapshot into the domain shape. A user has
// voted iff the selections map holds an entry for them, regardless of phase;
// the value itself is exposed only once the server reports "revealed".
func MapRoom(w WireRoom) *domain.Room {
	revealed := w.Phase == string(domain.PhaseRevealed)
	users := make([]domain.RoomUser, 0, len(w.Users))
	for _, u := range w.Users {
		card, voted := w.Selections[u.ID]
		ru := domain.RoomUser{
			Identity: domain.Identity{ID: domain.UserID(u.ID), Name: u.Name},
			HasVoted: voted,
		}
		if revealed && voted {
			v := card
			ru.RevealedValue = &v
		}
		users = append(users, ru)
	}
	phase := domain.PhaseVoting
	if revealed {
		phase = domain.PhaseRevealed
	}
	return &domain.Room{
		Code:  domain.RoomCode(w.Code),
		Users: users,
		Phase: phase,
	}
}

func mapResults(w WireResults) *domain.ResultSet {
	sels := make([]domain.Selection, 0, len(w.UserSelections))
	for _, s := range w.UserSelections {
		sels = append(sels, domain.Selection{UserName: s.User, Card: s.Card})
	}
	return &domain.ResultSet{
		Selections:   sels,
		MostSelected: w.MostSelected,
		TotalVotes:   w.TotalVotes,
	}
}

// Translate maps one named inbound event to an Update. Every room-bearing
// event replaces the local room with the server's full snapshot; membership
// and selection state are never patched incrementally.
func Translate(event string, data json.RawMessage) (Update, error) {
	switch event {
	case EvtJoined:
		var p JoinedPayload
		if err := unmarshal(event, data, &p); err != nil {
			return Update{}, err
		}
		self := domain.Identity{ID: domain.UserID(p.User.ID), Name: p.User.Name}
		return Update{Delta: &domain.Delta{Self: &self, SetSelf: true}}, nil

	case EvtRoomCreated, EvtRoomJoined:
		var p RoomPayload
		if err := unmarshal(event, data, &p); err != nil {
			return Update{}, err
		}
		room := MapRoom(p.Room)
		d := &domain.Delta{Room: room, SetRoom: true, Phase: &room.Phase}
		if p.User != nil {
			d.Self = &domain.Identity{ID: domain.UserID(p.User.ID), Name: p.User.Name}
			d.SetSelf = true
		}
		return Update{Delta: d}, nil

	case EvtUserJoined, EvtCardSelected:
		var p RoomPayload
		if err := unmarshal(event, data, &p); err != nil {
			return Update{}, err
		}
		room := MapRoom(p.Room)
		return Update{Delta: &domain.Delta{Room: room, SetRoom: true}}, nil

	case EvtUserLeft, EvtUserDisconnected:
		var p UserGonePayload
		if err := unmarshal(event, data, &p); err != nil {
			return Update{}, err
		}
		room := MapRoom(p.Room)
		return Update{Delta: &domain.Delta{Room: room, SetRoom: true}}, nil

	case EvtCardsRevealed:
		var p RoomPayload
		if err := unmarshal(event, data, &p); err != nil {
			return Update{}, err
		}
		room := MapRoom(p.Room)
		phase := domain.PhaseRevealed
		upd := Update{Delta: &domain.Delta{Room: room, SetRoom: true, Phase: &phase}}
		if p.Results != nil {
			upd.Results = mapResults(*p.Results)
		}
		return upd, nil

	case EvtGameReset:
		var p RoomPayload
		if err := unmarshal(event, data, &p); err != nil {
			return Update{}, err
		}
		room := MapRoom(p.Room)
		phase := domain.PhaseVoting
		return Update{
			Delta:        &domain.Delta{Room: room, SetRoom: true, Phase: &phase},
			ClearResults: true,
		}, nil

	case EvtLeftRoom:
		var p LeftRoomPayload
		if err := unmarshal(event, data, &p); err != nil {
			return Update{}, err
		}
		if !p.Success {
			// Local state stays put; the stale view is preferable to a view
			// that disagrees with a server that still considers us a member.
			return Update{}, nil
		}
		phase := domain.PhaseVoting
		return Update{
			Delta:        &domain.Delta{SetRoom: true, SetSelf: true, Phase: &phase},
			ClearResults: true,
		}, nil

	case EvtError:
		var p ErrorPayload
		if err := unmarshal(event, data, &p); err != nil {
			return Update{}, err
		}
		return Update{ErrMessage: p.Message}, nil
	}
	return Update{}, fmt.Errorf("%w: %s", ErrUnknownEvent, event)
}

func unmarshal(event string, data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("bad %s payload: %w", event, err)
	}
	return nil
}
