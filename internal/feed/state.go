package feed

import (
	"slices"

	"github.com/vedran77/pulsefeed/internal/domain"
)

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoadingNewest
	PhaseReady
	PhaseLoadingOlder
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoadingNewest:
		return "loading_newest"
	case PhaseReady:
		return "ready"
	case PhaseLoadingOlder:
		return "loading_older"
	case PhaseClosed:
		return "closed"
	}
	return "unknown"
}

// State is a snapshot of one conversation's feed. Messages are unique by id
// and ordered oldest first.
type State struct {
	Messages      []domain.Message
	OldestID      string
	FetchingOlder bool
	HasMoreOlder  bool
	Phase         Phase
	// Version increases with every mutation; a presenter holding a snapshot
	// with a higher Version can drop older ones.
	Version uint64
}

func (s State) clone() State {
	s.Messages = slices.Clone(s.Messages)
	if s.Phase == PhaseReady && s.FetchingOlder {
		s.Phase = PhaseLoadingOlder
	}
	return s
}

func (s State) Contains(id string) bool {
	return slices.ContainsFunc(s.Messages, func(m domain.Message) bool { return m.ID == id })
}

type UpdateKind int

const (
	UpdateReset UpdateKind = iota
	UpdatePrepend
	UpdateAppend
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateReset:
		return "reset"
	case UpdatePrepend:
		return "prepend"
	case UpdateAppend:
		return "append"
	}
	return "unknown"
}

// Update is emitted after every mutation of the feed.
type Update struct {
	Kind  UpdateKind
	State State
	// ForceScroll asks the view to jump to the newest message regardless of
	// the current scroll position.
	ForceScroll bool
}
