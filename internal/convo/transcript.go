package convo

import "fmt"

// Transcript is the ordered set of speakers and their histories. Entry i of
// every history belongs to round i.
type Transcript struct {
	speakers []*Speaker
	index    map[string]int
}

// NewTranscript copies the given speakers, keeping declaration order.
func NewTranscript(speakers ...Speaker) (*Transcript, error) {
	if len(speakers) == 0 {
		return nil, ErrNoSpeakers
	}
	t := &Transcript{
		speakers: make([]*Speaker, 0, len(speakers)),
		index:    make(map[string]int, len(speakers)),
	}
	for _, s := range speakers {
		if _, dup := t.index[s.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSpeaker, s.ID)
		}
		cp := s
		cp.History = append([]string(nil), s.History...)
		t.index[s.ID] = len(t.speakers)
		t.speakers = append(t.speakers, &cp)
	}
	return t, nil
}

// Speaker returns the speaker with the given id.
func (t *Transcript) Speaker(id string) (*Speaker, error) {
	i, ok := t.index[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSpeaker, id)
	}
	return t.speakers[i], nil
}

// Speakers returns the speakers in declaration order.
func (t *Transcript) Speakers() []*Speaker {
	return t.speakers
}

// Aligned is the shortest history length: the number of rounds every
// speaker has an entry for.
func (t *Transcript) Aligned() int {
	aligned := -1
	for _, s := range t.speakers {
		if aligned < 0 || len(s.History) < aligned {
			aligned = len(s.History)
		}
	}
	if aligned < 0 {
		return 0
	}
	return aligned
}

// Append adds one entry to a speaker's own history.
func (t *Transcript) Append(id, text string) (Turn, error) {
	s, err := t.Speaker(id)
	if err != nil {
		return Turn{}, err
	}
	s.History = append(s.History, text)
	return Turn{Index: len(s.History) - 1, SpeakerID: s.ID, SpeakerName: s.Name, Text: text}, nil
}

// Histories returns a copy of every history keyed by speaker id.
func (t *Transcript) Histories() map[string][]string {
	out := make(map[string][]string, len(t.speakers))
	for _, s := range t.speakers {
		out[s.ID] = append([]string(nil), s.History...)
	}
	return out
}

// Turns flattens the transcript into round-major order: every speaker's
// entry for round 0, then round 1, and so on. A partial last round keeps
// only the speakers that reached it.
func (t *Transcript) Turns() []Turn {
	longest := 0
	for _, s := range t.speakers {
		if len(s.History) > longest {
			longest = len(s.History)
		}
	}
	var out []Turn
	for i := 0; i < longest; i++ {
		for _, s := range t.speakers {
			if i < len(s.History) {
				out = append(out, Turn{Index: i, SpeakerID: s.ID, SpeakerName: s.Name, Text: s.History[i]})
			}
		}
	}
	return out
}
