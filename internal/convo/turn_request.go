package convo

// BuildTurnRequest builds the view of the conversation that speakerID
// replies to. Histories are zipped up to the shortest one; each aligned
// index yields one message per speaker in declaration order, tagged self
// for the requester and other for everyone else.
//
// Under FreshnessSequential, a requester that has not yet replied this
// round also sees the entry at the aligned index of every other speaker
// that already has one.
func BuildTurnRequest(t *Transcript, speakerID string, round int, policy FreshnessPolicy) (TurnRequest, error) {
	requester, err := t.Speaker(speakerID)
	if err != nil {
		return TurnRequest{}, err
	}

	aligned := t.Aligned()
	speakers := t.Speakers()
	msgs := make([]Message, 0, aligned*len(speakers)+len(speakers))

	for i := 0; i < aligned; i++ {
		for _, s := range speakers {
			msgs = append(msgs, Message{Role: roleFor(s, requester), SpeakerID: s.ID, Text: s.History[i]})
		}
	}

	if policy != FreshnessSymmetric && len(requester.History) == aligned {
		for _, s := range speakers {
			if s.ID == requester.ID || len(s.History) <= aligned {
				continue
			}
			msgs = append(msgs, Message{Role: RoleOther, SpeakerID: s.ID, Text: s.History[aligned]})
		}
	}

	return TurnRequest{
		SpeakerID: requester.ID,
		Round:     round,
		Persona:   requester.Persona,
		Messages:  msgs,
	}, nil
}

func roleFor(s, requester *Speaker) Role {
	if s.ID == requester.ID {
		return RoleSelf
	}
	return RoleOther
}
