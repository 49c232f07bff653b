package convo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-llmlab/internal/llm"
)

func TestCoordinator_OneRoundScenario(t *testing.T) {
	var calls []string
	speakers, backends := abcSpeakers(&calls)
	c, err := NewCoordinator(speakers)
	require.NoError(t, err)

	require.NoError(t, c.Run(context.Background(), 1))

	assert.Equal(t, map[string][]string{
		"A": {"x", "reply-from-A"},
		"B": {"y", "reply-from-B"},
		"C": {"z", "reply-from-C"},
	}, c.Histories())
	assert.Equal(t, []string{"A", "B", "C"}, calls)
	assert.Equal(t, 1, c.Round())

	// B saw the seeds plus A's fresh reply.
	require.Len(t, backends["B"].requests, 1)
	b := backends["B"].requests[0]
	assert.Equal(t, "You are B", b.System)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleOther, Text: "x"},
		{Role: llm.RoleSelf, Text: "y"},
		{Role: llm.RoleOther, Text: "z"},
		{Role: llm.RoleOther, Text: "reply-from-A"},
	}, b.Messages)

	// A, first in order, never sees a reply of the current round.
	a := backends["A"].requests[0]
	assert.Len(t, a.Messages, 3)
}

func TestCoordinator_HistoryLengthAfterRounds(t *testing.T) {
	for _, policy := range []FreshnessPolicy{FreshnessSequential, FreshnessSymmetric} {
		for rounds := 0; rounds <= 4; rounds++ {
			t.Run(fmt.Sprintf("%s/%d", policy, rounds), func(t *testing.T) {
				speakers, _ := abcSpeakers(nil)
				c, err := NewCoordinator(speakers, WithFreshness(policy))
				require.NoError(t, err)
				require.NoError(t, c.Run(context.Background(), rounds))
				for id, h := range c.Histories() {
					assert.Len(t, h, rounds+1, "speaker %s", id)
				}
			})
		}
	}
}

func TestCoordinator_RolesAcrossRounds(t *testing.T) {
	speakers, backends := abcSpeakers(nil)
	c, err := NewCoordinator(speakers)
	require.NoError(t, err)
	require.NoError(t, c.Run(context.Background(), 3))

	own := map[string]map[string]bool{}
	for id, h := range c.Histories() {
		own[id] = map[string]bool{}
		for _, text := range h {
			own[id][text] = true
		}
	}
	for id, b := range backends {
		require.Len(t, b.requests, 3)
		for _, req := range b.requests {
			for _, m := range req.Messages {
				if own[id][m.Text] {
					assert.Equal(t, llm.RoleSelf, m.Role, "speaker %s text %q", id, m.Text)
				} else {
					assert.Equal(t, llm.RoleOther, m.Role, "speaker %s text %q", id, m.Text)
				}
			}
		}
	}
}

func TestCoordinator_SymmetricPolicyHidesSameRound(t *testing.T) {
	speakers, backends := abcSpeakers(nil)
	c, err := NewCoordinator(speakers, WithFreshness(FreshnessSymmetric))
	require.NoError(t, err)
	require.NoError(t, c.AdvanceRound(context.Background()))

	for _, id := range []string{"A", "B", "C"} {
		assert.Len(t, backends[id].requests[0].Messages, 3, "speaker %s", id)
	}
}

func TestCoordinator_FailureMidRound(t *testing.T) {
	var calls []string
	speakers, backends := abcSpeakers(&calls)
	rejection := &llm.BackendError{Backend: "stub-B", Kind: llm.ErrBackendRejected, Err: errors.New("quota")}
	backends["B"].err = rejection

	c, err := NewCoordinator(speakers)
	require.NoError(t, err)

	var observed []Turn
	c.OnReply(func(turn Turn) { observed = append(observed, turn) })

	err = c.Run(context.Background(), 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrBackendRejected)

	var turnErr *TurnError
	require.ErrorAs(t, err, &turnErr)
	assert.Equal(t, "B", turnErr.SpeakerID)
	assert.Equal(t, 1, turnErr.Round)

	assert.Equal(t, []string{"A", "B"}, calls)
	assert.Empty(t, backends["C"].requests)
	assert.Equal(t, []string{"x", "reply-from-A"}, c.Histories()["A"])
	assert.Equal(t, []string{"y"}, c.Histories()["B"])
	assert.Equal(t, 0, c.Round())
	require.Len(t, observed, 1)
	assert.Equal(t, "A", observed[0].SpeakerID)
}

func TestCoordinator_BlankReplyIsEmptyResponse(t *testing.T) {
	speakers, backends := abcSpeakers(nil)
	backends["A"].text = "  \n\t "
	c, err := NewCoordinator(speakers)
	require.NoError(t, err)

	err = c.AdvanceRound(context.Background())
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
	assert.Empty(t, backends["B"].requests)
}

func TestCoordinator_RepliesAreTrimmed(t *testing.T) {
	speakers, backends := abcSpeakers(nil)
	backends["C"].text = "\n  Sweet as, bro.  \n"
	c, err := NewCoordinator(speakers)
	require.NoError(t, err)
	require.NoError(t, c.AdvanceRound(context.Background()))
	assert.Equal(t, "Sweet as, bro.", c.Histories()["C"][1])
}

func TestCoordinator_OnReplyOrder(t *testing.T) {
	speakers, _ := abcSpeakers(nil)
	c, err := NewCoordinator(speakers)
	require.NoError(t, err)

	var got []string
	c.OnReply(func(turn Turn) { got = append(got, fmt.Sprintf("%d:%s", turn.Index, turn.SpeakerID)) })
	require.NoError(t, c.Run(context.Background(), 2))
	assert.Equal(t, []string{"1:A", "1:B", "1:C", "2:A", "2:B", "2:C"}, got)

	turns := c.Turns()
	require.Len(t, turns, 9)
	assert.Equal(t, Turn{Index: 0, SpeakerID: "A", SpeakerName: "Speaker A", Text: "x"}, turns[0])
	assert.Equal(t, "reply-from-C", turns[8].Text)
}

func TestCoordinator_CancelledContextStopsBeforeRound(t *testing.T) {
	var calls []string
	speakers, _ := abcSpeakers(&calls)
	c, err := NewCoordinator(speakers)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Run(ctx, 3), context.Canceled)
	assert.Empty(t, calls)
}

func TestNewCoordinator_Validation(t *testing.T) {
	speakers, _ := abcSpeakers(nil)

	_, err := NewCoordinator(nil)
	assert.ErrorIs(t, err, ErrNoSpeakers)

	bad := append([]Speaker(nil), speakers...)
	bad[1].Backend = nil
	_, err = NewCoordinator(bad)
	assert.ErrorIs(t, err, ErrMissingBackend)

	bad = append([]Speaker(nil), speakers...)
	bad[2].History = []string{"z", "extra"}
	_, err = NewCoordinator(bad)
	assert.ErrorIs(t, err, ErrMissingSeed)

	bad = append([]Speaker(nil), speakers...)
	bad[2].ID = "A"
	_, err = NewCoordinator(bad)
	assert.ErrorIs(t, err, ErrDuplicateSpeaker)
}

func TestNewCoordinator_CopiesHistories(t *testing.T) {
	speakers, _ := abcSpeakers(nil)
	c, err := NewCoordinator(speakers)
	require.NoError(t, err)
	require.NoError(t, c.AdvanceRound(context.Background()))
	assert.Equal(t, []string{"x"}, speakers[0].History)
}

func TestParseFreshness(t *testing.T) {
	p, err := ParseFreshness("")
	require.NoError(t, err)
	assert.Equal(t, FreshnessSequential, p)
	p, err = ParseFreshness("symmetric")
	require.NoError(t, err)
	assert.Equal(t, FreshnessSymmetric, p)
	_, err = ParseFreshness("chaotic")
	assert.Error(t, err)
}
