package convo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-llmlab/internal/llm"
)

func TestBuildTurnRequest_RoleTagging(t *testing.T) {
	tr := transcriptWith(map[string][]string{
		"A": {"a0", "a1", "a2"},
		"B": {"b0", "b1", "b2"},
		"C": {"c0", "c1", "c2"},
	}, "A", "B", "C")

	for _, requester := range []string{"A", "B", "C"} {
		req, err := BuildTurnRequest(tr, requester, 3, FreshnessSequential)
		require.NoError(t, err)
		require.Len(t, req.Messages, 9)
		assert.Equal(t, "persona "+requester, req.Persona)
		for _, m := range req.Messages {
			if m.SpeakerID == requester {
				assert.Equal(t, RoleSelf, m.Role, "%s message %q", requester, m.Text)
			} else {
				assert.Equal(t, RoleOther, m.Role, "%s message %q", requester, m.Text)
			}
		}
	}
}

func TestBuildTurnRequest_DeclarationOrderPerRound(t *testing.T) {
	tr := transcriptWith(map[string][]string{
		"A": {"a0", "a1"},
		"B": {"b0", "b1"},
	}, "A", "B")

	req, err := BuildTurnRequest(tr, "B", 2, FreshnessSequential)
	require.NoError(t, err)
	var texts []string
	for _, m := range req.Messages {
		texts = append(texts, m.Text)
	}
	assert.Equal(t, []string{"a0", "b0", "a1", "b1"}, texts)
}

func TestBuildTurnRequest_ZipTruncation(t *testing.T) {
	tr := transcriptWith(map[string][]string{
		"A": {"a0", "a1", "a2"},
		"B": {"b0", "b1", "b2"},
		"C": {"c0", "c1"},
	}, "A", "B", "C")

	req, err := BuildTurnRequest(tr, "C", 2, FreshnessSymmetric)
	require.NoError(t, err)
	assert.Len(t, req.Messages, 6)
	for _, m := range req.Messages {
		assert.NotContains(t, []string{"a2", "b2"}, m.Text)
	}

	// A is ahead of the aligned view, so no freshness entries apply.
	req, err = BuildTurnRequest(tr, "A", 2, FreshnessSequential)
	require.NoError(t, err)
	assert.Len(t, req.Messages, 6)
	for _, m := range req.Messages {
		assert.NotEqual(t, "a2", m.Text)
		assert.NotEqual(t, "b2", m.Text)
	}

	// C is at the aligned length, so the sequential policy adds a2 and b2
	// after the two aligned rounds.
	req, err = BuildTurnRequest(tr, "C", 2, FreshnessSequential)
	require.NoError(t, err)
	require.Len(t, req.Messages, 8)
	assert.Equal(t, "c1", req.Messages[5].Text)
	assert.Equal(t, "a2", req.Messages[6].Text)
	assert.Equal(t, "b2", req.Messages[7].Text)
}

func TestBuildTurnRequest_FreshnessAppend(t *testing.T) {
	// Round 1 in progress: A has replied, B and C have not.
	tr := transcriptWith(map[string][]string{
		"A": {"x", "reply-from-A"},
		"B": {"y"},
		"C": {"z"},
	}, "A", "B", "C")

	req, err := BuildTurnRequest(tr, "B", 0, FreshnessSequential)
	require.NoError(t, err)
	assert.Equal(t, []Message{
		{Role: RoleOther, SpeakerID: "A", Text: "x"},
		{Role: RoleSelf, SpeakerID: "B", Text: "y"},
		{Role: RoleOther, SpeakerID: "C", Text: "z"},
		{Role: RoleOther, SpeakerID: "A", Text: "reply-from-A"},
	}, req.Messages)

	req, err = BuildTurnRequest(tr, "B", 0, FreshnessSymmetric)
	require.NoError(t, err)
	assert.Len(t, req.Messages, 3)
}

func TestBuildTurnRequest_FreshnessSeesEveryEarlierSpeaker(t *testing.T) {
	tr := transcriptWith(map[string][]string{
		"A": {"x", "ra"},
		"B": {"y", "rb"},
		"C": {"z"},
	}, "A", "B", "C")

	req, err := BuildTurnRequest(tr, "C", 0, FreshnessSequential)
	require.NoError(t, err)
	require.Len(t, req.Messages, 5)
	assert.Equal(t, Message{Role: RoleOther, SpeakerID: "A", Text: "ra"}, req.Messages[3])
	assert.Equal(t, Message{Role: RoleOther, SpeakerID: "B", Text: "rb"}, req.Messages[4])
}

func TestBuildTurnRequest_UnknownSpeaker(t *testing.T) {
	tr := transcriptWith(map[string][]string{"A": {"x"}}, "A")
	_, err := BuildTurnRequest(tr, "Z", 0, FreshnessSequential)
	assert.ErrorIs(t, err, ErrUnknownSpeaker)
}

func TestTurnRequest_LLMRequest(t *testing.T) {
	req := TurnRequest{
		Persona:  "You are A",
		Messages: []Message{{Role: RoleSelf, SpeakerID: "A", Text: "x"}, {Role: RoleOther, SpeakerID: "B", Text: "y"}},
	}
	out := req.LLMRequest(500)
	assert.Equal(t, "You are A", out.System)
	assert.Equal(t, 500, out.MaxTokens)
	assert.Equal(t, llm.PriorityCritical, out.Priority)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, RoleSelf, out.Messages[0].Role)
	assert.Equal(t, "y", out.Messages[1].Text)
}
