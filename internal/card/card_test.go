package card

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xsamyy/callpoll/internal/vote"
)

func TestPromptUsesPrimaryTheme(t *testing.T) {
	c := Card{
		CA:          "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr",
		CoinName:    "Gold",
		Caller:      "alice",
		Votes:       vote.Set{"gamble", "cto"},
		Performance: "3.4x",
		Highest:     "5.0x",
		EntryMC:     "120.0K",
		CurrentMC:   "$408.0K",
		Price:       "$0.0004",
		ATH:         "$600.0K (-32%)",
		Elapsed:     "1d, 2h",
		Positive:    true,
	}
	p := c.Prompt()
	assert.Contains(t, p, "dark purple gradient background")
	assert.Contains(t, p, `"GAMBLE" as category label badge`)
	assert.Contains(t, p, `HUGE bold text "3.4x" in bright glowing purple neon glow color`)
	assert.Contains(t, p, `"Gamble, CTO" displayed as tags/badges`)
	assert.Contains(t, p, "👤 ALICE")
	assert.Contains(t, p, "Entry MC $120.0K | Current MC $408.0K")

	c.Votes, c.Positive = nil, false
	p = c.Prompt()
	assert.Contains(t, p, "dark gray/black gradient")
	assert.Contains(t, p, `"NO VOTE"`)
	assert.Contains(t, p, "in red color")
}

func TestFirstImage(t *testing.T) {
	assert.Nil(t, firstImage(nil))
	assert.Nil(t, firstImage(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []genai.Part{genai.Text("sorry")}}}},
	}))

	img := firstImage(&genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []genai.Part{
				genai.Text("here you go"),
				genai.Blob{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
			}}},
		},
	})
	require.NotNil(t, img)
	assert.Equal(t, "image/png", img.MIMEType)
	assert.Len(t, img.Data, 4)
}
