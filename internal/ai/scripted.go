package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/scythe504/turing-backend/internal/utils"
)

// ScriptedGenerator answers from a fixed rotation of small-talk lines. It
// stands in for the chat completion service when no API key is configured.
type ScriptedGenerator struct {
	mu        sync.Mutex
	next      int
	replies   []string
	questions []string
}

var defaultReplies = []string{
	"haha yeah",
	"hmm not sure tbh",
	"where are you from?",
	"lol same",
	"that's kinda interesting, tell me more",
	"honestly i just got here, what's up",
}

var defaultQuestionReplies = []string{
	"good question lol, you first",
	"idk, what do you think?",
	"hmm depends i guess",
}

// NewScriptedGenerator rotates through replies, or the built-in lines when
// none are given. Custom replies are also used for questions.
func NewScriptedGenerator(replies ...string) *ScriptedGenerator {
	if len(replies) == 0 {
		return &ScriptedGenerator{replies: defaultReplies, questions: defaultQuestionReplies}
	}
	return &ScriptedGenerator{replies: replies}
}

// LoadScriptedGenerator reads its lines from a reply CSV file.
func LoadScriptedGenerator(path string) (*ScriptedGenerator, error) {
	replies, questions, err := utils.ReadReplyCSV(path)
	if err != nil {
		return nil, err
	}
	return &ScriptedGenerator{replies: replies, questions: questions}, nil
}

func (g *ScriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	pool := g.replies
	if len(g.questions) > 0 && strings.HasSuffix(strings.TrimSpace(prompt), "?") {
		pool = g.questions
	}
	reply := pool[g.next%len(pool)]
	g.next++
	return reply, nil
}
