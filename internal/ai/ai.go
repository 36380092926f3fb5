package ai

import "errors"

// ErrGeneration wraps every failure to produce a reply.
var ErrGeneration = errors.New("text generation failed")

// DefaultPersona keeps the automated partner answering like a person would
// in a casual anonymous chat.
const DefaultPersona = "You are chatting anonymously with a stranger on a website. " +
	"Reply like a real person would: short, casual, lowercase is fine, occasional typos are fine. " +
	"Never say you are an AI or a language model. Keep replies under two sentences."
