package llm

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	codec     tokenizer.Codec
	codecOnce sync.Once
	codecErr  error
)

// getCodec returns the cl100k_base tokenizer, a reasonable
// approximation for the local models this system targets.
func getCodec() (tokenizer.Codec, error) {
	codecOnce.Do(func() {
		codec, codecErr = tokenizer.Get(tokenizer.Cl100kBase)
	})
	return codec, codecErr
}

// EstimateTokens returns an approximate token count for the given text.
func EstimateTokens(text string) (int, error) {
	c, err := getCodec()
	if err != nil {
		return 0, err
	}

	ids, _, err := c.Encode(text)
	if err != nil {
		return 0, err
	}

	return len(ids), nil
}

// messageOverheadTokens approximates the per-message framing cost.
const messageOverheadTokens = 4

// EstimateMessagesTokens returns an approximate token count for a
// message list, including per-message framing overhead.
func EstimateMessagesTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		n, err := EstimateTokens(m.Content)
		if err != nil {
			// Rough fallback when the codec is unavailable.
			n = len(m.Content) / 4
		}
		total += n + messageOverheadTokens
	}
	return total
}

// TrimToBudget drops the oldest droppable messages until the payload
// fits the token budget. The leading system instruction and the final
// message (the turn being submitted) are never dropped. A budget of
// zero or less disables trimming.
func TrimToBudget(messages []Message, budget int) []Message {
	if budget <= 0 || EstimateMessagesTokens(messages) <= budget {
		return messages
	}

	var head []Message
	rest := messages
	if len(rest) > 0 && rest[0].Role == "system" {
		head = rest[:1]
		rest = rest[1:]
	}

	for len(rest) > 1 {
		candidate := append(append([]Message{}, head...), rest...)
		if EstimateMessagesTokens(candidate) <= budget {
			return candidate
		}
		rest = rest[1:]
	}

	return append(append([]Message{}, head...), rest...)
}
