package engine

import (
	"fmt"
	"strings"

	"github.com/threadmind/threadmind/core"
	"github.com/threadmind/threadmind/memory"
)

// ltmPreamble frames retrieved memories as background context rather than
// literal conversation history.
const ltmPreamble = "[Context: relevant information from your previous conversations with this user]"

// assemblePrompt builds the ordered prompt for one turn: an optional single
// synthetic long-term memory turn, followed by the chat's recent history
// oldest first. Matches from the current chat are dropped — their content is
// already present verbatim in the history and must never leak back in as
// "memory".
func assemblePrompt(chatID string, matches []memory.Match, history []core.Message) []core.PromptTurn {
	foreign := excludeChat(chatID, matches)

	prompt := make([]core.PromptTurn, 0, len(history)+1)
	if len(foreign) > 0 {
		prompt = append(prompt, core.PromptTurn{Role: core.RoleUser, Text: formatLTM(foreign)})
	}
	for _, msg := range history {
		prompt = append(prompt, core.PromptTurn{Role: msg.Role, Text: msg.Content})
	}
	return prompt
}

// excludeChat drops matches whose stored chat equals chatID. The filter is
// idempotent: applying it to its own output changes nothing.
func excludeChat(chatID string, matches []memory.Match) []memory.Match {
	var out []memory.Match
	for _, m := range matches {
		if m.Meta.ChatID == chatID {
			continue
		}
		out = append(out, m)
	}
	return out
}

// formatLTM renders the surviving matches as one numbered block under the
// context preamble.
func formatLTM(matches []memory.Match) string {
	var b strings.Builder
	b.WriteString(ltmPreamble)
	for i, m := range matches {
		b.WriteString(fmt.Sprintf("\n%d. %s", i+1, m.Meta.Text))
	}
	return b.String()
}
