// Package trigger decides whether an inbound chat message should be handed to
// the bot at all.
//
// A message triggers when it contains one of the global trigger strings (the
// bot mention and the command prefixes) or mentions the conversation's
// nickname. The nickname check falls back to a raw substring search, so a
// nickname buried inside a longer word still triggers. That over-match is
// deliberate and covered by tests.
package trigger

import (
	"strings"
	"unicode"
)

// Command prefixes that always trigger, regardless of nickname.
const (
	CommandCharacter = "@character"
	CommandUnhinge   = "@unhinge"
	CommandName      = "@name"
)

// DefaultGlobal returns the global trigger set for a bot mention such as
// "@ava": the mention plus every command prefix, lowercased and de-duplicated.
func DefaultGlobal(botMention string) []string {
	seen := make(map[string]bool, 4)
	var out []string
	for _, t := range []string{botMention, CommandCharacter, CommandUnhinge, CommandName} {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Reason identifies which rule produced a match.
type Reason int

const (
	NoMatch Reason = iota
	GlobalTrigger
	NicknameToken
	NicknameSubstring
)

func (r Reason) String() string {
	switch r {
	case GlobalTrigger:
		return "global"
	case NicknameToken:
		return "nickname_token"
	case NicknameSubstring:
		return "nickname_substring"
	default:
		return "none"
	}
}

// Match reports whether text should trigger the bot.
func Match(text string, global []string, nickname string) bool {
	return Explain(text, global, nickname) != NoMatch
}

// Explain is Match but returns the rule that fired.
func Explain(text string, global []string, nickname string) Reason {
	lower := strings.ToLower(text)

	for _, g := range global {
		g = strings.ToLower(g)
		if g != "" && strings.Contains(lower, g) {
			return GlobalTrigger
		}
	}

	nick := strings.ToLower(strings.TrimSpace(nickname))
	if nick == "" {
		return NoMatch
	}

	for _, tok := range strings.Fields(lower) {
		if strings.TrimFunc(tok, notAlphanumeric) == nick {
			return NicknameToken
		}
	}

	if strings.Contains(lower, nick) {
		return NicknameSubstring
	}
	return NoMatch
}

func notAlphanumeric(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
