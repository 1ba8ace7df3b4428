// Package commands implements the in-chat commands that reconfigure a
// conversation: @character, @unhinge and @name.
package commands

import (
	"regexp"
	"strings"
)

// Kind identifies a command.
type Kind int

const (
	KindCharacter Kind = iota + 1
	KindUnhinge
	KindName
)

func (k Kind) String() string {
	switch k {
	case KindCharacter:
		return "character"
	case KindUnhinge:
		return "unhinge"
	case KindName:
		return "name"
	default:
		return "unknown"
	}
}

// Command is a parsed chat command.
type Command struct {
	Kind Kind
	// Argument is the trimmed text after the command word. For KindName it
	// is lowercased.
	Argument string
	// Enabled is the parsed value of an @unhinge command.
	Enabled bool
}

// Patterns are unanchored so a command can appear anywhere in a message, and
// are tried in this order. The first one that matches decides the outcome.
var (
	characterPattern = regexp.MustCompile(`(?i)@character\s+(.+)`)
	unhingePattern   = regexp.MustCompile(`(?i)@unhinge\s+(.+)`)
	namePattern      = regexp.MustCompile(`(?i)@name\s+(\S+)`)
)

// Parse extracts the command from text. ok is false when text holds no
// command or the matching command has an empty argument.
func Parse(text string) (cmd Command, ok bool) {
	text = strings.TrimSpace(text)

	if m := characterPattern.FindStringSubmatch(text); m != nil {
		desc := strings.TrimSpace(m[1])
		if desc == "" {
			return Command{}, false
		}
		return Command{Kind: KindCharacter, Argument: desc}, true
	}

	if m := unhingePattern.FindStringSubmatch(text); m != nil {
		value := strings.ToLower(strings.TrimSpace(m[1]))
		if value == "" {
			return Command{}, false
		}
		return Command{Kind: KindUnhinge, Argument: value, Enabled: truthy(value)}, true
	}

	if m := namePattern.FindStringSubmatch(text); m != nil {
		name := strings.ToLower(strings.TrimSpace(m[1]))
		if name == "" {
			return Command{}, false
		}
		return Command{Kind: KindName, Argument: name}, true
	}

	return Command{}, false
}

func truthy(v string) bool {
	switch v {
	case "true", "1", "on", "yes":
		return true
	default:
		return false
	}
}
