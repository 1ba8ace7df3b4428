package commands_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bdobrica/Hanashi/internal/hanashi/commands"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   commands.Command
		wantOK bool
	}{
		{
			name:   "character",
			text:   "@character a grumpy pirate",
			want:   commands.Command{Kind: commands.KindCharacter, Argument: "a grumpy pirate"},
			wantOK: true,
		},
		{
			name:   "character mid-sentence and upper case",
			text:   "ok everyone @CHARACTER   a sleepy cat  ",
			want:   commands.Command{Kind: commands.KindCharacter, Argument: "a sleepy cat"},
			wantOK: true,
		},
		{
			name:   "character wins over unhinge",
			text:   "@character a pirate who says @unhinge on",
			want:   commands.Command{Kind: commands.KindCharacter, Argument: "a pirate who says @unhinge on"},
			wantOK: true,
		},
		{
			name:   "character wins even when unhinge comes first",
			text:   "@unhinge on @character a robot",
			want:   commands.Command{Kind: commands.KindCharacter, Argument: "a robot"},
			wantOK: true,
		},
		{
			name:   "unhinge on",
			text:   "@unhinge on",
			want:   commands.Command{Kind: commands.KindUnhinge, Argument: "on", Enabled: true},
			wantOK: true,
		},
		{
			name:   "unhinge YES",
			text:   "@unhinge YES",
			want:   commands.Command{Kind: commands.KindUnhinge, Argument: "yes", Enabled: true},
			wantOK: true,
		},
		{
			name:   "unhinge 1",
			text:   "@unhinge 1",
			want:   commands.Command{Kind: commands.KindUnhinge, Argument: "1", Enabled: true},
			wantOK: true,
		},
		{
			name:   "unhinge anything else disables",
			text:   "@unhinge nah",
			want:   commands.Command{Kind: commands.KindUnhinge, Argument: "nah"},
			wantOK: true,
		},
		{
			name:   "name lowercased",
			text:   "@name Jarvis",
			want:   commands.Command{Kind: commands.KindName, Argument: "jarvis"},
			wantOK: true,
		},
		{
			name:   "name keeps invalid token for validation",
			text:   "call me @name bob! please",
			want:   commands.Command{Kind: commands.KindName, Argument: "bob!"},
			wantOK: true,
		},
		{name: "bare character", text: "@character"},
		{name: "bare character with spaces", text: "@character    "},
		{name: "bare unhinge", text: "@unhinge"},
		{name: "bare name", text: "@name"},
		{name: "prefix without space", text: "@names are hard"},
		{name: "plain text", text: "hey myai what's up"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := commands.Parse(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("Parse(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestValidateNickname(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"robo", false},
		{"r2d2", false},
		{"ロボ", false},
		{"abcdefghijklmnopqrst", false},
		{"abcdefghijklmnopqrstu", true},
		{"", true},
		{"bob!", true},
		{"two_words", true},
	}
	for _, tt := range tests {
		err := commands.ValidateNickname(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateNickname(%q) err = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
