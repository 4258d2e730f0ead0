package discord

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

func TestIsNotFound(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"unknown channel", &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownChannel}}, true},
		{"unknown member wrapped", fmt.Errorf("x: %w", &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownMember}}), true},
		{"bare 404", &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}, true},
		{"missing permissions", &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusForbidden}, Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingPermissions}}, false},
		{"nil message", &discordgo.RESTError{}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tc := range cases {
		if got := isNotFound(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestWrapMapsNotFound(t *testing.T) {
	err := wrap("delete channel 1", &discordgo.RESTError{Message: &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownChannel}})
	if !errors.Is(err, platform.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if wrap("noop", nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestCountChildren(t *testing.T) {
	channels := []*discordgo.Channel{
		{ID: "cat", Type: discordgo.ChannelTypeGuildCategory},
		{ID: "a", ParentID: "cat"},
		{ID: "b", ParentID: "cat"},
		{ID: "c", ParentID: "other"},
	}
	n, err := countChildren(channels, "cat")
	if err != nil || n != 2 {
		t.Fatalf("expected 2 children, got %d (%v)", n, err)
	}
	if _, err := countChildren(channels, "missing"); !errors.Is(err, platform.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing category, got %v", err)
	}
}

func TestChronologicalReversesPages(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	newest := []*discordgo.Message{
		{ID: "4", Content: "four", Timestamp: ts.Add(4 * time.Minute), Author: &discordgo.User{ID: "u", Username: "alice"}},
		{ID: "3", Content: "three", Timestamp: ts.Add(3 * time.Minute)},
	}
	older := []*discordgo.Message{
		{ID: "2", Content: "two", Attachments: []*discordgo.MessageAttachment{{URL: "https://cdn/x.png"}}},
		{ID: "1", Content: "one"},
	}
	got := chronological([][]*discordgo.Message{newest, older})
	if len(got) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(got))
	}
	for i, want := range []string{"1", "2", "3", "4"} {
		if got[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, got[i].ID)
		}
	}
	if got[1].Attachments[0] != "https://cdn/x.png" {
		t.Fatalf("expected attachment url, got %v", got[1].Attachments)
	}
	if got[3].AuthorName != "alice" || got[3].AuthorID != "u" {
		t.Fatalf("unexpected author %+v", got[3])
	}
}

func TestTicketOverwrites(t *testing.T) {
	ow := ticketOverwrites(platform.ChannelSpec{GuildID: "g", OwnerID: "u", StaffRoleID: "staff"})
	if len(ow) != 3 {
		t.Fatalf("expected 3 overwrites, got %d", len(ow))
	}
	if ow[0].ID != "g" || ow[0].Deny&discordgo.PermissionViewChannel == 0 {
		t.Fatalf("expected @everyone to be denied, got %+v", ow[0])
	}
	if ow[1].ID != "u" || ow[1].Allow&discordgo.PermissionSendMessages == 0 {
		t.Fatalf("expected owner to be allowed, got %+v", ow[1])
	}
	if len(ticketOverwrites(platform.ChannelSpec{GuildID: "g", OwnerID: "u"})) != 2 {
		t.Fatalf("expected no staff overwrite without a role")
	}
}

func TestMemberActor(t *testing.T) {
	got := MemberActor(&discordgo.Member{User: &discordgo.User{ID: "1", Username: "buyer"}, Roles: []string{"r"}})
	if got.ID != "1" || got.Name != "buyer" || !got.HasRole("r") {
		t.Fatalf("unexpected actor %+v", got)
	}
	got = MemberActor(&discordgo.Member{Nick: "Nick", User: &discordgo.User{ID: "1", Username: "buyer", GlobalName: "Global"}})
	if got.Name != "Nick" {
		t.Fatalf("expected nickname, got %q", got.Name)
	}
}

func TestRenderEmbedAndButtons(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	out := render(platform.Message{
		Content:   "hello",
		Title:     "Ticket Created",
		Fields:    []platform.Field{{Name: "User", Value: "<@1>", Inline: true}},
		Footer:    "footer",
		Timestamp: ts,
		Actions:   []platform.ActionKind{platform.ActionCloseTicket, platform.ActionKeepOpen},
	})
	if out.Content != "hello" || len(out.Embeds) != 1 {
		t.Fatalf("unexpected message %+v", out)
	}
	embed := out.Embeds[0]
	if embed.Title != "Ticket Created" || embed.Footer.Text != "footer" || embed.Timestamp != "2024-05-01T12:00:00Z" {
		t.Fatalf("unexpected embed %+v", embed)
	}
	row, ok := out.Components[0].(discordgo.ActionsRow)
	if !ok || len(row.Components) != 2 {
		t.Fatalf("expected one row with two buttons, got %+v", out.Components)
	}
	if b := row.Components[0].(discordgo.Button); b.CustomID != CustomIDCloseTicket {
		t.Fatalf("expected close button first, got %+v", b)
	}

	plain := render(platform.Message{Content: "just text"})
	if plain.Embeds != nil || plain.Components != nil {
		t.Fatalf("expected plain message, got %+v", plain)
	}
}
