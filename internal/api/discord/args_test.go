package discord

import (
	"strings"
	"testing"
	"time"
)

func TestParsePrefix(t *testing.T) {
	name, raw, ok := parsePrefix("  !AddBal <@123> 50")
	if !ok || name != "addbal" || raw != "<@123> 50" {
		t.Fatalf("unexpected parse: %q %q %v", name, raw, ok)
	}
	if _, _, ok := parsePrefix("hello !close"); ok {
		t.Fatalf("commands must start the message")
	}
	if _, _, ok := parsePrefix("! close"); ok {
		t.Fatalf("a bare prefix is not a command")
	}
	if name, raw, ok := parsePrefix("!leaderboard"); !ok || name != "leaderboard" || raw != "" {
		t.Fatalf("unexpected parse without args: %q %q %v", name, raw, ok)
	}
}

func TestBindArgs(t *testing.T) {
	opts := []option{
		{Name: "user", Kind: optUser, Required: true},
		{Name: "amount", Required: true},
	}
	args, err := bindArgs("<@!123456789> 25.50", opts)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if args["user"] != "123456789" || args["amount"] != "25.50" {
		t.Fatalf("unexpected args %v", args)
	}

	if _, err := bindArgs("<@123456789>", opts); err == nil || !strings.Contains(err.Error(), "amount") {
		t.Fatalf("expected missing amount error, got %v", err)
	}
	if _, err := bindArgs("bob 10", opts); err == nil {
		t.Fatalf("expected mention error")
	}
}

func TestBindArgsLongTextKeepsRemainder(t *testing.T) {
	opts := []option{
		{Name: "channel", Kind: optChannel, Required: true},
		{Name: "text", Kind: optLongText},
	}
	args, err := bindArgs("<#555555> Read the rules\nthen open a ticket", opts)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	if args["channel"] != "555555" || args["text"] != "Read the rules\nthen open a ticket" {
		t.Fatalf("unexpected args %q", args)
	}

	args, err = bindArgs("<#555555>", opts)
	if err != nil || args["text"] != "" {
		t.Fatalf("optional text should be empty, got %q (%v)", args, err)
	}
}

func TestCustomIDRoundTrip(t *testing.T) {
	id := joinID(idPanelAmount, "gamepass", "pay:pal")
	args, ok := splitID(id, idPanelAmount, 2)
	if !ok || args[0] != "gamepass" || args[1] != "pay:pal" {
		t.Fatalf("unexpected split %v %v", args, ok)
	}
	if _, ok := splitID(idPanelAmount+":gamepass", idPanelAmount, 2); ok {
		t.Fatalf("expected short id to be rejected")
	}
	if _, ok := splitID("panel:amountx:a:b", idPanelAmount, 2); ok {
		t.Fatalf("prefix must match a whole segment")
	}
}

func TestConfirmCloseExpiry(t *testing.T) {
	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	got, ok := confirmCloseIssued(confirmCloseID(issued))
	if !ok || !got.Equal(issued) {
		t.Fatalf("expected %v, got %v (%v)", issued, got, ok)
	}
	if confirmExpired(issued, issued.Add(59*time.Second), time.Minute) {
		t.Fatalf("should still be valid")
	}
	if !confirmExpired(issued, issued.Add(61*time.Second), time.Minute) {
		t.Fatalf("should have expired")
	}
	if _, ok := confirmCloseIssued(idConfirmClose + ":soon"); ok {
		t.Fatalf("expected malformed id to be rejected")
	}
}

func TestGroupThousands(t *testing.T) {
	cases := map[string]string{
		"0.00":       "0.00",
		"999.50":     "999.50",
		"1000.00":    "1,000.00",
		"1234567.89": "1,234,567.89",
		"-20000.10":  "-20,000.10",
		"15000":      "15,000",
	}
	for in, want := range cases {
		if got := groupThousands(in); got != want {
			t.Fatalf("groupThousands(%q) = %q, want %q", in, got, want)
		}
	}
}
