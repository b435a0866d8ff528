package telegram

import (
	"testing"

	"github.com/m3rciful/fitbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegistryCommands(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "Start", Aliases: []string{"menu"}}); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterCommand("/grant", commands.Command{Handler: noop, Description: "Grant", AdminOnly: true}); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterCommand("/start", commands.Command{Handler: noop, Description: "dup"}); err == nil {
		t.Fatal("duplicate command accepted")
	}
	if err := reg.RegisterCommand("start", commands.Command{Handler: noop, Description: "x"}); err == nil {
		t.Fatal("command without slash accepted")
	}

	if key, _, ok := reg.LookupCommand("menu"); !ok || key != "/start" {
		t.Fatalf("alias lookup = %q, %v", key, ok)
	}
	if key, _, ok := reg.LookupCommand("/grant 5 premium"); !ok || key != "/grant" {
		t.Fatalf("lookup with args = %q, %v", key, ok)
	}
	if visible := reg.ListCommands(true); len(visible) != 1 || visible[0].Text != "/start" {
		t.Fatalf("visible commands = %+v", visible)
	}
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	if err := reg.RegisterCallback("slot", noop); err != nil {
		t.Fatal(err)
	}
	if err := reg.RegisterCallback("slot", noop); err == nil {
		t.Fatal("duplicate callback accepted")
	}
	if err := reg.RegisterCallback("", noop); err == nil {
		t.Fatal("empty key accepted")
	}
	if _, ok := reg.GetCallback("slot"); !ok {
		t.Fatal("callback not found")
	}
	if got := reg.ListCallbacks(); len(got) != 1 || got[0] != "slot" {
		t.Fatalf("callbacks = %v", got)
	}
}
