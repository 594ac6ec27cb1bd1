package telegram

import (
	"testing"

	"groupbot/core/dialog/route"
)

func TestCommandTokenResolution(t *testing.T) {
	a := NewAdapter(nil, nil)
	if err := a.Bind("/menu", route.Root); err != nil {
		t.Fatalf("bind: %v", err)
	}
	if err := a.Bind("/ban", route.New("ban")); err != nil {
		t.Fatalf("bind: %v", err)
	}

	cases := []struct {
		text  string
		token string
		ok    bool
	}{
		{"/menu", "/", true},
		{"/MENU", "/", true},
		{"/menu@groupbot", "/", true},
		{"/ban", "ban", true},
		{"/ban some reason", "ban", true},
		{"  /menu  ", "/", true},
		{"/unknown", "", false},
		{"hello", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		token, ok := a.commandToken(tc.text)
		if ok != tc.ok || token != tc.token {
			t.Fatalf("commandToken(%q) = %q, %v", tc.text, token, ok)
		}
	}
}

func TestBindRejectsUnencodableRoute(t *testing.T) {
	a := NewAdapter(nil, nil)
	if err := a.Bind("/bad", route.New("Not Valid")); err == nil {
		t.Fatal("expected encode error")
	}
}
