package ipc

import (
	"io"
	"log/slog"
	"testing"
)

func TestResolveKnownAliases(t *testing.T) {
	cases := map[string]Command{
		"--new-tab": NewTab,
		"-t":        NewTab,
		"next":      NextTab,
		"--prev":    PrevTab,
		"split-v":   SplitV,
		"left":      FocusLeft,
		"--right":   FocusRight,
	}
	for token, want := range cases {
		got, ok := Resolve(token)
		if !ok {
			t.Fatalf("Resolve(%q): not ok", token)
		}
		if got != want {
			t.Fatalf("Resolve(%q) = %q, want %q", token, got, want)
		}
	}
}

func TestResolveUnknownToken(t *testing.T) {
	if _, ok := Resolve("--frobnicate"); ok {
		t.Fatal("Resolve(--frobnicate): expected ok=false")
	}
}

func TestListenSendAccept(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := Listen(log)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	if err := Send(NextTab); err != nil {
		t.Fatalf("Send: %v", err)
	}

	cmd, ok, err := srv.Accept()
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if !ok {
		t.Fatal("Accept: ok = false, want true")
	}
	if cmd != NextTab {
		t.Fatalf("Accept command = %q, want %q", cmd, NextTab)
	}
}

func TestAcceptTimesOutWithNoClient(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv, err := Listen(log)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer srv.Close()

	_, ok, err := srv.Accept()
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if ok {
		t.Fatal("Accept: ok = true with no client connected")
	}
}
