package main

import (
	"reflect"
	"testing"
)

func TestExtractCommandTokenFound(t *testing.T) {
	token, rest := extractCommandToken([]string{"--debug", "--next"})
	if token != "--next" {
		t.Fatalf("token = %q, want %q", token, "--next")
	}
	if !reflect.DeepEqual(rest, []string{"--debug"}) {
		t.Fatalf("rest = %v, want [--debug]", rest)
	}
}

func TestExtractCommandTokenAbsent(t *testing.T) {
	token, rest := extractCommandToken([]string{"--debug"})
	if token != "" {
		t.Fatalf("token = %q, want empty", token)
	}
	if !reflect.DeepEqual(rest, []string{"--debug"}) {
		t.Fatalf("rest = %v, want [--debug]", rest)
	}
}

func TestExtractCommandTokenOnlyFirstMatch(t *testing.T) {
	// A second command-like token is left in rest untouched; it is not
	// vtdeck's job to validate multiple commands in one invocation.
	token, rest := extractCommandToken([]string{"next", "prev"})
	if token != "next" {
		t.Fatalf("token = %q, want %q", token, "next")
	}
	if !reflect.DeepEqual(rest, []string{"prev"}) {
		t.Fatalf("rest = %v, want [prev]", rest)
	}
}
