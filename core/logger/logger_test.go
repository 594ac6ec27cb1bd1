package logger

import (
	"context"
	"testing"
)

func TestRIDRoundTrip(t *testing.T) {
	ctx := WithRID(context.Background(), "42:7:9")
	if got := RIDFrom(ctx); got != "42:7:9" {
		t.Fatalf("rid = %q", got)
	}
	if got := RIDFrom(context.Background()); got != "" {
		t.Fatalf("unexpected rid %q", got)
	}
}

func TestUpdateMetaRoundTrip(t *testing.T) {
	ctx := WithUpdateMeta(context.Background(), 42, 7, 9)
	if got := UpdateIDFrom(ctx); got != 42 {
		t.Fatalf("update id = %d", got)
	}
	if got := UserIDFrom(ctx); got != 7 {
		t.Fatalf("user id = %d", got)
	}
	if got := ChatIDFrom(ctx); got != 9 {
		t.Fatalf("chat id = %d", got)
	}
}

func TestBuildRID(t *testing.T) {
	if got := BuildRID(1, -100, 50); got != "1:-100:50" {
		t.Fatalf("rid = %q", got)
	}
}

func TestSanitizeLimit(t *testing.T) {
	if got := SanitizeLimit("ab\x00cd", 10); got != "abcd" {
		t.Fatalf("sanitized = %q", got)
	}
	if got := SanitizeLimit("abcdef", 3); got != "abc" {
		t.Fatalf("limited = %q", got)
	}
	if got := SanitizeLimit("abc", 0); got != "" {
		t.Fatalf("zero max = %q", got)
	}
}

func TestHandlerFromContext(t *testing.T) {
	ctx := WithHandler(context.Background(), "group-membership/index")
	if got := HandlerFrom(ctx); got != "group-membership/index" {
		t.Fatalf("handler = %q", got)
	}
}
