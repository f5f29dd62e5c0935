package errcode

import (
	"errors"
	"fmt"
	"testing"
)

func TestOf(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, OK},
		{Restart, Restart},
		{New(InvalidRecord, "config.load", "bad checksum"), InvalidRecord},
		{fmt.Errorf("boot: %w", Wrap(CommitFailed, "config.save", errors.New("eio"))), CommitFailed},
		{errors.New("plain"), Error},
	}
	for _, c := range cases {
		if got := Of(c.err); got != c.want {
			t.Fatalf("Of(%v)=%q want %q", c.err, got, c.want)
		}
	}
}

func TestIsMatchesWrappedCode(t *testing.T) {
	err := fmt.Errorf("tick: %w", New(Restart, "controller", "fallback"))
	if !errors.Is(err, Restart) {
		t.Fatal("errors.Is should see the Restart code")
	}
	if errors.Is(err, Cancelled) {
		t.Fatal("unexpected match")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(CommitFailed, "x", nil) != nil {
		t.Fatal("Wrap(nil) must be nil")
	}
}

func TestErrorString(t *testing.T) {
	e := &E{C: VerifyFailed, Op: "config.save", Msg: "ssid mismatch"}
	if got := e.Error(); got != "config.save: verify_failed: ssid mismatch" {
		t.Fatalf("Error() = %q", got)
	}
}
