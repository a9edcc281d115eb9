package session

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsKindThroughWrapping(t *testing.T) {
	base := errors.New("device busy")
	err := fmt.Errorf("start: %w", E(KindCaptureUnavailable, "voice.StartRecording", base))

	if !IsKind(err, KindCaptureUnavailable) {
		t.Error("expected capture_unavailable kind")
	}
	if IsKind(err, KindPermission) {
		t.Error("unexpected permission kind")
	}
	if !errors.Is(err, base) {
		t.Error("errors.Is should reach the wrapped cause")
	}
	if IsKind(base, KindCaptureUnavailable) {
		t.Error("plain error must not match any kind")
	}
}

func TestErrorMessage(t *testing.T) {
	for _, tt := range []struct {
		err  *Error
		want string
	}{
		{&Error{Kind: KindPermission, Op: "op", Err: errors.New("denied")}, "op: permission: denied"},
		{&Error{Kind: KindModelLoad, Op: "op"}, "op: model_load"},
		{&Error{Kind: KindReduction, Err: errors.New("nan")}, "reduction: nan"},
		{&Error{Kind: KindReduction}, "reduction"},
	} {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestStateHoldsStream(t *testing.T) {
	holds := map[State]bool{
		Idle: false, RequestingPermission: false, PermissionDenied: false,
		Ready: true, Recording: true, Finalizing: true,
	}
	for s, want := range holds {
		if got := s.HoldsStream(); got != want {
			t.Errorf("%s.HoldsStream() = %v, want %v", s, got, want)
		}
	}
}
