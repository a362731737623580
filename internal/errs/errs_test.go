package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := NotFound("game %q not found", "g1")
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("errors.Is(NotFound, ErrNotFound) = false")
	}
	if errors.Is(err, ErrInvalidRequest) {
		t.Fatal("errors.Is(NotFound, ErrInvalidRequest) = true")
	}
}

func TestIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("loading: %w", AlreadyInstalling("busy"))
	if !errors.Is(err, ErrAlreadyInstalling) {
		t.Fatal("wrapped kind not matched")
	}
	if KindOf(err) != KindAlreadyInstalling {
		t.Errorf("KindOf = %q", KindOf(err))
	}
}

func TestExternalRunnerUnwraps(t *testing.T) {
	cause := errors.New("socket closed")
	err := ExternalRunner(cause, "launching installer")
	if !errors.Is(err, cause) {
		t.Fatal("cause not reachable via errors.Is")
	}
	if !errors.Is(err, ErrExternalRunner) {
		t.Fatal("kind not matched")
	}
	if got := err.Error(); got != "launching installer: socket closed" {
		t.Errorf("Error() = %q", got)
	}
}

func TestKindOfUnclassified(t *testing.T) {
	if KindOf(errors.New("disk full")) != "" {
		t.Error("plain error should have no kind")
	}
	if IsExpected(errors.New("disk full")) {
		t.Error("plain error should not be expected")
	}
	if !IsExpected(LastPlatform("x")) {
		t.Error("LastPlatform should be expected")
	}
}
