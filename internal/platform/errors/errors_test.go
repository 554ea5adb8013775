package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("spawn: %w", New(CodePluginNotRegistered, "Plugin is not in registry: crow"))
	if !stderrors.Is(err, New(CodePluginNotRegistered, "")) {
		t.Fatal("expected code match through wrap chain")
	}
	if stderrors.Is(err, New(CodeOperatorNotFound, "")) {
		t.Fatal("expected different code not to match")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := stderrors.New("plugin.Open: realpath failed")
	err := Wrap(CodePluginFileNotFound, "Plugin file not found", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause to be reachable")
	}
	if got := err.Error(); got != "Plugin file not found: plugin.Open: realpath failed" {
		t.Fatalf("message = %q", got)
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(fmt.Errorf("outer: %w", New(CodeSymbolNotFound, "x"))); got != CodeSymbolNotFound {
		t.Fatalf("code = %q, want %q", got, CodeSymbolNotFound)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("code = %q, want %q", got, CodeUnknown)
	}
}
