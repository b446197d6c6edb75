package build

import (
	"errors"
	"testing"
)

func TestStageErrorKinds(t *testing.T) {
	cause := errors.New("boom")
	cases := []struct {
		name string
		err  *StageError
		kind StageErrorKind
	}{
		{"fatal", newFatalStageError(StageCompile, cause), StageErrorFatal},
		{"warning", newWarnStageError(StageVerifyLinks, cause), StageErrorWarning},
		{"canceled", newCanceledStageError(StageRenderPages, cause), StageErrorCanceled},
	}
	for _, tc := range cases {
		if tc.err.Kind != tc.kind {
			t.Fatalf("%s: expected kind %s, got %s", tc.name, tc.kind, tc.err.Kind)
		}
		if !errors.Is(tc.err, cause) {
			t.Fatalf("%s: expected cause in chain", tc.name)
		}
	}
}

func TestStageErrorMessage(t *testing.T) {
	se := newFatalStageError(StageCompile, errors.New("boom"))
	want := "fatal stage compile: boom"
	if se.Error() != want {
		t.Fatalf("expected %q, got %q", want, se.Error())
	}
}

func TestStageErrorUnwrap(t *testing.T) {
	sentinel := errors.New("sentinel")
	se := newWarnStageError(StageCopyPublic, sentinel)
	if errors.Unwrap(se) != sentinel {
		t.Fatalf("expected Unwrap to return the cause")
	}
}
