package planner

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"PlainError", errors.New("boom"), "planner_error"},
		{"Fault", Faultf("llm_timeout", errors.New("boom")), "llm_timeout"},
		{"WrappedFault", fmt.Errorf("outer: %w", Faultf("tool_failure", errors.New("boom"))), "tool_failure"},
		{"EmptyClass", &Fault{Err: errors.New("boom")}, "planner_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.err); got != tc.want {
				t.Errorf("Classify: want %q, got %q", tc.want, got)
			}
		})
	}
}

func TestFaultUnwrap(t *testing.T) {
	inner := errors.New("boom")
	f := Faultf("llm_timeout", inner)
	if !errors.Is(f, inner) {
		t.Errorf("fault does not unwrap to the inner error")
	}
	if f.Error() != "llm_timeout: boom" {
		t.Errorf("fault message: got %q", f.Error())
	}
}
