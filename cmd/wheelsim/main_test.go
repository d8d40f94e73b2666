package main

import (
	"bytes"
	"errors"
	"flag"
	"strings"
	"testing"

	"github.com/MJE43/fortune-wheel-go/internal/wheel"
)

func TestRunPrintsEverySlice(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-rates", "50,30,20", "-spins", "2000", "-seed", "sim"}, &out); err != nil {
		t.Fatalf("run: %v", err)
	}

	text := out.String()
	for _, want := range []string{"slice 1", "slice 2", "slice 3", "2000"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunIsReproducibleWithSeed(t *testing.T) {
	var a, b bytes.Buffer
	args := []string{"-rates", "60,40", "-spins", "500", "-seed", "same"}
	if err := run(args, &a); err != nil {
		t.Fatal(err)
	}
	if err := run(args, &b); err != nil {
		t.Fatal(err)
	}
	if a.String() != b.String() {
		t.Errorf("seeded runs differ:\n%s\n%s", a.String(), b.String())
	}
}

func TestRunRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		args []string
		kind wheel.ErrorKind
	}{
		{"total not 100", []string{"-rates", "50,40"}, wheel.KindInvalidRateTotal},
		{"negative rate", []string{"-rates", "120,-20"}, wheel.KindInvalidSlice},
		{"not a number", []string{"-rates", "50,x"}, ""},
		{"zero spins", []string{"-spins", "0"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			err := run(tt.args, &out)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := wheel.KindOf(err); got != tt.kind {
				t.Errorf("kind = %q, want %q", got, tt.kind)
			}
		})
	}
}

func TestRunHelp(t *testing.T) {
	var out bytes.Buffer
	if err := run([]string{"-h"}, &out); !errors.Is(err, flag.ErrHelp) {
		t.Errorf("err = %v, want flag.ErrHelp", err)
	}
}
