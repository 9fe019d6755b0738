// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package descriptor

import (
	"reflect"
	"testing"
)

func TestSubstituteArg(t *testing.T) {
	t.Parallel()
	ctx := &subContext{args: map[string]string{"machine": "baxter", "user": ""}}

	got, err := substitute("run on $(arg machine) as $(arg user).", ctx)
	if err != nil {
		t.Fatalf("substitute: %v", err)
	}
	if want := "run on baxter as ."; got != want {
		t.Fatalf("substitute = %q, want %q", got, want)
	}
}

func TestSubstituteNoExpressions(t *testing.T) {
	t.Parallel()
	got, err := substitute("plain text with $dollar", &subContext{})
	if err != nil {
		t.Fatalf("substitute: %v", err)
	}
	if got != "plain text with $dollar" {
		t.Fatalf("substitute = %q", got)
	}
}

func TestSubstituteUndeclaredArg(t *testing.T) {
	t.Parallel()
	ctx := &subContext{args: map[string]string{}}
	if _, err := substitute("$(arg nope)", ctx); err == nil {
		t.Fatal("substitute accepted an undeclared argument")
	}
}

func TestSubstituteUnterminated(t *testing.T) {
	t.Parallel()
	if _, err := substitute("$(arg machine", &subContext{}); err == nil {
		t.Fatal("substitute accepted an unterminated expression")
	}
}

func TestSubstituteUnknownVerb(t *testing.T) {
	t.Parallel()
	if _, err := substitute("$(find some_pkg)", &subContext{}); err == nil {
		t.Fatal("substitute accepted an unknown verb")
	}
}

func TestSubstituteEnv(t *testing.T) {
	t.Setenv("CORRAL_TEST_ENV", "from-env")

	got, err := substitute("$(env CORRAL_TEST_ENV)", &subContext{})
	if err != nil {
		t.Fatalf("substitute: %v", err)
	}
	if got != "from-env" {
		t.Fatalf("substitute = %q", got)
	}

	if _, err := substitute("$(env CORRAL_TEST_ENV_UNSET)", &subContext{}); err == nil {
		t.Fatal("$(env) accepted an unset variable")
	}
}

func TestSubstituteOptenv(t *testing.T) {
	t.Setenv("CORRAL_TEST_LOADER", "/opt/env.sh")

	got, err := substitute("$(optenv CORRAL_TEST_LOADER)", &subContext{})
	if err != nil {
		t.Fatalf("substitute: %v", err)
	}
	if got != "/opt/env.sh" {
		t.Fatalf("substitute = %q", got)
	}

	// Unset: the remaining operands are the default, empty when none.
	got, err = substitute("$(optenv CORRAL_TEST_LOADER_UNSET)", &subContext{})
	if err != nil {
		t.Fatalf("substitute: %v", err)
	}
	if got != "" {
		t.Fatalf("substitute = %q, want empty", got)
	}

	got, err = substitute("$(optenv CORRAL_TEST_LOADER_UNSET /usr/bin/env -i)", &subContext{})
	if err != nil {
		t.Fatalf("substitute: %v", err)
	}
	if got != "/usr/bin/env -i" {
		t.Fatalf("substitute = %q", got)
	}
}

func TestSubstituteDirname(t *testing.T) {
	t.Parallel()
	ctx := &subContext{dir: "/srv/launch"}
	got, err := substitute("$(dirname)/cameras.launch", ctx)
	if err != nil {
		t.Fatalf("substitute: %v", err)
	}
	if got != "/srv/launch/cameras.launch" {
		t.Fatalf("substitute = %q", got)
	}
}

func TestSplitArgs(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"   ", nil},
		{"-v --rate 30", []string{"-v", "--rate", "30"}},
		{`--label "left camera" -q`, []string{"--label", "left camera", "-q"}},
		{`--label 'right camera'`, []string{"--label", "right camera"}},
		{`--empty ""`, []string{"--empty", ""}},
		{"a\tb\nc", []string{"a", "b", "c"}},
	}
	for _, tt := range tests {
		got, err := splitArgs(tt.raw)
		if err != nil {
			t.Fatalf("splitArgs(%q): %v", tt.raw, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitArgs(%q) = %#v, want %#v", tt.raw, got, tt.want)
		}
	}

	if _, err := splitArgs(`--label "left camera`); err == nil {
		t.Fatal("splitArgs accepted an unterminated quote")
	}
}
