package reconcile

import "testing"

func TestComputeStepSetupOverridesEverything(t *testing.T) {
	steps := []Step{StepInit, StepSetup, StepStartup, StepLogin, StepAuthenticating, StepDashboard}
	bools := []bool{false, true}
	for _, prev := range steps {
		for _, authed := range bools {
			for _, pending := range bools {
				for _, title := range bools {
					got := ComputeStep(false, authed, pending, title, prev)
					if got != StepSetup {
						t.Fatalf("ComputeStep(false, %v, %v, %v, %s) = %s, want setup", authed, pending, title, prev, got)
					}
				}
			}
		}
	}
}

func TestComputeStepAuthenticatingIsSticky(t *testing.T) {
	got := ComputeStep(true, false, false, true, StepAuthenticating)
	if got != StepAuthenticating {
		t.Fatalf("expected authenticating to hold without confirmation, got %s", got)
	}

	got = ComputeStep(true, true, false, true, StepAuthenticating)
	if got != StepDashboard {
		t.Fatalf("expected dashboard after confirmation, got %s", got)
	}

	// The setup override still wins over stickiness.
	got = ComputeStep(false, false, true, true, StepAuthenticating)
	if got != StepSetup {
		t.Fatalf("expected setup override, got %s", got)
	}
}

func TestComputeStepPendingAuthEntersAuthenticating(t *testing.T) {
	// A session exists but the host has not confirmed the channel yet.
	got := ComputeStep(true, false, true, true, StepLogin)
	if got != StepAuthenticating {
		t.Fatalf("pending session: got %s, want authenticating", got)
	}

	// No session, no confirmation: stays at login.
	got = ComputeStep(true, false, false, true, StepLogin)
	if got != StepLogin {
		t.Fatalf("no session: got %s, want login", got)
	}

	// Confirmation beats pending.
	got = ComputeStep(true, true, true, true, StepLogin)
	if got != StepDashboard {
		t.Fatalf("confirmed: got %s, want dashboard", got)
	}
}

func TestComputeStepBootSequence(t *testing.T) {
	// Host active but title still the placeholder: the world is booting.
	step := ComputeStep(true, false, false, TitleComplete("Reconnecting..."), StepInit)
	if step != StepStartup {
		t.Fatalf("placeholder title: got %s, want startup", step)
	}

	// Real title arrives, nobody authenticated yet.
	step = ComputeStep(true, false, false, TitleComplete("Lost Citadel"), step)
	if step != StepLogin {
		t.Fatalf("real title: got %s, want login", step)
	}

	// Login submitted; a session now exists, host not yet confirmed.
	step = ComputeStep(true, false, true, true, step)
	if step != StepAuthenticating {
		t.Fatalf("pre-confirmation: got %s, want authenticating", step)
	}

	// Host confirms.
	step = ComputeStep(true, true, false, true, step)
	if step != StepDashboard {
		t.Fatalf("post-confirmation: got %s, want dashboard", step)
	}
}

func TestComputeStepDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		if got := ComputeStep(true, true, false, true, StepLogin); got != StepDashboard {
			t.Fatalf("run %d: got %s, want dashboard", i, got)
		}
	}
}

func TestTitleComplete(t *testing.T) {
	cases := []struct {
		title string
		want  bool
	}{
		{"", false},
		{"Reconnecting...", false},
		{"reconnecting...", false},
		{"Reconnecting…", false},
		{"  ", false},
		{"Lost Citadel", true},
	}
	for _, c := range cases {
		if got := TitleComplete(c.title); got != c.want {
			t.Fatalf("TitleComplete(%q) = %v, want %v", c.title, got, c.want)
		}
	}
}
