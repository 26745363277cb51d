// Package reconcile owns the bridge's view of the host: a continuously
// re-polled snapshot and the step state machine the dashboards render from.
package reconcile

import "strings"

// Step is the bridge-computed UI phase.
type Step string

const (
	StepInit           Step = "init"
	StepSetup          Step = "setup"
	StepStartup        Step = "startup"
	StepLogin          Step = "login"
	StepAuthenticating Step = "authenticating"
	StepDashboard      Step = "dashboard"
)

// placeholder titles the host reports while a world is still booting.
var placeholderTitles = map[string]struct{}{
	"":                {},
	"reconnecting...": {},
	"reconnecting…":   {},
}

// TitleComplete reports whether a world title is a real title rather than a
// boot-time placeholder.
func TitleComplete(title string) bool {
	_, placeholder := placeholderTitles[strings.ToLower(strings.TrimSpace(title))]
	return !placeholder
}

// ComputeStep is the transition function, a pure function of the current poll
// observation and the previous step. pendingAuth means a bridge session exists
// whose channel the host has not yet confirmed; it moves login to
// authenticating without any client request touching the step directly.
//
// Order matters: a non-active host forces setup over everything, including an
// in-flight authentication. Authenticating is sticky; one momentarily
// inconsistent poll must not bounce the UI back to login, so it exits only on
// confirmation or on the setup override.
func ComputeStep(hostActive, authed, pendingAuth, titleComplete bool, prev Step) Step {
	if !hostActive {
		return StepSetup
	}
	if prev == StepAuthenticating {
		if authed {
			return StepDashboard
		}
		return StepAuthenticating
	}
	if !titleComplete {
		return StepStartup
	}
	if authed {
		return StepDashboard
	}
	if pendingAuth {
		return StepAuthenticating
	}
	return StepLogin
}

// live steps are the ones a user-visible world was already reached from;
// falling to setup from one of them means the world went away underneath.
func isLive(s Step) bool {
	switch s {
	case StepDashboard, StepLogin, StepStartup:
		return true
	}
	return false
}
