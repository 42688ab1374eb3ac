// Package envsignal answers one question: is this process running in a
// production environment? Development-only components (the static verifier,
// private test-key export) refuse to operate when the answer is yes.
//
// Detection ORs several independent signals so that unsetting any single
// variable cannot create a bypass. The detector is an injected collaborator,
// never an ambient global, so tests can substitute their own answer.
package envsignal

import (
	"os"
	"strings"
)

// Detector reports whether the current runtime is production.
type Detector interface {
	IsProduction() bool
}

// Static is a fixed-answer Detector for wiring and tests.
type Static bool

// IsProduction implements Detector.
func (s Static) IsProduction() bool { return bool(s) }

// envFlags are explicit environment-name variables; any of them set to a
// production-ish value trips the guard.
var envFlags = []string{"ENVIRONMENT", "APP_ENV", "TOKENGATE_ENV"}

// hostMarkers are variables that managed production platforms inject into
// every container. Their mere presence is treated as a production signal.
var hostMarkers = []string{
	"KUBERNETES_SERVICE_HOST", // Kubernetes
	"K_SERVICE",               // Cloud Run / Knative
	"AWS_LAMBDA_FUNCTION_NAME",
	"AWS_EXECUTION_ENV",
	"WEBSITE_INSTANCE_ID", // Azure App Service
}

// EnvDetector inspects the process environment. The zero value reads the
// real environment; tests inject a lookup function.
type EnvDetector struct {
	lookup func(string) (string, bool)
}

// NewEnvDetector creates a detector over the real process environment.
func NewEnvDetector() *EnvDetector {
	return &EnvDetector{lookup: os.LookupEnv}
}

// IsProduction implements Detector.
func (d *EnvDetector) IsProduction() bool {
	return len(d.ActiveSignals()) > 0
}

// ActiveSignals returns the names of every production signal currently
// present, for startup logging.
func (d *EnvDetector) ActiveSignals() []string {
	lookup := d.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var active []string
	for _, name := range envFlags {
		if v, ok := lookup(name); ok {
			switch strings.ToLower(strings.TrimSpace(v)) {
			case "production", "prod":
				active = append(active, name)
			}
		}
	}
	for _, name := range hostMarkers {
		if v, ok := lookup(name); ok && v != "" {
			active = append(active, name)
		}
	}
	return active
}
