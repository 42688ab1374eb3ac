package envsignal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func detectorWith(env map[string]string) *EnvDetector {
	return &EnvDetector{lookup: func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}}
}

func TestEnvDetector(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		prod bool
	}{
		{
			name: "empty environment",
			env:  map[string]string{},
			prod: false,
		},
		{
			name: "ENVIRONMENT=production",
			env:  map[string]string{"ENVIRONMENT": "production"},
			prod: true,
		},
		{
			name: "APP_ENV=prod",
			env:  map[string]string{"APP_ENV": "prod"},
			prod: true,
		},
		{
			name: "TOKENGATE_ENV=Production with whitespace",
			env:  map[string]string{"TOKENGATE_ENV": " Production "},
			prod: true,
		},
		{
			name: "development value does not trip",
			env:  map[string]string{"ENVIRONMENT": "development"},
			prod: false,
		},
		{
			name: "kubernetes host marker",
			env:  map[string]string{"KUBERNETES_SERVICE_HOST": "10.0.0.1"},
			prod: true,
		},
		{
			name: "lambda marker",
			env:  map[string]string{"AWS_LAMBDA_FUNCTION_NAME": "fn"},
			prod: true,
		},
		{
			name: "empty marker value does not trip",
			env:  map[string]string{"K_SERVICE": ""},
			prod: false,
		},
		{
			name: "signals OR together",
			env: map[string]string{
				"ENVIRONMENT": "staging",
				"K_SERVICE":   "my-service",
			},
			prod: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.prod, detectorWith(tt.env).IsProduction())
		})
	}
}

func TestActiveSignalsNames(t *testing.T) {
	d := detectorWith(map[string]string{
		"APP_ENV":                 "production",
		"KUBERNETES_SERVICE_HOST": "10.0.0.1",
	})
	assert.ElementsMatch(t, []string{"APP_ENV", "KUBERNETES_SERVICE_HOST"}, d.ActiveSignals())
}

func TestStaticDetector(t *testing.T) {
	assert.True(t, Static(true).IsProduction())
	assert.False(t, Static(false).IsProduction())
}
