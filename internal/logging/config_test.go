package logging

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// withEnv sets every GITFLOW_LOG_* variable, blank unless env names it.
func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, k := range []string{EnvLogLevel, EnvLogTimestamp, EnvLogNoColor} {
		t.Setenv(k, env[k])
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		verbose bool
		env     map[string]string
		want    Config
	}{
		{
			name: "runtime defaults",
			want: Config{Level: zerolog.InfoLevel},
		},
		{
			name:    "verbose",
			verbose: true,
			want:    Config{Level: zerolog.DebugLevel},
		},
		{
			name:    "test profile is silent",
			profile: ProfileTest,
			want:    Config{Level: zerolog.Disabled, NoColor: true},
		},
		{
			name:    "env overrides verbose",
			verbose: true,
			env:     map[string]string{EnvLogLevel: " WARNING "},
			want:    Config{Level: zerolog.WarnLevel},
		},
		{
			name: "env switches",
			env: map[string]string{
				EnvLogLevel:     "trace",
				EnvLogTimestamp: "true",
				EnvLogNoColor:   "1",
			},
			want: Config{Level: zerolog.TraceLevel, Timestamp: true, NoColor: true},
		},
		{
			name: "garbage is ignored",
			env: map[string]string{
				EnvLogLevel:   "loud",
				EnvLogNoColor: "maybe",
			},
			want: Config{Level: zerolog.InfoLevel},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, tt.env)
			assert.Equal(t, tt.want, Resolve(tt.profile, tt.verbose))
		})
	}
}

func TestNew_WritesPlainTextToBuffers(t *testing.T) {
	withEnv(t, nil)

	var buf bytes.Buffer
	log := New(&buf, ProfileRuntime, false)
	log.Debug().Msg("hidden")
	log.Info().Str("branch", "hotfix/1.2.1").Msg("hotfix branch created")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "hotfix branch created")
	assert.Contains(t, out, "branch=hotfix/1.2.1")
	assert.NotContains(t, out, "\x1b[", "non-terminal output is not coloured")
}

func TestNew_TestProfileWritesNothing(t *testing.T) {
	withEnv(t, nil)

	var buf bytes.Buffer
	log := New(&buf, ProfileTest, true)
	log.Error().Msg("boom")
	assert.Empty(t, buf.String())
}
