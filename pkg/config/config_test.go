package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)
	return v
}

func TestFromViperDefaults(t *testing.T) {
	cfg := fromViper(newTestViper())

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 6, cfg.Scheduler.MaxStudentsPerClass)
	assert.Equal(t, 8, cfg.Scheduler.MaxClassesPerTeacher)
	assert.Equal(t, 3, cfg.Scheduler.MaxContentPerClass)
	assert.InDelta(t, 1.0, cfg.Scheduler.WeightContentProgression+cfg.Scheduler.WeightStudentAvailability+
		cfg.Scheduler.WeightClassSize+cfg.Scheduler.WeightScheduleContinuity, 1e-9)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "./exports", cfg.Export.Dir)
	assert.Equal(t, time.Hour, cfg.Export.LinkTTL)
	assert.Equal(t, 24*time.Hour, cfg.Export.Retention)
}

func TestFromViperEnvironmentOverrides(t *testing.T) {
	t.Setenv("SCHEDULER_MAX_STUDENTS_PER_CLASS", "10")
	t.Setenv("SCHEDULER_CACHE_TTL", "1h")
	t.Setenv("ENABLE_CACHE", "true")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test ,")
	t.Setenv("EXPORT_SIGNING_SECRET", "s3cret")
	t.Setenv("EXPORT_LINK_TTL", "10m")

	cfg := fromViper(newTestViper())

	assert.Equal(t, 10, cfg.Scheduler.MaxStudentsPerClass)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "s3cret", cfg.Export.SigningSecret)
	assert.Equal(t, 10*time.Minute, cfg.Export.LinkTTL)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("soon", time.Minute))
	assert.Equal(t, 5*time.Second, parseDuration("5s", time.Minute))
}
