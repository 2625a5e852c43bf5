package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/lms-class-scheduler/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5433, User: "lms", Password: "secret", Name: "lms", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5433 user=lms password=secret dbname=lms sslmode=disable", dsn)
}
