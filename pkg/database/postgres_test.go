package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/clinic-agenda-api/pkg/config"
)

func TestDSNPinsUTC(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "clinic", SSLMode: "disable"})
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=clinic sslmode=disable timezone=UTC", dsn)
}
