package commands

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/rebound/backend/pkg/database"
)

func TestHealthLine(t *testing.T) {
	healthy := &database.HealthStatus{
		Healthy:      true,
		ResponseTime: 3 * time.Millisecond,
		Stats: database.PoolStats{
			TotalConns: 4,
			MaxConns:   25,
		},
	}
	assert.Equal(t, "ok (ping 3ms, 4/25 conns)", healthLine(healthy))

	down := &database.HealthStatus{
		Healthy: false,
		Error:   "connection refused",
	}
	assert.Equal(t, "unhealthy: connection refused", healthLine(down))
}
