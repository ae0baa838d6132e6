package maker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRiskController_WindowLifetime(t *testing.T) {
	rc := NewRiskController(nil)
	now := time.Now()

	assert.False(t, rc.IsRiskOff("0xcond", now))

	rc.OpenRiskOff(context.Background(), "0xcond", "tok", now, 6)
	assert.True(t, rc.IsRiskOff("0xcond", now.Add(5*time.Hour)))
	assert.False(t, rc.IsRiskOff("0xcond", now.Add(7*time.Hour)))

	// Expired windows are gone, not just inactive.
	assert.False(t, rc.IsRiskOff("0xcond", now.Add(5*time.Hour)))
}

func TestRiskController_OpenExtendsNeverShrinks(t *testing.T) {
	rc := NewRiskController(nil)
	now := time.Now()

	rc.OpenRiskOff(context.Background(), "0xcond", "tok", now, 6)
	rc.OpenRiskOff(context.Background(), "0xcond", "tok", now, 2)

	assert.True(t, rc.IsRiskOff("0xcond", now.Add(5*time.Hour)))
}
