package narrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-economy/internal/engine"
)

func TestParseEventExtractsJSON(t *testing.T) {
	text := `Here is today's event:
{"target_good": "grain", "modifier_percent": -30, "impact": "production", "description": "A late frost damaged the grain fields."}
Hope that helps!`

	ev, err := parseEvent(text)
	require.NoError(t, err)
	assert.Equal(t, "grain", ev.TargetGood)
	assert.Equal(t, -30.0, ev.ModifierPercent)
	assert.Equal(t, engine.ImpactProduction, ev.Impact)
	assert.NotEmpty(t, ev.Description)
}

func TestParseEventWageImpact(t *testing.T) {
	ev, err := parseEvent(`{"target_good": "iron_ore", "modifier_percent": 20, "impact": "wage", "description": "Miners demand hazard pay."}`)
	require.NoError(t, err)
	assert.Equal(t, engine.ImpactWage, ev.Impact)
}

func TestParseEventRejectsUnknownGood(t *testing.T) {
	_, err := parseEvent(`{"target_good": "unobtanium", "modifier_percent": 10, "impact": "production", "description": "x"}`)
	assert.Error(t, err)
}

func TestParseEventRejectsUnknownImpact(t *testing.T) {
	_, err := parseEvent(`{"target_good": "grain", "modifier_percent": 10, "impact": "weather", "description": "x"}`)
	assert.Error(t, err)
}

func TestParseEventRejectsNonJSON(t *testing.T) {
	_, err := parseEvent("nothing happened today")
	assert.Error(t, err)
}
