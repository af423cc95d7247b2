package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneIsIndependent(t *testing.T) {
	st := New()
	st.Slots["topic"] = SlotValue{Value: "photosynthesis", Confidence: 0.9}
	st.Pending = &PendingClarification{Kind: "slot", Key: "quantity"}
	st.SetPreference("companion", "persona", "witty_rebel")
	st.WorldStatus = map[string]string{"hvac_power": "off"}

	cp := st.Clone()
	cp.Slots["topic"] = SlotValue{Value: "mitosis", Confidence: 0.9}
	cp.Pending.Key = "size"
	cp.SetPreference("companion", "persona", "friendly_helper")
	cp.WorldStatus["hvac_power"] = "on"

	assert.Equal(t, "photosynthesis", st.Slots.String("topic"))
	assert.Equal(t, "quantity", st.Pending.Key)
	assert.Equal(t, "witty_rebel", st.Preference("companion", "persona"))
	assert.Equal(t, "off", st.WorldStatus["hvac_power"])
}

func TestAppendTurnBoundsHistory(t *testing.T) {
	st := New()
	now := time.Now()
	for i := 0; i < HistoryLimit+7; i++ {
		st.AppendTurn("user", fmt.Sprintf("msg %d", i), now)
	}

	require.Len(t, st.History, HistoryLimit)
	assert.Equal(t, "msg 7", st.History[0].Text)
	assert.Equal(t, fmt.Sprintf("msg %d", HistoryLimit+6), st.History[len(st.History)-1].Text)
}

func TestPruneDropsEmptyValues(t *testing.T) {
	slots := Slots{
		"item_name": {Value: "Latte", Confidence: 0.9},
		"notes":     {Value: "  ", Confidence: 0.5},
		"tags":      {Value: []any{}, Confidence: 0.5},
		"options":   {Value: map[string]any{}, Confidence: 0.5},
		"missing":   {Value: nil, Confidence: 0.5},
		"quantity":  {Value: float64(2), Confidence: 0.8},
	}

	pruned := slots.Prune()
	assert.ElementsMatch(t, []string{"item_name", "quantity"}, pruned.Keys())
}

func TestKeysSorted(t *testing.T) {
	slots := Slots{
		"topic":    {Value: "x"},
		"level":    {Value: "y"},
		"question": {Value: "z"},
	}
	assert.Equal(t, []string{"level", "question", "topic"}, slots.Keys())
}

func TestSlotAccessors(t *testing.T) {
	slots := Slots{
		"quantity": {Value: float64(3)},
		"options":  {Value: map[string]any{"temperature": "iced", "n": 1}},
		"name":     {Value: "  Americano  "},
	}

	q, ok := slots.Int("quantity")
	require.True(t, ok)
	assert.Equal(t, 3, q)

	assert.Equal(t, "Americano", slots.String("name"))
	assert.Equal(t, map[string]string{"temperature": "iced"}, slots.StringMap("options"))

	_, ok = slots.Int("name")
	assert.False(t, ok)
}
