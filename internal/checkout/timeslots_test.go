package checkout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeSlots(t *testing.T) {
	slots := TimeSlotList()
	require.Len(t, slots, 9)

	assert.Equal(t, TimeSlot{Label: "9 AM - 10 AM", Value: "9:00"}, slots[0])
	assert.Equal(t, TimeSlot{Label: "11 AM - 12 PM", Value: "11:00"}, slots[2])
	assert.Equal(t, TimeSlot{Label: "12 PM - 1 PM", Value: "12:00"}, slots[3])
	assert.Equal(t, TimeSlot{Label: "5 PM - 6 PM", Value: "17:00"}, slots[8])

	seen := map[string]bool{}
	for _, s := range slots {
		assert.False(t, seen[s.Value], "duplicate slot %s", s.Value)
		seen[s.Value] = true
	}

	assert.Equal(t, slots, TimeSlotList(), "sequence must be stable")
}

func TestTimeSlots_EarlyStop(t *testing.T) {
	n := 0
	for range TimeSlots() {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestIsTimeSlot(t *testing.T) {
	assert.True(t, IsTimeSlot("9:00"))
	assert.True(t, IsTimeSlot("17:00"))
	assert.False(t, IsTimeSlot("18:00"))
	assert.False(t, IsTimeSlot("09:00"))
}
