package checkout

import (
	"fmt"
	"iter"
)

const (
	firstSlotHour = 9
	lastSlotHour  = 17 // last slot starts at 17:00 and ends at 18:00
)

// TimeSlot is a one-hour delivery window.
type TimeSlot struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// TimeSlots yields the delivery windows from 09:00 to 18:00 in one-hour steps.
// Every iteration produces the same sequence.
func TimeSlots() iter.Seq[TimeSlot] {
	return func(yield func(TimeSlot) bool) {
		for hour := firstSlotHour; hour <= lastSlotHour; hour++ {
			slot := TimeSlot{
				Label: fmt.Sprintf("%s - %s", formatHour(hour), formatHour(hour+1)),
				Value: fmt.Sprintf("%d:00", hour),
			}
			if !yield(slot) {
				return
			}
		}
	}
}

// TimeSlotList collects TimeSlots into a slice.
func TimeSlotList() []TimeSlot {
	slots := make([]TimeSlot, 0, lastSlotHour-firstSlotHour+1)
	for slot := range TimeSlots() {
		slots = append(slots, slot)
	}
	return slots
}

// IsTimeSlot reports whether value names one of the delivery windows.
func IsTimeSlot(value string) bool {
	for slot := range TimeSlots() {
		if slot.Value == value {
			return true
		}
	}
	return false
}

func formatHour(hour int) string {
	switch {
	case hour == 0:
		return "12 AM"
	case hour < 12:
		return fmt.Sprintf("%d AM", hour)
	case hour == 12:
		return "12 PM"
	default:
		return fmt.Sprintf("%d PM", hour-12)
	}
}
