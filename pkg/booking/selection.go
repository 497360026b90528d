package booking

import (
	"fmt"
	"sort"
)

// SelectedSlot pairs a slot id with its display start time.
type SelectedSlot struct {
	ID        SlotHour
	StartTime string
}

// Selection is a caller-held set of slots that must always form one unbroken run.
type Selection struct {
	slots []SelectedSlot
}

// Add inserts a slot. If the result would contain a gap the selection is left
// unchanged and ErrNonConsecutiveSelection is returned.
func (selection *Selection) Add(id SlotHour) error {
	for _, slot := range selection.slots {
		if slot.ID == id {
			return nil
		}
	}
	candidate := make([]SelectedSlot, 0, len(selection.slots)+1)
	candidate = append(candidate, selection.slots...)
	candidate = append(candidate, SelectedSlot{ID: id, StartTime: id.StartTime()})
	sort.Slice(candidate, func(left, right int) bool {
		return candidate[left].ID < candidate[right].ID
	})
	if !consecutive(candidate) {
		return fmt.Errorf("%w: adding %s", ErrNonConsecutiveSelection, id.StartTime())
	}
	selection.slots = candidate
	return nil
}

// Remove drops a slot. Removing from the middle of a run longer than one is
// rejected with ErrNonConsecutiveSelection and the selection is left unchanged.
func (selection *Selection) Remove(id SlotHour) error {
	remaining := make([]SelectedSlot, 0, len(selection.slots))
	for _, slot := range selection.slots {
		if slot.ID != id {
			remaining = append(remaining, slot)
		}
	}
	if len(remaining) > 1 && !consecutive(remaining) {
		return fmt.Errorf("%w: removing %s splits the selection", ErrNonConsecutiveSelection, id.StartTime())
	}
	selection.slots = remaining
	return nil
}

// Slots returns a copy of the selected slots in ascending order.
func (selection *Selection) Slots() []SelectedSlot {
	return append([]SelectedSlot(nil), selection.slots...)
}

// IDs returns the selected slot ids in ascending order.
func (selection *Selection) IDs() []SlotHour {
	ids := make([]SlotHour, 0, len(selection.slots))
	for _, slot := range selection.slots {
		ids = append(ids, slot.ID)
	}
	return ids
}

// Len reports how many slots are selected.
func (selection *Selection) Len() int {
	return len(selection.slots)
}

// StartTime is the display start of the selection, empty when nothing is selected.
func (selection *Selection) StartTime() string {
	if len(selection.slots) == 0 {
		return ""
	}
	return selection.slots[0].StartTime
}

// Duration is the number of selected hours.
func (selection *Selection) Duration() int {
	return len(selection.slots)
}

// Range converts a non-empty selection into a booking range within hours.
func (selection *Selection) Range(hours OperatingHours) (Range, error) {
	if len(selection.slots) == 0 {
		return Range{}, fmt.Errorf("%w: no slots selected", ErrInvalidDuration)
	}
	return NewRange(selection.slots[0].ID, len(selection.slots), hours)
}

func consecutive(slots []SelectedSlot) bool {
	for index := 1; index < len(slots); index++ {
		if slots[index].ID != slots[index-1].ID+1 {
			return false
		}
	}
	return true
}
