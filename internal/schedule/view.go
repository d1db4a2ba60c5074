// Package schedule owns the slot schedule: the derived display view of the
// slot subtree and the state machine that mutates slots at the remote store.
package schedule

import (
	"sort"

	"pilldock/internal/model"
)

// BuildView derives the display mapping from the raw slot subtree: display
// key "HH:MM" to slot, including only enabled slots. Slots are visited in
// ascending slot order, so when two enabled slots share a time the higher
// slot silently wins the key. That collision behavior is deliberate; see
// DESIGN.md.
func BuildView(raw map[int]map[string]string) map[string]model.Slot {
	view := make(map[string]model.Slot, len(raw))
	ids := make([]int, 0, len(raw))
	for id := range raw {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		slot := model.SlotFromRecord(id, raw[id])
		if !slot.Enabled {
			continue
		}
		view[slot.TimeKey()] = slot
	}
	return view
}

// SortedKeys returns the view's display keys in ascending time order.
// Zero-padded "HH:MM" keys sort correctly as strings.
func SortedKeys(view map[string]model.Slot) []string {
	keys := make([]string, 0, len(view))
	for key := range view {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
