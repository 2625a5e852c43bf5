package scheduler

import (
	"sort"
	"sync"

	"github.com/noah-isme/lms-class-scheduler/internal/models"
)

// Inventory is the run-scoped working copy of the slot pool. Booking a slot
// decrements its spots and takes it out of the pool, so no two classes in the
// same run share a slot.
type Inventory struct {
	mu    sync.Mutex
	order []string
	slots map[string]*models.TimeSlot
}

// NewInventory copies the given slots into a fresh inventory. Later duplicates
// of an ID are ignored.
func NewInventory(slots []models.TimeSlot) *Inventory {
	inv := &Inventory{slots: make(map[string]*models.TimeSlot, len(slots))}
	for _, slot := range slots {
		if _, exists := inv.slots[slot.ID]; exists {
			continue
		}
		copied := slot
		inv.slots[slot.ID] = &copied
		inv.order = append(inv.order, slot.ID)
	}
	return inv
}

// Eligible lists slots that are available and can seat size students, ordered
// by slot ID. A slot seats a class only when both its free spots and its
// MaxStudents cover the class size.
func (inv *Inventory) Eligible(size int) []models.TimeSlot {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	var result []models.TimeSlot
	for _, id := range inv.order {
		slot := inv.slots[id]
		if slot.IsAvailable && seats(slot.Capacity, size) {
			result = append(result, *slot)
		}
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Reserve books size seats on a slot. It returns the booked slot state and false
// when the slot is unknown, already booked or lacks seats.
func (inv *Inventory) Reserve(slotID string, size int) (models.TimeSlot, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	slot, ok := inv.slots[slotID]
	if !ok || !slot.IsAvailable || size <= 0 || !seats(slot.Capacity, size) {
		return models.TimeSlot{}, false
	}
	slot.Capacity.AvailableSpots -= size
	slot.IsAvailable = false
	return *slot, true
}

func seats(capacity models.SlotCapacity, size int) bool {
	return capacity.AvailableSpots >= size && capacity.MaxStudents >= size
}

// Snapshot returns the current slot states in insertion order.
func (inv *Inventory) Snapshot() []models.TimeSlot {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	result := make([]models.TimeSlot, 0, len(inv.order))
	for _, id := range inv.order {
		result = append(result, *inv.slots[id])
	}
	return result
}
