package simulation

import "sync"

// CycleDetector tracks which triggers have fired within each cascade.
//
// A cascade starts at a journey event; every event created by a trigger
// belongs to the cascade of its source. A trigger firing twice in one
// cascade means the trigger graph loops back on itself:
//
//	diagnosis -> claim (t1) -> follow_up (t2) -> diagnosis (t3) -> claim (t1 again)
//
// The second t1 firing is blocked. Distinct cascades never interfere.
type CycleDetector struct {
	mu      sync.Mutex
	history map[string]map[string]bool // map[root_event]map[trigger_id]bool
}

// NewCycleDetector creates an empty detector.
func NewCycleDetector() *CycleDetector {
	return &CycleDetector{
		history: make(map[string]map[string]bool),
	}
}

// WouldCycle reports whether triggerID already fired in the cascade
// rooted at root.
func (c *CycleDetector) WouldCycle(root, triggerID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.history[root][triggerID]
}

// Record marks triggerID as fired in the cascade rooted at root.
func (c *CycleDetector) Record(root, triggerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.history[root] == nil {
		c.history[root] = make(map[string]bool)
	}
	c.history[root][triggerID] = true
}

// Clear drops the history of one cascade.
func (c *CycleDetector) Clear(root string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.history, root)
}

// HistorySize returns the number of cascades tracked.
func (c *CycleDetector) HistorySize() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.history)
}
