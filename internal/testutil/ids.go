package testutil

// NamedIDs generates readable product ids of the form "product:coreID".
//
// Unlike trigger.SeededGenerator the ids are predictable by eye, which keeps
// golden traces reviewable.
//
// Thread-safety: NamedIDs is stateless and safe for concurrent use.
type NamedIDs struct{}

// Generate implements trigger.IDGenerator.
func (NamedIDs) Generate(coreID, product string) string {
	return product + ":" + coreID
}
