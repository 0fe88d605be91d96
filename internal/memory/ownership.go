package memory

// OwnershipClass classifies how a value's lifetime relates to the current
// expression, mirroring the distinction the assignment and call-argument
// policies actually make (consumed vs. borrowed vs. shared) rather than
// tracking it implicitly inline at each call site.
type OwnershipClass int

const (
	// OwnerBorrowed: the value is read but its ownership is untouched
	// (e.g. the receiver of a method call, a plain-numeric argument).
	OwnerBorrowed OwnershipClass = iota
	// OwnerShared: a counted pointer whose reference count must be
	// incremented when it is retained past the current expression.
	OwnerShared
	// OwnerWeak: a weak pointer; never contributes to the refcount, but
	// its registration must move with it.
	OwnerWeak
	// OwnerConsumed: a transient or loaded-transient being handed off —
	// the increment/decrement that would otherwise balance it is skipped
	// because ownership transfers directly to the destination.
	OwnerConsumed
)

// ClassifyAssignmentTarget maps a destination type to the ownership
// class that drives the assignment policy table.
func ClassifyAssignmentTarget(counted, weak, structNeedsDtor bool) OwnershipClass {
	switch {
	case weak:
		return OwnerWeak
	case counted:
		return OwnerShared
	case structNeedsDtor:
		return OwnerShared // struct copy-constructor plays the increment's role
	default:
		return OwnerBorrowed
	}
}
