package bitset

// EffectBits pairs a positive and negative predicate set, used for effects
// (add/delete) and for certified/possible preconditions and effects alike.
type EffectBits struct {
	Pos *Bitset
	Neg *Bitset
}

// NewEffectBits allocates an empty EffectBits over [0, n).
func NewEffectBits(n int) EffectBits {
	return EffectBits{Pos: New(n), Neg: New(n)}
}

// Clone returns an independent copy.
func (e EffectBits) Clone() EffectBits {
	return EffectBits{Pos: e.Pos.Clone(), Neg: e.Neg.Clone()}
}

// OrWith ORs other into e componentwise in place. Returns true if e changed.
func (e EffectBits) OrWith(other EffectBits) bool {
	c1 := e.Pos.OrWith(other.Pos)
	c2 := e.Neg.OrWith(other.Neg)
	return c1 || c2
}

// AndWith ANDs other into e componentwise in place. Returns true if e changed.
func (e EffectBits) AndWith(other EffectBits) bool {
	c1 := e.Pos.AndWith(other.Pos)
	c2 := e.Neg.AndWith(other.Neg)
	return c1 || c2
}

// MinusWith cross-cancels e by a later contradictory effect: it removes
// from e.Pos every bit set in other.Neg, and from e.Neg every bit set in
// other.Pos. This is the semantic contract of "cancellation by a later
// contradictory effect" (spec.md §3), not a plain bitwise difference.
func (e EffectBits) MinusWith(other EffectBits) bool {
	c1 := e.Pos.MinusWith(other.Neg)
	c2 := e.Neg.MinusWith(other.Pos)
	return c1 || c2
}

// IsEmpty reports whether both Pos and Neg are empty.
func (e EffectBits) IsEmpty() bool {
	return e.Pos.IsEmpty() && e.Neg.IsEmpty()
}
