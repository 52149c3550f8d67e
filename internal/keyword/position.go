package keyword

// Unranked is the position given to a keyword a source does not rank for.
const Unranked = 999

// RankingThreshold is the first position treated as not ranking.
const RankingThreshold = Unranked

// IsRanking reports whether pos is a real SERP position.
func IsRanking(pos int) bool {
	return pos >= 1 && pos < RankingThreshold
}

// EffectivePosition returns the record's position, or Unranked when the
// position is missing or invalid.
func EffectivePosition(r Record) int {
	if IsRanking(r.Position) {
		return r.Position
	}
	return Unranked
}

// Between reports whether pos is a real position within [lo, hi].
func Between(pos, lo, hi int) bool {
	return IsRanking(pos) && pos >= lo && pos <= hi
}

// InTop reports whether pos is a real position no worse than n.
func InTop(pos, n int) bool {
	return Between(pos, 1, n)
}

// BeyondPageOne reports whether pos is past the first ten results,
// counting an absent ranking as beyond.
func BeyondPageOne(pos int) bool {
	return !IsRanking(pos) || pos > 10
}

// Missing returns the record synthesized for a keyword absent from a source.
func Missing(kw string) Record {
	return Record{
		Keyword:          kw,
		Position:         Unranked,
		PreviousPosition: Unranked,
	}
}
