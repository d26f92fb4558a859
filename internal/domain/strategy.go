package domain

// StrategyRecord is the persisted registry row for a strategy: enough to
// reconstruct which strategies were active without re-reading process
// configuration, and to break contract-ownership ties deterministically.
//
// Priority establishes the tie-break order from spec §4.D.1: when two
// active strategies claim the same contract, the higher-priority strategy
// wins. Equal priority falls back to lexicographic name comparison so the
// result is always deterministic.
type StrategyRecord struct {
	Name     string
	Priority int
	Active   bool
}

// Less reports whether s has lower tie-break priority than other, i.e.
// other should win ownership of a contract both claim.
func (s StrategyRecord) Less(other StrategyRecord) bool {
	if s.Priority != other.Priority {
		return s.Priority < other.Priority
	}
	return s.Name < other.Name
}
