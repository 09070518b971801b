package play

// maxSourceMisses is how many consecutive failed probes a remote source
// tolerates before it is switched off for the rest of the game.
const maxSourceMisses = 10

// SourceState tracks the per-game health of one move source.
type SourceState struct {
	misses   int
	disabled bool
}

// Miss records a failed probe. The source is disabled once the
// consecutive miss count reaches the limit.
func (st *SourceState) Miss() {
	if st.disabled {
		return
	}
	st.misses++
	if st.misses >= maxSourceMisses {
		st.disabled = true
	}
}

// Reset clears the consecutive miss count after a successful probe.
func (st *SourceState) Reset() {
	st.misses = 0
}

// Disabled reports whether the source has been switched off for this game.
func (st *SourceState) Disabled() bool {
	return st.disabled
}

// Misses returns the current consecutive miss count.
func (st *SourceState) Misses() int {
	return st.misses
}

// Gate holds the static eligibility conditions for a move source.
type Gate struct {
	Enabled    bool
	MaxDepth   int
	MinTimeSec int
}

// Allows reports whether the source may be consulted for the session's
// current position. MaxDepth is a ply ceiling; MinTimeSec is checked
// against the bot's own remaining clock, with the first two plies
// exempt because the clock has not started ticking yet.
func (g Gate) Allows(s *GameSession, state *SourceState) bool {
	if !g.Enabled || state.Disabled() {
		return false
	}
	if g.MaxDepth > 0 && s.Ply() >= g.MaxDepth {
		return false
	}
	if g.MinTimeSec > 0 && !s.HasTime(g.MinTimeSec) {
		return false
	}
	return true
}
