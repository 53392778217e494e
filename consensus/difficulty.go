package consensus

// Difficulty engine parameters (spec §4.6).
const (
	TargetBlockTimeMillis = 120_000
	DifficultyWindow      = 10
	InitialDifficulty     = 4
	MinDifficulty         = 1
	MaxDifficulty         = 12
)

// BlockTimestamps is the minimal per-block context the retarget needs:
// the height and timestamp of each of the last DifficultyWindow blocks,
// oldest first.
type BlockTimestamps struct {
	Height    uint64
	Timestamp uint64
}

// NextDifficulty computes the difficulty for the block at nextHeight.
// Retargets only occur at heights divisible by DifficultyWindow, once the
// chain is at least DifficultyWindow blocks long; otherwise the parent's
// difficulty carries forward unchanged (spec §4.6).
//
// window must contain exactly DifficultyWindow entries, oldest first,
// covering the window ending at the parent of nextHeight, when a retarget
// is due; it is ignored otherwise.
func NextDifficulty(nextHeight uint64, parentDifficulty uint32, window []BlockTimestamps) (uint32, error) {
	if nextHeight%DifficultyWindow != 0 || nextHeight < DifficultyWindow {
		return parentDifficulty, nil
	}
	if len(window) != DifficultyWindow {
		return 0, NewError(ErrInvalidBlock, "difficulty: retarget window must have %d entries, got %d", DifficultyWindow, len(window))
	}

	actualSpan := int64(window[len(window)-1].Timestamp) - int64(window[0].Timestamp)
	targetSpan := int64(DifficultyWindow * TargetBlockTimeMillis)

	var delta int32
	switch {
	case actualSpan < targetSpan/2:
		delta = 2
	case actualSpan < (targetSpan*3)/4:
		delta = 1
	case actualSpan <= (targetSpan*3)/2:
		delta = 0
	case actualSpan <= targetSpan*2:
		delta = -1
	default:
		delta = -2
	}

	next := int64(parentDifficulty) + int64(delta)
	if next < MinDifficulty {
		next = MinDifficulty
	}
	if next > MaxDifficulty {
		next = MaxDifficulty
	}
	return uint32(next), nil
}
