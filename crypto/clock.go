package crypto

import "time"

// NowMillis returns the current wall-clock time in milliseconds since the
// Unix epoch, the unit used by Block.Timestamp throughout consensus.
func NowMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}
