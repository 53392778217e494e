package consensus

// Monetary constants, per spec §6. Values are denominated in the base unit
// (1e-8 of a coin), matching Bitcoin-style satoshi accounting.
const (
	SatoshisPerCoin     = 100_000_000
	InitialBlockReward  = 50 * SatoshisPerCoin
	MinFee              = 1_000
	DefaultFee          = 10_000
	MaxFee              = 1_000_000
	Dust                = 546
)

// CoinbaseReward computes the total a coinbase output set must sum to: the
// fixed block subsidy plus whatever fees the block's other transactions
// collected. The reward schedule does not halve in this spec (spec §4.5).
func CoinbaseReward(collectedFees uint64) (uint64, error) {
	return addUint64(InitialBlockReward, collectedFees)
}
