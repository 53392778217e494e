package consensus

import "sync"

// Priority selects the priority multiplier in Dynamic fee mode; it is the
// canonical way to request a fee (spec §4.5, §9 Open Question).
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

func (p Priority) multiplier() float64 {
	switch p {
	case PriorityLow:
		return 0.5
	case PriorityHigh:
		return 2.0
	case PriorityUrgent:
		return 3.0
	default:
		return 1.0
	}
}

// DynamicFeeConfig parameterizes Dynamic fee mode (spec §4.5 defaults).
type DynamicFeeConfig struct {
	Base      uint64
	Max       uint64
	Threshold int
}

// DefaultDynamicFeeConfig returns the spec-mandated defaults.
func DefaultDynamicFeeConfig() DynamicFeeConfig {
	return DynamicFeeConfig{Base: 1, Max: 10, Threshold: 20}
}

// FeeModeKind distinguishes the two fee engine modes.
type FeeModeKind int

const (
	FeeModeFixed FeeModeKind = iota
	FeeModeDynamic
)

// FeeEngine is process-wide mutable state: the current fee mode, guarded by
// a reader/writer lock (spec §4.5, §5). Readers are hot-path (every fee
// compute); writers (mode switches) are rare.
type FeeEngine struct {
	mu       sync.RWMutex
	kind     FeeModeKind
	fixedFee uint64
	dynamic  DynamicFeeConfig
}

// NewFixedFeeEngine constructs a FeeEngine pinned to a fixed fee.
func NewFixedFeeEngine(amount uint64) *FeeEngine {
	return &FeeEngine{kind: FeeModeFixed, fixedFee: amount}
}

// NewDynamicFeeEngine constructs a FeeEngine using the dynamic formula.
func NewDynamicFeeEngine(cfg DynamicFeeConfig) *FeeEngine {
	return &FeeEngine{kind: FeeModeDynamic, dynamic: cfg}
}

// SetFixed switches the engine to Fixed mode, re-initializing it (spec
// §4.5: "switching modes re-initializes the engine").
func (e *FeeEngine) SetFixed(amount uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kind = FeeModeFixed
	e.fixedFee = amount
}

// SetDynamic switches the engine to Dynamic mode.
func (e *FeeEngine) SetDynamic(cfg DynamicFeeConfig) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.kind = FeeModeDynamic
	e.dynamic = cfg
}

// Compute returns the fee for a transaction of the given estimated size
// under the given priority, given the current mempool size (only used in
// Dynamic mode for the congestion multiplier).
func (e *FeeEngine) Compute(estimatedSize int, priority Priority, mempoolSize int) uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch e.kind {
	case FeeModeFixed:
		return e.fixedFee
	default:
		return computeDynamicFee(e.dynamic, priority, mempoolSize)
	}
}

// Valid reports whether fee is an acceptable fee for a transaction of the
// given estimated size and priority, at the given mempool size. Fixed mode
// requires exact equality; Dynamic mode accepts a fee within ±10% of the
// expected value (spec §4.5).
func (e *FeeEngine) Valid(fee uint64, estimatedSize int, priority Priority, mempoolSize int) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	switch e.kind {
	case FeeModeFixed:
		return fee == e.fixedFee
	default:
		expected := computeDynamicFee(e.dynamic, priority, mempoolSize)
		lower := expected * 9 / 10
		upper := expected*11/10 + 1 // +1 guards integer-division rounding at small values
		return fee >= lower && fee <= upper
	}
}

func congestionMultiplier(cfg DynamicFeeConfig, mempoolSize int) float64 {
	if mempoolSize <= cfg.Threshold || cfg.Threshold <= 0 {
		return 1.0
	}
	m := 1 + 2*(float64(mempoolSize)/float64(cfg.Threshold)-1)
	if m > 3 {
		return 3
	}
	return m
}

func computeDynamicFee(cfg DynamicFeeConfig, priority Priority, mempoolSize int) uint64 {
	raw := float64(cfg.Base) * priority.multiplier() * congestionMultiplier(cfg, mempoolSize)
	fee := uint64(raw)
	if fee < cfg.Base {
		fee = cfg.Base
	}
	if fee > cfg.Max {
		fee = cfg.Max
	}
	return fee
}

// EstimatedTxSize estimates a transaction's canonical-encoding size from
// its shape, used to feed fee computation before the transaction exists
// (spec §4.4 step 1). The estimate assumes a 64-byte signature and a
// 65-byte uncompressed public key per input, matching crypto.Signature and
// crypto.PublicKey.
func EstimatedTxSize(numInputs, numOutputs int) int {
	const (
		fixedOverhead = 32 + 4 + 4 + 8 // id + input_count + output_count + fee
		perInput      = 32 + 4 + 4 + 64 + 4 + 65
		perOutput     = 8 + 20
	)
	return fixedOverhead + numInputs*perInput + numOutputs*perOutput
}
