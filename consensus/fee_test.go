package consensus

import "testing"

func TestFixedFeeEngineReturnsFixedAmount(t *testing.T) {
	e := NewFixedFeeEngine(12345)
	if got := e.Compute(250, PriorityHigh, 0); got != 12345 {
		t.Fatalf("fixed fee ignored: got %d", got)
	}
	if !e.Valid(12345, 250, PriorityLow, 0) {
		t.Fatalf("exact fixed fee should be valid")
	}
	if e.Valid(12346, 250, PriorityLow, 0) {
		t.Fatalf("fixed mode requires exact equality")
	}
}

func TestDynamicFeeEnginePriorityOrdering(t *testing.T) {
	cfg := DefaultDynamicFeeConfig()
	e := NewDynamicFeeEngine(cfg)
	low := e.Compute(250, PriorityLow, 0)
	normal := e.Compute(250, PriorityNormal, 0)
	high := e.Compute(250, PriorityHigh, 0)
	urgent := e.Compute(250, PriorityUrgent, 0)
	if !(low <= normal && normal <= high && high <= urgent) {
		t.Fatalf("expected monotonic fee by priority: low=%d normal=%d high=%d urgent=%d", low, normal, high, urgent)
	}
}

func TestDynamicFeeEngineClampsToMax(t *testing.T) {
	cfg := DefaultDynamicFeeConfig()
	e := NewDynamicFeeEngine(cfg)
	got := e.Compute(100000, PriorityUrgent, 10000)
	if got > cfg.Max {
		t.Fatalf("fee %d exceeds configured max %d", got, cfg.Max)
	}
}

func TestDynamicFeeEngineToleranceWindow(t *testing.T) {
	cfg := DefaultDynamicFeeConfig()
	e := NewDynamicFeeEngine(cfg)
	expected := e.Compute(250, PriorityNormal, 0)
	if !e.Valid(expected, 250, PriorityNormal, 0) {
		t.Fatalf("exact expected fee should be valid")
	}
	tooLow := expected * 8 / 10
	if tooLow > 0 && e.Valid(tooLow, 250, PriorityNormal, 0) {
		t.Fatalf("fee 20%% under expected should be rejected")
	}
}

func TestSetFixedReinitializesEngine(t *testing.T) {
	e := NewDynamicFeeEngine(DefaultDynamicFeeConfig())
	e.SetFixed(999)
	if got := e.Compute(1, PriorityLow, 0); got != 999 {
		t.Fatalf("expected fixed mode after SetFixed, got %d", got)
	}
}

func TestEstimatedTxSizeGrowsWithShape(t *testing.T) {
	base := EstimatedTxSize(1, 2)
	bigger := EstimatedTxSize(2, 2)
	if bigger <= base {
		t.Fatalf("adding an input should grow the estimate")
	}
}
