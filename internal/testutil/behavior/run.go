package behavior

import (
	"fmt"
	"strings"
	"testing"
)

// RunConfig configures a behavior run.
type RunConfig struct {
	// MaxOps is the maximum number of operations to execute.
	MaxOps int

	// Seed is the number of top-level tasks stored before the first op.
	Seed int
}

// DefaultRunConfig returns a balanced configuration for behavior tests.
func DefaultRunConfig() RunConfig {
	return RunConfig{MaxOps: 200, Seed: 3}
}

// Run applies the generated ops to a fresh harness. After every op the
// deferred queue is drained, as the UI's idle loop would, and the engine is
// checked for coherence.
func Run(tb testing.TB, cfg RunConfig, gen *OpGenerator) {
	tb.Helper()

	if cfg.MaxOps <= 0 {
		tb.Fatalf("behavior.Run requires MaxOps > 0")
	}

	h := NewHarness(tb)

	for i := range cfg.Seed {
		h.Store.Add(words[i%len(words)]+" seed", nil)
	}

	history := []string{"seed"}

	err := OpRefresh{}.Apply(h)
	if err != nil {
		tb.Fatalf("initial refresh: %v", err)
	}

	for opIndex := 1; opIndex <= cfg.MaxOps && gen.HasMore(); opIndex++ {
		op := gen.NextOp()
		history = append(history, op.String())

		err = op.Apply(h)
		if err == nil {
			err = h.Engine.RunPending(h.Ctx)
		}

		if err == nil {
			err = h.Reported()
		}

		if err == nil {
			err = h.CheckCoherence()
		}

		if err != nil {
			tb.Fatalf("op %d %s: %v\n%s", opIndex, op, err, FormatOps(history))
		}
	}
}

// FormatOps renders the op history for failure messages.
func FormatOps(history []string) string {
	var b strings.Builder

	b.WriteString("ops:\n")

	for i, op := range history {
		fmt.Fprintf(&b, "  %3d %s\n", i, op)
	}

	return b.String()
}
