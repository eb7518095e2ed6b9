package behavior

import (
	"github.com/calvinalkan/tasktree/internal/testutil"
)

// OpGenConfig sets the percentage of generated ops of each kind. The rates
// are cumulative thresholds over 0-99; whatever is left is a refresh.
type OpGenConfig struct {
	CreateRate   int
	DoneRate     int
	DeleteRate   int
	DescribeRate int
	MoveRate     int
	ForgetRate   int

	// RootRate is the percentage of creates and moves that target the top
	// level.
	RootRate int

	// EmptyDescriptionRate is the percentage of creates with no description.
	EmptyDescriptionRate int
}

// DefaultOpGenConfig returns a balanced configuration.
func DefaultOpGenConfig() OpGenConfig {
	return OpGenConfig{
		CreateRate:           30,
		DoneRate:             15,
		DeleteRate:           10,
		DescribeRate:         10,
		MoveRate:             20,
		ForgetRate:           5,
		RootRate:             30,
		EmptyDescriptionRate: 5,
	}
}

// words doubles as the description vocabulary and the filter vocabulary,
// so filters match some tasks and miss others.
var words = []string{"write", "review", "deploy", "fix", "plan", "test"} //nolint:gochecknoglobals // fixed vocabulary

// OpGenerator derives ops from fuzz input.
type OpGenerator struct {
	stream *testutil.ByteStream
	config OpGenConfig
}

// NewOpGenerator creates a generator over fuzzBytes.
func NewOpGenerator(fuzzBytes []byte, cfg OpGenConfig) *OpGenerator {
	return &OpGenerator{stream: testutil.NewByteStream(fuzzBytes), config: cfg}
}

// HasMore reports whether the input has unread bytes.
func (g *OpGenerator) HasMore() bool {
	return g.stream.HasMore()
}

// NextOp generates the next op.
func (g *OpGenerator) NextOp() Op {
	choice := g.stream.Index(100)
	cumulative := 0

	cumulative += g.config.CreateRate
	if choice < cumulative {
		return g.genCreate()
	}

	cumulative += g.config.DoneRate
	if choice < cumulative {
		return OpToggleDone{Pick: g.stream.Index(256)}
	}

	cumulative += g.config.DeleteRate
	if choice < cumulative {
		return OpToggleDeleted{Pick: g.stream.Index(256)}
	}

	cumulative += g.config.DescribeRate
	if choice < cumulative {
		return OpDescribe{Pick: g.stream.Index(256), Description: g.description()}
	}

	cumulative += g.config.MoveRate
	if choice < cumulative {
		return OpMove{Pick: g.stream.Index(256), Parent: g.target()}
	}

	cumulative += g.config.ForgetRate
	if choice < cumulative {
		return OpForget{Pick: g.stream.Index(256)}
	}

	filter := ""
	if g.stream.Bool() {
		filter = g.stream.Pick(words)
	}

	return OpRefresh{Filter: filter}
}

func (g *OpGenerator) genCreate() Op {
	op := OpCreate{Parent: g.target()}

	if !g.stream.Percent(g.config.EmptyDescriptionRate) {
		op.Description = g.description()
	}

	return op
}

// target returns a pick index, or -1 for the top level.
func (g *OpGenerator) target() int {
	if g.stream.Percent(g.config.RootRate) {
		return -1
	}

	return g.stream.Index(256)
}

func (g *OpGenerator) description() string {
	return g.stream.Pick(words) + " " + g.stream.Pick(words)
}
