package hybrid

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/hIndex/lib/index"
	"github.com/ValentinKolb/hIndex/lib/index/util"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// threshold bounds for the adaptive controller
	thetaMin = 0.005
	thetaMax = 0.3

	// theta ceiling while backing off under insert-heavy load
	thetaInsertHeavyCap = 0.1

	// workload-ratio boundaries
	ratioInsertHeavy = 0.7
	ratioLookupHeavy = 0.3

	defaultThresholdPct = 3 // starting theta in percent (3 => 0.03)
)

// BuildPolicy selects how Build distributes the initial entry set.
type BuildPolicy int

const (
	// BuildPolicyPrewarm fully loads the DPI side and pre-warms LIT with a
	// contiguous sample from the middle of the sorted input.
	BuildPolicyPrewarm BuildPolicy = iota

	// BuildPolicyFullLIT fully loads LIT and leaves the DPI side empty.
	BuildPolicyFullLIT
)

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

// Options configures the composite beyond the positional parameter vector.
// Zero values select the documented defaults.
type Options struct {
	Name string // instance name used in metrics and logs

	// hot-key detector
	ConsecutiveWindow time.Duration // accesses closer than this count as consecutive
	HotConsecutive    uint32        // consecutive accesses that make a key hot
	HotCount          uint32        // total accesses that make a key hot
	MigrationCooldown time.Duration // minimum gap between migrations of one key
	KickConsecutive   uint32        // consecutive accesses that wake the worker

	// adaptive controller
	TickInterval time.Duration // controller period
	StatsTTL     time.Duration // key stats older than this are aged out

	// migration worker / flush predicate
	BatchMax            int           // upper bound on one migration batch
	InsertsPerCheck     int           // inserts between flush-predicate checks
	MinBatchInsertHeavy int           // flush queue length under insert-heavy load
	MinBatchDefault     int           // flush queue length otherwise
	MaxWaitInsertHeavy  time.Duration // flush deadline under insert-heavy load
	MaxWaitDefault      time.Duration // flush deadline otherwise

	// build
	BuildPolicy  BuildPolicy
	PrewarmLimit int // max entries pre-warmed into LIT by BuildPolicyPrewarm

	// engine configuration
	Epsilon int               // DPI model error bound
	Search  util.SearchKernel // DPI last-mile search kernel
}

// DefaultOptions returns the default composite options.
func DefaultOptions() *Options {
	return &Options{
		Name:              "hindex",
		ConsecutiveWindow: 50 * time.Millisecond,
		HotConsecutive:    2,
		HotCount:          3,
		MigrationCooldown: time.Second,
		KickConsecutive:   3,

		TickInterval: 100 * time.Millisecond,
		StatsTTL:     250 * time.Millisecond,

		BatchMax:            1000,
		InsertsPerCheck:     50,
		MinBatchInsertHeavy: 100,
		MinBatchDefault:     200,
		MaxWaitInsertHeavy:  50 * time.Millisecond,
		MaxWaitDefault:      150 * time.Millisecond,

		BuildPolicy:  BuildPolicyPrewarm,
		PrewarmLimit: 100_000,

		Epsilon: 64,
		Search:  util.SearchBinary,
	}
}

// normalize fills zero values with defaults.
func (o *Options) normalize() {
	def := DefaultOptions()
	if o.Name == "" {
		o.Name = def.Name
	}
	if o.ConsecutiveWindow <= 0 {
		o.ConsecutiveWindow = def.ConsecutiveWindow
	}
	if o.HotConsecutive == 0 {
		o.HotConsecutive = def.HotConsecutive
	}
	if o.HotCount == 0 {
		o.HotCount = def.HotCount
	}
	if o.MigrationCooldown <= 0 {
		o.MigrationCooldown = def.MigrationCooldown
	}
	if o.KickConsecutive == 0 {
		o.KickConsecutive = def.KickConsecutive
	}
	if o.TickInterval <= 0 {
		o.TickInterval = def.TickInterval
	}
	if o.StatsTTL <= 0 {
		o.StatsTTL = def.StatsTTL
	}
	if o.BatchMax <= 0 {
		o.BatchMax = def.BatchMax
	}
	if o.InsertsPerCheck <= 0 {
		o.InsertsPerCheck = def.InsertsPerCheck
	}
	if o.MinBatchInsertHeavy <= 0 {
		o.MinBatchInsertHeavy = def.MinBatchInsertHeavy
	}
	if o.MinBatchDefault <= 0 {
		o.MinBatchDefault = def.MinBatchDefault
	}
	if o.MaxWaitInsertHeavy <= 0 {
		o.MaxWaitInsertHeavy = def.MaxWaitInsertHeavy
	}
	if o.MaxWaitDefault <= 0 {
		o.MaxWaitDefault = def.MaxWaitDefault
	}
	if o.PrewarmLimit <= 0 {
		o.PrewarmLimit = def.PrewarmLimit
	}
	if o.Epsilon <= 0 {
		o.Epsilon = def.Epsilon
	}
	if o.Search == "" {
		o.Search = def.Search
	}
}

// --------------------------------------------------------------------------
// Positional Parameter Vector
// --------------------------------------------------------------------------

// params is the parsed positional parameter vector:
//
//	[0] migration threshold in percent (3 => theta 0.03)
//	[1] adaptive mode (0 = fixed theta, nonzero = adaptive controller)
type params struct {
	theta    float64
	adaptive bool
}

// parseParams validates the positional vector. An empty vector selects the
// defaults (threshold 3%, adaptive on).
func parseParams(vec []int) (params, error) {
	p := params{
		theta:    float64(defaultThresholdPct) / 100.0,
		adaptive: true,
	}

	if len(vec) >= 1 {
		pct := vec[0]
		if pct < 1 || pct > int(thetaMax*100) {
			return params{}, index.NewError(index.RetCInvalidOperation,
				fmt.Sprintf("migration threshold %d%% outside [1, %d]", pct, int(thetaMax*100)))
		}
		p.theta = float64(pct) / 100.0
	}
	if len(vec) >= 2 {
		p.adaptive = vec[1] != 0
	}
	if len(vec) > 2 {
		return params{}, index.NewError(index.RetCInvalidOperation,
			fmt.Sprintf("parameter vector has %d entries, at most 2 expected", len(vec)))
	}

	return p, nil
}
