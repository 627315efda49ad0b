package bench

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	cmdUtil "github.com/ValentinKolb/hIndex/cmd/util"
	"github.com/ValentinKolb/hIndex/lib/hybrid"
	"github.com/ValentinKolb/hIndex/lib/index"
	"github.com/ValentinKolb/hIndex/lib/index/engines/dpgm"
	"github.com/ValentinKolb/hIndex/lib/index/engines/litree"
	idxutil "github.com/ValentinKolb/hIndex/lib/index/util"
	"github.com/ValentinKolb/hIndex/lib/logger"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	benchConfig = &config{}

	BenchCmd = &cobra.Command{
		Use:   "bench",
		Short: "Drive a synthetic workload against the index",
		Long: `Build the index from a synthetic sorted keyset and drive a mixed
lookup/insert workload against it. Lookups draw from a small hot set with
configurable probability, which exercises the hot-key detector and the
background migration pipeline. Configuration can be set via flags or
environment variables (HINDEX_<flag>, e.g. HINDEX_ENTRIES=1000000).`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

type config struct {
	entries     int
	ops         int
	insertRatio float64
	hotKeys     int
	hotFraction float64
	params      []int
	epsilon     int
	search      idxutil.SearchKernel
	buildPolicy hybrid.BuildPolicy
	target      string
	seed        int64
	csvPath     string
}

func init() {
	// initialize viper
	cobra.OnInitialize(cmdUtil.InitConfig)

	// add flags
	key := "entries"
	BenchCmd.PersistentFlags().Int(key, 1_000_000, cmdUtil.WrapString("Number of entries to build the index from"))

	key = "ops"
	BenchCmd.PersistentFlags().Int(key, 1_000_000, cmdUtil.WrapString("Number of workload operations to run after the build"))

	key = "insert-ratio"
	BenchCmd.PersistentFlags().Float64(key, 0.2, cmdUtil.WrapString("Fraction of operations that are inserts (the rest are lookups)"))

	key = "hot-keys"
	BenchCmd.PersistentFlags().Int(key, 50, cmdUtil.WrapString("Size of the hot key set lookups concentrate on"))

	key = "hot-fraction"
	BenchCmd.PersistentFlags().Float64(key, 0.8, cmdUtil.WrapString("Probability that a lookup targets the hot key set"))

	key = "params"
	BenchCmd.PersistentFlags().String(key, "3,1", cmdUtil.WrapString("Positional index parameters: migration threshold in percent, adaptive mode (0/1)"))

	key = "epsilon"
	BenchCmd.PersistentFlags().Int(key, 64, cmdUtil.WrapString("Model error bound of the DPI side (8, 16, ..., 512)"))

	key = "search"
	BenchCmd.PersistentFlags().String(key, "binary", cmdUtil.WrapString("Last-mile search kernel (binary, linear, interpolation, exponential)"))

	key = "build-policy"
	BenchCmd.PersistentFlags().String(key, "prewarm", cmdUtil.WrapString("Build distribution policy: prewarm (full DPI + LIT sample) or fulllit (everything in LIT)"))

	key = "index"
	BenchCmd.PersistentFlags().String(key, "hybrid", cmdUtil.WrapString("Which index to drive: hybrid, dpi or lit (single tiers for comparison)"))

	key = "seed"
	BenchCmd.PersistentFlags().Int64(key, 1, cmdUtil.WrapString("Random seed for key generation and the workload mix"))

	key = "log-level"
	BenchCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("Log level (debug, info, warn, error)"))

	key = "csv"
	BenchCmd.Flags().String(key, "", cmdUtil.WrapString("Optional path to save benchmark results as CSV"))
}

// processConfig reads the configuration from the command line flags and
// environment variables and validates it.
func processConfig(cmd *cobra.Command, _ []string) error {
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	benchConfig.entries = viper.GetInt("entries")
	benchConfig.ops = viper.GetInt("ops")
	benchConfig.insertRatio = viper.GetFloat64("insert-ratio")
	benchConfig.hotKeys = viper.GetInt("hot-keys")
	benchConfig.hotFraction = viper.GetFloat64("hot-fraction")
	benchConfig.epsilon = viper.GetInt("epsilon")
	benchConfig.target = viper.GetString("index")
	benchConfig.seed = viper.GetInt64("seed")
	benchConfig.csvPath = viper.GetString("csv")

	logger.SetLevel(viper.GetString("log-level"))

	if benchConfig.entries <= 0 || benchConfig.ops < 0 {
		return fmt.Errorf("entries must be positive and ops non-negative")
	}
	if benchConfig.insertRatio < 0 || benchConfig.insertRatio > 1 {
		return fmt.Errorf("insert-ratio %v outside [0, 1]", benchConfig.insertRatio)
	}
	if benchConfig.hotFraction < 0 || benchConfig.hotFraction > 1 {
		return fmt.Errorf("hot-fraction %v outside [0, 1]", benchConfig.hotFraction)
	}
	if benchConfig.hotKeys <= 0 {
		return fmt.Errorf("hot-keys must be positive")
	}

	// parse the positional parameter vector
	benchConfig.params = benchConfig.params[:0]
	for _, part := range strings.Split(viper.GetString("params"), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("invalid params entry %q: %v", part, err)
		}
		benchConfig.params = append(benchConfig.params, v)
	}

	// parse the search kernel
	kernel, ok := idxutil.ParseSearchKernel(viper.GetString("search"))
	if !ok {
		return fmt.Errorf("invalid search kernel %q", viper.GetString("search"))
	}
	benchConfig.search = kernel

	// parse the build policy
	switch viper.GetString("build-policy") {
	case "prewarm":
		benchConfig.buildPolicy = hybrid.BuildPolicyPrewarm
	case "fulllit":
		benchConfig.buildPolicy = hybrid.BuildPolicyFullLIT
	default:
		return fmt.Errorf("invalid build policy %q (expected prewarm or fulllit)", viper.GetString("build-policy"))
	}

	switch benchConfig.target {
	case "hybrid", "dpi", "lit":
	default:
		return fmt.Errorf("invalid index %q (expected hybrid, dpi or lit)", benchConfig.target)
	}

	return nil
}

// driver is the minimal surface the workload loop needs from any target.
type driver struct {
	name   string
	build  func(entries []index.Entry) (time.Duration, error)
	lookup func(key uint64) (uint64, bool)
	insert func(key, value uint64) error
	close  func() error
	hyb    *hybrid.Index // nil for single tiers
}

func newDriver() (*driver, error) {
	switch benchConfig.target {
	case "dpi":
		idx := dpgm.NewDPGM(&dpgm.Options{
			Epsilon: benchConfig.epsilon,
			Search:  benchConfig.search,
		})
		return &driver{
			name:   idx.Name(),
			build:  func(e []index.Entry) (time.Duration, error) { return idx.Build(e, 1) },
			lookup: idx.Lookup,
			insert: idx.Insert,
			close:  idx.Close,
		}, nil

	case "lit":
		idx := litree.NewLITree(nil)
		return &driver{
			name:   idx.Name(),
			build:  func(e []index.Entry) (time.Duration, error) { return idx.Build(e, 1) },
			lookup: idx.Lookup,
			insert: idx.Insert,
			close:  idx.Close,
		}, nil

	default:
		h, err := hybrid.New(benchConfig.params, &hybrid.Options{
			Epsilon:     benchConfig.epsilon,
			Search:      benchConfig.search,
			BuildPolicy: benchConfig.buildPolicy,
		})
		if err != nil {
			return nil, err
		}
		if !h.Applicable(true, true, benchConfig.insertRatio > 0, false, "synthetic") {
			h.Close()
			return nil, fmt.Errorf("index not applicable to this workload (search kernel %q)", benchConfig.search)
		}
		return &driver{
			name:   h.Name(),
			build:  func(e []index.Entry) (time.Duration, error) { return h.Build(e, 1) },
			lookup: h.PointLookup,
			insert: h.Insert,
			close:  h.Close,
			hyb:    h,
		}, nil
	}
}

// run executes the benchmark.
func run(_ *cobra.Command, _ []string) error {

	fmt.Println("hIndex workload driver")
	fmt.Println()
	fmt.Printf("Index:          %s (epsilon=%d, search=%s)\n", benchConfig.target, benchConfig.epsilon, benchConfig.search)
	fmt.Printf("Entries:        %d\n", benchConfig.entries)
	fmt.Printf("Operations:     %d (insert ratio %.2f)\n", benchConfig.ops, benchConfig.insertRatio)
	fmt.Printf("Hot set:        %d keys, %.0f%% of lookups\n", benchConfig.hotKeys, benchConfig.hotFraction*100)
	fmt.Println()

	rnd := rand.New(rand.NewSource(benchConfig.seed))

	// synthetic sorted keyset with random gaps; value = key
	entries := make([]index.Entry, benchConfig.entries)
	key := uint64(0)
	for i := range entries {
		key += 1 + uint64(rnd.Intn(1000))
		entries[i] = index.Entry{Key: key, Value: key}
	}
	maxKey := key

	d, err := newDriver()
	if err != nil {
		return err
	}
	defer d.close()

	buildTime, err := d.build(entries)
	if err != nil {
		return fmt.Errorf("build failed: %v", err)
	}
	fmt.Printf("Build:          %v (%.0f entries/sec)\n\n",
		buildTime, float64(benchConfig.entries)/buildTime.Seconds())

	// the hot set is a random sample of built keys
	hot := make([]uint64, benchConfig.hotKeys)
	for i := range hot {
		hot[i] = entries[rnd.Intn(len(entries))].Key
	}

	registry := gometrics.NewRegistry()
	lookupTimer := gometrics.NewRegisteredTimer("lookup", registry)
	insertTimer := gometrics.NewRegisteredTimer("insert", registry)

	var misses int
	start := time.Now()

	for i := 0; i < benchConfig.ops; i++ {
		if rnd.Float64() < benchConfig.insertRatio {
			// fresh keys beyond the built keyspace
			maxKey += 1 + uint64(rnd.Intn(1000))
			opStart := time.Now()
			if err := d.insert(maxKey, maxKey); err != nil {
				return fmt.Errorf("insert failed after %d ops: %v", i, err)
			}
			insertTimer.UpdateSince(opStart)
		} else {
			var k uint64
			if rnd.Float64() < benchConfig.hotFraction {
				k = hot[rnd.Intn(len(hot))]
			} else {
				k = entries[rnd.Intn(len(entries))].Key
			}
			opStart := time.Now()
			_, ok := d.lookup(k)
			lookupTimer.UpdateSince(opStart)
			if !ok {
				misses++
			}
		}
	}

	elapsed := time.Since(start)

	fmt.Printf("Workload:       %v (%.0f ops/sec)\n\n", elapsed, float64(benchConfig.ops)/elapsed.Seconds())
	printTimer("lookup", lookupTimer)
	printTimer("insert", insertTimer)

	if misses > 0 {
		fmt.Printf("\nLookup misses:  %d\n", misses)
	}

	if d.hyb != nil {
		fmt.Println()
		fmt.Printf("Theta:          %.4f\n", d.hyb.Theta())
		fmt.Printf("Queue length:   %d\n", d.hyb.QueueLen())
	}

	if benchConfig.csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", benchConfig.csvPath)
		if err := writeResultsToCSV(benchConfig.csvPath, lookupTimer, insertTimer, buildTime); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// printTimer prints a timer's statistics in a formatted way
func printTimer(name string, t gometrics.Timer) {
	snap := t.Snapshot()
	if snap.Count() == 0 {
		fmt.Printf("%-15s skipped\n", name)
		return
	}

	ps := snap.Percentiles([]float64{0.5, 0.99})
	fmt.Printf("%-15s %d ops\t%.0fns/op mean\tp50 %.0fns\tp99 %.0fns\n",
		name, snap.Count(), snap.Mean(), ps[0], ps[1])
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, lookupTimer, insertTimer gometrics.Timer, buildTime time.Duration) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Index", "Epsilon", "Search", "Entries", "Ops", "InsertRatio",
		"HotKeys", "HotFraction", "BuildNs",
		"Op", "Count", "MeanNs", "P50Ns", "P99Ns",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	common := []string{
		benchConfig.target,
		strconv.Itoa(benchConfig.epsilon),
		string(benchConfig.search),
		strconv.Itoa(benchConfig.entries),
		strconv.Itoa(benchConfig.ops),
		strconv.FormatFloat(benchConfig.insertRatio, 'f', 2, 64),
		strconv.Itoa(benchConfig.hotKeys),
		strconv.FormatFloat(benchConfig.hotFraction, 'f', 2, 64),
		strconv.FormatInt(buildTime.Nanoseconds(), 10),
	}

	for name, t := range map[string]gometrics.Timer{
		"lookup": lookupTimer,
		"insert": insertTimer,
	} {
		snap := t.Snapshot()
		ps := snap.Percentiles([]float64{0.5, 0.99})
		row := append(append([]string{}, common...),
			name,
			strconv.FormatInt(snap.Count(), 10),
			strconv.FormatFloat(snap.Mean(), 'f', 0, 64),
			strconv.FormatFloat(ps[0], 'f', 0, 64),
			strconv.FormatFloat(ps[1], 'f', 0, 64),
		)
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for %s: %v", name, err)
		}
	}

	return nil
}
