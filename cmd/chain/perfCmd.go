package chain

import (
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ValentinKolb/dChain/cmd/util"
	"github.com/ValentinKolb/dChain/lib/chain"
	"github.com/ValentinKolb/dChain/rpc/common"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for dChain servers",
		Long:    "",
		RunE:    run,
		PreRunE: processPerfConfig,
	}
	perfKeyPrefix        = "__test"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfCompactEvery     = 32
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. append,get)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of threads to use for the benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the payload for the append-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "compact-every"
	perfTestCmd.Flags().Int(key, 32, util.WrapString("The append-compact test compacts a chain after this many appends"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = max(viper.GetInt("keys"), 1)
	perfNumThreads = viper.GetInt("threads")
	perfCompactEvery = max(viper.GetInt("compact-every"), 1)
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// benchmark is a single named test of the perf command
type benchmark struct {
	name string
	// prepare runs before the timer starts and may fill the keys
	prepare func(keys []uint64)
	// op runs one operation, counter is local to the worker
	op func(keys []uint64, counter int) error
}

func run(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for dChain servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Println()

	fmt.Println("starting tests...")

	largeValue := make([]byte, perfLargeValueSizeKB*1024)
	small := []byte("test")

	fill := func(keys []uint64) {
		for _, k := range keys {
			for i := 0; i < 4; i++ {
				if err := rpcStore.Append(k, small); err != nil {
					log.Printf("error preparing key %d: %v\n", k, err)
				}
			}
		}
	}

	benchmarks := []benchmark{
		{
			name: "append",
			op: func(keys []uint64, counter int) error {
				return rpcStore.Append(keys[counter%len(keys)], small)
			},
		},
		{
			name: "append-large",
			op: func(keys []uint64, counter int) error {
				return rpcStore.Append(keys[counter%len(keys)], largeValue)
			},
		},
		{
			name:    "get",
			prepare: fill,
			op: func(keys []uint64, counter int) error {
				_, err := rpcStore.Get(keys[counter%len(keys)])
				return err
			},
		},
		{
			name:    "get-and-append",
			prepare: fill,
			op: func(keys []uint64, counter int) error {
				_, err := rpcStore.GetAndAppend(keys[counter%len(keys)], small)
				return err
			},
		},
		{
			// append and compact every perfCompactEvery appends with a read + replace
			name: "append-compact",
			op: func(keys []uint64, counter int) error {
				key := keys[counter%len(keys)]
				if counter%perfCompactEvery != perfCompactEvery-1 {
					return rpcStore.Append(key, small)
				}
				current, err := rpcStore.Get(key)
				if err != nil {
					return err
				}
				return rpcStore.ReplaceAtHead(key, current, chain.FromPayloads(small))
			},
		},
		{
			name:    "mixed",
			prepare: fill,
			op: func(keys []uint64, counter int) error {
				key := keys[counter%len(keys)]
				switch counter % 4 {
				case 0: // append
					return rpcStore.Append(key, small)
				case 1: // get
					_, err := rpcStore.Get(key)
					return err
				case 2: // get and append
					_, err := rpcStore.GetAndAppend(key, small)
					return err
				default: // compact
					current, err := rpcStore.Get(key)
					if err != nil {
						return err
					}
					return rpcStore.ReplaceAtHead(key, current, chain.FromPayloads(small))
				}
			},
		},
	}

	// Create results map
	results := make(map[string]testing.BenchmarkResult)

	for _, bm := range benchmarks {
		result := testing.Benchmark(func(b *testing.B) {
			if shouldSkip(bm.name) {
				return
			}

			// prepare keys
			keys, cleanup := getKeys(bm.name)
			b.Cleanup(cleanup)
			if bm.prepare != nil {
				bm.prepare(keys)
			}

			b.SetParallelism(perfNumThreads)

			b.ResetTimer()

			b.RunParallel(func(pb *testing.PB) {
				counter := 0
				for pb.Next() {
					if err := bm.op(keys, counter); err != nil {
						log.Printf("(%s) - error: %v\n", bm.name, err)
					}
					counter++
				}
			})
		})

		results[bm.name] = result
		printResult(bm.name, result)
	}

	// Write results to csv is specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	return slices.Contains(perfSkip, test)
}

// getKeys creates the test keys of a benchmark and a function that empties
// their chains again
func getKeys(prefix string) ([]uint64, func()) {
	keys := make([]uint64, perfKeySpread)
	for i := 0; i < perfKeySpread; i++ {
		keys[i] = util.ParseKey(fmt.Sprintf("%s-%s-%d", perfKeyPrefix, prefix, i))
	}

	// Compacting to an empty chain removes the test data
	cleanup := func() {
		for _, key := range keys {
			current, err := rpcStore.Get(key)
			if err != nil {
				log.Printf("(%s) - error reading key %d: %v\n", prefix, key, err)
				continue
			}
			if err := rpcStore.ReplaceAtHead(key, current, chain.Empty()); err != nil {
				log.Printf("(%s) - error clearing key %d: %v\n", prefix, key, err)
			}
		}
	}

	return keys, cleanup
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result testing.BenchmarkResult) {
	if result.NsPerOp() == 0 {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	nsPerOp := math.Max(float64(result.NsPerOp()), 1) // prevent division by zero
	opsPerSec := 1.0 / (nsPerOp / 1e9)

	// Print the formatted result
	fmt.Printf("%-20s%.0fns/op (%s/op)\t%.0f ops/sec\n", test, nsPerOp, time.Duration(nsPerOp), opsPerSec)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]testing.BenchmarkResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "NsPerOp", "DurationPerOp", "OpsPerSec", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"ShardID", "Serializer", "Transport",
		"Threads", "LargeValueSizeKB", "Keys Count", "CompactEvery",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var nsPerOp float64
		var opsPerSec float64
		var skipped string

		if result.NsPerOp() == 0 {
			skipped = "true"
		} else {
			skipped = "false"
			nsPerOp = math.Max(float64(result.NsPerOp()), 1)
			opsPerSec = 1.0 / (nsPerOp / 1e9)
		}

		row := []string{
			test,
			fmt.Sprintf("%.0f", nsPerOp),
			time.Duration(nsPerOp).String(),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.Itoa(config.TimeoutSecond),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			strconv.FormatUint(util.GetShardID(), 10),
			viper.GetString("serializer"),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
			strconv.Itoa(perfCompactEvery),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
