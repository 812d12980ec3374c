package bench

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdUtil "github.com/wirekv/wirekv/cmd/util"
	"github.com/wirekv/wirekv/lib/protocol"
	"github.com/wirekv/wirekv/rpc/client"
)

var (
	// BenchCmd represents the benchmark command
	BenchCmd = &cobra.Command{
		Use:     "bench",
		Short:   "Performance testing tool for wirekv servers",
		PreRunE: processBenchConfig,
		RunE:    run,
	}

	benchKeyPrefix   = "__bench"
	benchNumThreads  = 10
	benchKeySpread   = 100
	benchOpsPerTest  = 10000
	benchValueSizeKB = 1
	benchSkip        = make([]string, 0)
)

func init() {
	cobra.OnInitialize(cmdUtil.InitConfig)

	cmdUtil.SetupClientFlags(BenchCmd)

	// add flags
	key := "threads"
	BenchCmd.PersistentFlags().Int(key, 10, cmdUtil.WrapString("Number of threads to use for the benchmark"))

	key = "keys"
	BenchCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("How many different keys to use for the tests"))

	key = "ops"
	BenchCmd.PersistentFlags().Int(key, 10000, cmdUtil.WrapString("How many operations to run per test"))

	key = "value-size"
	BenchCmd.PersistentFlags().Int(key, 1, cmdUtil.WrapString("How large the value for the set test should be (in KB)"))

	key = "skip"
	BenchCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("Benchmarks to skip (comma separated - e.g. set,get)"))
}

func processBenchConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	benchNumThreads = viper.GetInt("threads")
	benchKeySpread = viper.GetInt("keys")
	benchOpsPerTest = viper.GetInt("ops")
	benchValueSizeKB = viper.GetInt("value-size")
	benchSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

func run(_ *cobra.Command, _ []string) error {
	fmt.Println("Performance testing tool for wirekv servers")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(cmdUtil.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", benchNumThreads)
	fmt.Printf("Keys: %d\n", benchKeySpread)
	fmt.Printf("Ops per test: %d\n", benchOpsPerTest)
	fmt.Println()

	payload := make([]byte, benchValueSizeKB*1024)
	if _, err := rand.Read(payload); err != nil {
		return err
	}

	registry := gometrics.NewRegistry()

	tests := []struct {
		name string
		op   func(c *client.Client, key []byte) error
	}{
		{"ping", func(c *client.Client, _ []byte) error {
			_, err := c.Ping()
			return err
		}},
		{"set", func(c *client.Client, key []byte) error {
			_, err := c.Set(key, protocol.Bytes(payload))
			return err
		}},
		{"get", func(c *client.Client, key []byte) error {
			_, err := c.Get(key)
			return err
		}},
		{"incr", func(c *client.Client, key []byte) error {
			_, err := c.Incr(key)
			return err
		}},
	}

	for _, test := range tests {
		if shouldSkip(test.name) {
			fmt.Printf("%-8s skipped\n", test.name)
			continue
		}
		timer := gometrics.GetOrRegisterTimer(test.name, registry)
		if err := runTest(timer, test.op); err != nil {
			return fmt.Errorf("%s: %w", test.name, err)
		}
		printResult(test.name, timer)
	}

	return nil
}

// runTest spreads benchOpsPerTest operations over benchNumThreads clients,
// each with its own connection, and records every operation in timer.
func runTest(timer gometrics.Timer, op func(c *client.Client, key []byte) error) error {
	config := cmdUtil.GetClientConfig()

	var wg sync.WaitGroup
	errs := make(chan error, benchNumThreads)
	opsPerThread := benchOpsPerTest / benchNumThreads

	for t := 0; t < benchNumThreads; t++ {
		wg.Add(1)
		go func(thread int) {
			defer wg.Done()

			c, err := client.Dial(config)
			if err != nil {
				errs <- err
				return
			}
			defer c.Close()

			for i := 0; i < opsPerThread; i++ {
				key := []byte(fmt.Sprintf("%s-%d", benchKeyPrefix, (thread*opsPerThread+i)%benchKeySpread))
				start := time.Now()
				if err := op(c, key); err != nil {
					errs <- err
					return
				}
				timer.UpdateSince(start)
			}
		}(t)
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		return err
	}
	return nil
}

func printResult(name string, timer gometrics.Timer) {
	snapshot := timer.Snapshot()
	fmt.Printf("%-8s %8d ops   mean %10s   p50 %10s   p99 %10s   max %10s\n",
		name,
		snapshot.Count(),
		time.Duration(snapshot.Mean()),
		time.Duration(snapshot.Percentile(0.50)),
		time.Duration(snapshot.Percentile(0.99)),
		time.Duration(snapshot.Max()),
	)
}

func shouldSkip(name string) bool {
	for _, skip := range benchSkip {
		if strings.TrimSpace(skip) == name {
			return true
		}
	}
	return false
}
