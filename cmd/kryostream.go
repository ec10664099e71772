package cmd

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/flux-tools/kryostream/kryoflux"
	"github.com/spf13/cobra"
)

var (
	kryostreamDumpFlux  bool
	kryostreamDumpIndex bool
	kryostreamDumpInfo  bool
	kryostreamHistogram bool
)

var kryostreamCmd = &cobra.Command{
	Use:   "kryostream FILE",
	Short: "Decode a captured KryoFlux stream file",
	Long:  "Decode a KryoFlux Stream file already captured to disk and report its flux, index, and timing data.",
	Args:  cobra.ExactArgs(1),
	// Decoding a file on disk needs no USB adapter, so skip the root
	// command's adapter-discovery hook entirely.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to read %s: %w", args[0], err))
		}

		decoded, err := kryoflux.Decode(data)
		if err != nil {
			cobra.CheckErr(fmt.Errorf("failed to decode %s: %w", args[0], err))
		}

		switch {
		case kryostreamDumpFlux:
			printFluxValues(decoded)
		case kryostreamDumpIndex:
			printIndexRecords(decoded)
		case kryostreamDumpInfo:
			printInfoText(decoded)
		case kryostreamHistogram:
			printFluxHistogram(decoded)
		default:
			printSummary(args[0], decoded)
		}
	},
}

func init() {
	kryostreamCmd.Flags().BoolVarP(&kryostreamDumpFlux, "flux", "f", false, "dump flux values, one per line, in sample clocks")
	kryostreamCmd.Flags().BoolVarP(&kryostreamDumpIndex, "index", "i", false, "dump index records")
	kryostreamCmd.Flags().BoolVarP(&kryostreamDumpInfo, "info", "n", false, "dump info text, one name=value pair per line")
	kryostreamCmd.Flags().BoolVarP(&kryostreamHistogram, "histogram", "H", false, "print a logarithmic histogram of flux values")
	rootCmd.AddCommand(kryostreamCmd)
}

func printSummary(filename string, decoded *kryoflux.DecodedStream) {
	stat := decoded.Statistic()
	fmt.Printf("%s\n", filename)
	fmt.Printf("  flux count:       %d\n", decoded.FluxCount())
	fmt.Printf("  index count:      %d\n", decoded.IndexCount())
	fmt.Printf("  revolution count: %d\n", decoded.RevolutionCount())
	fmt.Printf("  sample clock:     %.4f Hz\n", decoded.SampleClockHz())
	fmt.Printf("  index clock:      %.4f Hz\n", decoded.IndexClockHz())
	fmt.Printf("  avg rpm:          %.2f\n", stat.AvgRPM)
	fmt.Printf("  min/max rpm:      %.2f / %.2f\n", stat.MinRPM, stat.MaxRPM)
	fmt.Printf("  avg transfer bps: %.2f\n", stat.AvgBPS)
	fmt.Printf("  avg flux per rev: %.2f\n", stat.AvgFluxPerRev)
	fmt.Printf("  min/max flux:     %d / %d\n", stat.MinFlux, stat.MaxFlux)
}

func printFluxValues(decoded *kryoflux.DecodedStream) {
	for _, v := range decoded.FluxValues() {
		fmt.Println(v)
	}
}

func printIndexRecords(decoded *kryoflux.DecodedStream) {
	for _, rec := range decoded.Indexes() {
		fmt.Printf("flux_position=%d pre_index_time=%d rotation_time=%d\n",
			rec.FluxPosition, rec.PreIndexTime, rec.RotationTime)
	}
}

func printInfoText(decoded *kryoflux.DecodedStream) {
	for _, pair := range strings.Split(decoded.InfoText(), ",") {
		pair = strings.TrimSpace(pair)
		if pair != "" {
			fmt.Println(pair)
		}
	}
}

// printFluxHistogram buckets flux durations by power-of-two magnitude and
// renders each bucket as a text bar, scaled to the largest bucket.
func printFluxHistogram(decoded *kryoflux.DecodedStream) {
	values := decoded.FluxValues()
	if len(values) == 0 {
		fmt.Println("no flux values decoded")
		return
	}

	var buckets [33]int
	for _, v := range values {
		bucket := 0
		if v > 0 {
			bucket = int(math.Log2(float64(v))) + 1
			if bucket >= len(buckets) {
				bucket = len(buckets) - 1
			}
		}
		buckets[bucket]++
	}

	maxCount := 0
	for _, c := range buckets {
		if c > maxCount {
			maxCount = c
		}
	}
	if maxCount == 0 {
		return
	}

	const barWidth = 60
	for i, c := range buckets {
		if c == 0 {
			continue
		}
		lo := 0
		if i > 0 {
			lo = 1 << (i - 1)
		}
		hi := (1 << i) - 1
		barLen := c * barWidth / maxCount
		if barLen == 0 {
			barLen = 1
		}
		fmt.Printf("[%6d,%6d] %6d %s\n", lo, hi, c, strings.Repeat("#", barLen))
	}
}
