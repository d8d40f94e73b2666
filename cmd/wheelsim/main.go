// Command wheelsim runs the selector offline and compares how often each
// slice wins against its drop rate.
//
//	wheelsim -rates 50,30,20 -spins 10000 -seed demo
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/MJE43/fortune-wheel-go/internal/engine"
	"github.com/MJE43/fortune-wheel-go/internal/wheel"
)

func main() {
	err := run(os.Args[1:], os.Stdout)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "wheelsim:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("wheelsim", flag.ContinueOnError)
	fs.SetOutput(out)

	rates := fs.String("rates", "50,30,20", "comma-separated drop rates summing to 100")
	spins := fs.Int("spins", 10000, "number of spins")
	seed := fs.String("seed", "", "seed for a reproducible run; empty uses crypto/rand")
	strength := fs.Float64("strength", wheel.DefaultCorrectionStrength, "correction strength")
	ceiling := fs.Int("ceiling", wheel.DefaultDecayCeiling, "history decay ceiling")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *spins < 1 {
		return fmt.Errorf("-spins must be positive, got %d", *spins)
	}

	set, err := parseRates(*rates)
	if err != nil {
		return err
	}

	sel := wheel.NewSelector(engine.NewSource(*seed, "wheelsim"), wheel.SelectorConfig{
		CorrectionStrength: *strength,
		DecayCeiling:       *ceiling,
	})

	wins := make([]int, set.Len())
	for i := 0; i < *spins; i++ {
		idx, err := sel.Select(set)
		if err != nil {
			return err
		}
		wins[idx]++
	}

	return printReport(out, set, wins, *spins)
}

func parseRates(s string) (*wheel.SliceSet, error) {
	var slices []wheel.Slice
	for i, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		rate, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("rate %q: %w", part, err)
		}
		slices = append(slices, wheel.Slice{Label: fmt.Sprintf("slice %d", i+1), DropRate: rate})
	}

	set := wheel.NewSliceSet()
	if err := set.Replace(slices); err != nil {
		return nil, err
	}
	return set, nil
}

func printReport(out io.Writer, set *wheel.SliceSet, wins []int, spins int) error {
	total := decimal.NewFromInt(int64(spins))
	hundred := decimal.NewFromInt(100)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "slice\trate\twins\tobserved %\tdeviation\t")
	for i, sl := range set.Slices() {
		observed := decimal.NewFromInt(int64(wins[i])).Mul(hundred).Div(total).Round(2)
		deviation := observed.Sub(decimal.NewFromInt(int64(sl.DropRate)))
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\t\n",
			sl.Label, sl.DropRate, wins[i], observed.StringFixed(2), deviation.StringFixed(2))
	}
	fmt.Fprintf(tw, "total\t%d\t%d\t\t\t\n", set.Total(), spins)
	return tw.Flush()
}
