package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	dynahist "github.com/dynatrace-oss/dynahist-go"
	"github.com/dynatrace-oss/dynahist-go/layout"
)

type inspectOptions struct {
	input         string
	layoutKind    string
	absoluteError float64
	relativeError float64
	rangeMin      float64
	rangeMax      float64
	precision     int
	boundaries    []float64
	quantiles     []float64
	showBins      bool
}

func newInspectCommand() *cobra.Command {
	opts := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Decode a serialized histogram and print its distribution",
		Long: `Decode a serialized histogram and print total counts, min/max and
quantiles. The wire format does not carry the layout, so the layout the
histogram was written with must be given through flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.OutOrStdout(), opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&opts.input, "input", "i", "-", "histogram file, - for stdin")
	flags.StringVar(&opts.layoutKind, "layout", "log-quadratic",
		"layout kind: log-linear, log-quadratic, log-optimal, otel, custom")
	flags.Float64Var(&opts.absoluteError, "absolute-error", 1e-8, "absolute bin width limit (log layouts)")
	flags.Float64Var(&opts.relativeError, "relative-error", 1e-2, "relative bin width limit (log layouts)")
	flags.Float64Var(&opts.rangeMin, "range-min", -1e9, "value range lower bound (log layouts)")
	flags.Float64Var(&opts.rangeMax, "range-max", 1e9, "value range upper bound (log layouts)")
	flags.IntVar(&opts.precision, "precision", 5, "precision (otel layout)")
	flags.Float64SliceVar(&opts.boundaries, "boundaries", nil, "bucket boundaries (custom layout)")
	flags.Float64SliceVar(&opts.quantiles, "quantiles", []float64{0.5, 0.9, 0.95, 0.99}, "quantiles to report")
	flags.BoolVar(&opts.showBins, "bins", false, "also list the non-empty bins")
	return cmd
}

func (o *inspectOptions) buildLayout() (layout.Layout, error) {
	switch o.layoutKind {
	case "log-linear":
		return layout.NewLogLinear(o.absoluteError, o.relativeError, o.rangeMin, o.rangeMax)
	case "log-quadratic":
		return layout.NewLogQuadratic(o.absoluteError, o.relativeError, o.rangeMin, o.rangeMax)
	case "log-optimal":
		return layout.NewLogOptimal(o.absoluteError, o.relativeError, o.rangeMin, o.rangeMax)
	case "otel":
		return layout.NewOpenTelemetryExponentialBuckets(o.precision)
	case "custom":
		return layout.NewCustom(o.boundaries...)
	default:
		return nil, fmt.Errorf("unknown layout kind %q", o.layoutKind)
	}
}

func runInspect(out io.Writer, opts *inspectOptions) error {
	l, err := opts.buildLayout()
	if err != nil {
		return err
	}
	logger.WithField("layout", opts.layoutKind).Debug("layout constructed")

	in := os.Stdin
	if opts.input != "-" {
		f, err := os.Open(opts.input)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		in = f
	}
	h, err := dynahist.ReadPreprocessed(l, in)
	if err != nil {
		return fmt.Errorf("decoding histogram: %w", err)
	}
	logger.WithField("totalCount", h.TotalCount()).Debug("histogram decoded")

	header := color.New(color.Bold)
	dim := color.New(color.Faint)
	header.Fprintln(out, "histogram")
	fmt.Fprintf(out, "  total count:     %d\n", h.TotalCount())
	fmt.Fprintf(out, "  underflow count: %d\n", h.UnderflowCount())
	fmt.Fprintf(out, "  overflow count:  %d\n", h.OverflowCount())
	if h.IsEmpty() {
		dim.Fprintln(out, "  (empty)")
		return nil
	}
	fmt.Fprintf(out, "  min: %g\n", h.Min())
	fmt.Fprintf(out, "  max: %g\n", h.Max())

	qs := append([]float64(nil), opts.quantiles...)
	sort.Float64s(qs)
	header.Fprintln(out, "quantiles")
	for _, q := range qs {
		v, err := h.Quantile(q)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  p%-5s %g\n", strings.TrimPrefix(strconv.FormatFloat(q*100, 'g', -1, 64), "-"), v)
	}

	if opts.showBins {
		header.Fprintln(out, "bins")
		for _, b := range h.NonEmptyBinsAscending() {
			label := strconv.FormatInt(int64(b.BinIndex), 10)
			switch {
			case b.IsUnderflow:
				label = "underflow"
			case b.IsOverflow:
				label = "overflow"
			}
			fmt.Fprintf(out, "  %-10s [%g, %g] count=%d\n", label, b.LowerBound, b.UpperBound, b.BinCount)
		}
	}
	return nil
}
