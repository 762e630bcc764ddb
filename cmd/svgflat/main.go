package main

import (
	"context"
	"fmt"
	"image/png"
	"io"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/jphsd/svgflat"
	"github.com/jphsd/svgflat/raster"
	"github.com/jphsd/svgflat/xml"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var verbose bool
	rootCmd := &cobra.Command{
		Use:   "svgflat",
		Short: "Flatten nested SVG documents",
		Long: `svgflat resolves the transforms, clip paths, masks, filters and opacity that SVG
groups pass on to their content, and writes a document whose leaves carry all of
it themselves.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug messages")

	rootCmd.AddCommand(newFlattenCommand())
	rootCmd.AddCommand(newRenderCommand())
	rootCmd.AddCommand(newDumpCommand())
	return rootCmd
}

func newFlattenCommand() *cobra.Command {
	var (
		configFile string
		output     string
		rasterize  bool
		apply      bool
		flags      svgflat.Options
	)

	cmd := &cobra.Command{
		Use:   "flatten [flags] [file]",
		Short: "Flatten an SVG document",
		Long: `Flatten reads an SVG document from the named file or stdin and writes the flattened
document to stdout or the --output file.

Options are read from the --config TOML file first; flags given on the command
line override it.`,
		Example: `  svgflat flatten drawing.svg > flat.svg
  svgflat flatten --keep-group-transforms --rasterize -o flat.svg drawing.svg
  svgflat flatten --config flatten.toml drawing.svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := svgflat.DefaultOptions()
			if configFile != "" {
				data, err := os.ReadFile(configFile)
				if err != nil {
					return err
				}
				if err := toml.Unmarshal(data, &opts); err != nil {
					return fmt.Errorf("config %s: %w", configFile, err)
				}
			}

			f := cmd.Flags()
			if f.Changed("keep-group-transforms") {
				opts.KeepGroupTransforms = flags.KeepGroupTransforms
			}
			if f.Changed("vectorize-all-texts") {
				opts.VectorizeAllTexts = flags.VectorizeAllTexts
			}
			if f.Changed("rasterize-all-masks") {
				opts.RasterizeAllMasks = flags.RasterizeAllMasks
			}
			if f.Changed("concurrency") {
				opts.Concurrency = flags.Concurrency
			}
			if rasterize || opts.RasterizeAllMasks {
				opts.Rasterizer = raster.NewRenderer(slog.Default())
			}
			if apply {
				opts.ColorMatrixApplier = raster.ApplyColorMatrices
			}

			in, err := openInput(args)
			if err != nil {
				return err
			}
			defer in.Close()
			out, err := createOutput(output)
			if err != nil {
				return err
			}
			if err := svgflat.FlattenReader(cmd.Context(), in, out, opts); err != nil {
				out.Close()
				return err
			}
			return out.Close()
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "TOML file with flatten options")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&flags.KeepGroupTransforms, "keep-group-transforms", false, "keep each group's own transform on a wrapper <g>")
	cmd.Flags().BoolVar(&flags.VectorizeAllTexts, "vectorize-all-texts", false, "convert every <text> to glyph paths")
	cmd.Flags().BoolVar(&flags.RasterizeAllMasks, "rasterize-all-masks", false, "render each masked group as one image (implies --rasterize)")
	cmd.Flags().IntVar(&flags.Concurrency, "concurrency", 0, "sibling subtrees processed at once, 0 for no limit")
	cmd.Flags().BoolVar(&rasterize, "rasterize", false, "rasterize masks with the built-in renderer")
	cmd.Flags().BoolVar(&apply, "apply-color-matrices", false, "pre-render color matrix filtered mask content")
	return cmd
}

func newRenderCommand() *cobra.Command {
	var (
		output string
		scale  float64
	)

	cmd := &cobra.Command{
		Use:   "render [flags] [file]",
		Short: "Render an SVG document to PNG with the built-in renderer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(args)
			if err != nil {
				return err
			}
			defer in.Close()
			root, err := xml.Parse(in)
			if err != nil {
				return err
			}

			r := raster.NewRenderer(slog.Default())
			r.Scale = scale
			img, _, err := r.Render(cmd.Context(), root)
			if err != nil {
				return err
			}

			out, err := createOutput(output)
			if err != nil {
				return err
			}
			if err := png.Encode(out, img); err != nil {
				out.Close()
				return err
			}
			return out.Close()
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output PNG file (default stdout)")
	cmd.Flags().Float64Var(&scale, "scale", 1, "pixel size multiplier")
	return cmd
}

func newDumpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dump [file]",
		Short: "Print the element tree of an XML document",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(args)
			if err != nil {
				return err
			}
			defer in.Close()
			root, err := xml.Parse(in)
			if err != nil {
				return err
			}
			dump(cmd.OutOrStdout(), root, 0)
			return nil
		},
	}
}

// dump prints the element tree, one element per line.
func dump(w io.Writer, elt *xml.Element, indent int) {
	ind := strings.Repeat("  ", indent)
	switch elt.Type {
	case xml.Node:
		var sb strings.Builder
		sb.WriteString(ind + elt.Tag() + ":")
		for _, k := range slices.Sorted(maps.Keys(elt.Attributes)) {
			sb.WriteString(" " + k + "=" + elt.Attributes[k])
		}
		fmt.Fprintln(w, sb.String())
		for _, c := range elt.Children {
			dump(w, c, indent+1)
		}
	case xml.Content:
		if txt := strings.TrimSpace(string(elt.Content)); txt != "" {
			fmt.Fprintln(w, ind+txt)
		}
	}
}

func openInput(args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(args[0])
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

func createOutput(name string) (io.WriteCloser, error) {
	if name == "" || name == "-" {
		return nopWriteCloser{os.Stdout}, nil
	}
	return os.Create(name)
}
