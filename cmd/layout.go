package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/AzielCF/az-wrap/pkg/layouter"
	"github.com/spf13/cobra"
)

var layoutCmd = &cobra.Command{
	Use:     "layout WxH [WxH...]",
	Short:   "Print the album grid for a set of media sizes",
	Example: `  azwrap layout 1280x720 720x1280 1000x1000 --max-width 420`,
	Args:    cobra.RangeArgs(1, 10),
	RunE:    runLayout,
}

func init() {
	def := layouter.DefaultConfig()
	layoutCmd.Flags().Int("max-width", def.MaxWidth, "album width in pixels")
	layoutCmd.Flags().Int("min-width", def.MinWidth, "smallest comfortable row height")
	layoutCmd.Flags().Int("spacing", def.Spacing, "gap between items")
	layoutCmd.Flags().Bool("json", false, "print the geometry as JSON")
	rootCmd.AddCommand(layoutCmd)
}

func parseSize(arg string) (layouter.Size, error) {
	w, h, ok := strings.Cut(strings.ToLower(arg), "x")
	if !ok {
		return layouter.Size{}, fmt.Errorf("invalid size %q, expected WxH", arg)
	}
	fw, err := strconv.ParseFloat(w, 64)
	if err != nil {
		return layouter.Size{}, fmt.Errorf("invalid width in %q: %w", arg, err)
	}
	fh, err := strconv.ParseFloat(h, 64)
	if err != nil {
		return layouter.Size{}, fmt.Errorf("invalid height in %q: %w", arg, err)
	}
	return layouter.Size{W: fw, H: fh}, nil
}

func runLayout(cmd *cobra.Command, args []string) error {
	sizes := make([]layouter.Size, 0, len(args))
	for _, arg := range args {
		s, err := parseSize(arg)
		if err != nil {
			return err
		}
		sizes = append(sizes, s)
	}

	cfg := layouter.DefaultConfig()
	cfg.MaxWidth, _ = cmd.Flags().GetInt("max-width")
	cfg.MinWidth, _ = cmd.Flags().GetInt("min-width")
	cfg.Spacing, _ = cmd.Flags().GetInt("spacing")
	items := layouter.Layout(sizes, cfg)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"items":  items,
			"width":  layouter.TotalWidth(items),
			"height": layouter.TotalHeight(items),
		})
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tX\tY\tW\tH\tSIDES")
	for i, it := range items {
		g := it.Geometry
		fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%s\n", i+1, g.X, g.Y, g.Width, g.Height, it.Sides)
	}
	fmt.Fprintf(w, "total\t\t\t%d\t%d\t\n", layouter.TotalWidth(items), layouter.TotalHeight(items))
	if err := w.Flush(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return nil
}
