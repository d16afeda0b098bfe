// Command homerange-plot renders static PNG maps of an individual's fixes and
// its minimum convex polygon range, for reports and field print-outs.
//
// Usage:
//
//	homerange-plot -db movement.db -out plots [-individual Ioana] [-season "Forest fruits"]
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/wildtrack-data/movement.report/internal/db"
	"github.com/wildtrack-data/movement.report/internal/homerange"
	"github.com/wildtrack-data/movement.report/internal/track"
	"github.com/wildtrack-data/movement.report/internal/trackdb"
)

var (
	dbPath     = flag.String("db", "movement.db", "Path to the SQLite database file")
	migrations = flag.String("migrations", "migrations", "Path to the migrations directory")
	individual = flag.String("individual", "", "Individual to plot (default: all)")
	season     = flag.String("season", "", "Restrict to one season label")
	percent    = flag.Float64("percent", homerange.DefaultMCPPercent, "MCP trim percentage")
	outDir     = flag.String("out", "plots", "Output directory for PNG files")
)

func main() {
	flag.Parse()

	database, err := db.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	if err := database.CheckMigrations(*migrations); err != nil {
		log.Fatalf("Schema check failed: %v", err)
	}

	store := trackdb.NewFixStore(database)
	fixes, err := store.GetFixes(context.Background(), trackdb.FixFilter{
		Individual: *individual,
		Season:     *season,
	})
	if err != nil {
		log.Fatalf("Failed to load fixes: %v", err)
	}
	if len(fixes) == 0 {
		log.Fatal("No fixes match the filter")
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		log.Fatalf("Failed to create output dir: %v", err)
	}

	byIndividual := make(map[string][]track.Fix)
	for _, f := range fixes {
		byIndividual[f.Individual] = append(byIndividual[f.Individual], f)
	}

	for name, group := range byIndividual {
		file, err := plotIndividual(name, group)
		if err != nil {
			log.Fatalf("Failed to plot %s: %v", name, err)
		}
		fmt.Printf("%s: %d fixes -> %s\n", name, len(group), file)
	}
}

func plotIndividual(name string, fixes []track.Fix) (string, error) {
	est := homerange.Compute(fixes, homerange.Options{MCPPercent: *percent, Season: *season})

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s home range", name)
	if *season != "" {
		p.Title.Text += fmt.Sprintf(" (%s)", *season)
	}
	p.X.Label.Text = "Easting (m)"
	p.Y.Label.Text = "Northing (m)"

	// Core KDE cells go underneath the fixes so both stay visible.
	if cells := homerange.IsoplethCells(fixes, homerange.DefaultCorePercent, homerange.DefaultGridSize); len(cells) > 0 {
		cellPts := make(plotter.XYs, len(cells))
		for i, c := range cells {
			cellPts[i] = plotter.XY{X: c[0], Y: c[1]}
		}
		core, err := plotter.NewScatter(cellPts)
		if err != nil {
			return "", fmt.Errorf("core cells: %w", err)
		}
		core.GlyphStyle.Radius = vg.Points(1)
		core.GlyphStyle.Color = color.RGBA{R: 53, G: 183, B: 121, A: 120}
		p.Add(core)
		p.Legend.Add(fmt.Sprintf("KDE core %.0f%% = %.2f km2", float64(homerange.DefaultCorePercent), est.CoreAreaKm2), core)
	}

	pts := make(plotter.XYs, len(fixes))
	for i, f := range fixes {
		pts[i] = plotter.XY{X: f.X, Y: f.Y}
	}
	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return "", fmt.Errorf("scatter: %w", err)
	}
	scatter.GlyphStyle.Radius = vg.Points(1.5)
	scatter.GlyphStyle.Color = color.RGBA{R: 49, G: 104, B: 142, A: 255}
	p.Add(scatter)
	p.Legend.Add(fmt.Sprintf("fixes (%d)", len(fixes)), scatter)

	hull := homerange.Hull(fixes, *percent)
	if len(hull) >= 3 {
		ring := make(plotter.XYs, len(hull)+1)
		for i, v := range hull {
			ring[i] = plotter.XY{X: v[0], Y: v[1]}
		}
		ring[len(hull)] = ring[0] // close the polygon

		line, err := plotter.NewLine(ring)
		if err != nil {
			return "", fmt.Errorf("hull line: %w", err)
		}
		line.Color = color.RGBA{R: 253, G: 231, B: 37, A: 255}
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("MCP %.0f%% = %.2f km2", *percent, est.MCPAreaKm2), line)
	}

	p.Legend.Top = true

	file := filepath.Join(*outDir, fmt.Sprintf("%s_mcp.png", sanitizeName(name)))
	if err := p.Save(8*vg.Inch, 8*vg.Inch, file); err != nil {
		return "", fmt.Errorf("save plot: %w", err)
	}
	return file, nil
}

// sanitizeName makes an individual's name safe as a filename.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
