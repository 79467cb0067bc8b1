package render

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/jung-kurt/gofpdf"
)

// Standard print pages, in points.
var (
	A4Portrait  = Size{W: 595.28, H: 841.89}
	A4Landscape = Size{W: 841.89, H: 595.28}
	A3Portrait  = Size{W: 841.89, H: 1190.55}
)

// SheetLayout is the grid chosen for tiling items onto one page. Derived,
// never persisted; recomputed from item and page dimensions on every pack.
type SheetLayout struct {
	Cols    int
	Rows    int
	Scale   float64
	PerPage int
}

// ErrNoFeasibleLayout means no grid within bounds kept the uniform scale at
// or above the legibility threshold.
var ErrNoFeasibleLayout = errors.New("no feasible sheet layout")

// PackGrid exhaustively tries every (cols, rows) grid within bounds and
// returns the one fitting the most items per page at uniform scale <= 1,
// breaking ties toward the larger scale for a clearer print. Grids whose
// scale would drop below minScale are discarded. The search space is a
// handful of candidates, so brute force is exact and instant; no rotation
// and no mixed sizes are considered.
func PackGrid(itemW, itemH float64, page Size, maxCols, maxRows int, minScale float64) (SheetLayout, error) {
	if itemW <= 0 || itemH <= 0 {
		return SheetLayout{}, fmt.Errorf("item size must be positive, got %gx%g", itemW, itemH)
	}
	if maxCols <= 0 || maxRows <= 0 {
		return SheetLayout{}, fmt.Errorf("grid bounds must be positive, got %dx%d", maxCols, maxRows)
	}

	var best SheetLayout
	for cols := 1; cols <= maxCols; cols++ {
		for rows := 1; rows <= maxRows; rows++ {
			scale := math.Min(page.W/(float64(cols)*itemW), page.H/(float64(rows)*itemH))
			if scale > 1 {
				scale = 1
			}
			if scale < minScale {
				continue
			}
			count := cols * rows
			if count > best.PerPage || (count == best.PerPage && scale > best.Scale) {
				best = SheetLayout{Cols: cols, Rows: rows, Scale: scale, PerPage: count}
			}
		}
	}

	if best.PerPage == 0 {
		return SheetLayout{}, fmt.Errorf("%w: item %gx%g on page %gx%g (min scale %.2f)",
			ErrNoFeasibleLayout, itemW, itemH, page.W, page.H, minScale)
	}
	return best, nil
}

// SheetItem is one pre-rendered ticket image going onto the sheet.
type SheetItem struct {
	Name string // unique image registration name
	PNG  []byte
}

// ComposeSheet tiles items of a fixed pixel size onto print pages using the
// given layout: row by row, column by column, top of page downward in
// storage order. A thin cut guide is drawn around every item for manual
// cutting after printing.
func ComposeSheet(items []SheetItem, itemW, itemH float64, page Size, layout SheetLayout) ([]byte, error) {
	if len(items) == 0 {
		return nil, errors.New("no items to place")
	}

	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           gofpdf.SizeType{Wd: page.W, Ht: page.H},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetLineWidth(0.3)
	pdf.SetDrawColor(120, 120, 120)

	cellW := itemW * layout.Scale
	cellH := itemH * layout.Scale
	opts := gofpdf.ImageOptions{ImageType: "PNG"}

	for i, item := range items {
		if i%layout.PerPage == 0 {
			pdf.AddPage()
		}
		idx := i % layout.PerPage
		col := idx % layout.Cols
		row := idx / layout.Cols

		x := float64(col) * cellW
		// Placement is computed in page coordinates (bottom-left origin)
		// and converted for gofpdf's top-down Y axis.
		yBottom := page.H - float64(row+1)*cellH
		yTop := page.H - yBottom - cellH

		pdf.RegisterImageOptionsReader(item.Name, opts, bytes.NewReader(item.PNG))
		pdf.ImageOptions(item.Name, x, yTop, cellW, cellH, false, opts, 0, "")
		pdf.Rect(x, yTop, cellW, cellH, "D")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("output sheet pdf: %w", err)
	}
	return buf.Bytes(), nil
}
