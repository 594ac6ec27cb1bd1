package reply

import "groupbot/core/dialog/route"

// Grid accumulates keyboard rows in declaration order. Encoding errors are
// collected instead of returned per call so handlers can lay out a full
// keyboard fluently and check once.
type Grid struct {
	rows [][]Button
	row  []Button
	err  error
}

// NewGrid returns an empty keyboard builder.
func NewGrid() *Grid {
	return &Grid{}
}

// Add appends a route button to the current row.
func (g *Grid) Add(r route.Route, label string) *Grid {
	b, err := NewButton(r, label)
	if err != nil {
		if g.err == nil {
			g.err = err
		}
		return g
	}
	g.row = append(g.row, b)
	return g
}

// AddButton appends a prebuilt button to the current row.
func (g *Grid) AddButton(b Button) *Grid {
	g.row = append(g.row, b)
	return g
}

// AddRow appends prebuilt buttons as a complete row. Empty rows are skipped.
func (g *Grid) AddRow(buttons []Button) *Grid {
	g.EndRow()
	if len(buttons) > 0 {
		g.rows = append(g.rows, buttons)
	}
	return g
}

// EndRow closes the current row.
func (g *Grid) EndRow() *Grid {
	if len(g.row) > 0 {
		g.rows = append(g.rows, g.row)
		g.row = nil
	}
	return g
}

// Rows returns the finished keyboard and the first encoding error, if any.
func (g *Grid) Rows() ([][]Button, error) {
	g.EndRow()
	return g.rows, g.err
}
