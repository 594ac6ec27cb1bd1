package reply

import (
	"errors"
	"testing"

	"groupbot/core/dialog/route"
)

func TestGridLayout(t *testing.T) {
	rows, err := NewGrid().
		Add(route.New("menu/select", route.Int("id", 1)), "One").
		Add(route.New("menu/select", route.Int("id", 2)), "Two").EndRow().
		Add(route.Root, "Back").EndRow().
		Rows()
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 2 || len(rows[0]) != 2 || len(rows[1]) != 1 {
		t.Fatalf("layout = %+v", rows)
	}
	if rows[0][1].Token != "menu/select?id=2" {
		t.Fatalf("token = %q", rows[0][1].Token)
	}
	if rows[1][0].Token != route.RootToken {
		t.Fatalf("root token = %q", rows[1][0].Token)
	}
}

func TestGridCollectsFirstEncodeError(t *testing.T) {
	_, err := NewGrid().
		Add(route.New("Bad Handler"), "broken").EndRow().
		Add(route.New("menu"), "fine").EndRow().
		Rows()
	if !errors.Is(err, route.ErrBadParam) {
		t.Fatalf("err = %v", err)
	}
}

func TestGridSkipsEmptyRows(t *testing.T) {
	rows, err := NewGrid().
		EndRow().
		AddRow(nil).
		Add(route.New("menu"), "Menu").EndRow().
		Rows()
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("layout = %+v", rows)
	}
}
