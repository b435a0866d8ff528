package keyboard

import "testing"

func TestChunk(t *testing.T) {
	rows := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(rows) != 3 || len(rows[2]) != 1 || rows[2][0] != 5 {
		t.Fatalf("Chunk = %v", rows)
	}
	if rows := Chunk([]int{1, 2}, 0); len(rows) != 2 {
		t.Fatalf("Chunk with n=0 = %v", rows)
	}
}

func TestInlineButtonsNPerRow(t *testing.T) {
	btns := []InlineBtn{
		{Text: "Mon", Unique: "slot", Data: "1"},
		{Text: "Tue", Unique: "slot", Data: "2"},
		{Text: "Wed", Unique: "slot", Data: "3"},
	}
	m := InlineButtonsNPerRow(btns, 2, []InlineBtn{{Text: "Back", Unique: "back"}})
	if len(m.InlineKeyboard) != 3 {
		t.Fatalf("rows = %d, want 3", len(m.InlineKeyboard))
	}
	if got := m.InlineKeyboard[0][1]; got.Text != "Tue" || got.Unique != "slot" || got.Data != "2" {
		t.Fatalf("button = %+v", got)
	}
	if m.InlineKeyboard[2][0].Unique != "back" {
		t.Fatalf("extra row = %+v", m.InlineKeyboard[2])
	}
}
