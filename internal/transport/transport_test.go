package transport

import "testing"

func TestMatchRelease(t *testing.T) {
	transfers := []Transfer{
		{Name: "Dua Lipa - Future Nostalgia (2020) [FLAC]", Handle: "a"},
		{Name: "ZARA LARSSON - INTRODUCTION [320]", Handle: "b"},
		{Name: "Zara Larsson - Introduction (Deluxe)", Handle: "c"},
	}
	got, ok := MatchRelease(transfers, "Zara Larsson", "Introduction")
	if !ok || got.Handle != "b" {
		t.Fatalf("expected first case-insensitive match, got %+v ok=%v", got, ok)
	}
	if _, ok := MatchRelease(transfers, "Zara Larsson", "Poster Girl"); ok {
		t.Fatal("unexpected match for missing title")
	}
	if _, ok := MatchRelease(transfers, "", "Introduction"); ok {
		t.Fatal("empty artist must not match")
	}
}
