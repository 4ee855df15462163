package match

import (
	"strings"
	"testing"
)

func TestGenerateQueries_Soundtrack(t *testing.T) {
	qs := Queries("Sunflower (Spider-Man: Into the Spider-Verse)", "Post Malone & Swae Lee")
	if len(qs) == 0 {
		t.Fatal("no queries")
	}
	if qs[0] != "Sunflower Post Malone" {
		t.Errorf("first query = %q, want %q", qs[0], "Sunflower Post Malone")
	}
	for _, q := range qs {
		if strings.Contains(q, "Spider") || strings.Contains(q, "(") {
			t.Errorf("query %q contains the soundtrack qualifier", q)
		}
	}
	want := []string{
		"Sunflower Post Malone",
		"Sunflower Post Malone & Swae Lee",
		"Post Malone Sunflower",
		"Sunflower",
	}
	if len(qs) != len(want) {
		t.Fatalf("Queries = %q, want %q", qs, want)
	}
	for i := range want {
		if qs[i] != want[i] {
			t.Errorf("Queries[%d] = %q, want %q", i, qs[i], want[i])
		}
	}
}

func TestGenerateQueries_Strategies(t *testing.T) {
	qs := GenerateQueries("Oh Boy (Radio Edit)", "Cam'ron feat. Juelz Santana")
	got := map[Strategy][]string{}
	for _, q := range qs {
		got[q.Strategy] = append(got[q.Strategy], q.Text)
	}

	if q := got[StrategyTitleArtist]; len(q) != 1 || q[0] != "Oh Boy Cam'ron" {
		t.Errorf("title+artist = %q", q)
	}
	if q := got[StrategyTitleFullArtist]; len(q) != 1 || q[0] != "Oh Boy Cam'ron feat. Juelz Santana" {
		t.Errorf("title+full artist = %q", q)
	}
	if q := got[StrategyOriginalTitle]; len(q) != 1 || q[0] != "Oh Boy (Radio Edit) Cam'ron" {
		t.Errorf("original title = %q", q)
	}
	if q := got[StrategyArtistNoPunct]; len(q) != 2 || q[0] != "Oh Boy Camron" || q[1] != "Camron Oh Boy" {
		t.Errorf("no-punct artist = %q", q)
	}
}

func TestGenerateQueries_Dedup(t *testing.T) {
	qs := Queries("Hello", "Adele")
	seen := map[string]bool{}
	for _, q := range qs {
		if seen[q] {
			t.Errorf("duplicate query %q", q)
		}
		seen[q] = true
	}
	if len(qs) != 3 {
		t.Errorf("Queries(Hello, Adele) = %q, want 3 entries", qs)
	}
}

func TestGenerateQueries_Empty(t *testing.T) {
	if qs := GenerateQueries("  ", "Adele"); qs != nil {
		t.Errorf("GenerateQueries(blank) = %v, want nil", qs)
	}
}

func TestGenerateQueries_SimplifiedKeepsAccents(t *testing.T) {
	var simplified string
	for _, q := range GenerateQueries("Café Olé!", "Beyoncé") {
		if strings.Contains(q.Text, "Caf Ol") {
			t.Errorf("query %q lost accented letters", q.Text)
		}
		if q.Strategy == StrategySimplifiedTitle {
			simplified = q.Text
		}
	}
	if simplified != "Café Olé Beyoncé" {
		t.Errorf("simplified query = %q, want %q", simplified, "Café Olé Beyoncé")
	}
}
