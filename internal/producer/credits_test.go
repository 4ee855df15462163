package producer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"reflect"
	"testing"

	"github.com/dnhngynops/muindb/internal/catalog"
	"github.com/dnhngynops/muindb/internal/database"
	"github.com/dnhngynops/muindb/internal/provider"
)

type fakeCredits struct {
	credits map[string]*provider.Credits
	errs    map[string]error
	calls   int
}

func (f *fakeCredits) FetchCredits(_ context.Context, title, _ string) (*provider.Credits, error) {
	f.calls++
	if err, ok := f.errs[title]; ok {
		return nil, err
	}
	if c, ok := f.credits[title]; ok {
		return c, nil
	}
	return nil, &provider.ErrNoMatch{Provider: provider.NameGenius, Query: title}
}

func TestCollectCredits(t *testing.T) {
	db, err := database.Open(database.MemoryPath)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	if _, err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	svc := catalog.NewService(db)

	add := func(title string, peak int) *catalog.Song {
		s := &catalog.Song{Title: title, Artist: "Britney Spears", FirstChart: "2004-01-10", PeakPosition: peak, WeeksOnChart: 5}
		if err := svc.AddSong(ctx, s); err != nil {
			t.Fatalf("AddSong: %v", err)
		}
		return s
	}
	toxic := add("Toxic", 9)
	add("Everytime", 15)
	add("Outrageous", 79)

	src := &fakeCredits{
		credits: map[string]*provider.Credits{
			"Toxic": {SourceID: "4242", Producers: []string{"Bloodshy & Avant"}, Writers: []string{"Cathy Dennis", "Christian Karlsson"}},
		},
		errs: map[string]error{
			"Outrageous": &provider.ErrProviderUnavailable{Provider: provider.NameGenius, Cause: errors.New("HTTP 502")},
		},
	}
	quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	sum, err := CollectCredits(ctx, svc, src, 2004, 0, quiet)
	if err != nil {
		t.Fatalf("CollectCredits: %v", err)
	}
	want := CreditSummary{Songs: 3, Found: 1, NotFound: 1, Failed: 1, Producers: 1, Writers: 2}
	if sum != want {
		t.Errorf("summary = %+v, want %+v", sum, want)
	}
	producers, err := svc.SongProducers(ctx, toxic.ID)
	if err != nil {
		t.Fatalf("SongProducers: %v", err)
	}
	if !reflect.DeepEqual(producers, []string{"Bloodshy & Avant"}) {
		t.Errorf("producers = %q", producers)
	}

	// Songs with stored credits are not looked up again.
	src.calls = 0
	again, err := CollectCredits(ctx, svc, src, 2004, 0, quiet)
	if err != nil {
		t.Fatalf("second CollectCredits: %v", err)
	}
	if again.Songs != 2 || src.calls != 2 {
		t.Errorf("second pass songs = %d calls = %d, want 2 and 2", again.Songs, src.calls)
	}
}

func TestCollectCredits_StopsOnMissingCredentials(t *testing.T) {
	db, err := database.Open(database.MemoryPath)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	ctx := context.Background()
	if _, err := database.Migrate(ctx, db); err != nil {
		t.Fatalf("running migrations: %v", err)
	}
	svc := catalog.NewService(db)
	for _, title := range []string{"One", "Two"} {
		if err := svc.AddSong(ctx, &catalog.Song{Title: title, Artist: "X", FirstChart: "2004-01-10", PeakPosition: 1}); err != nil {
			t.Fatalf("AddSong: %v", err)
		}
	}
	auth := &provider.ErrAuthRequired{Provider: provider.NameGenius}
	src := &fakeCredits{errs: map[string]error{"One": auth, "Two": auth}}
	quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	_, err = CollectCredits(ctx, svc, src, 0, 0, quiet)
	var got *provider.ErrAuthRequired
	if !errors.As(err, &got) {
		t.Fatalf("err = %v, want ErrAuthRequired", err)
	}
	if src.calls != 1 {
		t.Errorf("calls = %d, want 1", src.calls)
	}
}
