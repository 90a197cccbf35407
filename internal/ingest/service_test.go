package ingest

import (
	"context"
	"testing"

	"github.com/pitlane-dev/pitwall/internal/log"
	"github.com/pitlane-dev/pitwall/internal/source"
)

type fakeWiki struct {
	docs  []source.Document
	calls int
}

func (f *fakeWiki) ScrapeAll(_ context.Context, _ bool, _ map[string]bool) ([]source.Document, source.Stats) {
	f.calls++
	return f.docs, source.Stats{Total: len(f.docs), Success: len(f.docs)}
}

type fakeErgast struct {
	docs  []source.Document
	years []int
	calls int
}

func (f *fakeErgast) FetchAll(_ context.Context, years []int) ([]source.Document, source.Stats) {
	f.calls++
	f.years = years
	return f.docs, source.Stats{Total: len(f.docs), Success: len(f.docs)}
}

func newTestService(wiki *fakeWiki, ergast *fakeErgast, idx Upserter) *Service {
	return NewService(wiki, ergast, newTestPipeline(idx), log.NewNop())
}

func TestServiceIngestAll(t *testing.T) {
	wiki := &fakeWiki{docs: []source.Document{doc("season", "season", "Season article text.")}}
	ergast := &fakeErgast{docs: []source.Document{doc("race_results", "results", "Results text.")}}
	idx := newFakeIndex()

	result, err := newTestService(wiki, ergast, idx).Ingest(context.Background(), TargetAll, false, nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if !result.Success {
		t.Fatal("expected success")
	}
	if wiki.calls != 1 || ergast.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", wiki.calls, ergast.calls)
	}
	if result.Documents != 2 {
		t.Errorf("Documents = %d, want 2", result.Documents)
	}
	if len(idx.chunksByNS["wikipedia"]) == 0 || len(idx.chunksByNS["ergast-results"]) == 0 {
		t.Errorf("routing incomplete: %v", idx.upserts)
	}
}

func TestServiceIngestSingleTarget(t *testing.T) {
	wiki := &fakeWiki{docs: []source.Document{doc("season", "season", "Season article text.")}}
	ergast := &fakeErgast{docs: []source.Document{doc("race_results", "results", "Results text.")}}

	_, err := newTestService(wiki, ergast, newFakeIndex()).Ingest(context.Background(), TargetWikipedia, false, nil)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if ergast.calls != 0 {
		t.Error("wikipedia target must not touch ergast")
	}
}

func TestServiceIngestYearsForwarded(t *testing.T) {
	ergast := &fakeErgast{docs: []source.Document{doc("drivers", "drivers", "Driver roster text.")}}
	svc := newTestService(&fakeWiki{}, ergast, newFakeIndex())

	_, err := svc.Ingest(context.Background(), TargetErgast, false, []int{2023, 2024})
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(ergast.years) != 2 || ergast.years[0] != 2023 {
		t.Errorf("years = %v", ergast.years)
	}
}

func TestServiceIngestNoDocuments(t *testing.T) {
	svc := newTestService(&fakeWiki{}, &fakeErgast{}, newFakeIndex())
	if _, err := svc.Ingest(context.Background(), TargetAll, false, nil); err == nil {
		t.Fatal("expected error when nothing was acquired")
	}
}

func TestServiceIngestUnknownTarget(t *testing.T) {
	svc := newTestService(&fakeWiki{}, &fakeErgast{}, newFakeIndex())
	if _, err := svc.Ingest(context.Background(), "pitwall", false, nil); err == nil {
		t.Fatal("expected error for unknown target")
	}
}
