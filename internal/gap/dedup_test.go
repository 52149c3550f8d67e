package gap

import (
	"reflect"
	"testing"

	"github.com/TobiSchelling/KeywordGap/internal/keyword"
)

func table(source string, recs ...keyword.Record) keyword.Table {
	return keyword.Table{Source: source, Records: recs}
}

func rec(kw string, pos, vol int, kd float64) keyword.Record {
	return keyword.Record{Keyword: kw, Position: pos, PreviousPosition: pos, SearchVolume: vol, KeywordDifficulty: kd}
}

func withURL(r keyword.Record, url string) keyword.Record {
	r.URL = url
	return r
}

func TestDeduplicateKeepsBestPosition(t *testing.T) {
	in := table("client",
		withURL(rec("shoes", 9, 500, 30), "https://a.com/1"),
		withURL(rec("boots", 4, 200, 10), "https://a.com/b"),
		withURL(rec("shoes", 3, 500, 30), "https://a.com/2"),
		withURL(rec("shoes", 12, 500, 30), "https://a.com/3"),
	)

	out := Deduplicate(in)
	if out.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", out.Len())
	}
	if out.Source != "client" {
		t.Errorf("expected source preserved, got %q", out.Source)
	}
	if out.Records[0].Keyword != "shoes" || out.Records[1].Keyword != "boots" {
		t.Errorf("expected first-appearance order, got %q, %q", out.Records[0].Keyword, out.Records[1].Keyword)
	}

	shoes := out.Records[0]
	if shoes.Position != 3 || shoes.URL != "https://a.com/2" {
		t.Errorf("expected best row (pos 3), got pos %d url %q", shoes.Position, shoes.URL)
	}
	want := []string{"https://a.com/1", "https://a.com/2", "https://a.com/3"}
	if !reflect.DeepEqual(shoes.AllURLs, want) {
		t.Errorf("expected AllURLs %v, got %v", want, shoes.AllURLs)
	}
}

func TestDeduplicateTieKeepsFirst(t *testing.T) {
	first := withURL(rec("shoes", 5, 500, 30), "https://first")
	second := withURL(rec("shoes", 5, 900, 10), "https://second")

	out := Deduplicate(table("client", first, second))
	if out.Records[0].URL != "https://first" || out.Records[0].SearchVolume != 500 {
		t.Errorf("expected first row on tie, got %+v", out.Records[0])
	}
}

func TestDeduplicateIdempotent(t *testing.T) {
	in := table("competitor",
		withURL(rec("a", 5, 100, 1), "u1"),
		withURL(rec("a", 2, 100, 1), "u2"),
		withURL(rec("a", 2, 100, 1), "u1"),
		rec("b", 7, 10, 1),
		withURL(rec("c", 1, 10, 1), ""),
	)

	once := Deduplicate(in)
	twice := Deduplicate(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("dedup not idempotent:\n once=%+v\ntwice=%+v", once, twice)
	}
	if once.Records[1].AllURLs != nil {
		t.Errorf("expected nil AllURLs for keyword without URLs, got %v", once.Records[1].AllURLs)
	}
}

func TestDeduplicateDoesNotMutateInput(t *testing.T) {
	in := table("client", withURL(rec("a", 5, 100, 1), "u1"), withURL(rec("a", 2, 100, 1), "u2"))
	before := in.Records[1].URL
	Deduplicate(in)
	if in.Records[1].URL != before || in.Records[1].AllURLs != nil {
		t.Error("input table was modified")
	}
}

func TestDeduplicateEmpty(t *testing.T) {
	out := Deduplicate(table("client"))
	if !out.Empty() {
		t.Errorf("expected empty table, got %d records", out.Len())
	}
}
