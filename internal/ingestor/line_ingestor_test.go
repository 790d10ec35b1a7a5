package ingestor

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"

	"linemap/internal/domain"
	"linemap/internal/hub"
	"linemap/internal/store"
	"linemap/pkg/linedoc"
)

const ginzaDoc = `<line-info name="Ginza" color="#f39700" code="G">
  <stations>
    <station idx="0" name="Shibuya"/>
    <station idx="1" name="Omotesando"/>
  </stations>
  <links><link begin-idx="0" end-idx="1" kilometers="1.3" minutes="2"/></links>
</line-info>`

const ginzaExtendedDoc = `<line-info name="Ginza" color="#f39700" code="G">
  <stations>
    <station idx="0" name="Shibuya"/>
    <station idx="1" name="Omotesando"/>
    <station idx="2" name="Gaiemmae"/>
  </stations>
  <links>
    <link begin-idx="0" end-idx="1" kilometers="1.3" minutes="2"/>
    <link begin-idx="1" end-idx="2" kilometers="0.7" minutes="1"/>
  </links>
</line-info>`

const styleDoc = `<style><station><mark><radius>9</radius></mark></station></style>`

type recorder struct {
	mu     sync.Mutex
	events []hub.LineEvent
}

func (r *recorder) Broadcast(events []hub.LineEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recorder) take() []hub.LineEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	events := r.events
	r.events = nil
	return events
}

type memoryDocs struct {
	lines     map[string]*domain.LineInfo
	saves     int
	forgotten []string
}

func (m *memoryDocs) LoadLine(_ context.Context, fingerprint string) (*domain.LineInfo, bool, error) {
	info, ok := m.lines[fingerprint]
	return info, ok, nil
}

func (m *memoryDocs) SaveLine(_ context.Context, fingerprint string, info *domain.LineInfo) error {
	m.lines[fingerprint] = info
	m.saves++
	return nil
}

func (m *memoryDocs) ForgetLine(_ context.Context, fingerprint string) error {
	delete(m.lines, fingerprint)
	m.forgotten = append(m.forgotten, fingerprint)
	return nil
}

type fixture struct {
	dir   string
	store *store.LineStore
	rec   *recorder
	ing   *LineIngestor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{dir: dir, rec: &recorder{}}

	f.store = store.NewLineStore(8, func(id string) (*store.Entry, error) {
		return f.ing.Load(id)
	})
	f.ing = NewLineIngestor(Options{
		DataDir:       dir,
		StylePath:     filepath.Join(dir, "style.xml.conf"),
		ParseCacheDir: t.TempDir(),
	}, f.store, f.rec, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func (f *fixture) write(t *testing.T, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(f.dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) scan(t *testing.T) {
	t.Helper()
	if err := f.ing.Scan(context.Background()); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
}

func TestScanLoadsLinesAndStyle(t *testing.T) {
	f := newFixture(t)
	f.write(t, "ginza.xml", ginzaDoc)
	f.write(t, "style.xml.conf", styleDoc)

	if f.ing.IsReady() {
		t.Fatal("ingestor should not be ready before the first scan")
	}
	f.scan(t)
	if !f.ing.IsReady() {
		t.Error("ingestor should be ready after a scan")
	}

	entry, err := f.store.Get("ginza")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Info.Line.Name != "Ginza" || len(entry.Info.Stations) != 2 {
		t.Errorf("entry = %+v", entry.Info)
	}
	if f.store.Style().Station.Mark.Radius != 9 {
		t.Errorf("style not loaded: %+v", f.store.Style().Station.Mark)
	}

	events := f.rec.take()
	if len(events) != 1 || events[0].Type != hub.EventLineUpdated || events[0].LineID != "ginza" {
		t.Errorf("events = %+v", events)
	}
}

func TestScanSkipsUnchangedFiles(t *testing.T) {
	f := newFixture(t)
	f.write(t, "ginza.xml", ginzaDoc)
	f.scan(t)
	f.rec.take()

	f.scan(t)
	if events := f.rec.take(); len(events) != 0 {
		t.Errorf("unchanged scan produced events %+v", events)
	}
	if s := f.ing.Stats(); s.Scans != 2 || s.LastScan.IsZero() {
		t.Errorf("stats = %+v", s)
	}
}

func TestScanReplacesChangedLine(t *testing.T) {
	f := newFixture(t)
	f.write(t, "ginza.xml", ginzaDoc)
	f.scan(t)
	before, _ := f.store.Fingerprint("ginza")
	f.rec.take()

	f.write(t, "ginza.xml", ginzaExtendedDoc)
	f.scan(t)

	after, _ := f.store.Fingerprint("ginza")
	if after == before {
		t.Error("fingerprint should change with the file")
	}
	entry, _ := f.store.Get("ginza")
	if len(entry.Info.Stations) != 3 {
		t.Errorf("expected the extended line, got %d stations", len(entry.Info.Stations))
	}
	events := f.rec.take()
	if len(events) != 1 || events[0].Fingerprint != after {
		t.Errorf("events = %+v", events)
	}
}

func TestScanRemovesDeletedLine(t *testing.T) {
	f := newFixture(t)
	f.write(t, "ginza.xml", ginzaDoc)
	f.scan(t)
	f.rec.take()

	if err := os.Remove(filepath.Join(f.dir, "ginza.xml")); err != nil {
		t.Fatal(err)
	}
	f.scan(t)

	if len(f.store.IDs()) != 0 {
		t.Errorf("IDs = %v", f.store.IDs())
	}
	events := f.rec.take()
	if len(events) != 1 || events[0].Type != hub.EventLineRemoved {
		t.Errorf("events = %+v", events)
	}
}

func TestMalformedFileKeepsPreviousVersion(t *testing.T) {
	f := newFixture(t)
	f.write(t, "ginza.xml", ginzaDoc)
	f.scan(t)
	before, _ := f.store.Fingerprint("ginza")

	f.write(t, "ginza.xml", `<line-info><links><link begin-idx="0"/></links></line-info>`)
	f.scan(t)

	after, _ := f.store.Fingerprint("ginza")
	if after != before {
		t.Error("a malformed document should not replace the loaded line")
	}
	if f.ing.Stats().LoadErrors != 1 {
		t.Errorf("LoadErrors = %d, want 1", f.ing.Stats().LoadErrors)
	}
}

func TestScanMissingDirectory(t *testing.T) {
	f := newFixture(t)
	f.ing.opts.DataDir = filepath.Join(f.dir, "absent")

	if err := f.ing.Scan(context.Background()); err == nil {
		t.Error("expected an error for a missing data directory")
	}
	if f.ing.IsReady() {
		t.Error("ingestor should not be ready after a failed scan")
	}
}

func TestDocumentCacheServesParsedLines(t *testing.T) {
	f := newFixture(t)
	docs := &memoryDocs{lines: make(map[string]*domain.LineInfo)}
	f.ing.SetDocumentCache(docs)

	f.write(t, "ginza.xml", ginzaDoc)
	f.scan(t)
	if docs.saves != 1 {
		t.Fatalf("parsed line should be published once, saves = %d", docs.saves)
	}

	fp, _ := f.store.Fingerprint("ginza")
	docs.lines[fp] = &domain.LineInfo{Line: domain.Line{Name: "From cache"}}

	other := newFixture(t)
	other.ing.SetDocumentCache(docs)
	other.write(t, "ginza.xml", ginzaDoc)
	other.scan(t)

	entry, err := other.store.Get("ginza")
	if err != nil {
		t.Fatal(err)
	}
	if entry.Info.Line.Name != "From cache" {
		t.Errorf("line = %+v, want the cached document", entry.Info.Line)
	}
	if other.ing.Stats().ParseCacheHits != 1 {
		t.Errorf("ParseCacheHits = %d", other.ing.Stats().ParseCacheHits)
	}
}

func TestScanForgetsSupersededDocuments(t *testing.T) {
	f := newFixture(t)
	docs := &memoryDocs{lines: make(map[string]*domain.LineInfo)}
	f.ing.SetDocumentCache(docs)

	f.write(t, "ginza.xml", ginzaDoc)
	f.scan(t)
	original := linedoc.Fingerprint([]byte(ginzaDoc))
	if _, ok := docs.lines[original]; !ok {
		t.Fatalf("document cache missing %s", original)
	}

	f.write(t, "ginza.xml", ginzaExtendedDoc)
	f.scan(t)
	extended := linedoc.Fingerprint([]byte(ginzaExtendedDoc))
	if !reflect.DeepEqual(docs.forgotten, []string{original}) {
		t.Fatalf("forgotten after change = %v, want [%s]", docs.forgotten, original)
	}
	if _, ok := docs.lines[extended]; !ok {
		t.Errorf("document cache missing %s", extended)
	}

	if err := os.Remove(filepath.Join(f.dir, "ginza.xml")); err != nil {
		t.Fatal(err)
	}
	f.scan(t)
	if !reflect.DeepEqual(docs.forgotten, []string{original, extended}) {
		t.Errorf("forgotten after removal = %v, want [%s %s]", docs.forgotten, original, extended)
	}
	if len(docs.lines) != 0 {
		t.Errorf("document cache still holds %d lines", len(docs.lines))
	}
}

func TestScanKeepsDocumentSharedByAnotherLine(t *testing.T) {
	f := newFixture(t)
	docs := &memoryDocs{lines: make(map[string]*domain.LineInfo)}
	f.ing.SetDocumentCache(docs)

	f.write(t, "ginza.xml", ginzaDoc)
	f.write(t, "ginza-copy.xml", ginzaDoc)
	f.scan(t)

	if err := os.Remove(filepath.Join(f.dir, "ginza-copy.xml")); err != nil {
		t.Fatal(err)
	}
	f.scan(t)

	if len(docs.forgotten) != 0 {
		t.Errorf("forgot %v while ginza still serves it", docs.forgotten)
	}
	if _, err := f.store.Get("ginza"); err != nil {
		t.Errorf("ginza dropped: %v", err)
	}
}

func TestStyleChangeRunsUpdateHook(t *testing.T) {
	f := newFixture(t)
	f.write(t, "ginza.xml", ginzaDoc)

	updates := 0
	f.ing.SetOnUpdate(func(context.Context) { updates++ })

	f.scan(t)
	f.scan(t)
	if updates != 1 {
		t.Fatalf("updates after unchanged rescan = %d, want 1", updates)
	}

	f.write(t, "style.xml.conf", styleDoc)
	f.scan(t)
	if updates != 2 {
		t.Errorf("updates after style change = %d, want 2", updates)
	}
	if f.store.Style().Station.Mark.Radius != 9 {
		t.Errorf("style radius = %d, want 9", f.store.Style().Station.Mark.Radius)
	}
	if events := f.rec.take(); len(events) != 1 {
		t.Errorf("events = %+v, want only the initial line_updated", events)
	}
}

func TestLoadRereadsFile(t *testing.T) {
	f := newFixture(t)
	f.write(t, "ginza.xml", ginzaDoc)

	entry, err := f.ing.Load("ginza")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if entry.ID != "ginza" || entry.Path != filepath.Join(f.dir, "ginza.xml") {
		t.Errorf("entry = %+v", entry)
	}

	if _, err := f.ing.Load("absent"); err == nil {
		t.Error("expected an error for an unknown line")
	}
}

func TestLineID(t *testing.T) {
	if got := LineID("/srv/lines/ginza.xml"); got != "ginza" {
		t.Errorf("LineID = %q", got)
	}
}
