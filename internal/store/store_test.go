package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/franz/shelf/internal/format"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testBook(id string, added time.Time) *Book {
	return &Book{
		ID:        id,
		Title:     "Title " + id,
		Author:    "Unknown Author",
		Format:    format.EPUB,
		Cover:     "cover://" + id,
		Status:    StatusWantToRead,
		Filename:  id + ".epub",
		SizeBytes: 42,
		AddedAt:   added,
	}
}

func putWithFile(t *testing.T, s *Store, b *Book) {
	t.Helper()
	ctx := context.Background()
	if err := s.PutBook(ctx, b); err != nil {
		t.Fatalf("failed to put book: %v", err)
	}
	if err := s.PutFile(ctx, &File{BookID: b.ID, Data: []byte("data-" + b.ID), MimeType: "application/epub+zip"}); err != nil {
		t.Fatalf("failed to put file: %v", err)
	}
}

func TestStoreOpenAndMigrate(t *testing.T) {
	store := openTestStore(t)

	version, err := store.getSchemaVersion()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("expected schema version %d, got %d", currentSchemaVersion, version)
	}

	tables := []string{"books", "files", "covers", "sessions", "goal", "schema_version"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("expected table %s to exist", table)
		}
	}

	for _, index := range []string{"idx_books_status", "idx_books_last_read", "idx_sessions_book_id"} {
		var count int
		err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", index).Scan(&count)
		if err != nil {
			t.Fatalf("failed to query index %s: %v", index, err)
		}
		if count != 1 {
			t.Errorf("expected index %s to exist (schema v2)", index)
		}
	}

	if err := store.CheckIntegrity(); err != nil {
		t.Errorf("integrity check failed: %v", err)
	}
	if SQLiteVersion() == "" {
		t.Error("expected a sqlite version")
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	putWithFile(t, s, testBook("a", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	s.Close()

	s, err = OpenWithOptions(path, &OpenOptions{NetworkOptimized: true})
	if err != nil {
		t.Fatalf("failed to reopen: %v", err)
	}
	defer s.Close()

	b, err := s.GetBook(ctx, "a")
	if err != nil || b == nil {
		t.Fatalf("book lost after reopen: %v", err)
	}
}

func TestBookRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	added := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	b := testBook("abc", added)
	putWithFile(t, store, b)

	got, err := store.GetBook(ctx, "abc")
	if err != nil {
		t.Fatalf("failed to get book: %v", err)
	}
	if got == nil {
		t.Fatal("expected book, got nil")
	}
	if got.Title != b.Title || got.Format != format.EPUB || got.Status != StatusWantToRead {
		t.Errorf("unexpected book: %+v", got)
	}
	if !got.AddedAt.Equal(added) {
		t.Errorf("AddedAt = %v, want %v", got.AddedAt, added)
	}
	if !got.LastReadAt.IsZero() {
		t.Errorf("LastReadAt should be zero, got %v", got.LastReadAt)
	}

	read := added.Add(48 * time.Hour)
	got.Percent = 40
	got.Position = "3:120"
	got.Status = StatusReading
	got.LastReadAt = read
	if err := store.PutBook(ctx, got); err != nil {
		t.Fatalf("failed to update book: %v", err)
	}

	again, err := store.GetBook(ctx, "abc")
	if err != nil {
		t.Fatal(err)
	}
	if again.Percent != 40 || again.Position != "3:120" || again.Status != StatusReading {
		t.Errorf("update not persisted: %+v", again)
	}
	if !again.LastReadAt.Equal(read) {
		t.Errorf("LastReadAt = %v, want %v", again.LastReadAt, read)
	}

	missing, err := store.GetBook(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("GetBook(missing) = %v, %v; want nil, nil", missing, err)
	}
}

func TestListBooksRequiresFileAndOrders(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	old := testBook("old", base)
	recent := testBook("recent", base.Add(time.Hour))
	read := testBook("read", base)
	read.LastReadAt = base.Add(2 * time.Hour)
	read.Status = StatusReading
	orphan := testBook("orphan", base.Add(3*time.Hour))

	putWithFile(t, store, old)
	putWithFile(t, store, recent)
	putWithFile(t, store, read)
	if err := store.PutBook(ctx, orphan); err != nil {
		t.Fatal(err)
	}

	books, err := store.ListBooks(ctx, "")
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	var ids []string
	for _, b := range books {
		ids = append(ids, b.ID)
	}
	want := []string{"read", "recent", "old"}
	if len(ids) != len(want) {
		t.Fatalf("ListBooks = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ListBooks = %v, want %v", ids, want)
			break
		}
	}

	reading, err := store.ListBooks(ctx, StatusReading)
	if err != nil {
		t.Fatal(err)
	}
	if len(reading) != 1 || reading[0].ID != "read" {
		t.Errorf("status filter returned %d books", len(reading))
	}

	all, err := store.GetAllBooks(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 {
		t.Errorf("GetAllBooks returned %d books, want 4", len(all))
	}

	counts, err := store.CountBooksByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if counts[StatusWantToRead] != 2 || counts[StatusReading] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestFilesAndCovers(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	putWithFile(t, store, testBook("f1", time.Now()))

	f, err := store.GetFile(ctx, "f1")
	if err != nil || f == nil {
		t.Fatalf("GetFile = %v, %v", f, err)
	}
	if string(f.Data) != "data-f1" {
		t.Errorf("Data = %q", f.Data)
	}
	has, err := store.HasFile(ctx, "f1")
	if err != nil || !has {
		t.Errorf("HasFile = %v, %v", has, err)
	}

	if err := store.PutCover(ctx, &Cover{BookID: "f1", Data: []byte{1, 2}, MimeType: "image/png", Source: "placeholder"}); err != nil {
		t.Fatal(err)
	}
	c, err := store.GetCover(ctx, "f1")
	if err != nil || c == nil || c.Source != "placeholder" || len(c.Data) != 2 {
		t.Fatalf("GetCover = %+v, %v", c, err)
	}

	if err := store.DeleteCover(ctx, "f1"); err != nil {
		t.Fatal(err)
	}
	if c, _ := store.GetCover(ctx, "f1"); c != nil {
		t.Error("cover should be gone")
	}
	if err := store.DeleteFile(ctx, "f1"); err != nil {
		t.Fatal(err)
	}
	if has, _ := store.HasFile(ctx, "f1"); has {
		t.Error("file should be gone")
	}
}

func TestSessionsAndDeleteBook(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	putWithFile(t, store, testBook("s1", time.Now()))
	putWithFile(t, store, testBook("s2", time.Now()))

	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	sessions := []*Session{
		{ID: "b", BookID: "s1", StartedAt: start.Add(time.Hour), EndedAt: start.Add(2 * time.Hour), StartPercent: 10, EndPercent: 20, Pages: 5},
		{ID: "a", BookID: "s1", StartedAt: start, EndedAt: start.Add(30 * time.Minute), StartPercent: 0, EndPercent: 10, Pages: 3},
		{ID: "c", BookID: "s2", StartedAt: start, EndedAt: start.Add(time.Minute)},
	}
	for _, sess := range sessions {
		if err := store.PutSession(ctx, sess); err != nil {
			t.Fatalf("failed to put session: %v", err)
		}
	}

	got, err := store.ListSessionsByBook(ctx, "s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("sessions out of order: %+v", got)
	}
	if got[1].Pages != 5 || got[1].EndPercent != 20 {
		t.Errorf("session fields lost: %+v", got[1])
	}

	if err := store.DeleteBook(ctx, "s1"); err != nil {
		t.Fatalf("failed to delete book: %v", err)
	}
	if b, _ := store.GetBook(ctx, "s1"); b != nil {
		t.Error("book should be deleted")
	}
	if f, _ := store.GetFile(ctx, "s1"); f != nil {
		t.Error("file should be deleted with its book")
	}
	if left, _ := store.ListSessionsByBook(ctx, "s1"); len(left) != 0 {
		t.Errorf("sessions should be deleted, %d left", len(left))
	}
	if left, _ := store.ListSessionsByBook(ctx, "s2"); len(left) != 1 {
		t.Error("other book's sessions must survive")
	}

	if err := store.DeleteSessionsByBook(ctx, "s2"); err != nil {
		t.Fatal(err)
	}
	if left, _ := store.ListSessionsByBook(ctx, "s2"); len(left) != 0 {
		t.Error("DeleteSessionsByBook left rows behind")
	}
}

func TestGoalDefaultsAndClearAll(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	g, err := store.GetGoal(ctx)
	if err != nil {
		t.Fatalf("failed to get goal: %v", err)
	}
	if g.DailyTarget != DefaultDailyTarget || g.CurrentStreak != 0 || g.LastReadDate != "" {
		t.Errorf("unexpected default goal: %+v", g)
	}

	g.CurrentStreak = 3
	g.LongestStreak = 7
	g.LastReadDate = "2024-05-01"
	g.TotalBooksCompleted = 2
	g.TotalTimeRead = 90 * time.Minute
	if err := store.PutGoal(ctx, g); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetGoal(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *g {
		t.Errorf("GetGoal = %+v, want %+v", got, g)
	}

	putWithFile(t, store, testBook("x", time.Now()))
	if err := store.ClearAll(ctx); err != nil {
		t.Fatalf("failed to clear: %v", err)
	}
	books, _ := store.GetAllBooks(ctx)
	if len(books) != 0 {
		t.Errorf("%d books survived ClearAll", len(books))
	}
	fresh, err := store.GetGoal(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.CurrentStreak != 0 || fresh.TotalBooksCompleted != 0 || fresh.DailyTarget != DefaultDailyTarget {
		t.Errorf("goal not reset: %+v", fresh)
	}
}

func TestStatusOrdering(t *testing.T) {
	if !StatusWantToRead.Before(StatusReading) || !StatusReading.Before(StatusFinished) {
		t.Error("lifecycle order broken")
	}
	if StatusFinished.Before(StatusReading) {
		t.Error("finished must not precede reading")
	}
	if s, err := ParseStatus("done"); err != nil || s != StatusFinished {
		t.Errorf("ParseStatus(done) = %q, %v", s, err)
	}
	if _, err := ParseStatus("lost"); err == nil {
		t.Error("expected error for unknown status")
	}
	if Status("x").Valid() {
		t.Error("unknown status reported valid")
	}
}
