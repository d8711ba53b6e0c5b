package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/zarlcorp/core/pkg/zfilesystem"
	"github.com/zarlcorp/core/pkg/zstore"
	"github.com/zarlcorp/zpass/internal/credential"
)

func openTestStore(t *testing.T) (*Store, *zfilesystem.MemFS) {
	t.Helper()
	fs := zfilesystem.NewMemFS()
	return New(NewFileBackend(fs)), fs
}

func newTestCredential(site, user string) credential.Credential {
	return credential.Credential{Site: site, Username: user, Password: "pw-" + site}
}

func seed(t *testing.T, s *Store, n int) credential.Collection {
	t.Helper()
	var col credential.Collection
	for i := range n {
		var err error
		col, err = s.Add(context.Background(), newTestCredential(fmt.Sprintf("site%d.com", i), "user"))
		if err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	return col
}

// failingBackend fails every call once armed.
type failingBackend struct {
	Backend
	failGet bool
	failSet bool
	failRm  bool
}

var errDisk = errors.New("disk on fire")

func (b *failingBackend) Get(ctx context.Context, key string) (credential.Collection, bool, error) {
	if b.failGet {
		return nil, false, errDisk
	}
	return b.Backend.Get(ctx, key)
}

func (b *failingBackend) Set(ctx context.Context, key string, col credential.Collection) error {
	if b.failSet {
		return errDisk
	}
	return b.Backend.Set(ctx, key, col)
}

func (b *failingBackend) Remove(ctx context.Context, key string) error {
	if b.failRm {
		return errDisk
	}
	return b.Backend.Remove(ctx, key)
}

func TestLoadEmpty(t *testing.T) {
	s, _ := openTestStore(t)

	col, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if col == nil || len(col) != 0 {
		t.Fatalf("expected empty non-nil collection, got %#v", col)
	}
}

func TestAddThenLoad(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	seed(t, s, 2)

	before, _ := s.Load(ctx)
	c := newTestCredential("github.com", "jane")
	if _, err := s.Add(ctx, c); err != nil {
		t.Fatalf("add: %v", err)
	}

	after, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(after) != len(before)+1 {
		t.Fatalf("len = %d, want %d", len(after), len(before)+1)
	}

	last := after[len(after)-1]
	if last.Site != c.Site || last.Username != c.Username || last.Password != c.Password {
		t.Errorf("last = %+v, want %+v", last, c)
	}
	if last.ID == "" || last.CreatedAt.IsZero() {
		t.Errorf("add should stamp id and created_at: %+v", last)
	}
}

func TestAddReturnsPersisted(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	got, err := s.Add(ctx, newTestCredential("a.com", "u"))
	if err != nil {
		t.Fatal(err)
	}
	loaded, _ := s.Load(ctx)
	if len(got) != 1 || got[0].ID != loaded[0].ID {
		t.Errorf("returned %v, stored %v", got, loaded)
	}
}

func TestAddValidation(t *testing.T) {
	s, fs := openTestStore(t)

	_, err := s.Add(context.Background(), credential.Credential{Site: "x"})
	if !errors.Is(err, credential.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if _, err := fs.ReadFile("passwords.json"); err == nil {
		t.Error("invalid add should not write")
	}
}

func TestSaveLoadIsNoOp(t *testing.T) {
	s, fs := openTestStore(t)
	ctx := context.Background()
	seed(t, s, 3)

	before, err := fs.ReadFile("passwords.json")
	if err != nil {
		t.Fatal(err)
	}

	col, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Save(ctx, col); err != nil {
		t.Fatalf("save: %v", err)
	}

	after, err := fs.ReadFile("passwords.json")
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(before, after) {
		t.Errorf("save(load()) changed the file:\nbefore %s\nafter  %s", before, after)
	}
}

func TestDeletePreservesOrder(t *testing.T) {
	for i := range 4 {
		t.Run(fmt.Sprintf("index %d", i), func(t *testing.T) {
			s, _ := openTestStore(t)
			col := seed(t, s, 4)

			got, err := s.Delete(context.Background(), col[i].ID)
			if err != nil {
				t.Fatalf("delete: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("len = %d, want 3", len(got))
			}

			want := append(append(credential.Collection{}, col[:i]...), col[i+1:]...)
			for j := range want {
				if got[j].ID != want[j].ID {
					t.Fatalf("position %d: got %s, want %s", j, got[j].ID, want[j].ID)
				}
			}
		})
	}
}

func TestDeleteNotFound(t *testing.T) {
	s, _ := openTestStore(t)
	seed(t, s, 1)

	_, err := s.Delete(context.Background(), "missing")
	if !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateInPlace(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	col := seed(t, s, 3)

	edited := col[1]
	edited.Site = "edited.com"
	edited.Username = "new-user"
	edited.Password = "new-pass"

	got, err := s.Update(ctx, edited)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[1].ID != edited.ID || got[1].Site != "edited.com" || got[1].Password != "new-pass" {
		t.Errorf("record 1 = %+v", got[1])
	}
	if !got[1].CreatedAt.Equal(col[1].CreatedAt) {
		t.Error("update should keep created_at")
	}
	if got[0] != col[0] || got[2] != col[2] {
		t.Error("other records should be untouched")
	}
}

func TestUpdateMissing(t *testing.T) {
	s, _ := openTestStore(t)
	seed(t, s, 1)

	_, err := s.Update(context.Background(), credential.Credential{ID: "gone", Site: "s", Username: "u", Password: "p"})
	if !errors.Is(err, credential.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestClear(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	seed(t, s, 3)

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	col, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(col) != 0 {
		t.Errorf("len = %d after clear, want 0", len(col))
	}

	// clearing twice is fine
	if err := s.Clear(ctx); err != nil {
		t.Errorf("second clear: %v", err)
	}
}

func TestLegacyRecordsGetIDs(t *testing.T) {
	fs := zfilesystem.NewMemFS()
	legacy := `[{"site":"a.com","username":"u1","password":"p1"},{"site":"b.com","username":"u2","password":"p2"}]`
	if err := fs.WriteFile("passwords.json", []byte(legacy), 0o600); err != nil {
		t.Fatal(err)
	}

	s := New(NewFileBackend(fs))
	ctx := context.Background()

	first, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if first[0].ID == "" || first[1].ID == "" {
		t.Fatalf("ids not assigned: %+v", first)
	}

	second, err := s.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first[0].ID != second[0].ID || first[1].ID != second[1].ID {
		t.Error("assigned ids should be persisted")
	}

	if _, err := s.Delete(ctx, first[0].ID); err != nil {
		t.Errorf("delete migrated record: %v", err)
	}
}

func TestIDFailureIsStorageError(t *testing.T) {
	fs := zfilesystem.NewMemFS()
	legacy := `[{"site":"a.com","username":"u1","password":"p1"}]`
	if err := fs.WriteFile("passwords.json", []byte(legacy), 0o600); err != nil {
		t.Fatal(err)
	}

	s := New(NewFileBackend(fs))
	s.newID = func() (string, error) { return "", errors.New("entropy exhausted") }
	ctx := context.Background()

	if _, err := s.Load(ctx); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("load err = %v, want ErrStorageUnavailable", err)
	}

	if _, err := s.Add(ctx, newTestCredential("b.com", "u2")); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("add err = %v, want ErrStorageUnavailable", err)
	}

	raw, err := fs.ReadFile("passwords.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != legacy {
		t.Errorf("file = %s, should be untouched", raw)
	}
}

func TestStorageFailures(t *testing.T) {
	ctx := context.Background()
	fs := zfilesystem.NewMemFS()
	fb := &failingBackend{Backend: NewFileBackend(fs)}
	s := New(fb)
	seed(t, s, 2)

	fb.failSet = true
	if _, err := s.Add(ctx, newTestCredential("x.com", "u")); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("add: err = %v, want ErrStorageUnavailable", err)
	}
	fb.failSet = false

	col, _ := s.Load(ctx)
	if len(col) != 2 {
		t.Errorf("failed add should not change storage, len = %d", len(col))
	}

	fb.failGet = true
	if _, err := s.Load(ctx); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("load: err = %v, want ErrStorageUnavailable", err)
	}
	if !errors.Is(func() error { _, err := s.Load(ctx); return err }(), errDisk) {
		t.Error("cause should stay wrapped")
	}
	fb.failGet = false

	fb.failRm = true
	if err := s.Clear(ctx); !errors.Is(err, ErrStorageUnavailable) {
		t.Errorf("clear: err = %v, want ErrStorageUnavailable", err)
	}
}

func TestCanceledContext(t *testing.T) {
	s, _ := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestCorruptFile(t *testing.T) {
	fs := zfilesystem.NewMemFS()
	if err := fs.WriteFile("passwords.json", []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := New(NewFileBackend(fs)).Load(context.Background())
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
}

func TestSealedBackendRoundTrip(t *testing.T) {
	fs := zfilesystem.NewMemFS()
	b, zs, err := OpenSealed(fs, []byte("testpass"))
	if err != nil {
		t.Fatalf("open sealed: %v", err)
	}

	s := New(b)
	ctx := context.Background()
	if _, err := s.Add(ctx, newTestCredential("github.com", "jane")); err != nil {
		t.Fatalf("add: %v", err)
	}
	zs.Close()

	b2, zs2, err := OpenSealed(fs, []byte("testpass"))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { zs2.Close() })

	col, err := New(b2).Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(col) != 1 || col[0].Site != "github.com" {
		t.Fatalf("unexpected collection %+v", col)
	}

	if err := New(b2).Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	col, _ = New(b2).Load(ctx)
	if len(col) != 0 {
		t.Errorf("len = %d after clear", len(col))
	}
}

func TestSealedBackendWrongPassword(t *testing.T) {
	fs := zfilesystem.NewMemFS()
	_, zs, err := OpenSealed(fs, []byte("correct"))
	if err != nil {
		t.Fatal(err)
	}
	zs.Close()

	_, _, err = OpenSealed(fs, []byte("wrong"))
	if !errors.Is(err, zstore.ErrWrongPassword) {
		t.Fatalf("err = %v, want ErrWrongPassword", err)
	}
}

func TestSealedEmptyLoad(t *testing.T) {
	b, zs, err := OpenSealed(zfilesystem.NewMemFS(), []byte("pw"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { zs.Close() })

	col, err := New(b).Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(col) != 0 {
		t.Errorf("len = %d, want 0", len(col))
	}
}

func TestTimestampsUseClock(t *testing.T) {
	s, _ := openTestStore(t)
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	col, err := s.Add(context.Background(), newTestCredential("a.com", "u"))
	if err != nil {
		t.Fatal(err)
	}
	if !col[0].CreatedAt.Equal(fixed) {
		t.Errorf("created_at = %v, want %v", col[0].CreatedAt, fixed)
	}
}
