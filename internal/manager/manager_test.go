package manager

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.klb.dev/clipstash/internal/clip"
)

func newManager(t *testing.T, capacity int) *Manager {
	t.Helper()
	m, err := New(capacity)
	if err != nil {
		t.Fatalf("New(%d): %v", capacity, err)
	}
	return m
}

func texts(clips []clip.Clip) []string {
	out := make([]string, len(clips))
	for i, c := range clips {
		out[i] = c.Text()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func insert(t *testing.T, m *Manager, kind clip.Kind, data string) (uint64, bool) {
	t.Helper()
	id, inserted, err := m.Insert(kind, []byte(data))
	if err != nil {
		t.Fatalf("Insert(%q): %v", data, err)
	}
	return id, inserted
}

func TestNewRejectsZeroCapacity(t *testing.T) {
	if _, err := New(0); !errors.Is(err, ErrInvalidCapacity) {
		t.Fatalf("New(0) error = %v, want ErrInvalidCapacity", err)
	}
}

func TestInsertMovesDuplicateToHead(t *testing.T) {
	m := newManager(t, 3)
	for _, s := range []string{"a", "b", "c", "a"} {
		insert(t, m, clip.KindClipboard, s)
	}
	if got, want := texts(m.List()), []string{"a", "c", "b"}; !equalStrings(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
}

func TestInsertEvictsTail(t *testing.T) {
	m := newManager(t, 2)
	firstID, _ := insert(t, m, clip.KindClipboard, "a")
	insert(t, m, clip.KindClipboard, "b")
	insert(t, m, clip.KindClipboard, "c")

	if got, want := texts(m.List()), []string{"c", "b"}; !equalStrings(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
	if _, ok := m.Get(firstID); ok {
		t.Fatal("evicted clip is still reachable by ID")
	}
}

func TestCapacityOneKeepsLatest(t *testing.T) {
	m := newManager(t, 1)
	for _, s := range []string{"x", "y", "z"} {
		insert(t, m, clip.KindClipboard, s)
		if got := texts(m.List()); !equalStrings(got, []string{s}) {
			t.Fatalf("after %q List() = %v", s, got)
		}
	}
}

func TestDuplicateInsertKeepsID(t *testing.T) {
	m := newManager(t, 5)
	before := m.Len()
	id1, inserted1 := insert(t, m, clip.KindClipboard, "same")
	id2, inserted2 := insert(t, m, clip.KindPrimary, "same")

	if id1 != id2 {
		t.Fatalf("duplicate insert returned id %d, first was %d", id2, id1)
	}
	if !inserted1 || inserted2 {
		t.Fatalf("inserted flags = %v, %v; want true, false", inserted1, inserted2)
	}
	if m.Len() != before+1 {
		t.Fatalf("Len() = %d, want %d", m.Len(), before+1)
	}
	c, _ := m.Get(id1)
	if c.Kind != clip.KindPrimary {
		t.Errorf("duplicate insert did not refresh kind: %v", c.Kind)
	}
}

func TestInsertRejectsEmpty(t *testing.T) {
	m := newManager(t, 5)
	if _, _, err := m.Insert(clip.KindClipboard, nil); !errors.Is(err, ErrEmptyData) {
		t.Fatalf("Insert(nil) error = %v, want ErrEmptyData", err)
	}
	if _, _, err := m.Insert(clip.Kind(9), []byte("x")); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("Insert(kind 9) error = %v, want ErrInvalidKind", err)
	}
	if m.Len() != 0 {
		t.Fatalf("Len() = %d after rejected inserts", m.Len())
	}
}

func TestInsertThenListHead(t *testing.T) {
	m := newManager(t, 4)
	for _, s := range []string{"one", "two", "one", "three", "two"} {
		insert(t, m, clip.KindClipboard, s)
		if head := m.List()[0].Text(); head != s {
			t.Fatalf("after inserting %q head is %q", s, head)
		}
	}
}

func TestInvariantsUnderRandomSequence(t *testing.T) {
	m := newManager(t, 4)
	for i := 0; i < 200; i++ {
		data := fmt.Sprintf("v%d", (i*7)%9)
		id, _ := insert(t, m, clip.Kinds[i%2], data)
		if i%5 == 0 {
			m.Remove(id)
		}

		if m.Len() > m.Capacity() {
			t.Fatalf("step %d: Len() = %d > capacity", i, m.Len())
		}
		seen := make(map[string]bool)
		for _, c := range m.List() {
			if seen[c.Text()] {
				t.Fatalf("step %d: duplicate data %q in history", i, c.Text())
			}
			seen[c.Text()] = true
		}
	}
}

func TestGetDoesNotAlias(t *testing.T) {
	m := newManager(t, 2)
	data := []byte("hello")
	id, _, _ := m.Insert(clip.KindClipboard, data)
	data[0] = 'j'

	c, _ := m.Get(id)
	if c.Text() != "hello" {
		t.Fatalf("manager kept caller buffer: %q", c.Text())
	}
	c.Data[0] = 'y'
	if again, _ := m.Get(id); again.Text() != "hello" {
		t.Fatalf("Get returned internal buffer: %q", again.Text())
	}
}

func TestRemove(t *testing.T) {
	m := newManager(t, 3)
	id, _ := insert(t, m, clip.KindClipboard, "a")

	if !m.Remove(id) {
		t.Fatal("Remove(existing) = false")
	}
	if m.Remove(id) {
		t.Fatal("second Remove = true")
	}
	if m.Remove(12345) {
		t.Fatal("Remove(unknown) = true")
	}
	if m.Len() != 0 {
		t.Fatalf("Len() = %d", m.Len())
	}
}

func TestRemoveAfterInsertSucceeds(t *testing.T) {
	m := newManager(t, 3)
	for i := 0; i < 10; i++ {
		id, _ := insert(t, m, clip.KindClipboard, fmt.Sprint(i))
		if !m.Remove(id) {
			t.Fatalf("Remove(%d) right after insert failed", id)
		}
	}
}

func TestClearIdempotent(t *testing.T) {
	m := newManager(t, 3)
	insert(t, m, clip.KindClipboard, "a")
	insert(t, m, clip.KindPrimary, "b")

	m.Clear()
	m.Clear()
	if m.Len() != 0 || len(m.List()) != 0 {
		t.Fatalf("history not empty after Clear: %v", texts(m.List()))
	}
	if _, ok := m.Current(clip.KindPrimary); ok {
		t.Fatal("current slot survived Clear")
	}
	id, inserted := insert(t, m, clip.KindClipboard, "a")
	if !inserted || id <= 2 {
		t.Fatalf("insert after Clear = (%d, %v), want fresh id", id, inserted)
	}
}

func TestCurrentSlots(t *testing.T) {
	m := newManager(t, 3)
	a, _ := insert(t, m, clip.KindClipboard, "a")
	b, _ := insert(t, m, clip.KindPrimary, "b")

	if c, ok := m.Current(clip.KindClipboard); !ok || c.ID != a {
		t.Fatalf("Current(clipboard) = %v, %v; want id %d", c.ID, ok, a)
	}
	if err := m.MarkAsCurrent(b, clip.KindClipboard); err != nil {
		t.Fatalf("MarkAsCurrent: %v", err)
	}
	if c, _ := m.Current(clip.KindClipboard); c.ID != b {
		t.Fatalf("Current(clipboard) = %d after mark, want %d", c.ID, b)
	}
	if err := m.MarkAsCurrent(999, clip.KindClipboard); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MarkAsCurrent(unknown) error = %v", err)
	}

	m.Remove(b)
	if _, ok := m.Current(clip.KindPrimary); ok {
		t.Fatal("removed clip is still current")
	}
}

func TestEvictionClearsCurrent(t *testing.T) {
	m := newManager(t, 1)
	insert(t, m, clip.KindPrimary, "old")
	insert(t, m, clip.KindClipboard, "new")
	if _, ok := m.Current(clip.KindPrimary); ok {
		t.Fatal("evicted clip is still current for primary")
	}
}

func TestImportPreservesOrder(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	loaded := []clip.Clip{
		{ID: 40, Data: []byte("p"), Kind: clip.KindPrimary, Timestamp: ts.Add(time.Second)},
		{ID: 41, Data: []byte("q"), Kind: clip.KindClipboard, Timestamp: ts},
	}
	m := newManager(t, 5)
	m.Import(loaded)

	got := m.List()
	if want := []string{"p", "q"}; !equalStrings(texts(got), want) {
		t.Fatalf("List() = %v, want %v", texts(got), want)
	}
	if got[0].Kind != clip.KindPrimary || !got[1].Timestamp.Equal(ts) {
		t.Errorf("Import lost metadata: %+v", got)
	}
	if got[0].ID == 40 || got[1].ID == 41 {
		t.Error("Import kept persisted IDs")
	}
	if _, ok := m.Current(clip.KindClipboard); ok {
		t.Error("imported clip became current")
	}
}

func TestImportTruncatesToCapacity(t *testing.T) {
	m := newManager(t, 2)
	m.Import([]clip.Clip{{Data: []byte("1")}, {Data: []byte("2")}, {Data: []byte("3")}})
	if got, want := texts(m.List()), []string{"1", "2"}; !equalStrings(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}
}

func TestImportFillsCapacityPastDuplicates(t *testing.T) {
	m := newManager(t, 3)
	m.Import([]clip.Clip{
		{Data: []byte("a"), Kind: clip.KindPrimary},
		{Data: []byte("a"), Kind: clip.KindClipboard},
		{Data: []byte("")},
		{Data: []byte("b")},
		{Data: []byte("c")},
		{Data: []byte("d")},
	})
	got := m.List()
	if want := []string{"a", "b", "c"}; !equalStrings(texts(got), want) {
		t.Fatalf("List() = %v, want %v", texts(got), want)
	}
	if got[0].Kind != clip.KindPrimary {
		t.Errorf("duplicate kept kind %v, want the newest occurrence's", got[0].Kind)
	}
}

func TestImportOfListIsIdentity(t *testing.T) {
	m := newManager(t, 4)
	for _, s := range []string{"a", "b", "c", "b"} {
		insert(t, m, clip.KindClipboard, s)
	}
	before := m.List()

	other := newManager(t, 4)
	other.Import(before)
	after := other.List()

	if !equalStrings(texts(before), texts(after)) {
		t.Fatalf("Import(List()) = %v, want %v", texts(after), texts(before))
	}
	for i := range before {
		if before[i].Kind != after[i].Kind {
			t.Errorf("entry %d kind %v != %v", i, after[i].Kind, before[i].Kind)
		}
	}
}

func TestConcurrentListSeesConsistentSnapshot(t *testing.T) {
	m := newManager(t, 50)
	insert(t, m, clip.KindClipboard, "base")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			m.Insert(clip.KindClipboard, []byte(fmt.Sprintf("new-%d", i%60)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			list := m.List()
			if len(list) == 0 || len(list) > m.Capacity() {
				t.Errorf("snapshot size %d", len(list))
				return
			}
			seen := make(map[string]bool, len(list))
			for _, c := range list {
				if len(c.Data) == 0 || seen[c.Text()] {
					t.Errorf("inconsistent snapshot: %v", texts(list))
					return
				}
				seen[c.Text()] = true
			}
		}
	}()
	wg.Wait()
}
