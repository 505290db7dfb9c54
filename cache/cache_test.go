package cache

import (
	"testing"
	"time"
)

func TestInsertAndLookup(t *testing.T) {
	c := Create(false)
	it := c.Insert(1, "foo", 42, Attr{Mode: 0100644}, time.Minute)
	if it.Ino != 42 {
		t.Fatalf("Ino = %d, want 42", it.Ino)
	}

	got, ok := c.Lookup(1, "foo")
	if !ok || got.Ino != 42 {
		t.Fatalf("Lookup = %+v, %v", got, ok)
	}

	if _, ok := c.Lookup(1, "bar"); ok {
		t.Fatal("expected miss for bar")
	}
}

func TestCaseInsensitiveNormalization(t *testing.T) {
	c := Create(true)
	c.Insert(1, "Foo.TXT", 7, Attr{}, time.Minute)

	if _, ok := c.Lookup(1, "foo.txt"); !ok {
		t.Fatal("expected case-insensitive hit")
	}
	if _, ok := c.Lookup(1, "FOO.TXT"); !ok {
		t.Fatal("expected case-insensitive hit")
	}
}

func TestCaseSensitiveVolumeDoesNotFold(t *testing.T) {
	c := Create(false)
	c.Insert(1, "Foo.TXT", 7, Attr{}, time.Minute)

	if _, ok := c.Lookup(1, "foo.txt"); ok {
		t.Fatal("case-sensitive volume must not fold names")
	}
}

func TestGenerationAdvancesOnReinsert(t *testing.T) {
	c := Create(false)
	first := c.Insert(1, "foo", 42, Attr{}, time.Minute)
	second := c.Insert(1, "foo", 43, Attr{}, time.Minute)

	if second.Generation <= first.Generation {
		t.Fatalf("generation did not advance: %d -> %d", first.Generation, second.Generation)
	}
}

func TestReferenceProtectsFromExpiration(t *testing.T) {
	c := Create(false)
	it := c.Insert(1, "foo", 42, Attr{}, -time.Second) // already expired
	c.Reference(it)

	forgotten := c.ExpirationSweep(time.Now())
	if len(forgotten) != 0 {
		t.Fatalf("referenced item must survive sweep, got forgotten=%v", forgotten)
	}

	c.Release(it)
	forgotten = c.ExpirationSweep(time.Now())
	if len(forgotten) != 1 || forgotten[0] != 42 {
		t.Fatalf("expected inode 42 forgotten after release, got %v", forgotten)
	}
}

func TestForgottenItemNoLongerServesLookup(t *testing.T) {
	c := Create(false)
	c.Insert(1, "foo", 42, Attr{}, -time.Second)
	c.ExpirationSweep(time.Now())

	if _, ok := c.Lookup(1, "foo"); ok {
		t.Fatal("forgotten item must not be returned by Lookup")
	}
}

func TestExpirationSweepReturnsAllExpiredInodesOnce(t *testing.T) {
	c := Create(false)
	for i := uint64(1); i <= 3; i++ {
		c.Insert(1, string(rune('a'+i)), 100+i, Attr{}, -time.Second)
	}

	got := c.ExpirationSweep(time.Now())
	if len(got) != 3 {
		t.Fatalf("got %d forgets, want 3", len(got))
	}

	// The cache keeps no second copy of what it just returned: a later
	// sweep must not resurface the same inodes.
	again := c.ExpirationSweep(time.Now())
	if len(again) != 0 {
		t.Fatalf("expected no re-sweep of already-forgotten inodes, got %v", again)
	}
}

func TestExpirationSweepIntoReusesBuffer(t *testing.T) {
	c := Create(false)
	c.Insert(1, "foo", 42, Attr{}, -time.Second)

	buf := make([]uint64, 0, 8)
	got := c.ExpirationSweepInto(time.Now(), buf)
	if len(got) != 1 || got[0] != 42 {
		t.Fatalf("got %v, want [42]", got)
	}
	if cap(got) != cap(buf) {
		t.Fatal("expected the provided buffer's backing array to be reused")
	}
}

func TestDeleteItemsIsSafeAfterSweep(t *testing.T) {
	c := Create(false)
	c.Insert(1, "foo", 42, Attr{}, -time.Second)
	got := c.ExpirationSweep(time.Now())

	c.DeleteItems(got)

	if _, ok := c.Lookup(1, "foo"); ok {
		t.Fatal("item must remain gone after DeleteItems")
	}
}

func TestExpirationSweepDoesNotTouchLiveItems(t *testing.T) {
	c := Create(false)
	c.Insert(1, "foo", 42, Attr{}, time.Hour)

	forgotten := c.ExpirationSweep(time.Now())
	if len(forgotten) != 0 {
		t.Fatalf("expected no forgets, got %v", forgotten)
	}
	if _, ok := c.Lookup(1, "foo"); !ok {
		t.Fatal("live item should still be looked up")
	}
}
