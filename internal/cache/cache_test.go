package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func fingerprint(parts ...string) string {
	f := NewFingerprinter()
	f.Add(parts...)
	return f.Sum()
}

func TestFingerprinter(t *testing.T) {
	if fingerprint("a", "b") != fingerprint("a", "b") {
		t.Error("fingerprint is not deterministic")
	}
	if fingerprint("ab", "c") == fingerprint("a", "bc") {
		t.Error("parts must be length-prefixed")
	}
	if got := len(fingerprint("x")); got != 64 {
		t.Errorf("expected 64 hex chars, got %d", got)
	}

	f := NewFingerprinter()
	f.Add("a")
	f.Add("b")
	if f.Sum() != fingerprint("a", "b") {
		t.Error("incremental Add should match a single Add call")
	}
}

func TestKey(t *testing.T) {
	if got := Key("stats", "abc"); got != "biaslens:v1:stats:abc" {
		t.Errorf("Key = %q", got)
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(0, time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("expected miss")
	}
	if err := c.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if val, ok := c.Get("k"); !ok || string(val) != "v" {
		t.Errorf("Get = %q, %v", val, ok)
	}
	_ = c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after Delete")
	}
}

func TestDiskCache_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, 0)

	key := Key("params", fingerprint("corpus"))
	if err := c.Set(key, []byte(`{"left":1}`), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	val, ok := c.Get(key)
	if !ok {
		t.Fatal("expected hit")
	}
	if string(val) != `{"left":1}` {
		t.Errorf("Get = %q", val)
	}

	// A fresh instance over the same directory sees the entry
	again := NewDiskCache(dir, 0)
	if _, ok := again.Get(key); !ok {
		t.Error("entry did not persist")
	}
}

func TestDiskCache_Expiry(t *testing.T) {
	c := NewDiskCache(t.TempDir(), time.Hour)

	if err := c.Set("short", []byte("v"), time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	if _, ok := c.Get("short"); ok {
		t.Error("expected expired entry to miss")
	}
	if _, err := os.Stat(c.path("short")); !errors.Is(err, os.ErrNotExist) {
		t.Error("expired entry should be removed from disk")
	}
}

func TestDiskCache_CorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, 0)

	if err := os.WriteFile(filepath.Join(dir, "bad.cache"), []byte("not zstd"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("bad"); ok {
		t.Error("corrupt entry should be a miss")
	}
}

func TestDiskCache_DeleteMissing(t *testing.T) {
	c := NewDiskCache(t.TempDir(), 0)
	if err := c.Delete("never-set"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	memory := NewMemoryCache(0, time.Minute)
	disk := NewDiskCache(t.TempDir(), 0)
	c := NewLayeredCacheFrom(memory, disk)

	if err := disk.Set("k", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	if val, ok := c.Get("k"); !ok || string(val) != "v" {
		t.Fatalf("Get = %q, %v", val, ok)
	}
	if _, ok := memory.Get("k"); !ok {
		t.Error("disk hit should be promoted to memory")
	}
}

func TestGetOrCompute(t *testing.T) {
	c := NewLayeredCache(time.Minute, t.TempDir(), 0)

	calls := 0
	compute := func() ([]byte, error) {
		calls++
		return []byte("value"), nil
	}

	val, hit, err := GetOrCompute(c, "k", false, compute)
	if err != nil || hit || string(val) != "value" {
		t.Fatalf("first call: %q %v %v", val, hit, err)
	}

	val, hit, err = GetOrCompute(c, "k", false, compute)
	if err != nil || !hit || string(val) != "value" {
		t.Fatalf("second call: %q %v %v", val, hit, err)
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}

	if _, hit, _ = GetOrCompute(c, "k", true, compute); hit {
		t.Error("force must not report a hit")
	}
	if calls != 2 {
		t.Errorf("force should recompute, calls = %d", calls)
	}
}

func TestGetOrCompute_ErrorNotCached(t *testing.T) {
	c := NewMemoryCache(0, time.Minute)
	boom := errors.New("boom")

	_, _, err := GetOrCompute(c, "k", false, func() ([]byte, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("failed computation must not be cached")
	}
}

func TestGetOrCompute_NilCache(t *testing.T) {
	calls := 0
	for i := 0; i < 2; i++ {
		_, hit, err := GetOrCompute(nil, "k", false, func() ([]byte, error) {
			calls++
			return []byte("v"), nil
		})
		if err != nil || hit {
			t.Fatalf("unexpected %v %v", hit, err)
		}
	}
	if calls != 2 {
		t.Errorf("nil cache should always compute, calls = %d", calls)
	}
}

func TestGetOrComputeJSON(t *testing.T) {
	c := NewMemoryCache(0, time.Minute)

	type payload struct {
		Counts map[string]int `json:"counts"`
	}
	calls := 0
	compute := func() (payload, error) {
		calls++
		return payload{Counts: map[string]int{"tax": 3}}, nil
	}

	first, hit, err := GetOrComputeJSON(c, "p", false, compute)
	if err != nil || hit {
		t.Fatalf("first: %v %v", hit, err)
	}
	second, hit, err := GetOrComputeJSON(c, "p", false, compute)
	if err != nil || !hit {
		t.Fatalf("second: %v %v", hit, err)
	}
	if first.Counts["tax"] != 3 || second.Counts["tax"] != 3 {
		t.Errorf("unexpected payloads %+v %+v", first, second)
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}

	// Undecodable blob is recomputed
	_ = c.Set("p", []byte("{not json"), 0)
	if _, hit, err := GetOrComputeJSON(c, "p", false, compute); err != nil || hit {
		t.Errorf("corrupt blob: hit=%v err=%v", hit, err)
	}
	if calls != 2 {
		t.Errorf("corrupt blob should recompute, calls = %d", calls)
	}
}

// brokenCache rejects every write
type brokenCache struct{ MemoryCache }

func (brokenCache) Set(string, []byte, time.Duration) error {
	return errors.New("read-only")
}

func TestLayeredCache_BackfillsEveryFasterTier(t *testing.T) {
	l1, l2 := NewMemoryCache(0, time.Minute), NewMemoryCache(0, time.Minute)
	disk := NewDiskCache(t.TempDir(), 0)
	c := NewLayeredCacheFrom(l1, l2, disk)

	if err := disk.Set("k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected a hit from the slowest tier")
	}
	for i, tier := range []Cache{l1, l2} {
		if _, ok := tier.Get("k"); !ok {
			t.Errorf("tier %d was not backfilled", i)
		}
	}

	if err := c.Delete("k"); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("Delete should reach every tier")
	}
}

func TestLayeredCache_SetReachesHealthyTiers(t *testing.T) {
	memory := NewMemoryCache(0, time.Minute)
	broken := &brokenCache{*NewMemoryCache(0, time.Minute)}
	c := NewLayeredCacheFrom(broken, memory)

	if err := c.Set("k", []byte("v"), 0); err == nil {
		t.Error("expected the failing tier's error")
	}
	if _, ok := memory.Get("k"); !ok {
		t.Error("a failing tier must not stop the write to the others")
	}
}

func TestMemoryCache_CopiesValues(t *testing.T) {
	c := NewMemoryCache(0, time.Minute)
	buf := []byte("left")
	_ = c.Set("k", buf, 0)
	buf[0] = 'X'

	got, _ := c.Get("k")
	if string(got) != "left" {
		t.Fatalf("stored value aliased the caller's buffer: %q", got)
	}
	got[0] = 'Y'
	if again, _ := c.Get("k"); string(again) != "left" {
		t.Errorf("returned value aliased the stored one: %q", again)
	}
}
