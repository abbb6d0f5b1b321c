package common

import "testing"

func TestRingBufferCap(t *testing.T) {
	rb := NewRingBuffer[int](5)
	for i := 0; i < 100; i++ {
		rb.Add(i)
	}
	if rb.Len() != 5 {
		t.Fatalf("len = %d, want 5", rb.Len())
	}
	got := rb.Get()
	want := []int{95, 96, 97, 98, 99}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Get()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
	if rb.First() != 95 || rb.Last() != 99 {
		t.Errorf("First/Last = %d/%d, want 95/99", rb.First(), rb.Last())
	}
}

func TestRingBufferReset(t *testing.T) {
	rb := NewRingBuffer[string](3)
	rb.Add("a")
	rb.Add("b")
	rb.Reset()
	if rb.Len() != 0 {
		t.Fatalf("len after reset = %d, want 0", rb.Len())
	}
	rb.Add("c")
	if rb.Len() != 1 || rb.Last() != "c" {
		t.Errorf("buffer unusable after reset: len=%d last=%q", rb.Len(), rb.Last())
	}
}

func TestRingBufferScan(t *testing.T) {
	rb := NewRingBuffer[int](4)
	for i := 1; i <= 6; i++ {
		rb.Add(i)
	}
	var seen []int
	rb.Scan(func(v int) bool {
		seen = append(seen, v)
		return v < 5
	})
	if len(seen) != 3 || seen[0] != 3 || seen[2] != 5 {
		t.Errorf("scan order wrong: %v", seen)
	}
}
