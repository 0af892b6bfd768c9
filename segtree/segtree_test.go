package segtree

import (
	"errors"
	"math/rand"
	"testing"
)

func TestNewRejectsInvalidSize(t *testing.T) {
	for _, n := range []int{0, -1, -100} {
		if _, err := New[int64](n); !errors.Is(err, ErrInvalidSize) {
			t.Errorf("New(%d): expected ErrInvalidSize, got %v", n, err)
		}
	}
}

func TestConstructionInvariants(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 6, 7, 8, 13, 64, 100} {
		tree, err := New[int64](n)
		if err != nil {
			t.Fatalf("New(%d): unexpected error %v", n, err)
		}
		if tree.Len() != n {
			t.Errorf("n=%d: Len() = %d", n, tree.Len())
		}
		for i := range n {
			lo, hi := tree.rangeOf(n + i)
			if lo != i || hi != i {
				t.Errorf("n=%d: leaf %d covers [%d, %d], want [%d, %d]", n, n+i, lo, hi, i, i)
			}
		}
		lo, hi := tree.rangeOf(1)
		if n > 1 && (lo != 0 || hi != n-1) {
			t.Errorf("n=%d: root covers [%d, %d], want [0, %d]", n, lo, hi, n-1)
		}
	}
}

func TestInvalidRange(t *testing.T) {
	tree, _ := New[int64](10)

	cases := []struct{ l, r int }{
		{-1, 5}, {0, 10}, {5, 4}, {-3, -1}, {10, 12},
	}
	for _, c := range cases {
		if err := tree.Update(c.l, c.r, 1); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("Update(%d, %d): expected ErrInvalidRange, got %v", c.l, c.r, err)
		}
		if _, err := tree.Query(c.l, c.r); !errors.Is(err, ErrInvalidRange) {
			t.Errorf("Query(%d, %d): expected ErrInvalidRange, got %v", c.l, c.r, err)
		}
	}

	// 被拒绝的更新不得留下任何痕迹。
	sum, err := tree.Query(0, 9)
	if err != nil {
		t.Fatalf("Query(0, 9): %v", err)
	}
	if sum != 0 {
		t.Errorf("rejected updates must not mutate state, got sum %d", sum)
	}
}

func TestSingleRangeAdd(t *testing.T) {
	tree, _ := New[int64](8)
	if err := tree.Update(2, 5, 3); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if got := mustQuery(t, tree, 0, 7); got != 12 {
		t.Errorf("Query(0, 7) = %d, want 12", got)
	}
	if got := mustQuery(t, tree, 2, 3); got != 6 {
		t.Errorf("Query(2, 3) = %d, want 6", got)
	}
}

func TestOverlappingUpdates(t *testing.T) {
	tree, _ := New[int64](6)
	mustUpdate(t, tree, 0, 2, 5)
	mustUpdate(t, tree, 1, 4, 2)

	if got := mustQuery(t, tree, 0, 5); got != 23 {
		t.Errorf("Query(0, 5) = %d, want 23", got)
	}
	if got := mustQuery(t, tree, 2, 3); got != 9 {
		t.Errorf("Query(2, 3) = %d, want 9", got)
	}
}

func TestSingleElement(t *testing.T) {
	tree, _ := New[int64](1)
	mustUpdate(t, tree, 0, 0, 7)
	if got := mustQuery(t, tree, 0, 0); got != 7 {
		t.Errorf("Query(0, 0) = %d, want 7", got)
	}
}

func TestDisjointUpdates(t *testing.T) {
	tree, _ := New[int64](10)
	mustUpdate(t, tree, 0, 2, 4)
	mustUpdate(t, tree, 6, 9, 11)

	if got := mustQuery(t, tree, 0, 2); got != 12 {
		t.Errorf("Query(0, 2) = %d, want 12", got)
	}
	if got := mustQuery(t, tree, 6, 9); got != 44 {
		t.Errorf("Query(6, 9) = %d, want 44", got)
	}
	if got := mustQuery(t, tree, 3, 5); got != 0 {
		t.Errorf("Query(3, 5) = %d, want 0", got)
	}
	if got := mustQuery(t, tree, 0, 9); got != 56 {
		t.Errorf("Query(0, 9) = %d, want 56", got)
	}
}

func TestRepeatedUpdatesAccumulate(t *testing.T) {
	tree, _ := New[int64](5)
	mustUpdate(t, tree, 0, 4, 2)
	mustUpdate(t, tree, 0, 4, 3)
	if got := mustQuery(t, tree, 0, 4); got != 25 {
		t.Errorf("Query(0, 4) = %d, want 25", got)
	}
}

func TestZeroDeltaIsNoop(t *testing.T) {
	tree, _ := New[int64](12)
	mustUpdate(t, tree, 3, 8, 7)

	before := make([]int64, 12)
	for i := range 12 {
		before[i] = mustQuery(t, tree, i, i)
	}

	mustUpdate(t, tree, 0, 11, 0)
	mustUpdate(t, tree, 5, 5, 0)

	for i := range 12 {
		if got := mustQuery(t, tree, i, i); got != before[i] {
			t.Errorf("Query(%d, %d) changed after zero-delta update: %d -> %d", i, i, before[i], got)
		}
	}
}

func TestPointConsistency(t *testing.T) {
	const n = 16
	tree, _ := New[int64](n)

	updates := []struct {
		l, r  int
		delta int64
	}{
		{0, 15, 1}, {4, 11, 3}, {7, 7, -2}, {0, 3, 10}, {12, 15, 5},
	}
	for _, u := range updates {
		mustUpdate(t, tree, u.l, u.r, u.delta)
	}

	for i := range n {
		var want int64
		for _, u := range updates {
			if u.l <= i && i <= u.r {
				want += u.delta
			}
		}
		if got := mustQuery(t, tree, i, i); got != want {
			t.Errorf("Query(%d, %d) = %d, want %d", i, i, got, want)
		}
	}
}

func TestTotalSumInvariant(t *testing.T) {
	const n = 37
	tree, _ := New[int64](n)
	rng := rand.New(rand.NewSource(7))

	var want int64
	for range 500 {
		l := rng.Intn(n)
		r := l + rng.Intn(n-l)
		delta := int64(rng.Intn(201) - 100)
		mustUpdate(t, tree, l, r, delta)
		want += delta * int64(r-l+1)

		if got := mustQuery(t, tree, 0, n-1); got != want {
			t.Fatalf("Query(0, %d) = %d, want %d", n-1, got, want)
		}
	}
}

// TestAgainstNaive 用朴素数组交叉验证随机更新/查询序列。
func TestAgainstNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, n := range []int{1, 2, 3, 5, 8, 13, 31, 50} {
		tree, err := New[int64](n)
		if err != nil {
			t.Fatalf("New(%d): %v", n, err)
		}
		naive := make([]int64, n)

		for op := range 2000 {
			l := rng.Intn(n)
			r := l + rng.Intn(n-l)

			if rng.Intn(2) == 0 {
				delta := int64(rng.Intn(41) - 20)
				mustUpdate(t, tree, l, r, delta)
				for i := l; i <= r; i++ {
					naive[i] += delta
				}
			} else {
				var want int64
				for i := l; i <= r; i++ {
					want += naive[i]
				}
				if got := mustQuery(t, tree, l, r); got != want {
					t.Fatalf("n=%d op=%d: Query(%d, %d) = %d, want %d", n, op, l, r, got, want)
				}
			}
		}
	}
}

func TestFloatElements(t *testing.T) {
	tree, _ := New[float64](4)
	if err := tree.Update(0, 3, 0.5); err != nil {
		t.Fatalf("Update: %v", err)
	}
	sum, err := tree.Query(0, 3)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if sum != 2.0 {
		t.Errorf("Query(0, 3) = %v, want 2.0", sum)
	}
}

func mustUpdate(t *testing.T, tree *Tree[int64], l, r int, delta int64) {
	t.Helper()
	if err := tree.Update(l, r, delta); err != nil {
		t.Fatalf("Update(%d, %d, %d): %v", l, r, delta, err)
	}
}

func mustQuery(t *testing.T, tree *Tree[int64], l, r int) int64 {
	t.Helper()
	sum, err := tree.Query(l, r)
	if err != nil {
		t.Fatalf("Query(%d, %d): %v", l, r, err)
	}
	return sum
}

func BenchmarkUpdate(b *testing.B) {
	const n = 1 << 20
	tree, _ := New[int64](n)
	rng := rand.New(rand.NewSource(1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l := rng.Intn(n)
		r := l + rng.Intn(n-l)
		_ = tree.Update(l, r, 1)
	}
}

func BenchmarkQuery(b *testing.B) {
	const n = 1 << 20
	tree, _ := New[int64](n)
	for i := 0; i < 1000; i++ {
		_ = tree.Update(i*1000, i*1000+999, int64(i))
	}
	rng := rand.New(rand.NewSource(2))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l := rng.Intn(n)
		r := l + rng.Intn(n-l)
		_, _ = tree.Query(l, r)
	}
}
