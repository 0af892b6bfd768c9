// Package segtree 提供了一棵支持区间加法与区间求和的线段树（Segment Tree）。
//
// 与常规的懒标记线段树不同，本实现采用"延迟不下推"（deferred lazy）方案：
// 区间更新只在分解出的覆盖节点上记录每元素增量，从不向子孙节点传播；
// 查询时通过向上爬升累加祖先的懒标记来还原真实区间和。
// 更新和查询的时间复杂度均为 O(log² N)（每个操作访问 O(log N) 个覆盖节点，
// 每个覆盖节点再做一次 O(log N) 的祖先爬升），以换取无需递归下推/上拉的简单实现。
//
// 核心不变量：对任意节点 idx，
//
//	trueSum(idx) = tree[idx] + Σ(lazy[a] * length(idx))，a 取遍 idx 的真祖先
//
// 即 tree[idx] 记录了所有分解落在 idx 或其子孙上的更新，
// 而完全覆盖 idx 的更新只记录在某个真祖先的 lazy 上，由查询按需结算。
//
// 在实际应用中，例如库存管理（对某个商品分类整体调价后查询总库存）、
// 销量统计（滑动窗口的实时累计值）等区间聚合场景中非常有用。
package segtree

import "fmt"

// Number 约束了树的元素类型：支持加法和与区间长度的数乘，零值即加法单位元。
// 注意：树本身不做溢出检测，调用方需根据 元素数量 × 最大增量 选择足够宽的类型。
type Number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Tree 是延迟懒标记线段树。
// 节点编号空间为 1..2n-1（0 号不使用）：元素 i 对应叶子 n+i，
// 内部节点 idx 的左右孩子分别为 2*idx 和 2*idx+1。
// 三个数组在构造时一次性分配，之后不再扩容。
//
// 本结构不是并发安全的：同一实例上交错的 Update/Update 或 Update/Query
// 会破坏核心不变量，调用方必须自行串行化（例如一把写锁或单属主约定）。
type Tree[T Number] struct {
	tree []T   // 节点累计和。注意其语义由核心不变量定义，并非"子树当前真实和"。
	lazy []T   // 每元素待结算增量，只记录在更新分解出的节点上，从不下推。
	lo   []int // 节点覆盖的元素区间下界（含）。
	hi   []int // 节点覆盖的元素区间上界（含）。
	n    int   // 元素数量。
}

// New 创建一棵包含 n 个元素的线段树，所有元素的逻辑初值为 0。
// n 必须不小于 1，否则返回 ErrInvalidSize。
func New[T Number](n int) (*Tree[T], error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: n=%d", ErrInvalidSize, n)
	}

	t := &Tree[T]{
		tree: make([]T, 2*n),
		lazy: make([]T, 2*n),
		lo:   make([]int, 2*n),
		hi:   make([]int, 2*n),
		n:    n,
	}
	t.build()
	return t, nil
}

// build 自底向上计算每个节点覆盖的元素区间，确立静态的树拓扑。
// 叶子 n+i 覆盖 [i, i]；内部节点覆盖其两个孩子区间的并。
// 区间按结构归纳计算而非假定满二叉，因此对任意 n（包括非 2 的幂）均成立。
func (t *Tree[T]) build() {
	for i := range t.n {
		t.lo[t.n+i] = i
		t.hi[t.n+i] = i
	}
	for idx := t.n - 1; idx >= 1; idx-- {
		left, right := 2*idx, 2*idx+1
		t.lo[idx] = min(t.lo[left], t.lo[right])
		t.hi[idx] = max(t.hi[left], t.hi[right])
	}
}

// Len 返回树管理的元素数量。
func (t *Tree[T]) Len() int {
	return t.n
}

// rangeOf 返回节点 idx 覆盖的元素区间 [L, R]（含两端）。
func (t *Tree[T]) rangeOf(idx int) (int, int) {
	return t.lo[idx], t.hi[idx]
}

// length 返回节点 idx 覆盖区间的元素个数。
func (t *Tree[T]) length(idx int) int {
	return t.hi[idx] - t.lo[idx] + 1
}

// checkRange 校验区间前置条件 0 <= l <= r < n。
// 校验失败直接拒绝而不做任何修改；静默截断会破坏核心不变量。
func (t *Tree[T]) checkRange(l, r int) error {
	if l < 0 || r >= t.n || l > r {
		return fmt.Errorf("%w: [%d, %d] with size %d", ErrInvalidRange, l, r, t.n)
	}
	return nil
}

// span 将元素区间 [l, r] 分解为恰好覆盖它的极大不相交节点集，
// 并对每个选中节点调用 visit。
// 采用标准的自底向上分解规则：l 是右孩子则选中并右移，r 是左孩子则选中并左移，
// 随后双双上移一层；l 与 r 相遇时选中最后一个节点。
// 产生的即为迭代式线段树的 O(log N) 规范覆盖。
func (t *Tree[T]) span(l, r int, visit func(idx int)) {
	l += t.n
	r += t.n
	for l < r {
		if l&1 == 1 {
			visit(l)
			l++
		}
		if r&1 == 0 {
			visit(r)
			r--
		}
		l >>= 1
		r >>= 1
	}
	if l == r {
		visit(l)
	}
}

// Update 对区间 [l, r] 内的每个元素逻辑上加 delta。
// 前置条件 0 <= l <= r < n，否则返回 ErrInvalidRange 且不做任何修改。
//
// 对规范覆盖中的每个节点 idx：
//  1. 把 delta*length(idx) 累加到 tree[idx] 及其到根路径上的每个祖先，
//     保证祖先的累计和反映发生在 idx 区间内部的增量
//     （同一次调用选中的节点两两不相交，爬升可以叠加）。
//  2. 把 delta 累加到 lazy[idx] 本身——这是 idx 的子孙收到过每元素增量
//     的唯一记录，留待查询时结算。
//
// 更新从不触碰选中节点的任何子孙，这是"延迟"而非"下推"方案的定义性选择。
func (t *Tree[T]) Update(l, r int, delta T) error {
	if err := t.checkRange(l, r); err != nil {
		return err
	}

	t.span(l, r, func(idx int) {
		total := delta * T(t.length(idx))
		for a := idx; a >= 1; a >>= 1 {
			t.tree[a] += total
		}
		t.lazy[idx] += delta
	})
	return nil
}

// Query 返回区间 [l, r] 内当前元素值的真实和。
// 前置条件 0 <= l <= r < n，否则返回 ErrInvalidRange。
//
// 对规范覆盖中的每个节点 idx，其贡献为
//
//	tree[idx] + lazyClimb(idx) * length(idx)
//
// 其中 lazyClimb 自 idx 的父节点爬升至根，累加沿途的 lazy
// （idx 自身的 lazy 已在更新时折算进 tree[idx]，不再重复计入）。
// 由核心不变量可知：分解落在 idx 或其下方的更新已含于 tree[idx]；
// 分解落在真祖先上的更新只记录在该祖先的 lazy 里，由爬升找回。
func (t *Tree[T]) Query(l, r int) (T, error) {
	if err := t.checkRange(l, r); err != nil {
		return 0, err
	}

	var sum T
	t.span(l, r, func(idx int) {
		sum += t.tree[idx] + t.lazyClimb(idx)*T(t.length(idx))
	})
	return sum, nil
}

// lazyClimb 累加 idx 所有真祖先上的懒标记（不含 idx 自身）。
func (t *Tree[T]) lazyClimb(idx int) T {
	var acc T
	for a := idx >> 1; a >= 1; a >>= 1 {
		acc += t.lazy[a]
	}
	return acc
}
