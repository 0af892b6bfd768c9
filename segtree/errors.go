package segtree

import "errors"

var (
	// ErrInvalidSize 元素数量必须不小于 1。
	ErrInvalidSize = errors.New("size must be at least 1")
	// ErrInvalidRange 区间越界或左右端点颠倒。
	ErrInvalidRange = errors.New("invalid range")
)
