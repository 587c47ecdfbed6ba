package heap

import (
	"unsafe"

	"pintgo/kernel/mm"
)

// freeList is a singly linked intrusive list threaded through the memory of
// the free blocks themselves: each free block stores the address of the next
// free block in its first word. The addresses are non-owning; their validity
// is guaranteed by the allocator's own bookkeeping, which is the one place in
// the kernel where that exception to normal ownership is acceptable.
type freeList struct {
	head uintptr
	tail uintptr
	size int
}

func nextOf(block uintptr) uintptr {
	return *(*uintptr)(unsafe.Pointer(block))
}

func setNext(block, next uintptr) {
	*(*uintptr)(unsafe.Pointer(block)) = next
}

// pushFront inserts a block at the list head. Freshly freed blocks go to the
// front so the most recently touched block is handed out first.
func (l *freeList) pushFront(block uintptr) {
	setNext(block, l.head)
	l.head = block
	if l.tail == 0 {
		l.tail = block
	}
	l.size++
}

// pushBack appends a block at the list tail. Seeding a freshly carved arena
// uses pushBack so the blocks enter the list in address order.
func (l *freeList) pushBack(block uintptr) {
	setNext(block, 0)
	if l.tail == 0 {
		l.head = block
	} else {
		setNext(l.tail, block)
	}
	l.tail = block
	l.size++
}

// popFront removes and returns the block at the list head, or 0 when the list
// is empty.
func (l *freeList) popFront() uintptr {
	block := l.head
	if block == 0 {
		return 0
	}

	l.head = nextOf(block)
	if l.head == 0 {
		l.tail = 0
	}
	l.size--

	return block
}

// removePageBlocks unlinks every block that lies within the page starting at
// pageAddr and returns the number of blocks removed. The list carries no back
// pointers so removal is a linear scan with predecessor tracking.
func (l *freeList) removePageBlocks(pageAddr uintptr) int {
	var (
		removed int
		prev    uintptr
		cur     = l.head
	)

	for cur != 0 {
		next := nextOf(cur)
		if cur&^uintptr(mm.PageOffsetMask) == pageAddr {
			if prev == 0 {
				l.head = next
			} else {
				setNext(prev, next)
			}
			if cur == l.tail {
				l.tail = prev
			}
			removed++
		} else {
			prev = cur
		}
		cur = next
	}

	l.size -= removed
	return removed
}
