package data

import "math/rand"

// bounded reservoir: once full each new item replaces a randomly chosen one which is emitted
type shuffleBuffer struct {
	items [][]byte
	size  int
	rng   *rand.Rand
}

func newShuffleBuffer(size int, rng *rand.Rand) *shuffleBuffer {
	return &shuffleBuffer{items: make([][]byte, 0, size), size: size, rng: rng}
}

// Push adds an item, returning a randomly selected item once the buffer is full.
func (b *shuffleBuffer) Push(item []byte) ([]byte, bool) {
	if len(b.items) < b.size {
		b.items = append(b.items, item)
		return nil, false
	}
	i := b.rng.Intn(len(b.items))
	out := b.items[i]
	b.items[i] = item
	return out, true
}

// Pop removes a random item, returning false if the buffer is empty.
func (b *shuffleBuffer) Pop() ([]byte, bool) {
	n := len(b.items)
	if n == 0 {
		return nil, false
	}
	i := b.rng.Intn(n)
	out := b.items[i]
	b.items[i] = b.items[n-1]
	b.items[n-1] = nil
	b.items = b.items[:n-1]
	return out, true
}

func (b *shuffleBuffer) Len() int { return len(b.items) }
