package common

const DefaultArenaChunkSize = 4096

// Arena hands out byte slices carved from larger chunks. Memory is released
// only in bulk by Clear. Not safe for concurrent use.
type Arena struct {
	chunkSize int
	chunks    [][]byte
	curr      int
	used      int
}

func NewArena(chunkSize int) *Arena {
	if chunkSize <= 0 {
		chunkSize = DefaultArenaChunkSize
	}
	return &Arena{chunkSize: chunkSize}
}

// Alloc returns a zeroed slice of n bytes that stays valid until Clear.
func (a *Arena) Alloc(n int) []byte {
	if n <= 0 {
		return nil
	}
	a.used += n
	if n > a.chunkSize {
		// Oversized requests get a dedicated chunk, kept behind the current one
		buf := make([]byte, n)
		a.chunks = append(a.chunks, nil)
		copy(a.chunks[a.curr+1:], a.chunks[a.curr:])
		a.chunks[a.curr] = buf
		a.curr++
		return buf
	}
	for {
		if a.curr < len(a.chunks) {
			chunk := a.chunks[a.curr]
			if len(chunk)+n <= cap(chunk) {
				off := len(chunk)
				chunk = chunk[:off+n]
				a.chunks[a.curr] = chunk
				buf := chunk[off : off+n : off+n]
				for i := range buf {
					buf[i] = 0
				}
				return buf
			}
			a.curr++
			continue
		}
		a.chunks = append(a.chunks, make([]byte, 0, a.chunkSize))
	}
}

// Copy allocates a copy of src.
func (a *Arena) Copy(src []byte) []byte {
	if src == nil {
		return nil
	}
	dst := a.Alloc(len(src))
	if dst == nil {
		return src[:0:0]
	}
	copy(dst, src)
	return dst
}

// Clear invalidates every slice handed out so far. Regular chunks are kept
// for reuse, oversized ones are dropped.
func (a *Arena) Clear() {
	kept := a.chunks[:0]
	for _, chunk := range a.chunks {
		if cap(chunk) != a.chunkSize {
			continue
		}
		kept = append(kept, chunk[:0])
	}
	for i := len(kept); i < len(a.chunks); i++ {
		a.chunks[i] = nil
	}
	a.chunks = kept
	a.curr = 0
	a.used = 0
}

// Size is the number of bytes requested since the last Clear.
func (a *Arena) Size() int { return a.used }

// Reserved is the number of bytes held in chunks.
func (a *Arena) Reserved() int {
	total := 0
	for _, chunk := range a.chunks {
		total += cap(chunk)
	}
	return total
}
