// Package sig implements signature/pattern scanning over raw byte buffers:
// a hex-plus-wildcard pattern compiled into a Boyer-Moore-Horspool matcher
// tolerant of wildcard bytes.
package sig

// Pattern is a compiled signature ready to scan buffers with Find.
type Pattern struct {
	bytes []byte
	mask  []bool // true at index i means bytes[i] is a fully wildcard byte
	skip  [256]int
}

// Compile parses a signature string of hex nibbles and '?' wildcards into a
// Pattern. Nibbles are consumed in pairs to form bytes; any character
// outside [0-9a-fA-F?] is ignored (whitespace tolerated). A byte is
// "fully wildcard" only when both of its nibbles are '?' — a single
// wildcard nibble paired with a concrete nibble still yields a concrete
// byte, with the wildcard nibble contributing 0.
func Compile(signature string) *Pattern {
	nibbles := make([]int, 0, len(signature))
	wild := make([]bool, 0, len(signature))
	for _, r := range signature {
		switch {
		case r == '?':
			nibbles = append(nibbles, 0)
			wild = append(wild, true)
		case r >= '0' && r <= '9':
			nibbles = append(nibbles, int(r-'0'))
			wild = append(wild, false)
		case r >= 'a' && r <= 'f':
			nibbles = append(nibbles, int(r-'a'+10))
			wild = append(wild, false)
		case r >= 'A' && r <= 'F':
			nibbles = append(nibbles, int(r-'A'+10))
			wild = append(wild, false)
		default:
			// whitespace or any other separator; ignored
		}
	}

	n := len(nibbles) / 2
	p := &Pattern{
		bytes: make([]byte, n),
		mask:  make([]bool, n),
	}
	for i := 0; i < n; i++ {
		hi, lo := nibbles[2*i], nibbles[2*i+1]
		hiWild, loWild := wild[2*i], wild[2*i+1]
		p.bytes[i] = byte(hi<<4 | lo)
		p.mask[i] = hiWild && loWild
	}
	p.buildSkipTable()
	return p
}

func (p *Pattern) buildSkipTable() {
	n := len(p.bytes)
	if n == 0 {
		return
	}
	end := n - 1

	unknown := n
	for i := 0; i < end; i++ {
		if p.mask[i] {
			unknown = end - i
		}
	}

	for i := 0; i < end; i++ {
		if !p.mask[i] {
			p.skip[p.bytes[i]] = end - i
		}
	}
	for b := 0; b < 256; b++ {
		if p.skip[b] == 0 || p.skip[b] > unknown {
			p.skip[b] = unknown
		}
	}
}

// Len returns the number of bytes the compiled pattern matches against.
func (p *Pattern) Len() int {
	return len(p.bytes)
}

// matchAt reports whether the pattern matches buf starting at pos. Caller
// must ensure pos+len(p.bytes) <= len(buf).
func (p *Pattern) matchAt(buf []byte, pos int) bool {
	for i, b := range p.bytes {
		if p.mask[i] {
			continue
		}
		if buf[pos+i] != b {
			return false
		}
	}
	return true
}

// Find returns the lowest index in buf at which the pattern matches, or -1
// if it does not occur. An empty pattern never matches.
func (p *Pattern) Find(buf []byte) int {
	n := len(p.bytes)
	if n == 0 {
		return -1
	}
	bufLen := len(buf)
	end := n - 1

	cur := 0
	for cur+n <= bufLen {
		if p.matchAt(buf, cur) {
			return cur
		}
		cur += p.skip[buf[cur+end]]
	}
	return -1
}

// Scan compiles signature and searches buf for the first match, returning
// the matched offset and true, or (0, false) if not found.
func Scan(signature string, buf []byte) (int, bool) {
	p := Compile(signature)
	off := p.Find(buf)
	if off < 0 {
		return 0, false
	}
	return off, true
}
