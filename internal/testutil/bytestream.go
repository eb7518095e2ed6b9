package testutil

// ByteStream derives a deterministic sequence of choices from fuzz input.
// Once the input is exhausted every read returns the zero choice, so the
// same input always yields the same sequence.
type ByteStream struct {
	bytes []byte
	pos   int
}

// NewByteStream creates a stream over b.
func NewByteStream(b []byte) *ByteStream {
	return &ByteStream{bytes: b}
}

// HasMore reports whether unread bytes remain.
func (s *ByteStream) HasMore() bool {
	return s.pos < len(s.bytes)
}

// Byte returns the next byte, or 0 if exhausted.
func (s *ByteStream) Byte() byte {
	if s.pos >= len(s.bytes) {
		return 0
	}

	v := s.bytes[s.pos]
	s.pos++

	return v
}

// Index returns a value in [0, n), or 0 when n is not positive.
func (s *ByteStream) Index(n int) int {
	if n <= 0 {
		return 0
	}

	return int(s.Byte()) % n
}

// Percent reports whether the next byte falls below rate percent.
func (s *ByteStream) Percent(rate int) bool {
	return s.Index(100) < rate
}

// Bool returns the low bit of the next byte.
func (s *ByteStream) Bool() bool {
	return s.Byte()&1 == 1
}

// Pick returns one of words.
func (s *ByteStream) Pick(words []string) string {
	if len(words) == 0 {
		return ""
	}

	return words[s.Index(len(words))]
}
