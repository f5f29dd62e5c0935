package strx

// Coalesce returns s if non-empty, otherwise d.
func Coalesce(s, d string) string {
	if s == "" {
		return d
	}
	return s
}

// IsPrintable reports whether s is non-empty and made only of printable ASCII.
func IsPrintable(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return false
		}
	}
	return true
}

// PutC copies s into a fixed-width NUL-padded field. At most len(dst)-1
// bytes are copied so the field always carries a terminator.
func PutC(dst []byte, s string) {
	for i := range dst {
		dst[i] = 0
	}
	if len(dst) == 0 {
		return
	}
	copy(dst[:len(dst)-1], s)
}

// GetC returns the bytes of src up to the first NUL.
func GetC(src []byte) string {
	for i, b := range src {
		if b == 0 {
			return string(src[:i])
		}
	}
	return string(src)
}

// Truncate cuts s to at most n bytes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	return s[:n]
}
