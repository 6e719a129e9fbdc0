package extract

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Encoding names, in detection order.
const (
	EncodingUTF8    = "utf-8"
	EncodingUTF16   = "utf-16"
	EncodingCP1252  = "cp1252"
	EncodingLatin1  = "iso-8859-1"
	DefaultEncoding = EncodingUTF8
)

// DefaultProbeBytes is the size of the window decoded by DetectEncoding.
const DefaultProbeBytes = 1024

// A candidate check receives partial=true when the probe may end mid-file,
// in which case a multi-byte sequence cut by the window is tolerated.
type encodingCandidate struct {
	name  string
	check func(probe []byte, partial bool) bool
}

// encodingCandidates is tried in order; the first candidate whose check
// accepts the probe wins.
var encodingCandidates = []encodingCandidate{
	{name: EncodingUTF8, check: isUTF8},
	{name: EncodingUTF16, check: isUTF16},
	{name: EncodingCP1252, check: func(probe []byte, _ bool) bool { return isCP1252(probe) }},
	{name: EncodingLatin1, check: func(probe []byte, _ bool) bool { return decodesCleanly(charmap.ISO8859_1, probe) }},
}

// EncodingNames lists the detection candidates in order.
func EncodingNames() []string {
	names := make([]string, len(encodingCandidates))
	for i, c := range encodingCandidates {
		names[i] = c.name
	}
	return names
}

// DetectEncoding returns the first candidate that decodes probe without error.
// probe is treated as a window that may end mid-file. When no candidate
// decodes it, DetectEncoding returns DefaultEncoding and false.
func DetectEncoding(probe []byte) (string, bool) {
	return detectEncoding(probe, true)
}

func detectEncoding(probe []byte, partial bool) (string, bool) {
	for _, c := range encodingCandidates {
		if c.check(probe, partial) {
			return c.name, true
		}
	}
	return DefaultEncoding, false
}

// DetectFileEncoding reads up to probeBytes from path and detects its encoding.
func DetectFileEncoding(path string, probeBytes int) (string, bool, error) {
	if probeBytes <= 0 {
		probeBytes = DefaultProbeBytes
	}
	f, err := os.Open(path) //nolint:gosec // path comes from the directory walk
	if err != nil {
		return "", false, err
	}
	defer f.Close() //nolint:errcheck

	buf := make([]byte, probeBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", false, err
	}
	name, ok := detectEncoding(buf[:n], n == probeBytes)
	return name, ok, nil
}

// NewDecodingReader wraps r so it yields UTF-8 for the named encoding.
// A UTF-8 BOM is dropped.
func NewDecodingReader(r io.Reader, name string) (io.Reader, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return transform.NewReader(r, unicode.BOMOverride(transform.Nop)), nil
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

// TranscodeToUTF8 writes a UTF-8 copy of path into dir and returns its path.
// The caller removes the copy.
func TranscodeToUTF8(path, name, dir string) (string, error) {
	src, err := os.Open(path) //nolint:gosec // path comes from the directory walk
	if err != nil {
		return "", err
	}
	defer src.Close() //nolint:errcheck

	r, err := NewDecodingReader(src, name)
	if err != nil {
		return "", err
	}
	dst, err := os.CreateTemp(dir, "sonai-*.csv")
	if err != nil {
		return "", fmt.Errorf("create transcode target: %w", err)
	}
	if _, err := io.Copy(dst, r); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("transcode %s from %s: %w", path, name, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", err
	}
	return dst.Name(), nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(name) {
	case EncodingUTF8, "utf8", "":
		return nil, nil
	case EncodingUTF16, "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), nil
	case EncodingCP1252, "windows-1252":
		return charmap.Windows1252, nil
	case EncodingLatin1, "latin-1", "latin1":
		return charmap.ISO8859_1, nil
	default:
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
}

// isUTF8 accepts valid UTF-8, tolerating a rune cut off by the probe window.
func isUTF8(probe []byte, partial bool) bool {
	if utf8.Valid(probe) {
		return true
	}
	if !partial {
		return false
	}
	for cut := 1; cut < utf8.UTFMax && cut <= len(probe); cut++ {
		head, tail := probe[:len(probe)-cut], probe[len(probe)-cut:]
		if utf8.Valid(head) && !utf8.FullRune(tail) {
			return true
		}
	}
	return false
}

// isUTF16 requires a byte order mark; BOM-less UTF-16 is indistinguishable
// from binary noise in a short window.
func isUTF16(probe []byte, partial bool) bool {
	if !bytes.HasPrefix(probe, []byte{0xFF, 0xFE}) && !bytes.HasPrefix(probe, []byte{0xFE, 0xFF}) {
		return false
	}
	if len(probe)%2 == 1 {
		if !partial {
			return false
		}
		probe = probe[:len(probe)-1]
	}
	// A surrogate pair split by the window decodes to U+FFFD.
	if partial && len(probe) >= 4 {
		last := probe[len(probe)-2:]
		var unit uint16
		if probe[0] == 0xFF {
			unit = uint16(last[0]) | uint16(last[1])<<8
		} else {
			unit = uint16(last[1]) | uint16(last[0])<<8
		}
		if unit >= 0xD800 && unit <= 0xDBFF {
			probe = probe[:len(probe)-2]
		}
	}
	return decodesCleanly(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM), probe)
}

// cp1252Undefined are the bytes with no assignment in Windows-1252.
var cp1252Undefined = []byte{0x81, 0x8D, 0x8F, 0x90, 0x9D}

func isCP1252(probe []byte) bool {
	for _, b := range cp1252Undefined {
		if bytes.IndexByte(probe, b) >= 0 {
			return false
		}
	}
	return decodesCleanly(charmap.Windows1252, probe)
}

// decodesCleanly treats a replacement character in the output as a failure,
// since x/text decoders substitute rather than return an error.
func decodesCleanly(enc encoding.Encoding, probe []byte) bool {
	out, err := enc.NewDecoder().Bytes(probe)
	if err != nil {
		return false
	}
	return !bytes.ContainsRune(out, utf8.RuneError)
}
