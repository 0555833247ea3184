package xrefcore

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xrefdb/elixir/pkg/family"
)

// EncodeUint32BE and DecodeUint32BE give blob numbers a stable,
// lexicographically-ordered big-endian encoding for use as map keys.
func EncodeUint32BE(n uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], n)
	return buf[:]
}

// DecodeUint32BE is the inverse of EncodeUint32BE.
func DecodeUint32BE(b []byte) (uint32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("xrefcore: want 4 bytes, got %d", len(b))
	}
	return binary.BigEndian.Uint32(b), nil
}

// ---------------------------------------------------------------------------
// defs: identifier -> comma-joined "<blobnum><kindcode><line><family>"
// records.
// ---------------------------------------------------------------------------

// DefRecord is one entry of the defs map's value list.
type DefRecord struct {
	Blob   uint32
	Line   int
	Kind   string
	Family family.Family
}

var kindToCode = map[string]byte{
	"config":    'c',
	"define":    'd',
	"enum":      'e',
	"enumerator": 'E',
	"function":  'f',
	"label":     'l',
	"macro":     'M',
	"member":    'm',
	"prototype": 'p',
	"struct":    's',
	"typedef":   't',
	"union":     'u',
	"variable":  'v',
	"externvar": 'x',
	// Extensions for languages beyond C/Kconfig/device-tree, needed
	// because this Definition Extractor is multi-language via
	// tree-sitter rather than C-only via ctags.
	"class":     'C',
	"interface": 'I',
	"trait":     'T',
	"impl":      'N',
	"other":     'o',
}

var codeToKind = func() map[byte]string {
	m := make(map[byte]string, len(kindToCode))
	for k, v := range kindToCode {
		m[v] = k
	}
	return m
}()

// EncodeDefList serializes records into the defs map's value format: each
// record followed by a trailing comma, so concatenating two encodings
// (as Batch.Append does to grow an identifier's list a blob at a time)
// yields another valid encoding without needing to know the existing
// value's contents.
func EncodeDefList(records []DefRecord) ([]byte, error) {
	var buf bytes.Buffer
	for _, r := range records {
		code, ok := kindToCode[r.Kind]
		if !ok {
			return nil, fmt.Errorf("xrefcore: unknown definition kind %q", r.Kind)
		}
		fmt.Fprintf(&buf, "%d%c%d%s,", r.Blob, code, r.Line, r.Family)
	}
	return buf.Bytes(), nil
}

// DecodeDefList is the inverse of EncodeDefList.
func DecodeDefList(data []byte) ([]DefRecord, error) {
	body := strings.TrimSuffix(string(data), ",")
	if body == "" {
		return nil, nil
	}

	var records []DefRecord
	for _, p := range strings.Split(body, ",") {
		rec, err := parseDefEntry(p)
		if err != nil {
			return nil, fmt.Errorf("xrefcore: malformed def entry %q: %w", p, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// DefListFamilies returns the distinct families present in records,
// sorted, for callers that want a cheap membership check without
// re-scanning a decoded list entry by entry.
func DefListFamilies(records []DefRecord) []family.Family {
	seen := map[family.Family]bool{}
	for _, r := range records {
		seen[r.Family] = true
	}
	out := make([]family.Family, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func parseDefEntry(p string) (DefRecord, error) {
	i := 0
	for i < len(p) && p[i] >= '0' && p[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(p) {
		return DefRecord{}, fmt.Errorf("missing blob number or kind code")
	}
	blob, err := strconv.ParseUint(p[:i], 10, 32)
	if err != nil {
		return DefRecord{}, err
	}
	code := p[i]
	kind, ok := codeToKind[code]
	if !ok {
		return DefRecord{}, fmt.Errorf("unknown kind code %q", code)
	}
	i++
	lineStart := i
	for i < len(p) && p[i] >= '0' && p[i] <= '9' {
		i++
	}
	if i == lineStart || i >= len(p) {
		return DefRecord{}, fmt.Errorf("missing line number or family")
	}
	line, err := strconv.Atoi(p[lineStart:i])
	if err != nil {
		return DefRecord{}, err
	}
	fam := p[i:]
	return DefRecord{Blob: uint32(blob), Line: line, Kind: kind, Family: family.Family(fam)}, nil
}

// ---------------------------------------------------------------------------
// refs: identifier -> "<blobnum>:<lines>:<family>\n" records.
// ---------------------------------------------------------------------------

// RefRecord is one entry of the refs map's value list: every
// line on which the identifier is referenced within a single blob, for a
// single family.
type RefRecord struct {
	Blob   uint32
	Family family.Family
	Lines  []int
}

// EncodeLineList renders line numbers as an ascending, deduplicated,
// comma-joined decimal string.
func EncodeLineList(lines []int) string {
	sorted := append([]int{}, lines...)
	sort.Ints(sorted)
	var out []string
	for i, l := range sorted {
		if i > 0 && sorted[i-1] == l {
			continue
		}
		out = append(out, strconv.Itoa(l))
	}
	return strings.Join(out, ",")
}

// DecodeLineList is the inverse of EncodeLineList.
func DecodeLineList(s string) ([]int, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	lines := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("xrefcore: malformed line list %q: %w", s, err)
		}
		lines = append(lines, n)
	}
	return lines, nil
}

// EncodeRefList serializes records into the refs map's value format.
func EncodeRefList(records []RefRecord) []byte {
	var buf bytes.Buffer
	for _, r := range records {
		fmt.Fprintf(&buf, "%d:%s:%s\n", r.Blob, EncodeLineList(r.Lines), r.Family)
	}
	return buf.Bytes()
}

// DecodeRefList is the inverse of EncodeRefList.
func DecodeRefList(data []byte) ([]RefRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var records []RefRecord
	for _, line := range bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		parts := strings.SplitN(string(line), ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("xrefcore: malformed ref record %q", line)
		}
		blob, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("xrefcore: malformed ref blob number %q: %w", parts[0], err)
		}
		lines, err := DecodeLineList(parts[1])
		if err != nil {
			return nil, err
		}
		records = append(records, RefRecord{Blob: uint32(blob), Lines: lines, Family: family.Family(parts[2])})
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// docs: identifier -> "<blobnum>:<startline>:<endline>:<family>\n"
// records, the doc-comment map, using the same per-entry-terminator
// append-safety as EncodeRefList.
// ---------------------------------------------------------------------------

// DocRecord is one doc-comment span immediately preceding a definition.
type DocRecord struct {
	Blob      uint32
	StartLine int
	EndLine   int
	Family    family.Family
}

// EncodeDocList serializes records into the docs map's value format.
func EncodeDocList(records []DocRecord) []byte {
	var buf bytes.Buffer
	for _, r := range records {
		fmt.Fprintf(&buf, "%d:%d:%d:%s\n", r.Blob, r.StartLine, r.EndLine, r.Family)
	}
	return buf.Bytes()
}

// DecodeDocList is the inverse of EncodeDocList.
func DecodeDocList(data []byte) ([]DocRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var records []DocRecord
	for _, line := range bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		parts := strings.SplitN(string(line), ":", 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("xrefcore: malformed doc record %q", line)
		}
		blob, err := strconv.ParseUint(parts[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("xrefcore: malformed doc blob number %q: %w", parts[0], err)
		}
		start, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("xrefcore: malformed doc start line %q: %w", parts[1], err)
		}
		end, err := strconv.Atoi(parts[2])
		if err != nil {
			return nil, fmt.Errorf("xrefcore: malformed doc end line %q: %w", parts[2], err)
		}
		records = append(records, DocRecord{Blob: uint32(blob), StartLine: start, EndLine: end, Family: family.Family(parts[3])})
	}
	return records, nil
}

// ---------------------------------------------------------------------------
// tag.tree: tag name -> ordered list of (path, blobnum).
// ---------------------------------------------------------------------------

// TreeEntryRecord is one (path, blob) pair in a tag's tree.
type TreeEntryRecord struct {
	Blob uint32
	Path string
}

// EncodeTagTree renders entries in the order given. Order is
// significant: it is the stable order the Repo Adapter returned them in.
func EncodeTagTree(entries []TreeEntryRecord) []byte {
	var buf bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&buf, "%d %s\n", e.Blob, e.Path)
	}
	return buf.Bytes()
}

// DecodeTagTree is the inverse of EncodeTagTree.
func DecodeTagTree(data []byte) ([]TreeEntryRecord, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var entries []TreeEntryRecord
	for _, line := range bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		parts := bytes.SplitN(line, []byte(" "), 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("xrefcore: malformed tree entry %q", line)
		}
		blob, err := strconv.ParseUint(string(parts[0]), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("xrefcore: malformed tree blob number %q: %w", parts[0], err)
		}
		entries = append(entries, TreeEntryRecord{Blob: uint32(blob), Path: string(parts[1])})
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// blob.num_to_paths: blob number -> set of paths (accumulated, §3).
// ---------------------------------------------------------------------------

// EncodePathSet renders a sorted, deduplicated, newline-joined path list.
func EncodePathSet(paths []string) []byte {
	uniq := map[string]bool{}
	for _, p := range paths {
		uniq[p] = true
	}
	out := make([]string, 0, len(uniq))
	for p := range uniq {
		out = append(out, p)
	}
	sort.Strings(out)
	return []byte(strings.Join(out, "\n"))
}

// DecodePathSet is the inverse of EncodePathSet.
func DecodePathSet(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	return strings.Split(string(data), "\n")
}
