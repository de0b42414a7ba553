package extract

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf16"

	"github.com/richardlehane/mscfb"
)

const (
	fibFlagsOffset   = 0x000A
	fibWhichTblStm   = 0x0200
	fibFcClxOffset   = 0x01A2
	fibLcbClxOffset  = 0x01A6
	pcdCompressedBit = 0x40000000
	minPrintableRun  = 4
)

// extractDOC recovers text from a Word 97-2003 binary document.
func extractDOC(data []byte) (string, error) {
	streams, err := readCompoundStreams(data, "WordDocument", "0Table", "1Table")
	if err != nil {
		return "", err
	}
	word, ok := streams["WordDocument"]
	if !ok {
		return "", errors.New("doc: WordDocument stream not found")
	}
	if len(word) < fibLcbClxOffset+4 {
		return printableRuns(word), nil
	}

	tableName := "0Table"
	if binary.LittleEndian.Uint16(word[fibFlagsOffset:])&fibWhichTblStm != 0 {
		tableName = "1Table"
	}
	fcClx := binary.LittleEndian.Uint32(word[fibFcClxOffset:])
	lcbClx := binary.LittleEndian.Uint32(word[fibLcbClxOffset:])
	table := streams[tableName]
	if lcbClx == 0 || uint64(fcClx)+uint64(lcbClx) > uint64(len(table)) {
		return printableRuns(word), nil
	}

	text, err := textFromClx(word, table[fcClx:fcClx+lcbClx])
	if err != nil {
		return printableRuns(word), nil
	}
	return text, nil
}

func readCompoundStreams(data []byte, names ...string) (map[string][]byte, error) {
	doc, err := mscfb.New(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("doc: %w", err)
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	out := make(map[string][]byte)
	for entry, err := doc.Next(); err == nil; entry, err = doc.Next() {
		if !wanted[entry.Name] {
			continue
		}
		buf, err := io.ReadAll(entry)
		if err != nil {
			return nil, fmt.Errorf("doc: read %s: %w", entry.Name, err)
		}
		out[entry.Name] = buf
	}
	return out, nil
}

// textFromClx walks the piece table stored in clx and decodes each piece from word.
func textFromClx(word, clx []byte) (string, error) {
	pos := 0
	for pos < len(clx) && clx[pos] == 0x01 {
		if pos+3 > len(clx) {
			return "", errors.New("doc: truncated Prc")
		}
		pos += 3 + int(binary.LittleEndian.Uint16(clx[pos+1:]))
	}
	if pos+5 > len(clx) || clx[pos] != 0x02 {
		return "", errors.New("doc: Pcdt not found")
	}
	lcb := int(binary.LittleEndian.Uint32(clx[pos+1:]))
	plc := clx[pos+5:]
	if lcb > len(plc) || lcb < 4 || (lcb-4)%12 != 0 {
		return "", errors.New("doc: invalid PlcPcd size")
	}
	plc = plc[:lcb]
	n := (lcb - 4) / 12
	pcds := plc[(n+1)*4:]

	var buf strings.Builder
	for i := 0; i < n; i++ {
		cpStart := binary.LittleEndian.Uint32(plc[i*4:])
		cpEnd := binary.LittleEndian.Uint32(plc[(i+1)*4:])
		if cpEnd < cpStart {
			return "", errors.New("doc: piece table out of order")
		}
		count := int(cpEnd - cpStart)
		fc := binary.LittleEndian.Uint32(pcds[i*8+2:])

		if fc&pcdCompressedBit != 0 {
			offset := int((fc &^ pcdCompressedBit) / 2)
			if offset+count > len(word) {
				return "", errors.New("doc: piece out of range")
			}
			for _, b := range word[offset : offset+count] {
				buf.WriteRune(wordChar(rune(cp1252(b))))
			}
			continue
		}

		offset := int(fc)
		if offset+count*2 > len(word) {
			return "", errors.New("doc: piece out of range")
		}
		units := make([]uint16, count)
		for j := range units {
			units[j] = binary.LittleEndian.Uint16(word[offset+j*2:])
		}
		for _, r := range utf16.Decode(units) {
			buf.WriteRune(wordChar(r))
		}
	}
	return stripFieldCodes(buf.String()), nil
}

// wordChar maps Word's in-band control characters to plain text.
func wordChar(r rune) rune {
	switch r {
	case 0x0D, 0x0B, 0x0C:
		return '\n'
	case 0x07:
		return '\t'
	default:
		return r
	}
}

// stripFieldCodes drops field instructions (0x13 ... 0x14) and keeps field results.
func stripFieldCodes(s string) string {
	var buf strings.Builder
	depth := 0
	inCode := false
	for _, r := range s {
		switch r {
		case 0x13:
			depth++
			inCode = true
		case 0x14:
			inCode = false
		case 0x15:
			if depth > 0 {
				depth--
			}
			inCode = false
		default:
			if !inCode {
				buf.WriteRune(r)
			}
		}
	}
	return buf.String()
}

// printableRuns is the fallback for documents without a readable piece table.
func printableRuns(data []byte) string {
	var out strings.Builder
	var run []byte
	flush := func() {
		if len(run) >= minPrintableRun {
			out.Write(run)
			out.WriteByte('\n')
		}
		run = run[:0]
	}
	for _, b := range data {
		if b == '\t' || (b >= 0x20 && b < 0x7F) {
			run = append(run, b)
			continue
		}
		flush()
	}
	flush()
	return out.String()
}

var cp1252High = [32]rune{
	0x20AC, 0xFFFD, 0x201A, 0x0192, 0x201E, 0x2026, 0x2020, 0x2021,
	0x02C6, 0x2030, 0x0160, 0x2039, 0x0152, 0xFFFD, 0x017D, 0xFFFD,
	0xFFFD, 0x2018, 0x2019, 0x201C, 0x201D, 0x2022, 0x2013, 0x2014,
	0x02DC, 0x2122, 0x0161, 0x203A, 0x0153, 0xFFFD, 0x017E, 0x0178,
}

func cp1252(b byte) rune {
	if b >= 0x80 && b < 0xA0 {
		return cp1252High[b-0x80]
	}
	return rune(b)
}
