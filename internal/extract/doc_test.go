package extract

import (
	"encoding/binary"
	"os"
	"strings"
	"testing"
	"unicode/utf16"
)

// buildClx returns a CLX with a single Prc followed by a Pcdt describing pieces.
func buildClx(cps []uint32, fcs []uint32) []byte {
	var plc []byte
	for _, cp := range cps {
		plc = binary.LittleEndian.AppendUint32(plc, cp)
	}
	for _, fc := range fcs {
		plc = append(plc, 0, 0)
		plc = binary.LittleEndian.AppendUint32(plc, fc)
		plc = append(plc, 0, 0)
	}
	clx := []byte{0x01, 0x02, 0x00, 0xAA, 0xBB}
	clx = append(clx, 0x02)
	clx = binary.LittleEndian.AppendUint32(clx, uint32(len(plc)))
	return append(clx, plc...)
}

func TestTextFromClxCompressedAndUnicode(t *testing.T) {
	word := make([]byte, 0x200)
	copy(word[0x100:], "Firewall rules\r")
	unicodeAt := 0x140
	for i, u := range utf16.Encode([]rune("Zugriff\x07ok")) {
		binary.LittleEndian.PutUint16(word[unicodeAt+i*2:], u)
	}

	clx := buildClx(
		[]uint32{0, 15, 25},
		[]uint32{pcdCompressedBit | 0x200, uint32(unicodeAt)},
	)
	got, err := textFromClx(word, clx)
	if err != nil {
		t.Fatalf("textFromClx: %v", err)
	}
	if got != "Firewall rules\nZugriff\tok" {
		t.Fatalf("text = %q", got)
	}
}

func TestTextFromClxRejectsBadTables(t *testing.T) {
	if _, err := textFromClx(nil, []byte{0x05}); err == nil {
		t.Fatal("expected error without Pcdt")
	}
	clx := buildClx([]uint32{0, 100}, []uint32{0})
	if _, err := textFromClx(make([]byte, 10), clx); err == nil {
		t.Fatal("expected out of range error")
	}
}

func TestStripFieldCodes(t *testing.T) {
	in := "See \x13 HYPERLINK \"http://x\" \x14the site\x15 now"
	if got := stripFieldCodes(in); got != "See the site now" {
		t.Fatalf("stripFieldCodes = %q", got)
	}
}

func TestPrintableRuns(t *testing.T) {
	data := append([]byte{0x00, 0x01, 'a', 'b'}, []byte("Encryption at rest\x00\x00zz")...)
	got := printableRuns(data)
	if !strings.Contains(got, "Encryption at rest") || strings.Contains(got, "zz") {
		t.Fatalf("printableRuns = %q", got)
	}
}

func TestExtractDOCReadsPieceTableFromCompoundFile(t *testing.T) {
	data, err := os.ReadFile("testdata/policy.doc")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}

	streams, err := readCompoundStreams(data, "WordDocument", "1Table")
	if err != nil {
		t.Fatalf("readCompoundStreams: %v", err)
	}
	if len(streams["WordDocument"]) != 4096 || len(streams["1Table"]) != 4096 {
		t.Fatalf("unexpected stream sizes: word=%d table=%d", len(streams["WordDocument"]), len(streams["1Table"]))
	}

	raw, err := extractDOC(data)
	if err != nil {
		t.Fatalf("extractDOC: %v", err)
	}
	if strings.Contains(raw, "HYPERLINK") {
		t.Fatalf("field instruction leaked: %q", raw)
	}
	want := "Incident Response Policy\n\nAll servers log access events.\nZugriff für Administratoren wird geprüft."
	if got := Normalize(raw); got != want {
		t.Fatalf("normalized text = %q, want %q", got, want)
	}
}
