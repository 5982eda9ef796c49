package mpegts

import "testing"

// buildPAT builds a minimal, well-formed (but unsigned/uncounted) PAT
// section body — callers append a CRC themselves where a full section is
// needed; PATItemsForEach/PMTItemsForEach only look at section_length and
// the item rows, so a placeholder CRC suffices for these table-walk tests.
func buildPAT(items []PATItem) []byte {
	body := make([]byte, 8) // table_id..last_section_number
	body[0] = 0x00
	for _, it := range items {
		var row [4]byte
		row[0] = byte(it.ProgramNumber >> 8)
		row[1] = byte(it.ProgramNumber)
		row[2] = 0xE0 | byte(it.PID>>8)
		row[3] = byte(it.PID)
		body = append(body, row[:]...)
	}
	body = append(body, 0, 0, 0, 0) // CRC placeholder
	sectionLen := len(body) - 3
	body[1] = 0xB0 | byte(sectionLen>>8)
	body[2] = byte(sectionLen)
	return body
}

func TestPATItemsForEach(t *testing.T) {
	want := []PATItem{
		{ProgramNumber: 0, PID: 0x10},
		{ProgramNumber: 1, PID: 0x100},
		{ProgramNumber: 2, PID: 0x200},
	}
	section := buildPAT(want)

	var got []PATItem
	PATItemsForEach(section, func(it PATItem) { got = append(got, it) })

	if len(got) != len(want) {
		t.Fatalf("len(got) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("item %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestPATItemsForEachRejectsWrongTableID(t *testing.T) {
	section := buildPAT([]PATItem{{ProgramNumber: 1, PID: 0x100}})
	section[0] = 0x02 // PMT table_id, not PAT

	called := false
	PATItemsForEach(section, func(PATItem) { called = true })
	if called {
		t.Fatal("expected no callback for non-PAT table_id")
	}
}

func TestPATItemsForEachTruncatedSectionIsIgnored(t *testing.T) {
	section := buildPAT([]PATItem{{ProgramNumber: 1, PID: 0x100}})
	section = section[:len(section)-2] // truncate below declared section_length

	called := false
	PATItemsForEach(section, func(PATItem) { called = true })
	if called {
		t.Fatal("expected no callback for truncated section")
	}
}

// buildPMT constructs a PMT section with no program-level descriptors and
// one ES-level descriptor per item when desc is non-nil.
func buildPMT(pcrPID uint16, items []PMTItem, descs [][]byte) []byte {
	body := make([]byte, 12) // table_id..program_info_length
	body[0] = 0x02
	body[8] = 0xE0 | byte(pcrPID>>8)
	body[9] = byte(pcrPID)
	body[10] = 0xF0
	body[11] = 0x00 // program_info_length = 0

	for i, it := range items {
		var desc []byte
		if descs != nil {
			desc = descs[i]
		}
		row := make([]byte, 5)
		row[0] = it.StreamType
		row[1] = 0xE0 | byte(it.PID>>8)
		row[2] = byte(it.PID)
		row[3] = 0xF0 | byte(len(desc)>>8)
		row[4] = byte(len(desc))
		row = append(row, desc...)
		body = append(body, row...)
	}
	body = append(body, 0, 0, 0, 0) // CRC placeholder
	sectionLen := len(body) - 3
	body[1] = 0xB0 | byte(sectionLen>>8)
	body[2] = byte(sectionLen)
	return body
}

func TestPMTPCRPID(t *testing.T) {
	section := buildPMT(0x123, nil, nil)
	pid, ok := PMTPCRPID(section)
	if !ok {
		t.Fatal("PMTPCRPID() ok = false, want true")
	}
	if pid != 0x123 {
		t.Fatalf("PMTPCRPID() = %#x, want %#x", pid, 0x123)
	}
}

func TestPMTItemsForEach(t *testing.T) {
	items := []PMTItem{
		{StreamType: 0x1B, PID: 0x100}, // H.264 video
		{StreamType: 0x0F, PID: 0x101}, // AAC audio
	}
	section := buildPMT(0x100, items, nil)

	var got []PMTItem
	PMTItemsForEach(section, func(it PMTItem) { got = append(got, it) })

	if len(got) != 2 {
		t.Fatalf("len(got) = %d, want 2", len(got))
	}
	if got[0].StreamType != 0x1B || got[0].PID != 0x100 {
		t.Errorf("item 0 = %+v", got[0])
	}
	if got[1].StreamType != 0x0F || got[1].PID != 0x101 {
		t.Errorf("item 1 = %+v", got[1])
	}
	if PESStreamType(got[0].StreamType) != PacketVideo {
		t.Error("expected StreamType 0x1B to classify as PacketVideo")
	}
	if PESStreamType(got[1].StreamType) != PacketAudio {
		t.Error("expected StreamType 0x0F to classify as PacketAudio")
	}
}

func TestPMTItemDescForEachAndSubtitleOverride(t *testing.T) {
	subDesc := []byte{0x59, 0x03, 0xAA, 0xBB, 0xCC} // tag 0x59 = subtitling descriptor
	items := []PMTItem{{StreamType: 0x06, PID: 0x102}}
	section := buildPMT(0x100, items, [][]byte{subDesc})

	var classified PacketType
	PMTItemsForEach(section, func(it PMTItem) {
		pt := PESStreamType(it.StreamType)
		it.DescForEach(func(tag byte, desc []byte) {
			if tag == 0x59 {
				pt = PacketSub
			}
		})
		classified = pt
	})

	if classified != PacketSub {
		t.Fatalf("classified = %v, want PacketSub", classified)
	}
}

func TestPESStreamTypeDefaultsToData(t *testing.T) {
	if got := PESStreamType(0xFE); got != PacketData {
		t.Fatalf("PESStreamType(0xFE) = %v, want PacketData", got)
	}
}
