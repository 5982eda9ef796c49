package mpegts

// PAT/PMT iteration primitives (§4.5: pat_items_foreach, pmt_items_foreach,
// pmt_item_desc_foreach), operating on a CRC-validated section byte slice
// as produced by PSI.Feed's OnTable callback.

// PATItem is one program_number/PID pair from a Program Association Table.
type PATItem struct {
	ProgramNumber uint16
	PID           uint16
}

// PATItemsForEach walks a validated PAT section, calling fn for every
// program entry (including program_number 0, the network-PID entry).
func PATItemsForEach(section []byte, fn func(PATItem)) {
	if len(section) < 12 || section[0] != 0x00 {
		return
	}
	sectionLen := (int(section[1]&0x0F) << 8) | int(section[2])
	end := 3 + sectionLen
	if end > len(section) {
		return
	}
	for i := 8; i+4 <= end-4; i += 4 {
		item := PATItem{
			ProgramNumber: uint16(section[i])<<8 | uint16(section[i+1]),
			PID:           (uint16(section[i+2]&0x1F) << 8) | uint16(section[i+3]),
		}
		fn(item)
	}
}

// PMTItem is one elementary stream entry from a Program Map Table.
type PMTItem struct {
	StreamType byte
	PID        uint16
	descStart  int
	descEnd    int
	section    []byte
}

// PMTPCRPID extracts the PCR_PID field from a validated PMT section.
func PMTPCRPID(section []byte) (uint16, bool) {
	if len(section) < 12 || section[0] != 0x02 {
		return 0, false
	}
	return (uint16(section[8]&0x1F) << 8) | uint16(section[9]), true
}

// PMTItemsForEach walks a validated PMT section, calling fn for every
// elementary stream entry.
func PMTItemsForEach(section []byte, fn func(PMTItem)) {
	if len(section) < 12 || section[0] != 0x02 {
		return
	}
	sectionLen := (int(section[1]&0x0F) << 8) | int(section[2])
	end := 3 + sectionLen
	if end > len(section) {
		return
	}
	progInfoLen := (int(section[10]&0x0F) << 8) | int(section[11])
	i := 12 + progInfoLen
	for i+5 <= end-4 {
		esInfoLen := (int(section[i+3]&0x0F) << 8) | int(section[i+4])
		item := PMTItem{
			StreamType: section[i],
			PID:        (uint16(section[i+1]&0x1F) << 8) | uint16(section[i+2]),
			descStart:  i + 5,
			descEnd:    i + 5 + esInfoLen,
			section:    section,
		}
		fn(item)
		i += 5 + esInfoLen
	}
}

// DescForEach walks the per-stream descriptor loop of a PMTItem, calling
// fn with each descriptor's tag and its raw descriptor bytes (including
// the tag/length header).
func (it PMTItem) DescForEach(fn func(tag byte, desc []byte)) {
	if it.section == nil {
		return
	}
	i := it.descStart
	end := it.descEnd
	if end > len(it.section) {
		end = len(it.section)
	}
	for i+2 <= end {
		tag := it.section[i]
		length := int(it.section[i+1])
		descEnd := i + 2 + length
		if descEnd > end {
			break
		}
		fn(tag, it.section[i:descEnd])
		i = descEnd
	}
}

// PacketType classifies a PID for the purpose of HLS PID filtering (§4.8).
type PacketType int

const (
	PacketUnknown PacketType = iota
	PacketPAT
	PacketPMT
	PacketAudio
	PacketVideo
	PacketSub
	PacketData
)

// PESStreamType maps an MPEG-TS stream_type byte (from a PMT entry) to a
// PacketType, the same classification the teacher's ts_inspector.go names
// informally via tsStreamTypeName.
func PESStreamType(streamType byte) PacketType {
	switch streamType {
	case 0x01, 0x02, 0x10, 0x1B, 0x24: // MPEG1/2/4 video, H.264, HEVC
		return PacketVideo
	case 0x03, 0x04, 0x0F, 0x11, 0x81: // MPEG1/2 audio, AAC, AAC-LATM, AC-3
		return PacketAudio
	case 0x06: // private data / DVB subtitles, refined by descriptor tag
		return PacketData
	default:
		return PacketData
	}
}
