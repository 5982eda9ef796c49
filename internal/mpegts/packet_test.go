package mpegts

import "testing"

func TestPIDExtraction(t *testing.T) {
	var pkt Packet
	pkt[0] = SyncByte
	pkt[1] = 0x1F // top 5 bits of PID
	pkt[2] = 0xFF
	if got, want := pkt.PID(), uint16(0x1FFF); got != want {
		t.Fatalf("PID() = %#x, want %#x", got, want)
	}
}

func TestIsNull(t *testing.T) {
	var pkt Packet
	MakeNullPacket(&pkt, 0)
	if !pkt.IsNull() {
		t.Fatal("MakeNullPacket result should report IsNull() == true")
	}
}

func TestPUSI(t *testing.T) {
	var pkt Packet
	pkt[1] = 0x40
	if !pkt.PUSI() {
		t.Fatal("PUSI() = false, want true")
	}
	pkt[1] = 0x00
	if pkt.PUSI() {
		t.Fatal("PUSI() = true, want false")
	}
}

func TestAdaptationFieldAndPayloadFlags(t *testing.T) {
	cases := []struct {
		afc              byte
		hasAdapt, hasPay bool
	}{
		{0x00, false, false}, // reserved
		{0x01, false, true},  // payload only
		{0x02, true, false},  // adaptation only
		{0x03, true, true},   // both
	}
	for _, c := range cases {
		var pkt Packet
		pkt[3] = c.afc << 4
		if got := pkt.HasAdaptationField(); got != c.hasAdapt {
			t.Errorf("afc=%#x HasAdaptationField() = %v, want %v", c.afc, got, c.hasAdapt)
		}
		if got := pkt.HasPayload(); got != c.hasPay {
			t.Errorf("afc=%#x HasPayload() = %v, want %v", c.afc, got, c.hasPay)
		}
	}
}

func TestContinuityCounter(t *testing.T) {
	var pkt Packet
	pkt[3] = 0x0A
	if got := pkt.ContinuityCounter(); got != 0x0A {
		t.Fatalf("ContinuityCounter() = %#x, want 0xA", got)
	}
}

func TestHasPCRRequiresAdaptationFieldAndFlag(t *testing.T) {
	var pkt Packet
	pkt[3] = 0x02 << 4 // adaptation field only
	pkt[4] = 0x07      // adaptation field length
	pkt[5] = 0x10      // PCR flag set
	if !pkt.HasPCR() {
		t.Fatal("HasPCR() = false, want true")
	}

	pkt[5] = 0x00
	if pkt.HasPCR() {
		t.Fatal("HasPCR() = true with PCR flag clear, want false")
	}

	pkt[3] = 0x01 << 4 // payload only, no adaptation field
	pkt[5] = 0x10
	if pkt.HasPCR() {
		t.Fatal("HasPCR() = true without adaptation field, want false")
	}
}

func TestPCRDecode(t *testing.T) {
	var pkt Packet
	pkt[3] = 0x02 << 4
	pkt[4] = 0x07
	pkt[5] = 0x10
	// base=0, ext=0 -> PCR 0
	if got := pkt.PCR(); got != 0 {
		t.Fatalf("PCR() = %d, want 0", got)
	}

	// base's bit 0 comes from the top bit of the 5th PCR byte (b[4]>>7).
	pkt[6], pkt[7], pkt[8], pkt[9], pkt[10], pkt[11] = 0, 0, 0, 0, 0x80, 0
	want := uint64(1) * 300
	if got := pkt.PCR(); got != want {
		t.Fatalf("PCR() = %d, want %d", got, want)
	}
}

func TestPayloadOffsetWithAndWithoutAdaptationField(t *testing.T) {
	var pkt Packet
	pkt[3] = 0x01 << 4 // payload only
	pay := pkt.Payload()
	if len(pay) != PacketSize-4 {
		t.Fatalf("len(Payload()) = %d, want %d", len(pay), PacketSize-4)
	}

	var pkt2 Packet
	pkt2[3] = 0x03 << 4 // adaptation + payload
	pkt2[4] = 5         // adaptation field length
	pay2 := pkt2.Payload()
	wantOff := 4 + 1 + 5
	if len(pay2) != PacketSize-wantOff {
		t.Fatalf("len(Payload()) = %d, want %d", len(pay2), PacketSize-wantOff)
	}
}

func TestPayloadNilWhenNoPayload(t *testing.T) {
	var pkt Packet
	pkt[3] = 0x02 << 4 // adaptation only
	if pay := pkt.Payload(); pay != nil {
		t.Fatalf("Payload() = %v, want nil", pay)
	}
}

func TestPCRBlockUSNoWrap(t *testing.T) {
	prev := uint64(0)
	cur := uint64(27_000) // 1ms at 27MHz
	us := PCRBlockUS(&prev, &cur)
	if us != 1000 {
		t.Fatalf("PCRBlockUS() = %d, want 1000", us)
	}
	if prev != 27_000 {
		t.Fatalf("prev not advanced to cur: got %d", prev)
	}
}

func TestPCRBlockUSWraps(t *testing.T) {
	prev := pcrWrap - 100
	cur := uint64(50)
	us := PCRBlockUS(&prev, &cur)
	want := uint64((100 + 50) / 27)
	if us != want {
		t.Fatalf("PCRBlockUS() across wrap = %d, want %d", us, want)
	}
}

func TestMakeNullPacketFields(t *testing.T) {
	var pkt Packet
	MakeNullPacket(&pkt, 5)
	if pkt[0] != SyncByte {
		t.Fatalf("sync byte = %#x, want %#x", pkt[0], SyncByte)
	}
	if got := pkt.PID(); got != NullPID {
		t.Fatalf("PID() = %#x, want %#x", got, NullPID)
	}
	if got := pkt.ContinuityCounter(); got != 5 {
		t.Fatalf("ContinuityCounter() = %d, want 5", got)
	}
	if !pkt.HasPayload() || pkt.HasAdaptationField() {
		t.Fatal("null packet should be payload-only (AFC=01)")
	}
}
