package tsfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/snapetech/tsengine/internal/mpegts"
	"github.com/snapetech/tsengine/internal/pipeline"
)

type recorder struct {
	pipeline.Base
	packets []mpegts.Packet
}

func (r *recorder) OnTS(pkt *mpegts.Packet) { r.packets = append(r.packets, *pkt) }
func (r *recorder) Destroy()                { r.DestroyChildren() }

func mkTSFile(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "stream.ts")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating test file: %v", err)
	}
	defer f.Close()

	for i := 0; i < n; i++ {
		var pkt mpegts.Packet
		pkt[0] = 0x47
		pkt[1] = byte(i)
		if _, err := f.Write(pkt[:]); err != nil {
			t.Fatalf("writing packet %d: %v", i, err)
		}
	}
	return path
}

func TestSourceReadsOnePacketPerTick(t *testing.T) {
	path := mkTSFile(t, 3)
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Destroy()

	rec := &recorder{}
	s.Attach(rec)

	for i := 0; i < 3; i++ {
		if !s.Tick() {
			t.Fatalf("Tick() %d returned false, want true", i)
		}
	}
	if len(rec.packets) != 3 {
		t.Fatalf("len(packets) = %d, want 3", len(rec.packets))
	}

	if s.Tick() {
		t.Fatal("Tick() after EOF returned true, want false")
	}
}

func TestSourceOpenMissingFileErrors(t *testing.T) {
	if _, err := Open("/nonexistent/stream.ts"); err == nil {
		t.Fatal("expected error opening missing file")
	}
}

func TestSourceStopsOnLostSync(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.ts")
	if err := os.WriteFile(path, []byte{0x00, 0x01, 0x02}, 0o644); err != nil {
		t.Fatalf("writing bad file: %v", err)
	}
	// pad to one full packet with a bad sync byte
	f, _ := os.OpenFile(path, os.O_WRONLY, 0o644)
	pad := make([]byte, mpegts.PacketSize-3)
	f.WriteAt(pad, 3)
	f.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Destroy()

	var warned string
	s.SetWarnLog(func(msg string) { warned = msg })

	if s.Tick() {
		t.Fatal("Tick() on bad sync returned true, want false")
	}
	if warned == "" {
		t.Fatal("expected a warning to be logged on lost sync")
	}
}
