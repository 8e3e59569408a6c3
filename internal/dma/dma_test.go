package dma

import "testing"

// fakeBus is a minimal Reader/Writer backing a flat source array and an OAM
// sink, just enough to drive DMA.Tick in isolation from internal/bus.
type fakeBus struct {
	mem [0x10000]byte
	oam [160]byte
}

func (f *fakeBus) ReadDMA(addr uint16) byte       { return f.mem[addr] }
func (f *fakeBus) WriteOAMDMA(offset int, v byte) { f.oam[offset] = v }

func TestTriggerArmsAndActiveReportsInFlight(t *testing.T) {
	d := New()
	if d.Active() {
		t.Fatalf("Active() = true before any Trigger, want false")
	}
	d.Trigger(0xC0)
	if !d.Active() {
		t.Fatalf("Active() = false immediately after Trigger, want true")
	}
	if d.Register() != 0xC0 {
		t.Fatalf("Register() = %#02x, want %#02x", d.Register(), byte(0xC0))
	}
}

func TestTickCopiesAllBytesAfterStartupDelay(t *testing.T) {
	f := &fakeBus{}
	for i := 0; i < 160; i++ {
		f.mem[0xC000+i] = byte(i + 1)
	}

	d := New()
	d.Trigger(0xC0) // source = 0xC000

	// Startup delay is 4 T-cycles (1 M-cycle); nothing should copy yet.
	d.Tick(4, f, f)
	if f.oam[0] != 0 {
		t.Fatalf("OAM[0] = %#02x during startup delay, want 0 (untouched)", f.oam[0])
	}
	if !d.Active() {
		t.Fatalf("Active() = false during startup delay, want true")
	}

	// Remaining bytes: 1 every 4 T-cycles (1 M-cycle), 160 bytes total.
	d.Tick(160*4, f, f)
	if d.Active() {
		t.Fatalf("Active() = true after a full transfer, want false")
	}
	for i := 0; i < 160; i++ {
		if f.oam[i] != byte(i+1) {
			t.Fatalf("OAM[%d] = %#02x, want %#02x", i, f.oam[i], byte(i+1))
		}
	}
}

func TestTriggerMidTransferRestartsFromNewSource(t *testing.T) {
	f := &fakeBus{}
	for i := 0; i < 0x200; i++ {
		f.mem[0xC000+i] = 0x11
		f.mem[0xD000+i] = 0x22
	}

	d := New()
	d.Trigger(0xC0) // source = 0xC000
	d.Tick(4+4*10, f, f) // startup + 10 bytes copied

	d.Trigger(0xD0) // restart mid-transfer from 0xD000
	d.Tick(4+4*160, f, f)

	if d.Active() {
		t.Fatalf("Active() = true after the restarted transfer completes, want false")
	}
	for i := 0; i < 160; i++ {
		if f.oam[i] != 0x22 {
			t.Fatalf("OAM[%d] = %#02x after mid-transfer restart, want the new source's byte %#02x", i, f.oam[i], byte(0x22))
		}
	}
}

func TestSaveStateLoadStateRoundTrips(t *testing.T) {
	f := &fakeBus{}
	d := New()
	d.Trigger(0x80)
	d.Tick(10, f, f)

	s := d.SaveState()

	d2 := New()
	d2.LoadState(s)

	if d2.Active() != d.Active() || d2.Register() != d.Register() {
		t.Fatalf("LoadState did not restore DMA state")
	}
}
