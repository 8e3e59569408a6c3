package emu

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildROM makes a synthetic ROM with a valid header and checksums,
// mirroring internal/cart's own header_test.go helper (unexported there,
// so duplicated here at the smallest size this package needs it).
func buildROM(title string, cgbFlag, cartType, romSizeCode, ramSizeCode byte, size int) []byte {
	rom := make([]byte, size)

	tbytes := []byte(title)
	if len(tbytes) > 16 {
		tbytes = tbytes[:16]
	}
	copy(rom[0x0134:0x0144], tbytes)

	rom[0x0143] = cgbFlag
	rom[0x0144], rom[0x0145] = '0', '1'
	rom[0x0147] = cartType
	rom[0x0148] = romSizeCode
	rom[0x0149] = ramSizeCode
	rom[0x014B] = 0x33

	var hsum byte
	for addr := 0x0134; addr <= 0x014C; addr++ {
		hsum = hsum - rom[addr] - 1
	}
	rom[0x014D] = hsum

	var gsum uint16
	for i := 0; i < len(rom); i++ {
		if i == 0x014E || i == 0x014F {
			continue
		}
		gsum += uint16(rom[i])
	}
	binary.BigEndian.PutUint16(rom[0x014E:0x0150], gsum)

	return rom
}

func TestLoadROM_DetectsHardwareModeFromHeader(t *testing.T) {
	dmgROM := buildROM("DMGGAME", 0x00, 0x00, 0x00, 0x00, 32*1024)
	m := New(Config{})
	require.NoError(t, m.LoadROM(dmgROM))
	require.True(t, m.IsCGBCompat())

	cgbROM := buildROM("CGBGAME", 0xC0, 0x00, 0x00, 0x00, 32*1024)
	m2 := New(Config{})
	require.NoError(t, m2.LoadROM(cgbROM))
	require.False(t, m2.IsCGBCompat())
}

func TestLoadROM_ExplicitHardwareModeOverridesHeader(t *testing.T) {
	cgbROM := buildROM("CGBGAME", 0xC0, 0x00, 0x00, 0x00, 32*1024)
	m := New(Config{HardwareMode: HardwareDMG})
	require.NoError(t, m.LoadROM(cgbROM))
	require.True(t, m.IsCGBCompat())
}

func TestLoadROM_InvalidCartridgeSetsErr(t *testing.T) {
	m := New(Config{})
	err := m.LoadROM([]byte{0x00, 0x01, 0x02})
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, InvalidCartridge, e.Kind)
}

func TestRunFrame_AdvancesAndProducesFramebuffer(t *testing.T) {
	rom := buildROM("NOBOOT", 0x00, 0x00, 0x00, 0x00, 32*1024)
	m := New(Config{})
	require.NoError(t, m.LoadROM(rom))

	m.RunFrame()
	require.NoError(t, m.Err())
	require.Len(t, m.Framebuffer(), 160*144*4)
}

func TestSetButtonAndActiveButtons(t *testing.T) {
	rom := buildROM("INPUT", 0x00, 0x00, 0x00, 0x00, 32*1024)
	m := New(Config{})
	require.NoError(t, m.LoadROM(rom))

	require.Empty(t, m.ActiveButtons())

	m.SetButton("A", true)
	m.SetButton("Start", true)
	require.Equal(t, []string{"A", "Start"}, m.ActiveButtons())

	m.SetButton("A", false)
	require.Equal(t, []string{"Start"}, m.ActiveButtons())

	// Unknown button names are ignored rather than panicking.
	m.SetButton("Turbo", true)
	require.Equal(t, []string{"Start"}, m.ActiveButtons())
}

func TestSaveStateLoadState_RoundTrips(t *testing.T) {
	rom := buildROM("STATE", 0x00, 0x00, 0x00, 0x00, 32*1024)
	m := New(Config{})
	require.NoError(t, m.LoadROM(rom))

	for i := 0; i < 5; i++ {
		m.RunFrame()
	}
	blob := m.SaveState()
	require.NotEmpty(t, blob)

	m2 := New(Config{})
	require.NoError(t, m2.LoadROM(rom))
	require.NoError(t, m2.LoadState(blob))
}

func TestLoadState_RejectsMismatchedROM(t *testing.T) {
	rom := buildROM("ONE", 0x00, 0x00, 0x00, 0x00, 32*1024)
	other := buildROM("TWO", 0x00, 0x00, 0x00, 0x00, 32*1024)

	m := New(Config{})
	require.NoError(t, m.LoadROM(rom))
	blob := m.SaveState()

	m2 := New(Config{})
	require.NoError(t, m2.LoadROM(other))
	err := m2.LoadState(blob)
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, InvalidSavestate, e.Kind)
}

func TestSaveRAMLoadSaveRAM_BatteryBackedCartridge(t *testing.T) {
	// cartType 0x03 = MBC1+RAM+BATTERY, ramSizeCode 0x02 = 8 KiB.
	rom := buildROM("BATTERY", 0x00, 0x03, 0x00, 0x02, 32*1024)
	m := New(Config{})
	require.NoError(t, m.LoadROM(rom))

	data, err := m.SaveRAM()
	require.NoError(t, err)
	require.NotNil(t, data)

	require.NoError(t, m.LoadSaveRAM(data))
}

func TestSaveRAM_NonBatteryCartridgeErrors(t *testing.T) {
	rom := buildROM("NOBATT", 0x00, 0x00, 0x00, 0x00, 32*1024) // ROM-only
	m := New(Config{})
	require.NoError(t, m.LoadROM(rom))

	_, err := m.SaveRAM()
	require.Error(t, err)

	var e *Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, InvalidSaveRam, e.Kind)
}

func TestCompatPalette_CyclesAndWrapsForDMGOnly(t *testing.T) {
	dmgROM := buildROM("DMGGAME", 0x00, 0x00, 0x00, 0x00, 32*1024)
	m := New(Config{})
	require.NoError(t, m.LoadROM(dmgROM))
	require.True(t, m.IsCGBCompat())

	start := m.CurrentCompatPalette()
	m.CycleCompatPalette(1)
	require.Equal(t, (start+1)%6, m.CurrentCompatPalette())

	m.CycleCompatPalette(-1)
	require.Equal(t, start, m.CurrentCompatPalette())

	name := m.CompatPaletteName(m.CurrentCompatPalette())
	require.NotEqual(t, "?", name)
}

func TestExplicitPaletteOverridesCompatAutoDetect(t *testing.T) {
	rom := buildROM("DMGGAME", 0x00, 0x00, 0x00, 0x00, 32*1024)
	m := New(Config{Palette: PaletteGreen})
	require.NoError(t, m.LoadROM(rom))

	// An explicit non-Grayscale Config.Palette wins over the title heuristic:
	// the ramp actually installed on the PPU is PaletteGreen's, regardless of
	// what the compat auto-detect would have picked for this title.
	require.Equal(t, configPaletteRamps[PaletteGreen], m.bus.PPU().DMGPalette())
}
