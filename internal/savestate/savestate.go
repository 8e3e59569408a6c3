// Package savestate implements the PHBS binary save-state container: a
// fixed header (magic, version, ROM hash, payload length) wrapping the
// length-prefixed serialized blobs of every stateful subsystem. The
// subsystems each already know how to encode themselves (internal/cpu,
// internal/bus and everything bus composes); this package only owns the
// outer framing and the ROM-hash/version validation gate.
package savestate

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

const (
	magic          = "PHBS"
	currentVersion = 1
)

// InvalidSavestateError reports a save-state blob that failed the header
// magic/version/ROM-hash check, or was truncated mid-payload.
type InvalidSavestateError struct {
	Reason string
}

func (e *InvalidSavestateError) Error() string { return "invalid savestate: " + e.Reason }

// Subsystem is anything with its own opaque SaveState/LoadState blob —
// internal/cpu.CPU and internal/bus.Bus both already satisfy this.
type Subsystem interface {
	SaveState() []byte
}

// Save builds a PHBS blob from rom (hashed for the load-time compatibility
// check) and the subsystem blobs, in order, returned by each of subsystems.
func Save(rom []byte, subsystems ...Subsystem) []byte {
	hash := sha256.Sum256(rom)

	var payload bytes.Buffer
	for _, s := range subsystems {
		blob := s.SaveState()
		var lenBuf [4]byte
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(blob)))
		payload.Write(lenBuf[:])
		payload.Write(blob)
	}

	var out bytes.Buffer
	out.WriteString(magic)
	var verBuf [2]byte
	binary.LittleEndian.PutUint16(verBuf[:], currentVersion)
	out.Write(verBuf[:])
	out.Write(hash[:])
	var payloadLenBuf [4]byte
	binary.LittleEndian.PutUint32(payloadLenBuf[:], uint32(payload.Len()))
	out.Write(payloadLenBuf[:])
	out.Write(payload.Bytes())
	return out.Bytes()
}

// Loader is the write-side counterpart of Subsystem: a component whose
// LoadState can fail and report why (unlike the teacher's fire-and-forget
// gob LoadState methods, which silently no-op on a bad blob).
type Loader interface {
	LoadState(data []byte) error
}

// silentLoader adapts the teacher's existing LoadState(data) (no error
// return) shape — used by internal/bus, whose LoadState already tolerates
// malformed blobs by leaving state unchanged — into the Loader interface.
type silentLoader struct {
	load func(data []byte)
}

func (s silentLoader) LoadState(data []byte) error {
	s.load(data)
	return nil
}

// AdaptLoader wraps a LoadState(data []byte) method (no error return) as a
// Loader for use with Load.
func AdaptLoader(load func(data []byte)) Loader {
	return silentLoader{load: load}
}

const headerLen = len(magic) + 2 + 32 + 4

// Load validates data against rom's hash and unpacks subsystem blobs into
// loaders, in the same order they were passed to Save. Returns
// *InvalidSavestateError on any structural problem; a validation failure
// never partially applies state to a loader.
func Load(data []byte, rom []byte, loaders ...Loader) error {
	if len(data) < headerLen {
		return &InvalidSavestateError{Reason: "truncated header"}
	}
	if string(data[0:4]) != magic {
		return &InvalidSavestateError{Reason: "bad magic"}
	}
	version := binary.LittleEndian.Uint16(data[4:6])
	if version != currentVersion {
		return &InvalidSavestateError{Reason: fmt.Sprintf("unsupported version %d", version)}
	}
	wantHash := data[6:38]
	gotHash := sha256.Sum256(rom)
	if !bytes.Equal(wantHash, gotHash[:]) {
		return &InvalidSavestateError{Reason: "ROM hash mismatch"}
	}
	payloadLen := binary.LittleEndian.Uint32(data[38:42])
	payload := data[42:]
	if uint32(len(payload)) != payloadLen {
		return &InvalidSavestateError{Reason: "payload length mismatch"}
	}

	blobs := make([][]byte, 0, len(loaders))
	off := 0
	for range loaders {
		if off+4 > len(payload) {
			return &InvalidSavestateError{Reason: "truncated subsystem length prefix"}
		}
		blobLen := int(binary.LittleEndian.Uint32(payload[off : off+4]))
		off += 4
		if blobLen < 0 || off+blobLen > len(payload) {
			return &InvalidSavestateError{Reason: "subsystem blob out of range"}
		}
		blobs = append(blobs, payload[off:off+blobLen])
		off += blobLen
	}
	if off != len(payload) {
		return &InvalidSavestateError{Reason: "trailing bytes after last subsystem blob"}
	}

	for i, l := range loaders {
		if err := l.LoadState(blobs[i]); err != nil {
			return &InvalidSavestateError{Reason: fmt.Sprintf("subsystem %d: %v", i, err)}
		}
	}
	return nil
}
