package snapshot

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/wire"
)

const (
	// MaxActiveMembers bounds the member bitset of a decoded snapshot.
	MaxActiveMembers = 1 << 20

	// MaxSkipListEntries bounds the skip list of a decoded snapshot.
	MaxSkipListEntries = 1 << 16
)

// byteOrder is the byte order of every fixed size integer in a snapshot.
var byteOrder = binary.LittleEndian

// Encode writes the snapshot to w. The layout is
//
//	skipMode (int32) || compactSize(len(ActiveMembers)) || bitset ||
//	compactSize(len(SkipList)) || skipList (int32 each)
//
// with the bitset packed least significant bit first.
func (s *Snapshot) Encode(w io.Writer) error {
	var scratch [4]byte

	byteOrder.PutUint32(scratch[:], uint32(s.SkipMode))
	if _, err := w.Write(scratch[:]); err != nil {
		return err
	}

	err := wire.WriteVarInt(w, 0, uint64(len(s.ActiveMembers)))
	if err != nil {
		return err
	}
	if _, err := w.Write(packBits(s.ActiveMembers)); err != nil {
		return err
	}

	err = wire.WriteVarInt(w, 0, uint64(len(s.SkipList)))
	if err != nil {
		return err
	}
	for _, skip := range s.SkipList {
		byteOrder.PutUint32(scratch[:], uint32(skip))
		if _, err := w.Write(scratch[:]); err != nil {
			return err
		}
	}

	return nil
}

// Decode reads a snapshot previously written by Encode from r.
func (s *Snapshot) Decode(r io.Reader) error {
	var scratch [4]byte

	if _, err := io.ReadFull(r, scratch[:]); err != nil {
		return malformed("skip mode", err)
	}
	mode := SkipMode(int32(byteOrder.Uint32(scratch[:])))
	if !mode.valid() {
		return newError(ErrMalformedSnapshot, fmt.Sprintf(
			"unknown skip mode %d", int32(mode)), nil)
	}

	numBits, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return malformed("member count", err)
	}
	if numBits > MaxActiveMembers {
		return newError(ErrMalformedSnapshot, fmt.Sprintf(
			"member count %d exceeds maximum %d", numBits,
			MaxActiveMembers), nil)
	}

	packed := make([]byte, (numBits+7)/8)
	if _, err := io.ReadFull(r, packed); err != nil {
		return malformed("member bitset", err)
	}

	numSkips, err := wire.ReadVarInt(r, 0)
	if err != nil {
		return malformed("skip list length", err)
	}
	if numSkips > MaxSkipListEntries {
		return newError(ErrMalformedSnapshot, fmt.Sprintf(
			"skip list length %d exceeds maximum %d", numSkips,
			MaxSkipListEntries), nil)
	}

	var skips []int32
	if numSkips > 0 {
		skips = make([]int32, numSkips)
	}
	for i := range skips {
		if _, err := io.ReadFull(r, scratch[:]); err != nil {
			return malformed("skip list", err)
		}
		skips[i] = int32(byteOrder.Uint32(scratch[:]))
	}

	s.SkipMode = mode
	s.ActiveMembers = unpackBits(packed, int(numBits))
	s.SkipList = skips

	return nil
}

// Serialize returns the encoded form of the snapshot.
func (s *Snapshot) Serialize() ([]byte, error) {
	var b bytes.Buffer
	if err := s.Encode(&b); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Deserialize decodes a snapshot from its complete encoded form. Trailing
// bytes are an error.
func Deserialize(b []byte) (*Snapshot, error) {
	r := bytes.NewReader(b)

	s := &Snapshot{}
	if err := s.Decode(r); err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, newError(ErrMalformedSnapshot, fmt.Sprintf(
			"%d trailing bytes", r.Len()), nil)
	}

	return s, nil
}

func malformed(field string, err error) error {
	return newError(ErrMalformedSnapshot, "unable to read "+field, err)
}

// packBits packs bits least significant bit first.
func packBits(bits []bool) []byte {
	packed := make([]byte, (len(bits)+7)/8)
	for i, bit := range bits {
		if bit {
			packed[i/8] |= 1 << (i % 8)
		}
	}

	return packed
}

// unpackBits is the inverse of packBits for the first n bits of packed.
func unpackBits(packed []byte, n int) []bool {
	bits := make([]bool, n)
	for i := range bits {
		bits[i] = packed[i/8]&(1<<(i%8)) != 0
	}

	return bits
}
