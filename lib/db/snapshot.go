package db

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ValentinKolb/dChain/lib/chain"
)

// --------------------------------------------------------------------------
// Snapshot Format
// --------------------------------------------------------------------------

// All engines share one snapshot format, so a snapshot taken from one engine
// can be loaded into any other:
//
//	magic [8]byte | version u8 | sequence u64 | writeIdx u64 |
//	(1 u8 | key u64 | chainLen u32 | chain)* | 0 u8
//
// Integers are little endian, chains use chain.Encode.
const (
	snapshotMagic   = "DCHAIN\x00\x00"
	snapshotVersion = 1

	recordFlag = 1
	endFlag    = 0
)

// ErrSnapshotFormat is returned when a snapshot cannot be parsed.
var ErrSnapshotFormat = errors.New("invalid snapshot format")

// SnapshotHeader holds the database wide counters of a snapshot.
type SnapshotHeader struct {
	Sequence chain.SequenceID
	WriteIdx uint64
}

// SnapshotWriter streams a snapshot to an io.Writer.
type SnapshotWriter struct {
	bw  *bufio.Writer
	buf []byte
}

// NewSnapshotWriter writes the snapshot header and returns a writer for the records.
func NewSnapshotWriter(w io.Writer, header SnapshotHeader) (*SnapshotWriter, error) {
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	if _, err := bw.WriteString(snapshotMagic); err != nil {
		return nil, err
	}
	if err := bw.WriteByte(snapshotVersion); err != nil {
		return nil, err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(header.Sequence)); err != nil {
		return nil, err
	}
	if err := binary.Write(bw, binary.LittleEndian, header.WriteIdx); err != nil {
		return nil, err
	}
	return &SnapshotWriter{bw: bw}, nil
}

// Write adds the chain of one key. Empty chains are skipped.
func (s *SnapshotWriter) Write(key uint64, c chain.Chain) error {
	if c.IsEmpty() {
		return nil
	}
	s.buf = chain.AppendEncoded(s.buf[:0], c)

	if err := s.bw.WriteByte(recordFlag); err != nil {
		return err
	}
	if err := binary.Write(s.bw, binary.LittleEndian, key); err != nil {
		return err
	}
	if err := binary.Write(s.bw, binary.LittleEndian, uint32(len(s.buf))); err != nil {
		return err
	}
	_, err := s.bw.Write(s.buf)
	return err
}

// Close writes the end marker and flushes the buffer. It does not close the
// underlying writer.
func (s *SnapshotWriter) Close() error {
	if err := s.bw.WriteByte(endFlag); err != nil {
		return err
	}
	return s.bw.Flush()
}

// ReadSnapshot parses a snapshot and calls fn for every stored chain. The
// header is returned after all records were read.
func ReadSnapshot(r io.Reader, fn func(key uint64, c chain.Chain) error) (SnapshotHeader, error) {
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return SnapshotHeader{}, err
	}
	if string(magic) != snapshotMagic {
		return SnapshotHeader{}, fmt.Errorf("%w: magic number mismatch", ErrSnapshotFormat)
	}

	version, err := br.ReadByte()
	if err != nil {
		return SnapshotHeader{}, err
	}
	if version != snapshotVersion {
		return SnapshotHeader{}, fmt.Errorf("%w: unsupported version %d (expected %d)", ErrSnapshotFormat, version, snapshotVersion)
	}

	var seq, writeIdx uint64
	if err := binary.Read(br, binary.LittleEndian, &seq); err != nil {
		return SnapshotHeader{}, err
	}
	if err := binary.Read(br, binary.LittleEndian, &writeIdx); err != nil {
		return SnapshotHeader{}, err
	}
	header := SnapshotHeader{Sequence: chain.SequenceID(seq), WriteIdx: writeIdx}

	for {
		flag, err := br.ReadByte()
		if err != nil {
			return SnapshotHeader{}, err
		}
		switch flag {
		case endFlag:
			return header, nil
		case recordFlag:
		default:
			return SnapshotHeader{}, fmt.Errorf("%w: unknown record flag %d", ErrSnapshotFormat, flag)
		}

		var key uint64
		if err := binary.Read(br, binary.LittleEndian, &key); err != nil {
			return SnapshotHeader{}, err
		}
		var l uint32
		if err := binary.Read(br, binary.LittleEndian, &l); err != nil {
			return SnapshotHeader{}, err
		}
		data := make([]byte, l)
		if _, err := io.ReadFull(br, data); err != nil {
			return SnapshotHeader{}, err
		}
		c, err := chain.Decode(data)
		if err != nil {
			return SnapshotHeader{}, fmt.Errorf("%w: key %d: %v", ErrSnapshotFormat, key, err)
		}
		if err := fn(key, c); err != nil {
			return SnapshotHeader{}, err
		}
	}
}
