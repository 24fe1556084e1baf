package graph

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"
)

const (
	magicBytes = "TOURGRPH"
	version    = uint32(1)
)

// fileHeader is the binary header.
type fileHeader struct {
	Magic      [8]byte
	Version    uint32
	NumNodes   uint32
	NumEdges   uint32
	NumWeights uint32
}

// WriteBinary writes g to path as a snapshot. The file is written to a
// temporary sibling and renamed into place, so readers never see a partial
// snapshot.
func WriteBinary(path string, g *Graph) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // no-op after a successful rename
	}()

	bw := bufio.NewWriterSize(f, 1<<20)
	if err := EncodeBinary(bw, g); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	// Atomic rename.
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// EncodeBinary streams g in snapshot format: header, node arrays, CSR
// arrays, profile weights and a CRC32 trailer over everything before it.
// Uses unsafe.Slice for zero-copy I/O, so the byte order is the host's.
func EncodeBinary(out io.Writer, g *Graph) error {
	crcWriter := crc32Writer{w: out, hash: crc32.NewIEEE()}
	w := &crcWriter

	weights := g.profile.Weights
	hdr := fileHeader{
		Version:    version,
		NumNodes:   g.NumNodes,
		NumEdges:   g.NumEdges,
		NumWeights: uint32(len(weights)),
	}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if err := writeFloat64Slice(w, g.NodeLat); err != nil {
		return fmt.Errorf("write NodeLat: %w", err)
	}
	if err := writeFloat64Slice(w, g.NodeLon); err != nil {
		return fmt.Errorf("write NodeLon: %w", err)
	}
	elev := g.Elevation
	if len(elev) != int(g.NumNodes) {
		elev = make([]int32, g.NumNodes)
	}
	if err := writeInt32Slice(w, elev); err != nil {
		return fmt.Errorf("write Elevation: %w", err)
	}
	if err := writeUint32Slice(w, g.FirstOut); err != nil {
		return fmt.Errorf("write FirstOut: %w", err)
	}
	if err := writeUint32Slice(w, g.Head); err != nil {
		return fmt.Errorf("write Head: %w", err)
	}
	if err := writeUint32Slice(w, g.Distance); err != nil {
		return fmt.Errorf("write Distance: %w", err)
	}
	if _, err := w.Write(g.Class); err != nil {
		return fmt.Errorf("write Class: %w", err)
	}
	if err := writeLenPrefixedString(w, g.profile.Name); err != nil {
		return fmt.Errorf("write profile name: %w", err)
	}
	if err := writeFloat64Slice(w, weights); err != nil {
		return fmt.Errorf("write profile weights: %w", err)
	}

	// The trailer itself is not part of the checksum.
	checksum := crcWriter.hash.Sum32()
	if err := binary.Write(out, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}
	return nil
}

// ReadBinary loads a snapshot written by WriteBinary.
func ReadBinary(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	return DecodeBinary(bufio.NewReaderSize(f, 1<<20))
}

// DecodeBinary reads a snapshot from in. Every structural problem (bad
// magic, unknown version, truncation, checksum mismatch, broken CSR
// invariants) is reported as a *FormatError.
func DecodeBinary(in io.Reader) (*Graph, error) {
	crcReader := crc32Reader{r: in, hash: crc32.NewIEEE()}
	r := &crcReader

	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, binaryError("read header", err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, binaryError(fmt.Sprintf("invalid magic bytes %q", hdr.Magic), nil)
	}
	if hdr.Version != version {
		return nil, binaryError(fmt.Sprintf("unsupported version %d", hdr.Version), nil)
	}
	if hdr.NumNodes > maxNodes {
		return nil, binaryError(fmt.Sprintf("node count %d exceeds limit %d", hdr.NumNodes, maxNodes), nil)
	}
	if hdr.NumEdges > maxEdges {
		return nil, binaryError(fmt.Sprintf("edge count %d exceeds limit %d", hdr.NumEdges, maxEdges), nil)
	}
	if hdr.NumWeights > 256 {
		return nil, binaryError(fmt.Sprintf("weight table size %d exceeds 256", hdr.NumWeights), nil)
	}

	n, m := int(hdr.NumNodes), int(hdr.NumEdges)
	var err error
	var lat, lon []float64
	var elev []int32
	var firstOut, head, dist []uint32

	if lat, err = readFloat64Slice(r, n); err != nil {
		return nil, binaryError("read NodeLat", err)
	}
	if lon, err = readFloat64Slice(r, n); err != nil {
		return nil, binaryError("read NodeLon", err)
	}
	if elev, err = readInt32Slice(r, n); err != nil {
		return nil, binaryError("read Elevation", err)
	}
	if firstOut, err = readUint32Slice(r, n+1); err != nil {
		return nil, binaryError("read FirstOut", err)
	}
	if head, err = readUint32Slice(r, m); err != nil {
		return nil, binaryError("read Head", err)
	}
	if dist, err = readUint32Slice(r, m); err != nil {
		return nil, binaryError("read Distance", err)
	}
	class := make([]uint8, m)
	if _, err := io.ReadFull(r, class); err != nil {
		return nil, binaryError("read Class", err)
	}
	name, err := readLenPrefixedString(r)
	if err != nil {
		return nil, binaryError("read profile name", err)
	}
	weights, err := readFloat64Slice(r, int(hdr.NumWeights))
	if err != nil {
		return nil, binaryError("read profile weights", err)
	}

	expectedCRC := crcReader.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(in, binary.LittleEndian, &storedCRC); err != nil {
		return nil, binaryError("read CRC32", err)
	}
	if storedCRC != expectedCRC {
		return nil, binaryError(fmt.Sprintf("CRC32 mismatch: stored=%08x computed=%08x", storedCRC, expectedCRC), nil)
	}

	if err := validateCSR(firstOut, head, hdr.NumNodes); err != nil {
		return nil, binaryError("CSR invalid", err)
	}

	return newGraph(firstOut, head, dist, class, lat, lon, elev, Profile{Name: name, Weights: weights}), nil
}

// Load reads a graph file in either format. Snapshots are recognized by
// their magic bytes; anything else is parsed as text.
func Load(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 1<<20)
	if IsSnapshot(br) {
		return DecodeBinary(br)
	}
	return ReadText(br)
}

// IsSnapshot peeks at br and reports whether it starts with the snapshot
// magic. Nothing is consumed.
func IsSnapshot(br *bufio.Reader) bool {
	head, err := br.Peek(len(magicBytes))
	return err == nil && bytes.Equal(head, []byte(magicBytes))
}

// validateCSR checks CSR invariants.
func validateCSR(firstOut, head []uint32, numNodes uint32) error {
	if uint32(len(firstOut)) != numNodes+1 {
		return fmt.Errorf("FirstOut length %d != NumNodes+1 %d", len(firstOut), numNodes+1)
	}
	if firstOut[0] != 0 {
		return fmt.Errorf("FirstOut[0]=%d, want 0", firstOut[0])
	}
	numEdges := firstOut[numNodes]
	if uint32(len(head)) != numEdges {
		return fmt.Errorf("Head length %d != FirstOut[NumNodes] %d", len(head), numEdges)
	}
	for i := uint32(1); i <= numNodes; i++ {
		if firstOut[i] < firstOut[i-1] {
			return fmt.Errorf("FirstOut not monotonic at %d: %d < %d", i, firstOut[i], firstOut[i-1])
		}
	}
	for i, h := range head {
		if h >= numNodes {
			return fmt.Errorf("Head[%d]=%d >= NumNodes=%d", i, h, numNodes)
		}
	}
	return nil
}

// Zero-copy I/O helpers using unsafe.Slice.

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeInt32Slice(w io.Writer, s []int32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeFloat64Slice(w io.Writer, s []float64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func readUint32Slice(r io.Reader, n int) ([]uint32, error) {
	s := make([]uint32, n)
	if n == 0 {
		return s, nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readInt32Slice(r io.Reader, n int) ([]int32, error) {
	s := make([]int32, n)
	if n == 0 {
		return s, nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readFloat64Slice(r io.Reader, n int) ([]float64, error) {
	s := make([]float64, n)
	if n == 0 {
		return s, nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func writeLenPrefixedString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readLenPrefixedString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > 1024 {
		return "", fmt.Errorf("string length %d exceeds 1024", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// CRC32 wrapping writers/readers.

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
