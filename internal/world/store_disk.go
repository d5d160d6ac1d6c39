package world

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
)

const (
	diskOpDelete byte = 0
	diskOpSet    byte = 1

	// op, x, y, z, payload size
	diskHeaderSize = 1 + 4 + 4 + 4 + 4
)

// chunkRecord is the gob payload of a set record.
type chunkRecord struct {
	Materials []byte
}

type diskRecordMeta struct {
	offset int64
	size   uint32
}

// DiskStore is an append-only chunk log. Every save appends a record; the
// newest record for a coordinate wins when the index is rebuilt on open.
type DiskStore struct {
	file    *os.File
	mu      sync.RWMutex
	records map[ChunkCoord]diskRecordMeta
}

// OpenDiskStore opens or creates the log at path.
func OpenDiskStore(path string) (*DiskStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open chunk store: %w", err)
	}
	store := &DiskStore{
		file:    f,
		records: make(map[ChunkCoord]diskRecordMeta),
	}
	if err := store.loadIndex(); err != nil {
		f.Close()
		return nil, err
	}
	return store, nil
}

func (s *DiskStore) loadIndex() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewind chunk store: %w", err)
	}

	header := make([]byte, diskHeaderSize)
	var offset int64
	for {
		if _, err := io.ReadFull(s.file, header); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return fmt.Errorf("truncated chunk header: %w", err)
			}
			return fmt.Errorf("read chunk header: %w", err)
		}
		op, coord, size := decodeHeader(header)
		recordOffset := offset
		offset += int64(len(header)) + int64(size)

		if _, err := s.file.Seek(int64(size), io.SeekCurrent); err != nil {
			return fmt.Errorf("seek past payload: %w", err)
		}
		if op == diskOpSet {
			s.records[coord] = diskRecordMeta{offset: recordOffset, size: size}
		} else {
			delete(s.records, coord)
		}
	}
	return nil
}

func encodeHeader(op byte, coord ChunkCoord, size uint32) []byte {
	header := make([]byte, diskHeaderSize)
	header[0] = op
	binary.LittleEndian.PutUint32(header[1:5], uint32(int32(coord.X)))
	binary.LittleEndian.PutUint32(header[5:9], uint32(int32(coord.Y)))
	binary.LittleEndian.PutUint32(header[9:13], uint32(int32(coord.Z)))
	binary.LittleEndian.PutUint32(header[13:17], size)
	return header
}

func decodeHeader(header []byte) (byte, ChunkCoord, uint32) {
	coord := ChunkCoord{
		X: int(int32(binary.LittleEndian.Uint32(header[1:5]))),
		Y: int(int32(binary.LittleEndian.Uint32(header[5:9]))),
		Z: int(int32(binary.LittleEndian.Uint32(header[9:13]))),
	}
	return header[0], coord, binary.LittleEndian.Uint32(header[13:17])
}

func (s *DiskStore) Load(coord ChunkCoord) ([]Voxel, bool, error) {
	s.mu.RLock()
	meta, ok := s.records[coord]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	payload := make([]byte, meta.size)
	if _, err := s.file.ReadAt(payload, meta.offset+diskHeaderSize); err != nil {
		return nil, false, fmt.Errorf("read chunk %v payload: %w", coord, err)
	}
	var record chunkRecord
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&record); err != nil {
		return nil, false, fmt.Errorf("decode chunk %v: %w", coord, err)
	}
	voxels := make([]Voxel, len(record.Materials))
	for i, m := range record.Materials {
		material := Material(m)
		if !material.Valid() {
			return nil, false, fmt.Errorf("decode chunk %v: %w: %d", coord, ErrInvalidMaterial, m)
		}
		voxels[i] = Voxel{Material: material}
	}
	return voxels, true, nil
}

func (s *DiskStore) Save(coord ChunkCoord, voxels []Voxel) error {
	record := chunkRecord{Materials: make([]byte, len(voxels))}
	for i, v := range voxels {
		record.Materials[i] = byte(v.Material)
	}
	var payload bytes.Buffer
	if err := gob.NewEncoder(&payload).Encode(record); err != nil {
		return fmt.Errorf("encode chunk %v: %w", coord, err)
	}
	header := encodeHeader(diskOpSet, coord, uint32(payload.Len()))

	s.mu.Lock()
	defer s.mu.Unlock()

	offset, err := s.file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("seek store end: %w", err)
	}
	if _, err := s.file.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := s.file.Write(payload.Bytes()); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync chunk store: %w", err)
	}
	s.records[coord] = diskRecordMeta{offset: offset, size: uint32(payload.Len())}
	return nil
}

func (s *DiskStore) Delete(coord ChunkCoord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[coord]; !ok {
		return nil
	}
	if _, err := s.file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek store end: %w", err)
	}
	if _, err := s.file.Write(encodeHeader(diskOpDelete, coord, 0)); err != nil {
		return fmt.Errorf("write delete header: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync chunk store: %w", err)
	}
	delete(s.records, coord)
	return nil
}

// ForEach visits stored chunks in coordinate order. Unreadable records are
// logged and skipped.
func (s *DiskStore) ForEach(fn func(coord ChunkCoord, voxels []Voxel) bool) error {
	s.mu.RLock()
	coords := make([]ChunkCoord, 0, len(s.records))
	for coord := range s.records {
		coords = append(coords, coord)
	}
	s.mu.RUnlock()
	SortChunkCoords(coords)

	for _, coord := range coords {
		voxels, ok, err := s.Load(coord)
		if err != nil {
			log.Printf("disk chunk store load %v: %v", coord, err)
			continue
		}
		if !ok {
			continue
		}
		if !fn(coord, voxels) {
			break
		}
	}
	return nil
}

func (s *DiskStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
