package runner

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/lox/gridverify/internal/router"
)

// SliceSource yields chunks from an in-memory slice.
type SliceSource struct {
	chunks []router.Chunk
	pos    int
}

func NewSliceSource(chunks []router.Chunk) *SliceSource {
	return &SliceSource{chunks: chunks}
}

func (s *SliceSource) Next() (*router.Chunk, error) {
	if s.pos >= len(s.chunks) {
		return nil, nil
	}
	c := &s.chunks[s.pos]
	s.pos++
	return c, nil
}

// FileSource streams chunks from a JSON-lines file, one chunk object per
// line. Blank lines are skipped. Lines carrying a "samples" array are station
// chunks; Next sets them aside and Stations returns them for the station pass
// once the gridded stream is drained.
type FileSource struct {
	f        *os.File
	scanner  *bufio.Scanner
	line     int
	stations []router.StationChunk
}

// maxChunkLine bounds one serialized chunk. A 256x256 chunk of three float
// arrays fits comfortably.
const maxChunkLine = 16 << 20

func NewFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chunk file: %w", err)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxChunkLine)
	return &FileSource{f: f, scanner: sc}, nil
}

func (s *FileSource) Next() (*router.Chunk, error) {
	for s.scanner.Scan() {
		s.line++
		raw := s.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var head struct {
			ID      string          `json:"id"`
			Samples json.RawMessage `json:"samples"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.f.Name(), s.line, err)
		}
		if head.ID == "" {
			return nil, fmt.Errorf("%s line %d: chunk without id", s.f.Name(), s.line)
		}

		if head.Samples != nil {
			var sc router.StationChunk
			if err := json.Unmarshal(raw, &sc); err != nil {
				return nil, fmt.Errorf("%s line %d: %w", s.f.Name(), s.line, err)
			}
			s.stations = append(s.stations, sc)
			continue
		}

		var c router.Chunk
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.f.Name(), s.line, err)
		}
		return &c, nil
	}
	if err := s.scanner.Err(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read %s: %w", s.f.Name(), err)
	}
	return nil, nil
}

// Stations returns the station chunks encountered in the stream so far.
func (s *FileSource) Stations() []router.StationChunk {
	return s.stations
}

func (s *FileSource) Close() error {
	return s.f.Close()
}
