package model

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/YuminosukeSato/taxifare/pkg/errors"
)

// Container layout (little-endian):
//
//	magic "TXFM" | version uint16 | stage count uint32
//	per stage: kind length uint16 | kind | payload length uint64 | payload
//	crc32 (IEEE) of every preceding byte
const (
	// FormatVersion is the container version written by Save.
	FormatVersion uint16 = 1

	maxStages  = 1 << 16
	maxPayload = 1 << 31
)

var magic = [4]byte{'T', 'X', 'F', 'M'}

// pathLocks serialises Save and Load on the same file within the process.
var pathLocks sync.Map

func lockPath(path string) (unlock func()) {
	key := filepath.Clean(path)
	if abs, err := filepath.Abs(path); err == nil {
		key = abs
	}
	v, _ := pathLocks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Save writes stages to path. The container is written to a temporary file
// in the same directory and renamed over path once complete, so a failed
// save leaves any previous model untouched. Saves and loads of one path are
// mutually exclusive.
//
//	err := model.Save("Data/Model.bin", fitted.Stages())
func Save(path string, stages []Stage) (err error) {
	unlock := lockPath(path)
	defer unlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.NewIOError("create", path, err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := Encode(w, stages); err != nil {
		return errors.Wrapf(err, "save model to %s", path)
	}
	if err := w.Flush(); err != nil {
		return errors.NewIOError("write", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return errors.NewIOError("chmod", path, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewIOError("close", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.NewIOError("rename", path, err)
	}
	return nil
}

// Load reads every stage from the container at path, decoding each payload
// with the constructor registered for its kind.
func Load(path string, registry *Registry) ([]Stage, error) {
	unlock := lockPath(path)
	defer unlock()

	file, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIOError("open", path, err)
	}
	defer file.Close()

	return Decode(file, registry, path)
}

// Encode writes the container to w.
func Encode(w io.Writer, stages []Stage) error {
	if len(stages) >= maxStages {
		return errors.NewValidationError("stages", "too many stages for container", len(stages))
	}

	crc := crc32.NewIEEE()
	out := io.MultiWriter(w, crc)

	header := make([]byte, 0, 10)
	header = append(header, magic[:]...)
	header = binary.LittleEndian.AppendUint16(header, FormatVersion)
	header = binary.LittleEndian.AppendUint32(header, uint32(len(stages)))
	if _, err := out.Write(header); err != nil {
		return errors.WithStack(err)
	}

	for i, stage := range stages {
		kind := stage.Kind()
		if len(kind) == 0 || len(kind) > math.MaxUint16 {
			return errors.NewValidationError("kind", "stage kind length out of range", kind)
		}
		payload, err := stage.MarshalBinary()
		if err != nil {
			return errors.NewModelError(fmt.Sprintf("encode stage %d (%s)", i, kind), "marshal failed", err)
		}

		buf := make([]byte, 0, 2+len(kind)+8)
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(kind)))
		buf = append(buf, kind...)
		buf = binary.LittleEndian.AppendUint64(buf, uint64(len(payload)))
		if _, err := out.Write(buf); err != nil {
			return errors.WithStack(err)
		}
		if _, err := out.Write(payload); err != nil {
			return errors.WithStack(err)
		}
	}

	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], crc.Sum32())
	if _, err := w.Write(trailer[:]); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// Header describes a container without decoding its stages.
type Header struct {
	Version uint16
	Kinds   []string
}

// ReadHeader verifies the container at path and returns its version and
// stage kinds in order.
func ReadHeader(path string) (Header, error) {
	unlock := lockPath(path)
	defer unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, errors.NewIOError("read", path, err)
	}
	body, err := verify(data, path)
	if err != nil {
		return Header{}, err
	}
	var h Header
	err = walk(body, path, func(version uint16, kind string, _ []byte) error {
		h.Version = version
		h.Kinds = append(h.Kinds, kind)
		return nil
	})
	return h, err
}

// Decode reads a container from r. name is used in error messages only.
func Decode(r io.Reader, registry *Registry, name string) ([]Stage, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.NewIOError("read", name, err)
	}
	body, err := verify(data, name)
	if err != nil {
		return nil, err
	}

	var stages []Stage
	err = walk(body, name, func(_ uint16, kind string, payload []byte) error {
		stage, err := registry.decode(kind, payload)
		if err != nil {
			return errors.NewSerializationError(name, fmt.Sprintf("decode stage %d (%s)", len(stages), kind), err)
		}
		stages = append(stages, stage)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stages, nil
}

// verify checks magic, version and checksum and returns the bytes covered by
// the checksum.
func verify(data []byte, name string) ([]byte, error) {
	if len(data) < len(magic)+2+4+4 {
		return nil, errors.NewSerializationError(name, "file too short", nil)
	}
	if !bytes.Equal(data[:4], magic[:]) {
		return nil, errors.NewSerializationError(name, "not a model container (bad magic)", nil)
	}
	version := binary.LittleEndian.Uint16(data[4:6])
	if version != FormatVersion {
		return nil, errors.NewSerializationError(name, fmt.Sprintf("unsupported format version %d (want %d)", version, FormatVersion), nil)
	}
	body := data[:len(data)-4]
	want := binary.LittleEndian.Uint32(data[len(data)-4:])
	if got := crc32.ChecksumIEEE(body); got != want {
		return nil, errors.NewSerializationError(name, fmt.Sprintf("checksum mismatch (stored %08x, computed %08x)", want, got), nil)
	}
	return body, nil
}

func walk(body []byte, name string, fn func(version uint16, kind string, payload []byte) error) error {
	version := binary.LittleEndian.Uint16(body[4:6])
	count := binary.LittleEndian.Uint32(body[6:10])
	if count >= maxStages {
		return errors.NewSerializationError(name, fmt.Sprintf("implausible stage count %d", count), nil)
	}

	rest := body[10:]
	for i := uint32(0); i < count; i++ {
		if len(rest) < 2 {
			return errors.NewSerializationError(name, fmt.Sprintf("stage %d: truncated kind length", i), nil)
		}
		kindLen := int(binary.LittleEndian.Uint16(rest))
		rest = rest[2:]
		if len(rest) < kindLen+8 {
			return errors.NewSerializationError(name, fmt.Sprintf("stage %d: truncated kind", i), nil)
		}
		kind := string(rest[:kindLen])
		rest = rest[kindLen:]

		payloadLen := binary.LittleEndian.Uint64(rest)
		rest = rest[8:]
		if payloadLen > maxPayload || uint64(len(rest)) < payloadLen {
			return errors.NewSerializationError(name, fmt.Sprintf("stage %d (%s): truncated payload", i, kind), nil)
		}
		if err := fn(version, kind, rest[:payloadLen]); err != nil {
			return err
		}
		rest = rest[payloadLen:]
	}
	if len(rest) != 0 {
		return errors.NewSerializationError(name, fmt.Sprintf("%d trailing bytes after last stage", len(rest)), nil)
	}
	return nil
}
