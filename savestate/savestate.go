package savestate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/projecteru2/core/log"

	"github.com/cocoonstack/emuhost/types"
	"github.com/cocoonstack/emuhost/utils"
)

const (
	MinSlot = 1
	MaxSlot = 10

	fileExt = ".cst"
)

// ErrInvalidSlot is returned for slots outside MinSlot..MaxSlot.
var ErrInvalidSlot = fmt.Errorf("slot must be in %d..%d", MinSlot, MaxSlot)

// SlotName is the file name of slot for a title. Slots written while a
// recording is active are scoped to that recording.
func SlotName(programID, movieID uint64, slot int) string {
	if movieID != 0 {
		return fmt.Sprintf("%016X.movie%016X.%02d%s", programID, movieID, slot, fileExt)
	}
	return fmt.Sprintf("%016X.%02d%s", programID, slot, fileExt)
}

// SlotPath joins dir and SlotName.
func SlotPath(dir string, programID, movieID uint64, slot int) string {
	return filepath.Join(dir, SlotName(programID, movieID, slot))
}

// List enumerates the slots of a title present in dir, in slot order.
// Unreadable or foreign files are skipped.
func List(ctx context.Context, dir string, programID, movieID uint64) []types.SaveState {
	logger := log.WithFunc("savestate.List")
	out := []types.SaveState{}
	for slot := MinSlot; slot <= MaxSlot; slot++ {
		path := SlotPath(dir, programID, movieID, slot)
		h, err := readHeaderFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			continue
		case err != nil:
			logger.Warnf(ctx, "skip %s: %v", path, err)
			continue
		case h.ProgramID != programID:
			logger.Warnf(ctx, "skip %s: %v", path, ErrProgramMismatch)
			continue
		}
		out = append(out, types.SaveState{Slot: slot, Time: h.Time})
	}
	return out
}

// Write stores payload in slot atomically: a partially written slot never
// replaces a good one.
func Write(dir string, h Header, movieID uint64, slot int, payload []byte) error {
	if slot < MinSlot || slot > MaxSlot {
		return ErrInvalidSlot
	}
	if err := utils.EnsureDirs(dir); err != nil {
		return err
	}
	head, err := h.MarshalBinary()
	if err != nil {
		return err
	}
	path := SlotPath(dir, h.ProgramID, movieID, slot)
	tmp, err := os.CreateTemp(dir, ".slot-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck
	if _, err := tmp.Write(head); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return fmt.Errorf("write %s: %w", path, err)
	}
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

// Read returns the header and payload of slot. The header must belong to
// programID.
func Read(dir string, programID, movieID uint64, slot int) (Header, []byte, error) {
	if slot < MinSlot || slot > MaxSlot {
		return Header{}, nil, ErrInvalidSlot
	}
	path := SlotPath(dir, programID, movieID, slot)
	f, err := os.Open(path) //nolint:gosec // path built from ids
	if err != nil {
		return Header{}, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck
	h, err := ReadHeader(f)
	if err != nil {
		return Header{}, nil, fmt.Errorf("%s: %w", path, err)
	}
	if h.ProgramID != programID {
		return Header{}, nil, fmt.Errorf("%s: %w", path, ErrProgramMismatch)
	}
	payload, err := io.ReadAll(f)
	if err != nil {
		return Header{}, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return h, payload, nil
}

func readHeaderFile(path string) (Header, error) {
	f, err := os.Open(path) //nolint:gosec // path built from ids
	if err != nil {
		return Header{}, err
	}
	defer f.Close() //nolint:errcheck
	return ReadHeader(f)
}
