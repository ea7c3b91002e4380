package streamlog

import (
	"io"
	"os"

	"github.com/goccy/go-json"

	bberrors "github.com/Milkshiift/BigBrother-bot/internal/errors"
	"github.com/Milkshiift/BigBrother-bot/internal/model"
)

// chunkSize matches the original implementation's backward-scan window.
const chunkSize = 64 * 1024

// LastMessageID scans a channel's message stream backwards to find the
// id of the most recently written `c` or `u` event, used by the Catchup
// Engine to derive the "after" pagination cursor (§4.E). An absent or
// empty file yields (0, false, nil). Torn or undecodable lines are
// skipped and the scan continues backwards; if no `c`/`u` line is found
// at all, it returns ErrCursorUnreadable, and callers fall back to full
// history and log a warning per §7's corruption-on-read policy.
func LastMessageID(path string) (uint64, bool, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, false, err
	}
	size := info.Size()
	if size == 0 {
		return 0, false, nil
	}

	buf := make([]byte, chunkSize)
	var suffix []byte
	pos := size

	for pos > 0 {
		readLen := int64(chunkSize)
		if pos < readLen {
			readLen = pos
		}
		pos -= readLen

		if _, err := f.Seek(pos, io.SeekStart); err != nil {
			return 0, false, err
		}
		if _, err := io.ReadFull(f, buf[:readLen]); err != nil {
			return 0, false, err
		}
		window := buf[:readLen]
		cursor := int(readLen)

		for {
			nl := lastIndexByte(window[:cursor], '\n')
			if nl < 0 {
				break
			}
			line := window[nl+1 : cursor]
			var toParse []byte
			if len(suffix) == 0 {
				toParse = line
			} else {
				toParse = append(append([]byte{}, line...), suffix...)
			}
			suffix = nil

			if id, ok := tryExtractID(toParse); ok {
				return id, true, nil
			}
			cursor = nl
		}

		if cursor > 0 {
			prefix := window[:cursor]
			combined := make([]byte, 0, len(prefix)+len(suffix))
			combined = append(combined, prefix...)
			combined = append(combined, suffix...)
			suffix = combined
		}
	}

	if len(suffix) > 0 {
		if id, ok := tryExtractID(suffix); ok {
			return id, true, nil
		}
	}

	return 0, false, bberrors.ErrCursorUnreadable
}

func tryExtractID(b []byte) (uint64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var frame model.ScanFrame
	if err := json.Unmarshal(b, &frame); err != nil {
		return 0, false
	}
	if frame.Tag == model.TagCreate || frame.Tag == model.TagUpdate {
		return frame.ID, true
	}
	return 0, false
}

func lastIndexByte(b []byte, c byte) int {
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == c {
			return i
		}
	}
	return -1
}
