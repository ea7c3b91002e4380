package streamlog

import (
	"bufio"
	"io"
	"os"
)

// ReadLines reads every newline-terminated line of an NDJSON file into
// memory. A torn trailing line with no terminating newline is silently
// dropped (self-synchronizing recovery, §4.A/§8 Property 2). Returns a
// nil slice, not an error, if path does not exist yet.
func ReadLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines [][]byte
	r := bufio.NewReaderSize(f, 64*1024)
	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			trimmed := line[:len(line)-1]
			if len(trimmed) > 0 {
				cp := make([]byte, len(trimmed))
				copy(cp, trimmed)
				lines = append(lines, cp)
			}
		}
		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return lines, err
		}
	}
}
