package recordio

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// indexEntry locates one record inside the .rec file.
type indexEntry struct {
	id     uint64
	offset int64
}

// readIndex parses a .idx file: one "<id>\t<offset>" line per record, in
// file order. Blank lines are ignored.
func readIndex(path string) ([]indexEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("recordio: open index %s: %w", path, err)
	}
	defer f.Close()

	var entries []indexEntry
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("recordio: %s:%d: malformed index line %q", path, line, text)
		}
		id, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("recordio: %s:%d: bad id: %w", path, line, err)
		}
		off, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("recordio: %s:%d: bad offset: %w", path, line, err)
		}
		entries = append(entries, indexEntry{id: id, offset: off})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("recordio: read index %s: %w", path, err)
	}
	return entries, nil
}
