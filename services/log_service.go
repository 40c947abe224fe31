package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

const maxLogLine = 1024 * 1024

/**
 * Query over the debug log
 * @property {string} Service - Keep events of this service only
 * @property {string} Kind - Keep events of this kind only
 * @property {int} Tail - Keep the last N matches, 0 keeps all
 */
type LogQuery struct {
	Service string
	Kind    string
	Tail    int
}

// LogService reads back the JSON lines audit log.
type LogService struct {
	path string
}

func NewLogService(path string) *LogService {
	return &LogService{path: path}
}

func (q LogQuery) match(line map[string]interface{}) bool {
	if q.Service != "" && line["service"] != q.Service {
		return false
	}
	if q.Kind != "" && line["kind"] != q.Kind {
		return false
	}
	return true
}

/**
 * Read matching lines from the log
 * @param {LogQuery} q - Filters
 * @returns {([]string, error)} Raw lines in file order
 * @description
 * - Lines that aren't JSON objects are reported as an error, the log must
 *   never contain them
 */
func (ls *LogService) Read(q LogQuery) ([]string, error) {
	f, err := os.Open(ls.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLogLine)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		var line map[string]interface{}
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			return out, fmt.Errorf("%s:%d: malformed log line: %w", ls.path, lineNo, err)
		}
		if !q.match(line) {
			continue
		}
		out = append(out, sc.Text())
		if q.Tail > 0 && len(out) > q.Tail {
			out = out[1:]
		}
	}
	return out, sc.Err()
}
