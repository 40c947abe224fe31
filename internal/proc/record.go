package proc

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"hivekeeper/internal/models"

	"golang.org/x/sys/unix"
)

// RecordFile is the runtime record kept in the service directory.
const RecordFile = "hivekeeper.pid"

var (
	ErrNoRecord     = errors.New("no runtime record")
	ErrRecordExists = errors.New("runtime record held by a live process")
)

/**
 * Durable runtime record of a running service
 * @property {int} host_pid - Supervising process, owner of the record lock
 * @property {int} pid - Decoy process, 0 until spawned
 */
type Record struct {
	Service   string           `json:"service"`
	RunID     string           `json:"run_id"`
	HostPid   int              `json:"host_pid"`
	Pid       int              `json:"pid"`
	Port      int              `json:"port"`
	Protocol  string           `json:"protocol,omitempty"`
	Mode      models.StartMode `json:"mode"`
	StartTime time.Time        `json:"start_time"`
}

func recordPath(home, service string) string {
	return filepath.Join(home, service, RecordFile)
}

/**
 * RecordLock is an open, exclusively locked runtime record
 * @description
 * - The owner keeps the file open for its whole lifetime; the flock
 *   disappears with the process, so a record nobody holds is stale
 */
type RecordLock struct {
	path string
	file *os.File
	rec  Record
}

/**
 * Create the runtime record for a service
 * @param {string} home - Home directory
 * @param {Record} rec - Initial record content
 * @returns {(*RecordLock, error)} Held record or ErrRecordExists
 * @description
 * - O_EXCL creation, a stale record (file present, lock free) is replaced
 * - The file is only owned once it is locked and still linked at path
 */
func CreateRecord(home string, rec Record) (*RecordLock, error) {
	path := recordPath(home, rec.Service)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create record directory: %w", err)
	}
	for attempt := 0; attempt < 5; attempt++ {
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			if err := removeStale(path); err != nil {
				if errors.Is(err, ErrRecordExists) {
					return nil, err
				}
				return nil, fmt.Errorf("remove stale record: %w", err)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create record: %w", err)
		}
		linked, err := lockFile(f, path)
		if errors.Is(err, unix.EWOULDBLOCK) {
			// locked by another creator checking or removing it
			f.Close()
			continue
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("lock record: %w", err)
		}
		if !linked {
			// replaced as stale before we held the lock
			f.Close()
			continue
		}
		rl := &RecordLock{path: path, file: f}
		if err := rl.Update(rec); err != nil {
			rl.Release()
			return nil, err
		}
		return rl, nil
	}
	return nil, ErrRecordExists
}

// lockFile takes the exclusive lock on f and reports whether path still
// names f. Another creator may have removed it as stale before the lock.
func lockFile(f *os.File, path string) (bool, error) {
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		return false, err
	}
	held, err := f.Stat()
	if err != nil {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		return false, err
	}
	cur, err := os.Stat(path)
	if err != nil || !os.SameFile(held, cur) {
		unix.Flock(int(f.Fd()), unix.LOCK_UN)
		return false, nil
	}
	return true, nil
}

// Update rewrites the record in place, keeping the lock.
func (rl *RecordLock) Update(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := rl.file.Truncate(0); err != nil {
		return fmt.Errorf("truncate record: %w", err)
	}
	if _, err := rl.file.WriteAt(append(data, '\n'), 0); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := rl.file.Sync(); err != nil {
		return fmt.Errorf("sync record: %w", err)
	}
	rl.rec = rec
	return nil
}

func (rl *RecordLock) Record() Record {
	return rl.rec
}

// Release removes the record and drops the lock.
func (rl *RecordLock) Release() error {
	if rl.file == nil {
		return nil
	}
	err := os.Remove(rl.path)
	unix.Flock(int(rl.file.Fd()), unix.LOCK_UN)
	rl.file.Close()
	rl.file = nil
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove record: %w", err)
	}
	return nil
}

// ReadRecord loads the runtime record of a service.
func ReadRecord(home, service string) (*Record, error) {
	data, err := os.ReadFile(recordPath(home, service))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoRecord
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", recordPath(home, service), err)
	}
	return &rec, nil
}

// RemoveRecord deletes a record left behind by a dead owner. A record held
// by a live process stays and ErrRecordExists is returned.
func RemoveRecord(home, service string) error {
	return removeStale(recordPath(home, service))
}

// removeStale unlinks path while holding its lock, so it can never remove
// a record another process has just locked.
func removeStale(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	linked, err := lockFile(f, path)
	if errors.Is(err, unix.EWOULDBLOCK) {
		return ErrRecordExists
	}
	if err != nil {
		return err
	}
	if !linked {
		return nil
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// RecordHeld reports whether a live process holds the record lock.
func RecordHeld(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	if err := unix.Flock(int(f.Fd()), unix.LOCK_SH|unix.LOCK_NB); err != nil {
		return errors.Is(err, unix.EWOULDBLOCK)
	}
	unix.Flock(int(f.Fd()), unix.LOCK_UN)
	return false
}

// RecordAlive reports whether the service's record is held.
func RecordAlive(home, service string) bool {
	return RecordHeld(recordPath(home, service))
}
