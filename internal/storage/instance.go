package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"ytmirror/internal/logging"
)

const (
	lockTimeout  = 5 * time.Second
	probeTimeout = 2 * time.Second
)

// InstanceLock guarantees that at most one process works on a data
// directory. The holder listens on a unix socket derived from the data
// directory; a second process detects it by connecting to that socket.
type InstanceLock struct {
	socketPath string
	guard      *FileLock
	log        zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// NewInstanceLock returns the lock for dataDir. Nothing is touched until
// Acquire is called.
func NewInstanceLock(dataDir string, log zerolog.Logger) *InstanceLock {
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		abs = dataDir
	}
	socketPath := filepath.Join(os.TempDir(), "ytmirror-"+hashPath(abs)+".sock")
	return &InstanceLock{
		socketPath: socketPath,
		guard:      NewFileLock(socketPath + ".lock"),
		log:        logging.For(log, logging.IPC),
	}
}

// SocketPath returns the rendezvous endpoint for this data directory.
func (l *InstanceLock) SocketPath() string { return l.socketPath }

// Acquire binds the rendezvous socket. It returns false without error when
// another live instance already holds it. Any probe failure other than
// "nobody is listening" is returned as an error.
//
// The probe and the bind run under an advisory file lock so two processes
// starting at the same moment cannot both see an empty endpoint.
func (l *InstanceLock) Acquire() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listener != nil {
		return true, nil
	}

	l.log.Debug().Str("socket", l.socketPath).Msg("probing for running instance")

	if err := l.guard.Lock(lockTimeout); err != nil {
		return false, &StorageError{Op: "lock", Entity: "socket", ID: l.socketPath, Err: err}
	}
	defer l.guard.Unlock()

	conn, err := net.DialTimeout("unix", l.socketPath, probeTimeout)
	if err == nil {
		conn.Close()
		l.log.Error().Msg("another instance is already running, aborting")
		return false, nil
	}
	if !noHolder(err) {
		return false, &StorageError{Op: "probe", Entity: "socket", ID: l.socketPath, Err: err}
	}

	if err := os.Remove(l.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, &StorageError{Op: "cleanup", Entity: "socket", ID: l.socketPath, Err: err}
	}

	ln, err := net.Listen("unix", l.socketPath)
	if err != nil {
		return false, &StorageError{Op: "listen", Entity: "socket", ID: l.socketPath, Err: err}
	}
	l.listener = ln

	l.wg.Add(1)
	go l.serve(ln)

	l.log.Debug().Msg("instance lock acquired")
	return true, nil
}

// Release closes the socket. It is safe to call when Acquire failed or was
// never called, and safe to call more than once.
func (l *InstanceLock) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listener == nil {
		return nil
	}
	err := l.listener.Close()
	l.listener = nil
	l.wg.Wait()

	l.log.Debug().Msg("instance lock released")
	if err != nil {
		return &StorageError{Op: "release", Entity: "socket", ID: l.socketPath, Err: err}
	}
	return nil
}

// serve accepts probe connections and closes them right away.
func (l *InstanceLock) serve(ln net.Listener) {
	defer l.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Close()
	}
}

// noHolder reports whether a dial error means nobody listens on the socket.
func noHolder(err error) bool {
	return errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

// hashPath returns a short hash of a path.
func hashPath(p string) string {
	h := sha256.Sum256([]byte(p))
	return hex.EncodeToString(h[:8])
}
