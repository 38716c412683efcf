// Package iocapture forwards a child process's stderr, line by line, to the
// domain/logging.Logger port, the way the retrieved daemon's own
// logging.LineWriter buffers partial writes until a newline is seen.
// Stdout is not captured here: it carries the cbor-framed Transport stream
// and must reach the pipe adapter untouched.
package iocapture

import (
	"bufio"
	"io"

	"github.com/danbao/testring-sub000/internal/domain/logging"
)

// ForwardLines copies complete lines from r to log.Info under the given
// field key until r returns an error or is closed. It runs until EOF and
// does not return an error: a broken child stderr pipe is not itself a
// failure worth propagating.
func ForwardLines(r io.Reader, log logging.Logger, workerID string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		log.Info(scanner.Text(), logging.F("workerId", workerID), logging.F("stream", "stderr"))
	}
}
