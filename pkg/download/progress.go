package download

import (
	"github.com/sirupsen/logrus"
)

// logInterval is how many bytes pass between progress log lines.
const logInterval = 512 * 1024

// LogProgress returns a ProgressFunc that logs cumulative transfer progress
// for one download. Each call creates fresh state, so concurrent or repeated
// downloads never share a reporter.
func LogProgress(log *logrus.Entry, name string) ProgressFunc {
	var lastLogged int64
	return func(written, total int64) {
		done := total >= 0 && written >= total
		if written-lastLogged < logInterval && !done {
			return
		}
		lastLogged = written
		fields := logrus.Fields{"file": name, "bytes": written}
		if total >= 0 {
			fields["total"] = total
			fields["percent"] = int(float64(written) / float64(total) * 100)
		}
		log.WithFields(fields).Info("Downloading...")
	}
}
