package logsink

import (
	"fmt"
	"time"
)

// DateFolderFormat lays blobs out by day: YYYY/MM/DD
const DateFolderFormat = "%d/%02d/%02d"

func FormatDateFolder(year int, month int, day int) string {
	return fmt.Sprintf(DateFolderFormat, year, month, day)
}

// BlobPath is where a host writes its log lines for the day of t.
func BlobPath(t time.Time, host string) string {
	t = t.UTC()
	return FormatDateFolder(t.Year(), int(t.Month()), t.Day()) + "/" + host + ".jsonl"
}
