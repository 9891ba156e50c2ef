package reports

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"
)

var csvHeader = []string{"name", "email", "payment_status", "attended", "attended_at", "xp_awarded"}

// WriteAttendanceCSV writes rows as CSV with a header line.
func WriteAttendanceCSV(w io.Writer, rows []AttendanceRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		attendedAt := ""
		if r.AttendedAt != nil {
			attendedAt = r.AttendedAt.UTC().Format(time.RFC3339)
		}
		rec := []string{
			safeCell(r.Name),
			safeCell(r.Email),
			r.PaymentStatus,
			strconv.FormatBool(r.Attended),
			attendedAt,
			strconv.Itoa(r.XPAwarded),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// safeCell stops spreadsheet apps from evaluating attendee-supplied text as a
// formula by prefixing a quote to cells that start with a formula trigger.
func safeCell(v string) string {
	if v != "" && strings.ContainsRune("=+-@\t\r", rune(v[0])) {
		return "'" + v
	}
	return v
}
