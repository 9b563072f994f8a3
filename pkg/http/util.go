package http

import (
	"time"

	xutil "FinScore/pkg/util"
)

// ParseTime tries RFC3339, RFC3339Nano, date-only and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }
