package http

import (
	"time"

	xutil "MarketSignal/pkg/util"
)

// ParseTime parses RFC 3339, a plain date or unix seconds.
func ParseTime(s string) (time.Time, bool) { return xutil.ParseTime(s) }
