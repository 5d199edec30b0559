package session

import (
	"fmt"
	"strings"
	"time"
)

// Filters are the photo-booth looks a participant can pick.
var Filters = []string{"90s", "2000s", "Noir", "Fisheye", "Rainbow", "Glitch", "Crosshatch"}

const DefaultFilter = "2000s"

// LookupFilter returns the canonical spelling of name.
func LookupFilter(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, f := range Filters {
		if strings.EqualFold(f, name) {
			return f, true
		}
	}
	return "", false
}

// FormatDuration renders d as H:MM:SS.
func FormatDuration(d time.Duration) string {
	secs := int64(d / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
