package dispatch

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DailyCounter tracks how many emails went out today, persisted as a single
// line "YYYY-MM-DD|count". A date rollover resets the count implicitly.
type DailyCounter struct {
	Path  string
	Date  string
	Count int
}

// LoadCounter reads the counter file. A missing file, a stale date, or an
// unparseable line all start today at zero.
func LoadCounter(path string, today time.Time) (*DailyCounter, error) {
	c := &DailyCounter{
		Path: path,
		Date: today.Format("2006-01-02"),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read counter file: %w", err)
	}

	parts := strings.SplitN(strings.TrimSpace(string(data)), "|", 2)
	if len(parts) != 2 || parts[0] != c.Date {
		return c, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || n < 0 {
		return c, nil
	}
	c.Count = n
	return c, nil
}

// Remaining returns how many sends are left under the daily cap.
func (c *DailyCounter) Remaining(maxDaily int) int {
	r := maxDaily - c.Count
	if r < 0 {
		return 0
	}
	return r
}

// Increment bumps the count and persists immediately so an interrupt never
// under-counts.
func (c *DailyCounter) Increment() error {
	c.Count++
	return c.save()
}

func (c *DailyCounter) save() error {
	line := fmt.Sprintf("%s|%d\n", c.Date, c.Count)
	if err := os.WriteFile(c.Path, []byte(line), 0644); err != nil {
		return fmt.Errorf("failed to write counter file: %w", err)
	}
	return nil
}
