// Package lyrics parses LRC-format synced lyric files into the ordered line
// list a practice session works through.
//
// The parser accepts the common LRC dialect: `[mm:ss.xx]` (or `[mm:ss.xxx]`)
// timestamps followed by the line text, one line per row, with optional
// metadata tags such as `[ar:...]` or `[ti:...]` that are skipped. A line's
// end time is the start of the following timestamped line; the last line has
// no end time. Timings are informational only — the scheduler never reads
// them — so untimed plain-text input is also accepted and yields zero
// timings.
package lyrics

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Line is one ordered unit of text to be practiced. Immutable once a
// session starts.
type Line struct {
	// Index is the zero-based position of the line within the song
	// segment. Order-significant and unique within a session.
	Index int

	// Text is the expected utterance.
	Text string

	// Start and End delimit the line in the backing track. Zero when the
	// source had no timestamps.
	Start time.Duration
	End   time.Duration
}

// ErrNoLines is returned when the input contains no singable lines.
var ErrNoLines = errors.New("lyrics: no lines found")

// timestampRe matches one leading LRC timestamp, e.g. [01:23.45] or
// [01:23.456]. Multiple stacked timestamps on one row are handled by
// repeated stripping.
var timestampRe = regexp.MustCompile(`^\[(\d{1,3}):(\d{2})(?:[.:](\d{1,3}))?\]`)

// metaRe matches LRC metadata tags such as [ar:Artist] or [offset:500].
var metaRe = regexp.MustCompile(`^\[[a-zA-Z#][^\]]*\]$`)

// ParseFile reads and parses the LRC file at path.
func ParseFile(path string) ([]Line, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lyrics: open %q: %w", path, err)
	}
	defer f.Close()

	lines, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("lyrics: parse %q: %w", path, err)
	}
	return lines, nil
}

// Parse reads LRC (or plain text) from r and returns the ordered lines.
// Returns [ErrNoLines] when nothing singable remains after stripping tags
// and blanks.
func Parse(r io.Reader) ([]Line, error) {
	var lines []Line

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		raw := strings.TrimSpace(sc.Text())
		if raw == "" || metaRe.MatchString(raw) {
			continue
		}

		// Strip every leading timestamp; a row may carry several when
		// the same words repeat at different points in the song. The
		// first one wins as the line's start.
		var (
			start    time.Duration
			hasStamp bool
		)
		for {
			m := timestampRe.FindStringSubmatch(raw)
			if m == nil {
				break
			}
			if !hasStamp {
				start = stampDuration(m)
				hasStamp = true
			}
			raw = strings.TrimSpace(raw[len(m[0]):])
		}

		if raw == "" {
			// Timestamped instrumental gap.
			continue
		}

		lines = append(lines, Line{
			Index: len(lines),
			Text:  raw,
			Start: start,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("lyrics: read: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrNoLines
	}

	// Each line ends where the next timestamped line begins.
	for i := 0; i < len(lines)-1; i++ {
		if lines[i+1].Start > 0 {
			lines[i].End = lines[i+1].Start
		}
	}
	return lines, nil
}

// stampDuration converts a timestampRe match into a duration. The fraction
// group may be centiseconds (2 digits) or milliseconds (3 digits).
func stampDuration(m []string) time.Duration {
	minutes, _ := strconv.Atoi(m[1])
	seconds, _ := strconv.Atoi(m[2])
	d := time.Duration(minutes)*time.Minute + time.Duration(seconds)*time.Second
	if m[3] != "" {
		frac, _ := strconv.Atoi(m[3])
		switch len(m[3]) {
		case 1:
			d += time.Duration(frac) * 100 * time.Millisecond
		case 2:
			d += time.Duration(frac) * 10 * time.Millisecond
		default:
			d += time.Duration(frac) * time.Millisecond
		}
	}
	return d
}
