package model

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// ErrMalformedRelease is returned when a line cannot be parsed as a release.
var ErrMalformedRelease = errors.New("malformed release line")

// Release identifies one album to be sourced from the network.
//
// A Release is an immutable value. Its canonical textual form is
// "Artist - Title (Year)", produced by String and parsed back by
// ParseRelease; the two are exact inverses. A release with Year 0
// (year unknown) formats as "Artist - Title" and parses back the same.
//
// Example:
//
//	r := model.Release{Artist: "Radiohead", Title: "OK Computer", Year: 1997}
//	r.String() // "Radiohead - OK Computer (1997)"
type Release struct {
	// Artist is the album artist name.
	Artist string

	// Title is the album title.
	Title string

	// Year is the release year, or 0 when unknown.
	Year int
}

// releaseLine matches "Artist - Title (Year)" with an optional year suffix.
// The artist group is non-greedy so the first " - " wins as separator.
var releaseLine = regexp.MustCompile(`^(.+?) - (.+?)(?: \((\d{4})\))?$`)

// String formats the release in its canonical form.
func (r Release) String() string {
	if r.Year == 0 {
		return fmt.Sprintf("%s - %s", r.Artist, r.Title)
	}
	return fmt.Sprintf("%s - %s (%d)", r.Artist, r.Title, r.Year)
}

// Query builds the network search query for the release.
//
// The year is deliberately omitted: peers rarely include it in share
// paths and it only narrows results.
func (r Release) Query() string {
	return fmt.Sprintf("%s %s", r.Artist, r.Title)
}

// ParseRelease parses the canonical "Artist - Title (Year)" form.
//
// It is the exact inverse of String. Any other shape fails with an
// error wrapping ErrMalformedRelease.
func ParseRelease(line string) (Release, error) {
	m := releaseLine.FindStringSubmatch(line)
	if m == nil {
		return Release{}, fmt.Errorf("%w: %q", ErrMalformedRelease, line)
	}

	year := 0
	if m[3] != "" {
		y, err := strconv.Atoi(m[3])
		if err != nil {
			return Release{}, fmt.Errorf("%w: %q", ErrMalformedRelease, line)
		}
		year = y
	}

	return Release{Artist: m[1], Title: m[2], Year: year}, nil
}

// LineError reports a malformed line in a release list, with its
// 1-based line number.
type LineError struct {
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// ParseReleaseList reads newline-separated canonical release strings.
//
// Blank lines are ignored. Malformed lines are never silently dropped:
// in strict mode the first one aborts parsing with its line number; in
// lenient mode they are skipped and all reported in the second return
// value.
func ParseReleaseList(r io.Reader, strict bool) ([]Release, []*LineError, error) {
	var (
		releases []Release
		bad      []*LineError
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		rel, err := ParseRelease(line)
		if err != nil {
			lerr := &LineError{Line: lineNo, Text: line, Err: err}
			if strict {
				return nil, nil, lerr
			}
			bad = append(bad, lerr)
			continue
		}
		releases = append(releases, rel)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}

	return releases, bad, nil
}
