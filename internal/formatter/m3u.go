package formatter

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/desertthunder/tunebox/internal/shared"
)

const (
	m3uHeader   = "#EXTM3U"
	m3uPlaylist = "#PLAYLIST:"
	m3uInfo     = "#EXTINF:"
)

// M3U is an extended M3U playlist.
type M3U struct {
	Title   string
	Entries []M3UEntry
	Skipped int // remote entries dropped while parsing
}

// M3UEntry is one playlist line plus the #EXTINF line before it, if any.
type M3UEntry struct {
	Location string
	Display  string // "Artist - Title" by convention
	Duration int    // seconds; zero or less is unknown
}

// Artist returns the part of Display before " - ".
func (e M3UEntry) Artist() string {
	if artist, _, ok := strings.Cut(e.Display, " - "); ok {
		return strings.TrimSpace(artist)
	}
	return ""
}

// Title returns the title from Display, or the file name without its extension.
func (e M3UEntry) Title() string {
	if e.Display != "" {
		if _, title, ok := strings.Cut(e.Display, " - "); ok {
			return strings.TrimSpace(title)
		}
		return strings.TrimSpace(e.Display)
	}
	name := e.BaseName()
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}

// BaseName returns the last segment of Location. Both slash styles are separators so playlists
// written on Windows resolve too.
func (e M3UEntry) BaseName() string {
	loc := strings.TrimRight(e.Location, `/\`)
	if i := strings.LastIndexAny(loc, `/\`); i >= 0 {
		return loc[i+1:]
	}
	return loc
}

// WriteM3U writes p with the #EXTM3U header, a #PLAYLIST title and an #EXTINF line per entry
// that has a display name or duration.
func WriteM3U(w io.Writer, p *M3U) error {
	var buf bytes.Buffer
	buf.WriteString(m3uHeader + "\n")
	if p.Title != "" {
		buf.WriteString(m3uPlaylist + oneLine(p.Title) + "\n")
	}

	for _, e := range p.Entries {
		if e.Display != "" || e.Duration > 0 {
			duration := e.Duration
			if duration <= 0 {
				duration = -1
			}
			fmt.Fprintf(&buf, "%s%d,%s\n", m3uInfo, duration, oneLine(e.Display))
		}
		buf.WriteString(oneLine(e.Location) + "\n")
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write playlist: %w", err)
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ParseM3U reads an extended M3U playlist.
//
// The first line must be #EXTM3U. The first #PLAYLIST tag names the playlist; #EXTINF attaches to
// the next entry; other tags are ignored. Entries starting with "http" are counted in Skipped and
// dropped.
func ParseM3U(r io.Reader) (*M3U, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrIO, err)
		}
		return nil, fmt.Errorf("%w: empty playlist", shared.ErrDeserialization)
	}
	if strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff")) != m3uHeader {
		return nil, fmt.Errorf("%w: missing %s header", shared.ErrDeserialization, m3uHeader)
	}

	p := &M3U{}
	var pending *M3UEntry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
		case strings.HasPrefix(line, m3uPlaylist):
			if p.Title == "" {
				p.Title = strings.TrimSpace(strings.TrimPrefix(line, m3uPlaylist))
			}
		case strings.HasPrefix(line, m3uInfo):
			e := parseInfo(strings.TrimPrefix(line, m3uInfo))
			pending = &e
		case strings.HasPrefix(line, "#"):
		case strings.HasPrefix(strings.ToLower(line), "http"):
			p.Skipped++
			pending = nil
		default:
			e := M3UEntry{Location: line}
			if pending != nil {
				e.Display, e.Duration = pending.Display, pending.Duration
				pending = nil
			}
			p.Entries = append(p.Entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrIO, err)
	}
	return p, nil
}

// parseInfo reads `<duration>[ attributes],<display>`.
func parseInfo(s string) M3UEntry {
	head, display, _ := strings.Cut(s, ",")
	e := M3UEntry{Display: strings.TrimSpace(display)}
	if fields := strings.Fields(head); len(fields) > 0 {
		if d, err := strconv.ParseFloat(fields[0], 64); err == nil && d > 0 {
			e.Duration = int(d)
		}
	}
	return e
}
