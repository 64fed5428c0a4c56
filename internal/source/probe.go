package source

import (
	"net/url"
	"os"

	"github.com/dhowden/tag"
)

// Info describes the file behind a local locator.
type Info struct {
	Size   uint64
	Title  string
	Artist string
}

// localPath returns the filesystem path of a locator, or false for remote URLs.
func localPath(locator string) (string, bool) {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" {
		return locator, true
	}
	if u.Scheme == "file" {
		return u.Path, true
	}
	return "", false
}

// Probe stats a local locator and reads its tags when present. Remote
// locators and unreadable files yield a zero Info.
func Probe(locator string) Info {
	path, ok := localPath(locator)
	if !ok {
		return Info{}
	}

	f, err := os.Open(path)
	if err != nil {
		return Info{}
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		return Info{}
	}
	info := Info{Size: uint64(stat.Size())}

	// Untagged files (plain WAV, for one) are common; only size is reported then
	if m, err := tag.ReadFrom(f); err == nil {
		info.Title = m.Title()
		info.Artist = m.Artist()
	}
	return info
}
