package service

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/govreposcrape/govsearch/internal/domain"
)

// SummaryFilePath is the published file path of a whole-repository summary.
const SummaryFilePath = "summary"

var (
	segmentPattern   = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	summaryFileNames = map[string]bool{"summary.txt": true, "summary.md": true}
	summaryExts      = map[string]bool{".md": true, ".txt": true}
)

// parsedPath is a storage path split into identity and in-repo file
type parsedPath struct {
	org  string
	name string
	file string
}

// parseStoragePath accepts:
//
//	<prefix>/<org>/<name>/<suffix...>
//	<prefix>/<org>/<name>.md
//	<org>/<name>.md
//
// with an optional scheme://bucket/ in front.
//
// Three segments ending in .md or .txt are always read as the prefixed
// summary layout, so "org/name/file.md" yields identity name/file. A
// repository-relative file needs the leading prefix segment to be recognised.
func parseStoragePath(p string) (parsedPath, bool) {
	if i := strings.Index(p, "://"); i >= 0 {
		rest := p[i+3:]
		slash := strings.IndexByte(rest, '/')
		if slash < 0 {
			return parsedPath{}, false
		}
		p = rest[slash+1:]
	}
	p = strings.Trim(p, "/")
	if p == "" {
		return parsedPath{}, false
	}

	segs := strings.Split(p, "/")
	var out parsedPath
	switch {
	case len(segs) >= 4:
		out = parsedPath{org: segs[1], name: segs[2], file: strings.Join(segs[3:], "/")}
	case len(segs) == 3 && summaryExts[path.Ext(segs[2])]:
		out = parsedPath{org: segs[1], name: strings.TrimSuffix(segs[2], path.Ext(segs[2]))}
	case len(segs) == 2 && summaryExts[path.Ext(segs[1])]:
		out = parsedPath{org: segs[0], name: strings.TrimSuffix(segs[1], path.Ext(segs[1]))}
	default:
		return parsedPath{}, false
	}

	if !segmentPattern.MatchString(out.org) || !segmentPattern.MatchString(out.name) {
		return parsedPath{}, false
	}
	if summaryFileNames[out.file] {
		out.file = ""
	}
	return out, true
}

// ParseStoragePath extracts the repository identity from a storage path.
// Unparseable paths yield the unknown identity and false.
func ParseStoragePath(p string) (domain.RepositoryIdentity, bool) {
	parsed, ok := parseStoragePath(p)
	if !ok {
		return domain.UnknownRepository(), false
	}
	return domain.NewRepositoryIdentity(parsed.org, parsed.name), true
}

// FilePathFromStoragePath returns the in-repository path a hit refers to, or
// SummaryFilePath when the object summarises the whole repository.
func FilePathFromStoragePath(p string) string {
	parsed, ok := parseStoragePath(p)
	if !ok || parsed.file == "" {
		return SummaryFilePath
	}
	return parsed.file
}

// BuildLinks derives the primary and alternate links for a repository.
func BuildLinks(id domain.RepositoryIdentity) domain.RepositoryLinks {
	return domain.RepositoryLinks{
		Primary:    fmt.Sprintf("https://github.com/%s/%s", id.Org, id.Name),
		GitHubDev:  fmt.Sprintf("https://github.dev/%s/%s", id.Org, id.Name),
		Codespaces: fmt.Sprintf("https://codespaces.new/%s/%s", id.Org, id.Name),
	}
}
