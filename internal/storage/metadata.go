package storage

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/govreposcrape/govsearch/internal/domain"
)

// User metadata keys. S3 lower-cases metadata names on the wire, so they are
// stored lower-case from the start.
const (
	MetaPushedAt    = "pushedat"
	MetaURL         = "url"
	MetaProcessedAt = "processedat"
	MetaLanguage    = "language"
	MetaOrg         = "org"
	MetaRepo        = "repo"
	MetaSize        = "size"
)

const (
	summaryPrefix = "gitingest"
	summaryFile   = "summary.txt"

	SummaryContentType = "text/plain; charset=utf-8"
)

// SummaryKey returns the object key of a repository summary
func SummaryKey(org, repo string) string {
	return fmt.Sprintf("%s/%s/%s/%s", summaryPrefix, org, repo, summaryFile)
}

// SummaryRecord is everything written next to a summary body
type SummaryRecord struct {
	Org      string
	Repo     string
	Metadata domain.ObjectMetadata
	Size     int
}

// EncodeMetadata converts a record to S3 user metadata. Empty values are
// omitted.
func EncodeMetadata(rec SummaryRecord) map[string]string {
	m := map[string]string{}
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	put(MetaPushedAt, rec.Metadata.PushedAt)
	put(MetaURL, rec.Metadata.SourceURL)
	put(MetaProcessedAt, rec.Metadata.ProcessedAt)
	put(MetaLanguage, rec.Metadata.Language)
	put(MetaOrg, rec.Org)
	put(MetaRepo, rec.Repo)
	if rec.Size > 0 {
		m[MetaSize] = strconv.Itoa(rec.Size)
	}
	return m
}

// DecodeMetadata reads summary metadata. Key lookup ignores case so objects
// written by older uploaders with camelCase keys are still understood.
func DecodeMetadata(m map[string]string) domain.ObjectMetadata {
	lower := make(map[string]string, len(m))
	for k, v := range m {
		lower[strings.ToLower(k)] = v
	}
	return domain.ObjectMetadata{
		PushedAt:    lower[MetaPushedAt],
		SourceURL:   lower[MetaURL],
		ProcessedAt: lower[MetaProcessedAt],
		Language:    lower[MetaLanguage],
	}
}
