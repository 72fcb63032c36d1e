package ingest

import (
	"context"
	"net/http"

	"github.com/go-enry/go-enry/v2"
	"github.com/gofri/go-github-ratelimit/github_ratelimit"
	"github.com/google/go-github/v81/github"
)

// LanguageSource names the primary language of a repository
type LanguageSource interface {
	Detect(ctx context.Context, org, name string, files []FileStat) string
}

// LanguageDetector asks the GitHub API for the primary language and falls
// back to extension-based detection over the digested files.
type LanguageDetector struct {
	gh *github.Client
}

// NewLanguageDetector creates a detector backed by a rate-limit aware GitHub
// client. An empty token uses unauthenticated requests.
func NewLanguageDetector(token string) (*LanguageDetector, error) {
	rateLimiter, err := github_ratelimit.NewRateLimitWaiterClient(nil)
	if err != nil {
		return nil, err
	}
	gh := github.NewClient(rateLimiter)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	return &LanguageDetector{gh: gh}, nil
}

// NewOfflineLanguageDetector never calls GitHub.
func NewOfflineLanguageDetector() *LanguageDetector {
	return &LanguageDetector{}
}

func newLanguageDetector(httpClient *http.Client, baseURL string) (*LanguageDetector, error) {
	gh, err := github.NewClient(httpClient).WithEnterpriseURLs(baseURL, baseURL)
	if err != nil {
		return nil, err
	}
	return &LanguageDetector{gh: gh}, nil
}

func (d *LanguageDetector) Detect(ctx context.Context, org, name string, files []FileStat) string {
	if d.gh != nil {
		repo, _, err := d.gh.Repositories.Get(ctx, org, name)
		if err == nil && repo.GetLanguage() != "" {
			return repo.GetLanguage()
		}
	}
	return DetectFromFiles(files)
}

// DetectFromFiles returns the programming language with the most bytes among
// files, or "" when none is recognised.
func DetectFromFiles(files []FileStat) string {
	totals := map[string]int64{}
	for _, f := range files {
		if enry.IsVendor(f.Path) || enry.IsDocumentation(f.Path) {
			continue
		}
		lang, _ := enry.GetLanguageByExtension(f.Path)
		if lang == "" || enry.GetLanguageType(lang) != enry.Programming {
			continue
		}
		// count empty files so a tiny repo still gets a language
		totals[lang] += max(f.Size, 1)
	}

	var best string
	var bestBytes int64
	for lang, n := range totals {
		if n > bestBytes || (n == bestBytes && lang < best) {
			best, bestBytes = lang, n
		}
	}
	return best
}
