package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-enry/go-enry/v2"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/go-git/go-git/v5"
	gitignore "github.com/go-git/go-git/v5/plumbing/format/gitignore"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/storage/memory"
	defaultignore "github.com/sabhiram/go-gitignore"
)

const (
	DefaultMaxFileSize      = 512 * 1024
	DefaultSummarizeTimeout = 5 * time.Minute

	binarySniffBytes = 8000
	digestRule       = "================================================"
)

// ErrSummarizeTimeout is returned when a repository takes longer than the
// configured timeout to clone and digest.
var ErrSummarizeTimeout = errors.New("summarize timed out")

// FileStat is a file included in a digest
type FileStat struct {
	Path string
	Size int64
}

// Summary is the text digest of one repository
type Summary struct {
	Repository string
	Content    string
	Files      []FileStat
}

type Summarizer interface {
	Summarize(ctx context.Context, repo string, cloneURL string) (*Summary, error)
}

type GitSummarizerConfig struct {
	MaxFileSize int64
	Timeout     time.Duration
	// Token authenticates clones of private repositories. Optional.
	Token string
}

// GitSummarizer shallow-clones a repository into memory and digests its tree.
type GitSummarizer struct {
	maxFileSize int64
	timeout     time.Duration
	token       string
}

func NewGitSummarizer(cfg GitSummarizerConfig) *GitSummarizer {
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSummarizeTimeout
	}
	return &GitSummarizer{maxFileSize: cfg.MaxFileSize, timeout: cfg.Timeout, token: cfg.Token}
}

func (s *GitSummarizer) Summarize(ctx context.Context, repo, cloneURL string) (*Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := &git.CloneOptions{
		URL:          cloneURL,
		Depth:        1,
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	if s.token != "" {
		opts.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: s.token}
	}

	fs := memfs.New()
	if _, err := git.CloneContext(ctx, memory.NewStorage(), fs, opts); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %s", ErrSummarizeTimeout, s.timeout, repo)
		}
		return nil, fmt.Errorf("failed to clone %s: %w", cloneURL, err)
	}

	summary, err := BuildDigest(ctx, fs, repo, s.maxFileSize)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w after %s: %s", ErrSummarizeTimeout, s.timeout, repo)
	}
	return summary, err
}

// BuildDigest walks fs and renders a gitingest-style digest: a header, the
// directory tree, then one FILE section per included file. Ignored paths,
// binaries and files over maxFileSize are left out.
func BuildDigest(ctx context.Context, fs billy.Filesystem, repo string, maxFileSize int64) (*Summary, error) {
	ignore := newIgnoreMatcher(fs)

	var files []FileStat
	err := util.Walk(fs, "/", func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel := strings.TrimPrefix(filepath.ToSlash(path), "/")
		if rel == "" {
			return nil
		}
		if ignore.ignored(rel, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}
		if info.Size() > maxFileSize {
			return nil
		}
		files = append(files, FileStat{Path: rel, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk repository tree: %w", err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	var body strings.Builder
	included := files[:0]
	for _, f := range files {
		content, err := util.ReadFile(fs, f.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
		}
		if enry.IsBinary(content[:min(len(content), binarySniffBytes)]) {
			continue
		}
		included = append(included, f)

		fmt.Fprintf(&body, "%s\nFILE: %s\n%s\n", digestRule, f.Path, digestRule)
		body.Write(content)
		if len(content) > 0 && content[len(content)-1] != '\n' {
			body.WriteByte('\n')
		}
		body.WriteByte('\n')
	}

	var out strings.Builder
	fmt.Fprintf(&out, "Repository: %s\n", repo)
	fmt.Fprintf(&out, "Files analyzed: %d\n\n", len(included))
	out.WriteString("Directory structure:\n")
	writeTree(&out, strings.ReplaceAll(repo, "/", "-"), included)
	out.WriteString("\n")
	out.WriteString(body.String())

	return &Summary{Repository: repo, Content: out.String(), Files: included}, nil
}

// ignoreMatcher combines the repository's own .gitignore files with a fixed
// list of paths that never belong in a digest.
type ignoreMatcher struct {
	defaults *defaultignore.GitIgnore
	repo     gitignore.Matcher
}

func newIgnoreMatcher(fs billy.Filesystem) *ignoreMatcher {
	m := &ignoreMatcher{defaults: defaultignore.CompileIgnoreLines(defaultIgnorePatterns()...)}
	if patterns, err := gitignore.ReadPatterns(fs, nil); err == nil && len(patterns) > 0 {
		m.repo = gitignore.NewMatcher(patterns)
	}
	return m
}

func (m *ignoreMatcher) ignored(rel string, isDir bool) bool {
	if m.defaults.MatchesPath(rel) {
		return true
	}
	if isDir && m.defaults.MatchesPath(rel+"/") {
		return true
	}
	return m.repo != nil && m.repo.Match(strings.Split(rel, "/"), isDir)
}

func defaultIgnorePatterns() []string {
	return []string{
		".git/",
		".github/",
		"node_modules/",
		"vendor/",
		"dist/",
		"build/",
		"target/",
		"__pycache__/",
		".venv/",
		"venv/",
		".idea/",
		".vscode/",
		"coverage/",
		"*.min.js",
		"*.min.css",
		"*.map",
		"*.lock",
		"package-lock.json",
		"*.png",
		"*.jpg",
		"*.jpeg",
		"*.gif",
		"*.ico",
		"*.svg",
		"*.pdf",
		"*.zip",
		"*.tar.gz",
		"*.jar",
		"*.so",
		"*.dll",
		"*.exe",
		".DS_Store",
	}
}

type treeNode struct {
	children map[string]*treeNode
}

func writeTree(w io.Writer, root string, files []FileStat) {
	top := &treeNode{children: map[string]*treeNode{}}
	for _, f := range files {
		node := top
		for _, part := range strings.Split(f.Path, "/") {
			child, ok := node.children[part]
			if !ok {
				child = &treeNode{children: map[string]*treeNode{}}
				node.children[part] = child
			}
			node = child
		}
	}

	fmt.Fprintf(w, "└── %s/\n", root)
	writeChildren(w, top, "    ")
}

func writeChildren(w io.Writer, node *treeNode, indent string) {
	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		child := node.children[name]
		branch, next := "├── ", indent+"│   "
		if i == len(names)-1 {
			branch, next = "└── ", indent+"    "
		}
		if len(child.children) > 0 {
			fmt.Fprintf(w, "%s%s%s/\n", indent, branch, name)
			writeChildren(w, child, next)
			continue
		}
		fmt.Fprintf(w, "%s%s%s\n", indent, branch, name)
	}
}
