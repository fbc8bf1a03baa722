package repo

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	gogithttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	gogitssh "github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"github.com/goodtune/yacgo/internal/metrics"
	"github.com/goodtune/yacgo/internal/model"
	"github.com/goodtune/yacgo/internal/yacerr"
)

// Per-command timeouts (§4.5), applied on top of whatever the request
// context already bounds, so a stuck git subprocess/transport can't hold a
// reader/writer grant indefinitely.
const (
	timeoutRevParse  = 1 * time.Second
	timeoutAddCommit = 3 * time.Second
	timeoutPullPush  = 5 * time.Second
	timeoutClone     = 30 * time.Second
)

// runWithTimeout bounds fn to d beyond parent, surfacing an expired deadline
// as yacerr.NewRepoTimeoutError rather than a bare context.DeadlineExceeded.
// fn may or may not honor the passed-in ctx itself (go-git's *Context
// variants do; Worktree/Commit/Head do not), so the result is also raced
// against ctx.Done() to bound calls that can't be cancelled cooperatively.
func runWithTimeout(parent context.Context, d time.Duration, op string, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return yacerr.NewRepoTimeoutError("git %s did not complete within %s", op, d)
		}
		return ctx.Err()
	}
}

// GitOptions configures the git backend (§4.5, §6.2 repo_plugin details).
type GitOptions struct {
	URL               string
	Branch            string
	SSHKeyFile        string
	SSHKnownHostsFile string
	WorkDir           string // base dir; the per-worker tree lives at WorkDir/<pid>
	DirtyMaxAge       time.Duration
	Logger            *slog.Logger
}

// GitBackend implements Backend on a per-process git working tree, using
// go-git/go-git/v5 instead of the original's shelled git subprocess calls.
// Grounded on app/plugin/repo/git_direct.py's GitRepo and app/lib/git.py.
type GitBackend struct {
	opts GitOptions
	path string // WorkDir/<pid>

	mu          sync.Mutex
	cond        *sync.Cond
	readerCount int // -1 while a writer holds the grant
	writerMu    sync.Mutex

	repo *git.Repository
}

// NewGitBackend creates a git-backed repository rooted at
// opts.WorkDir/<pid>, one working tree per OS process (§4.5).
func NewGitBackend(opts GitOptions) *GitBackend {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	b := &GitBackend{
		opts: opts,
		path: filepath.Join(opts.WorkDir, fmt.Sprint(os.Getpid())),
	}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// gitHandle is the Handle returned for one reader or writer grant.
type gitHandle struct {
	b        *GitBackend
	fpath    *pathTemplate
	user     *model.User
	writing  bool
	released bool
}

func (b *GitBackend) auth() (transport.AuthMethod, error) {
	if strings.HasPrefix(b.opts.URL, "http://") || strings.HasPrefix(b.opts.URL, "https://") {
		return &gogithttp.BasicAuth{}, nil
	}
	if b.opts.SSHKeyFile == "" {
		return nil, nil
	}
	auth, err := gogitssh.NewPublicKeysFromFile("git", b.opts.SSHKeyFile, "")
	if err != nil {
		return nil, yacerr.WrapRepoError(err, "loading SSH key %s", b.opts.SSHKeyFile)
	}
	auth.HostKeyCallbackHelper = gogitssh.HostKeyCallbackHelper{}
	return auth, nil
}

func (b *GitBackend) branchRef() plumbing.ReferenceName {
	branch := b.opts.Branch
	if branch == "" {
		branch = "main"
	}
	return plumbing.NewBranchReferenceName(branch)
}

// Reader acquires a shared read grant. If dirty is false, or the working
// tree's last fetch is older than DirtyMaxAge, it first upgrades to a
// no-op writer acquisition to pull (§4.5 "Concurrency model").
func (b *GitBackend) Reader(ctx context.Context, user *model.User, details map[string]any, dirty bool) (*Handle, error) {
	fpath, err := b.fpathFromDetails(details)
	if err != nil {
		return nil, err
	}

	if !dirty || b.isOutdated() {
		b.opts.Logger.Debug("upgrading to writer to pull", "path", b.path)
		h, err := b.Writer(ctx, user, details)
		if err != nil {
			return nil, err
		}
		h.Release()
	}

	b.mu.Lock()
	for b.readerCount == -1 {
		b.cond.Wait()
	}
	b.readerCount++
	metrics.RepoReadersActive.Set(float64(b.readerCount))
	b.mu.Unlock()

	var h Handle = &gitHandle{b: b, fpath: fpath, user: user, writing: false}
	return &h, nil
}

// Writer acquires the exclusive write grant, pulling first (§4.5).
func (b *GitBackend) Writer(ctx context.Context, user *model.User, details map[string]any) (*Handle, error) {
	fpath, err := b.fpathFromDetails(details)
	if err != nil {
		return nil, err
	}

	b.writerMu.Lock()

	b.mu.Lock()
	for b.readerCount != 0 {
		b.cond.Wait()
	}
	b.readerCount = -1
	metrics.RepoWriterHeld.Set(1)
	b.mu.Unlock()

	start := time.Now()
	err = b.pull(ctx, user)
	metrics.GitOperationDuration.WithLabelValues("pull").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GitOperationTotal.WithLabelValues("pull", "error").Inc()
		b.mu.Lock()
		b.readerCount = 0
		metrics.RepoWriterHeld.Set(0)
		b.cond.Broadcast()
		b.mu.Unlock()
		b.writerMu.Unlock()
		return nil, err
	}
	metrics.GitOperationTotal.WithLabelValues("pull", "ok").Inc()

	var h Handle = &gitHandle{b: b, fpath: fpath, user: user, writing: true}
	return &h, nil
}

func (b *GitBackend) fpathFromDetails(details map[string]any) (*pathTemplate, error) {
	raw, _ := details["file"].(string)
	tmplt, err := newPathTemplate(raw)
	if err != nil {
		return nil, yacerr.NewRepoSpecsError("%v", err)
	}
	return tmplt, nil
}

func (h *gitHandle) Release() {
	if h.released {
		return
	}
	h.released = true
	b := h.b
	if h.writing {
		b.mu.Lock()
		b.readerCount = 0
		metrics.RepoWriterHeld.Set(0)
		b.cond.Broadcast()
		b.mu.Unlock()
		b.writerMu.Unlock()
		return
	}
	b.mu.Lock()
	b.readerCount--
	metrics.RepoReadersActive.Set(float64(b.readerCount))
	if b.readerCount == 0 {
		b.cond.Broadcast()
	}
	b.mu.Unlock()
}

func (h *gitHandle) UpdateDetails(details map[string]any) {
	raw, _ := details["file"].(string)
	if tmplt, err := newPathTemplate(raw); err == nil {
		h.fpath = tmplt
	}
}

// isOutdated reports whether the working tree's last fetch predates
// DirtyMaxAge, read from .git/FETCH_HEAD's mtime (§4.5).
func (b *GitBackend) isOutdated() bool {
	if b.opts.DirtyMaxAge <= 0 {
		return true
	}
	info, err := os.Stat(filepath.Join(b.path, ".git", "FETCH_HEAD"))
	if err != nil {
		return true
	}
	return time.Since(info.ModTime()) > b.opts.DirtyMaxAge
}

// pull fast-forwards the working tree, cloning fresh if it doesn't exist
// or has diverged irrecoverably (§4.5 "Write path").
func (b *GitBackend) pull(ctx context.Context, user *model.User) error {
	auth, err := b.auth()
	if err != nil {
		return err
	}

	repo, err := git.PlainOpen(b.path)
	if err == nil {
		b.repo = repo
		wt, werr := repo.Worktree()
		if werr == nil {
			pullErr := runWithTimeout(ctx, timeoutPullPush, "pull", func(ctx context.Context) error {
				return wt.PullContext(ctx, &git.PullOptions{
					RemoteName:    "origin",
					Auth:          auth,
					Force:         true,
					SingleBranch:  true,
					ReferenceName: b.branchRef(),
				})
			})
			if pullErr == nil || pullErr == git.NoErrAlreadyUpToDate {
				return nil
			}
			b.opts.Logger.Warn("pull failed, re-cloning", "path", b.path, "error", pullErr)
		}
	}

	if err := os.RemoveAll(b.path); err != nil && !os.IsNotExist(err) {
		return yacerr.WrapRepoError(err, "cannot delete %s", b.path)
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return yacerr.WrapRepoError(err, "cannot create %s", filepath.Dir(b.path))
	}

	b.opts.Logger.Info("cloning repo", "path", b.path, "url", b.opts.URL)
	err = runWithTimeout(ctx, timeoutClone, "clone", func(ctx context.Context) error {
		cloned, cloneErr := git.PlainCloneContext(ctx, b.path, false, &git.CloneOptions{
			URL:           b.opts.URL,
			ReferenceName: b.branchRef(),
			SingleBranch:  true,
			Auth:          auth,
		})
		if cloneErr != nil {
			return cloneErr
		}
		repo = cloned
		return nil
	})
	if err != nil {
		return yacerr.WrapRepoError(err, "cannot clone repo to %s", b.path)
	}
	b.repo = repo
	return nil
}

// push adds the given (absolute) file paths, commits and pushes; on
// failure it hard-resets and cleans, re-cloning as a last resort (§4.5).
func (b *GitBackend) push(ctx context.Context, user *model.User, files []string, msg string) error {
	wt, err := b.repo.Worktree()
	if err != nil {
		return yacerr.WrapRepoError(err, "opening worktree")
	}

	name, email := "Unknown", "<>"
	if user != nil {
		if user.FullName != "" {
			name = user.FullName
		}
		if user.Email != "" {
			email = user.Email
		}
	}

	err = runWithTimeout(ctx, timeoutAddCommit, "add/commit", func(ctx context.Context) error {
		for _, f := range files {
			rel, relErr := filepath.Rel(b.path, f)
			if relErr != nil {
				return yacerr.WrapRepoError(relErr, "resolving relative path for %s", f)
			}
			if _, addErr := wt.Add(rel); addErr != nil {
				return yacerr.WrapRepoError(addErr, "git add %s", rel)
			}
		}
		_, commitErr := wt.Commit(fmt.Sprintf("[yacgo] %s", msg), &git.CommitOptions{
			Author: &object.Signature{
				Name:  fmt.Sprintf("%s (via yacgo)", name),
				Email: email,
				When:  time.Now(),
			},
		})
		if commitErr != nil {
			return yacerr.WrapRepoError(commitErr, "git commit")
		}
		return nil
	})
	if err != nil {
		return b.cleanupAfterFailure(ctx, user, toRepoErr(err))
	}

	auth, err := b.auth()
	if err != nil {
		return err
	}
	start := time.Now()
	pushErr := runWithTimeout(ctx, timeoutPullPush, "push", func(ctx context.Context) error {
		return b.repo.PushContext(ctx, &git.PushOptions{RemoteName: "origin", Auth: auth})
	})
	metrics.GitOperationDuration.WithLabelValues("push").Observe(time.Since(start).Seconds())
	if pushErr != nil && pushErr != git.NoErrAlreadyUpToDate {
		metrics.GitOperationTotal.WithLabelValues("push", "error").Inc()
		return b.cleanupAfterFailure(ctx, user, yacerr.WrapRepoError(pushErr, "git push"))
	}
	metrics.GitOperationTotal.WithLabelValues("push", "ok").Inc()

	return b.cleanup(ctx, user)
}

// toRepoErr adapts an error already carrying a *yacerr.Error (from inside a
// runWithTimeout closure) back into one, passing a raw timeout through.
func toRepoErr(err error) *yacerr.Error {
	if ye, ok := err.(*yacerr.Error); ok {
		return ye
	}
	return yacerr.WrapRepoError(err, "git add/commit")
}

func (b *GitBackend) cleanupAfterFailure(ctx context.Context, user *model.User, cause *yacerr.Error) error {
	// Original note: "very unlikely scenario where someone pushes from a
	// different instance or directly to the repo in the millisecond
	// between pull and push" — reset/clean and surface the original error.
	_ = b.cleanup(ctx, user)
	return cause
}

func (b *GitBackend) cleanup(ctx context.Context, user *model.User) error {
	wt, err := b.repo.Worktree()
	if err != nil {
		return nil
	}
	status, err := wt.Status()
	if err != nil || status.IsClean() {
		return nil
	}

	head, err := b.repo.Reference(plumbing.NewRemoteReferenceName("origin", b.opts.Branch), true)
	if err == nil {
		if err := wt.Reset(&git.ResetOptions{Commit: head.Hash(), Mode: git.HardReset}); err == nil {
			if err := wt.Clean(&git.CleanOptions{Dir: true}); err == nil {
				status, err := wt.Status()
				if err == nil && status.IsClean() {
					return nil
				}
			}
		}
	}

	// Reset/clean didn't recover a consistent tree; fall back to a fresh clone.
	return b.pull(ctx, user)
}

func (h *gitHandle) absPath(name string) string {
	return filepath.Join(h.b.path, h.fpath.Format(name))
}

func (h *gitHandle) GetHash(ctx context.Context) (string, error) {
	var hash string
	err := runWithTimeout(ctx, timeoutRevParse, "rev-parse", func(ctx context.Context) error {
		ref, headErr := h.b.repo.Head()
		if headErr != nil {
			return yacerr.WrapRepoError(headErr, "reading HEAD")
		}
		hash = ref.Hash().String()
		return nil
	})
	if err != nil {
		return "", err
	}
	return hash, nil
}

func (h *gitHandle) List(ctx context.Context) ([]string, error) {
	glob := filepath.Join(h.b.path, h.fpath.Glob())
	matches, err := filepath.Glob(glob)
	if err != nil {
		return nil, yacerr.WrapRepoError(err, "listing %s", glob)
	}
	var names []string
	for _, m := range matches {
		rel, err := filepath.Rel(h.b.path, m)
		if err != nil {
			continue
		}
		if name, ok := h.fpath.Parse(filepath.ToSlash(rel)); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (h *gitHandle) Exists(ctx context.Context, name string) (bool, error) {
	_, err := os.Lstat(h.absPath(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, yacerr.WrapRepoError(err, "stat %s", h.absPath(name))
}

func (h *gitHandle) IsLink(ctx context.Context, name string) (bool, error) {
	info, err := os.Lstat(h.absPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, yacerr.WrapRepoError(err, "stat %s", h.absPath(name))
	}
	return info.Mode()&os.ModeSymlink != 0, nil
}

func (h *gitHandle) GetLink(ctx context.Context, name string) (string, error) {
	isLink, err := h.IsLink(ctx, name)
	if err != nil {
		return "", err
	}
	if !isLink {
		return "", yacerr.NewRepoError("file %s is not a link", name)
	}

	src := h.absPath(name)
	dest, err := filepath.EvalSymlinks(src)
	if err != nil {
		return "", yacerr.WrapRepoError(err, "resolving link %s", src)
	}

	base, err := filepath.EvalSymlinks(h.b.path)
	if err != nil {
		base = h.b.path
	}
	if !strings.HasPrefix(dest, base) {
		return "", yacerr.NewRepoError("link %s has an illegal destination: %s", src, dest)
	}
	rel := strings.TrimPrefix(strings.TrimPrefix(dest, base), string(os.PathSeparator))

	name, ok := h.fpath.Parse(filepath.ToSlash(rel))
	if !ok {
		return "", yacerr.NewRepoError("link %s has an illegal destination: %s", src, dest)
	}
	return name, nil
}

func (h *gitHandle) GetSpecs(ctx context.Context, path string) (string, error) {
	rel := strings.TrimPrefix(path, ".")
	rel = strings.TrimPrefix(rel, "/")
	return h.readFile(filepath.Join(h.b.path, rel))
}

func (h *gitHandle) Get(ctx context.Context, name string) (string, error) {
	return h.readFile(h.absPath(name))
}

func (h *gitHandle) readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", yacerr.NewRepoNotFound("the file %s does not exist", path)
		}
		return "", yacerr.WrapRepoError(err, "reading %s", path)
	}
	return string(data), nil
}

func (h *gitHandle) hasLink(name string) (bool, error) {
	target := h.absPath(name)
	resolvedTarget, err := filepath.EvalSymlinks(target)
	if err != nil {
		resolvedTarget = target
	}
	dir := filepath.Dir(target)

	found := false
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || found {
			return nil
		}
		info, lerr := os.Lstat(p)
		if lerr != nil || info.Mode()&os.ModeSymlink == 0 {
			return nil
		}
		resolved, rerr := filepath.EvalSymlinks(p)
		if rerr != nil {
			return nil
		}
		if resolved == resolvedTarget {
			found = true
		}
		return nil
	})
	return found, err
}

func unifiedDiff(oldContent, newContent, fromFile, toFile string) string {
	oldLines := strings.Split(oldContent, "\n")
	newLines := strings.Split(newContent, "\n")
	if oldContent == "" {
		oldLines = nil
	}
	if newContent == "" {
		newLines = nil
	}

	var buf bytes.Buffer
	if diffLines(oldLines, newLines, &buf) {
		header := fmt.Sprintf("--- %s\n+++ %s\n", fromFile, toFile)
		return header + buf.String()
	}
	return ""
}

// diffLines writes a minimal unified-diff body (no context folding) and
// reports whether any difference was found. This is intentionally simple:
// entity files are small, single-purpose YAML documents, not source code
// needing LCS-quality hunking.
func diffLines(oldLines, newLines []string, out *bytes.Buffer) bool {
	if len(oldLines) == 0 && len(newLines) == 0 {
		return false
	}
	changed := false
	maxLen := len(oldLines)
	if len(newLines) > maxLen {
		maxLen = len(newLines)
	}
	fmt.Fprintf(out, "@@ -1,%d +1,%d @@\n", len(oldLines), len(newLines))
	for i := 0; i < maxLen; i++ {
		var o, n string
		hasO, hasN := i < len(oldLines), i < len(newLines)
		if hasO {
			o = oldLines[i]
		}
		if hasN {
			n = newLines[i]
		}
		switch {
		case hasO && hasN && o == n:
			fmt.Fprintf(out, " %s\n", o)
		default:
			if hasO {
				fmt.Fprintf(out, "-%s\n", o)
				changed = true
			}
			if hasN {
				fmt.Fprintf(out, "+%s\n", n)
				changed = true
			}
		}
	}
	return changed
}

func (h *gitHandle) Write(ctx context.Context, name, contentOld, contentNew, msg string) (*model.Diff, error) {
	path := h.fpath.Format(name)
	file := filepath.Join(h.b.path, path)

	exists, err := h.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		content, err := h.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		if content != contentOld {
			return nil, yacerr.NewRepoConflict("the data has changed in the meantime")
		}
		if content == contentNew {
			return nil, yacerr.NewRepoClientError("cannot write without changing anything")
		}
		isLink, err := h.IsLink(ctx, name)
		if err != nil {
			return nil, err
		}
		if isLink {
			return nil, yacerr.NewRepoClientError("modifying links is not allowed")
		}
	} else if len(contentOld) > 0 {
		return nil, yacerr.NewRepoConflict("the file has been deleted in the meantime")
	}

	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, yacerr.WrapRepoError(err, "creating directory for %s", file)
	}
	if err := os.WriteFile(file, []byte(contentNew), 0o644); err != nil {
		return nil, yacerr.WrapRepoError(err, "could not write file %s", file)
	}

	if err := h.b.push(ctx, h.user, []string{file}, msg); err != nil {
		return nil, err
	}

	hash, err := h.GetHash(ctx)
	if err != nil {
		return nil, err
	}
	return &model.Diff{
		Name:  name,
		Hash:  hash,
		Patch: unifiedDiff(contentOld, contentNew, "a/"+path, "b/"+path),
	}, nil
}

func (h *gitHandle) WriteRename(ctx context.Context, nameOld, nameNew, contentOld, contentNew, msg string) (*model.Diff, error) {
	if nameOld == nameNew {
		return nil, yacerr.NewRepoClientError("cannot rename without changing the name")
	}

	pathOld := h.fpath.Format(nameOld)
	pathNew := h.fpath.Format(nameNew)
	fileOld := filepath.Join(h.b.path, pathOld)
	fileNew := filepath.Join(h.b.path, pathNew)

	existsOld, err := h.Exists(ctx, nameOld)
	if err != nil {
		return nil, err
	}
	if !existsOld {
		return nil, yacerr.NewRepoConflict("the file has been deleted in the meantime")
	}
	content, err := h.Get(ctx, nameOld)
	if err != nil {
		return nil, err
	}
	if content != contentOld {
		return nil, yacerr.NewRepoConflict("the data has changed in the meantime")
	}
	isLink, err := h.IsLink(ctx, nameOld)
	if err != nil {
		return nil, err
	}
	if isLink {
		return nil, yacerr.NewRepoClientError("modifying links is not allowed")
	}

	existsNew, err := h.Exists(ctx, nameNew)
	if err != nil {
		return nil, err
	}
	if existsNew {
		return nil, yacerr.NewRepoClientError("the file already exists")
	}

	if err := os.MkdirAll(filepath.Dir(fileNew), 0o755); err != nil {
		return nil, yacerr.WrapRepoError(err, "creating directory for %s", fileNew)
	}
	if err := os.WriteFile(fileNew, []byte(contentNew), 0o644); err != nil {
		return nil, yacerr.WrapRepoError(err, "could not write file %s", fileNew)
	}
	if err := os.Remove(fileOld); err != nil {
		return nil, yacerr.WrapRepoError(err, "could not delete file %s", fileOld)
	}

	if err := h.b.push(ctx, h.user, []string{fileOld, fileNew}, msg); err != nil {
		return nil, err
	}

	hash, err := h.GetHash(ctx)
	if err != nil {
		return nil, err
	}
	return &model.Diff{
		Name:  nameNew,
		Hash:  hash,
		Patch: unifiedDiff(contentOld, contentNew, "a/"+pathOld, "b/"+pathNew),
	}, nil
}

func (h *gitHandle) Copy(ctx context.Context, nameDest, nameSrc, msg string) (*model.Diff, error) {
	existsDest, err := h.Exists(ctx, nameDest)
	if err != nil {
		return nil, err
	}
	if existsDest {
		return nil, yacerr.NewRepoClientError("the file already exists")
	}

	pathDest := h.fpath.Format(nameDest)
	fileDest := filepath.Join(h.b.path, pathDest)

	content, err := h.Get(ctx, nameSrc)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(fileDest), 0o755); err != nil {
		return nil, yacerr.WrapRepoError(err, "creating directory for %s", fileDest)
	}
	if err := os.WriteFile(fileDest, []byte(content), 0o644); err != nil {
		return nil, yacerr.WrapRepoError(err, "could not create file %s", fileDest)
	}

	if err := h.b.push(ctx, h.user, []string{fileDest}, msg); err != nil {
		return nil, err
	}

	hash, err := h.GetHash(ctx)
	if err != nil {
		return nil, err
	}
	return &model.Diff{
		Name:  nameDest,
		Hash:  hash,
		Patch: unifiedDiff("", content, "a/"+pathDest, "b/"+pathDest),
	}, nil
}

func (h *gitHandle) Link(ctx context.Context, nameLink, nameSrc, msg string) (*model.Diff, error) {
	existsSrc, err := h.Exists(ctx, nameSrc)
	if err != nil {
		return nil, err
	}
	if !existsSrc {
		return nil, yacerr.NewRepoNotFound("the file does not exist")
	}

	pathLink := h.fpath.Format(nameLink)
	link := filepath.Join(h.b.path, pathLink)
	src := h.absPath(nameSrc)

	if _, err := os.Lstat(link); err == nil {
		return nil, yacerr.NewRepoClientError("the file already exists")
	}

	rel, err := filepath.Rel(filepath.Dir(link), src)
	if err != nil {
		return nil, yacerr.WrapRepoError(err, "computing relative symlink target")
	}
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return nil, yacerr.WrapRepoError(err, "creating directory for %s", link)
	}
	if err := os.Symlink(rel, link); err != nil {
		return nil, yacerr.WrapRepoError(err, "could not create symlink %s", link)
	}

	if err := h.b.push(ctx, h.user, []string{link}, msg); err != nil {
		return nil, err
	}

	hash, err := h.GetHash(ctx)
	if err != nil {
		return nil, err
	}
	return &model.Diff{
		Name:  nameLink,
		Hash:  hash,
		Patch: unifiedDiff("", nameSrc, "a/"+pathLink, "b/"+pathLink),
	}, nil
}

func (h *gitHandle) Delete(ctx context.Context, name, msg string) error {
	exists, err := h.Exists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return yacerr.NewRepoNotFound("the file does not exist")
	}
	linked, err := h.hasLink(name)
	if err != nil {
		return err
	}
	if linked {
		return yacerr.NewRepoClientError("the file must not be deleted because it is linked")
	}

	file := h.absPath(name)
	if err := os.Remove(file); err != nil {
		return yacerr.WrapRepoError(err, "could not delete file %s", file)
	}

	return h.b.push(ctx, h.user, []string{file}, msg)
}

var _ Backend = (*GitBackend)(nil)
