package util

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitInfo contains git repository information
type GitInfo struct {
	HeadCommitSHA string
	HeadCommitMsg string
	ModifiedFiles map[string]bool // Absolute paths that differ from HEAD
	IsGitRepo     bool
}

func runGit(ctx context.Context, repoPath string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoPath
	return cmd.Output()
}

// GetGitInfo retrieves git information for a repository path.
// A directory that is not a git work tree yields IsGitRepo=false and no error.
func GetGitInfo(ctx context.Context, repoPath string) (*GitInfo, error) {
	info := &GitInfo{
		ModifiedFiles: make(map[string]bool),
	}

	if _, err := runGit(ctx, repoPath, "rev-parse", "--git-dir"); err != nil {
		return info, nil
	}
	info.IsGitRepo = true

	output, err := runGit(ctx, repoPath, "rev-parse", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD commit SHA: %w", err)
	}
	info.HeadCommitSHA = strings.TrimSpace(string(output))

	output, err = runGit(ctx, repoPath, "log", "-1", "--pretty=%s")
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD commit message: %w", err)
	}
	info.HeadCommitMsg = strings.TrimSpace(string(output))

	// Staged, unstaged and deleted changes relative to HEAD, plus untracked files
	output, err = runGit(ctx, repoPath, "diff", "--name-only", "HEAD")
	if err != nil {
		return nil, fmt.Errorf("failed to get modified files: %w", err)
	}
	untracked, err := runGit(ctx, repoPath, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, fmt.Errorf("failed to list untracked files: %w", err)
	}

	for _, file := range strings.Split(string(output)+"\n"+string(untracked), "\n") {
		file = strings.TrimSpace(file)
		if file != "" {
			info.ModifiedFiles[filepath.Join(repoPath, file)] = true
		}
	}

	return info, nil
}

// GetFileContentFromGit retrieves file content from git HEAD
func GetFileContentFromGit(ctx context.Context, repoPath, filePath string) ([]byte, error) {
	relPath, err := filepath.Rel(repoPath, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get relative path: %w", err)
	}

	output, err := runGit(ctx, repoPath, "show", "HEAD:"+filepath.ToSlash(relPath))
	if err != nil {
		return nil, fmt.Errorf("failed to get file content from git: %w", err)
	}
	return output, nil
}

// IsFileModified checks if a file is modified compared to HEAD
func IsFileModified(gitInfo *GitInfo, filePath string) bool {
	if gitInfo == nil || !gitInfo.IsGitRepo {
		return false
	}
	return gitInfo.ModifiedFiles[filePath]
}

// ReadFileOptimized reads file content from git HEAD when useHead is set and the file is
// unmodified, otherwise from disk
func ReadFileOptimized(ctx context.Context, repoPath, filePath string, useHead bool, gitInfo *GitInfo) ([]byte, error) {
	if !useHead || gitInfo == nil || !gitInfo.IsGitRepo || IsFileModified(gitInfo, filePath) {
		return os.ReadFile(filePath)
	}
	return GetFileContentFromGit(ctx, repoPath, filePath)
}
