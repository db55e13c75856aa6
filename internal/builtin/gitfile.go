package builtin

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/dataflow/dataflow/internal/component"
	"github.com/dataflow/dataflow/internal/execctx"
)

var gitFileManifest = component.Manifest{
	Type:        "source/git_file",
	Description: "Read one file's contents out of a git repository, cloning or updating it first",
	Category:    component.CategorySource,
	Config: map[string]component.ConfigSpec{
		"url":         {Type: "string", Required: true, Description: "Repository URL to clone"},
		"path":        {Type: "string", Required: true, Description: "File path within the repository"},
		"branch":      {Type: "string", Description: "Branch to check out"},
		"destination": {Type: "string", Required: true, Description: "Local clone directory"},
		"depth":       {Type: "integer", Default: 1, Description: "Clone depth (0 for full history)"},
	},
	Outputs: map[string]component.OutputSpec{
		"content": {Type: "string", Description: "File contents"},
		"commit":  {Type: "string", Description: "HEAD commit hash at read time"},
	},
}

type gitFileSource struct {
	component.BaseComponent
}

func newGitFileSource(instanceID string, config map[string]any) (component.Component, error) {
	base, err := component.NewBaseComponent(instanceID, config, gitFileManifest)
	if err != nil {
		return nil, err
	}
	return &gitFileSource{BaseComponent: base}, nil
}

func (s *gitFileSource) Describe() component.Manifest { return gitFileManifest }

func (s *gitFileSource) Validate(inputs map[string]any) component.ValidationResult {
	return component.ValidateInputs(gitFileManifest, inputs)
}

func (s *gitFileSource) Execute(ctx context.Context, _ map[string]any, _ *execctx.Context) (map[string]any, error) {
	url, _ := s.GetConfig("url", gitFileManifest, "").(string)
	path, _ := s.GetConfig("path", gitFileManifest, "").(string)
	branch, _ := s.GetConfig("branch", gitFileManifest, "").(string)
	destination, _ := s.GetConfig("destination", gitFileManifest, "").(string)
	depth, _ := s.GetConfig("depth", gitFileManifest, 1).(int)

	repo, err := s.openOrClone(ctx, url, destination, branch, depth)
	if err != nil {
		return nil, fmt.Errorf("source/git_file: %w", err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("source/git_file: read HEAD: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("source/git_file: worktree: %w", err)
	}
	f, err := worktree.Filesystem.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source/git_file: open %s: %w", path, err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("source/git_file: read %s: %w", path, err)
	}

	return map[string]any{
		"content": string(content),
		"commit":  head.Hash().String(),
	}, nil
}

func (s *gitFileSource) openOrClone(ctx context.Context, url, destination, branch string, depth int) (*git.Repository, error) {
	if _, err := os.Stat(filepath.Join(destination, ".git")); err == nil {
		repo, err := git.PlainOpen(destination)
		if err != nil {
			return nil, err
		}
		worktree, err := repo.Worktree()
		if err != nil {
			return nil, err
		}
		pullOpts := &git.PullOptions{RemoteName: "origin"}
		if branch != "" {
			pullOpts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		}
		if err := worktree.PullContext(ctx, pullOpts); err != nil && err != git.NoErrAlreadyUpToDate {
			return nil, fmt.Errorf("pull: %w", err)
		}
		return repo, nil
	}

	cloneOpts := &git.CloneOptions{URL: url}
	if depth > 0 {
		cloneOpts.Depth = depth
	}
	if branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(branch)
		cloneOpts.SingleBranch = true
	}
	return git.PlainCloneContext(ctx, destination, false, cloneOpts)
}
