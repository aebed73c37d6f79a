package pulse

import (
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/teranos/yanantin/errors"
)

// Change describes what moved between the last observed commit and HEAD.
type Change struct {
	Head    string   `json:"head"`
	Changed bool     `json:"changed"`
	Files   []string `json:"files,omitempty"`
	Watched bool     `json:"watched"` // some file falls under a watched prefix
}

// HeadCommit returns the hash of HEAD in the repository containing path.
func HeadCommit(path string) (string, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", errors.Wrapf(err, "open repository at %s", path)
	}
	head, err := repo.Head()
	if err != nil {
		return "", errors.Wrap(err, "resolve HEAD")
	}
	return head.Hash().String(), nil
}

// DetectChange compares HEAD with lastCommit. When lastCommit is empty or
// no longer reachable, every file in HEAD counts as changed. An empty
// prefix list watches everything.
func DetectChange(repoPath, lastCommit string, prefixes []string) (Change, error) {
	repo, err := git.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Change{}, errors.Wrapf(err, "open repository at %s", repoPath)
	}
	ref, err := repo.Head()
	if err != nil {
		return Change{}, errors.Wrap(err, "resolve HEAD")
	}
	change := Change{Head: ref.Hash().String()}
	if change.Head == lastCommit {
		return change, nil
	}
	change.Changed = true

	headCommit, err := repo.CommitObject(ref.Hash())
	if err != nil {
		return change, errors.Wrapf(err, "load commit %s", change.Head)
	}
	headTree, err := headCommit.Tree()
	if err != nil {
		return change, errors.Wrap(err, "load HEAD tree")
	}

	var fromTree *object.Tree
	if lastCommit != "" {
		if prev, err := repo.CommitObject(plumbing.NewHash(lastCommit)); err == nil {
			fromTree, _ = prev.Tree()
		}
	}

	files := map[string]bool{}
	if fromTree == nil {
		err = headTree.Files().ForEach(func(f *object.File) error {
			files[f.Name] = true
			return nil
		})
		if err != nil {
			return change, errors.Wrap(err, "walk HEAD tree")
		}
	} else {
		changes, err := object.DiffTree(fromTree, headTree)
		if err != nil {
			return change, errors.Wrap(err, "diff trees")
		}
		for _, c := range changes {
			if c.From.Name != "" {
				files[c.From.Name] = true
			}
			if c.To.Name != "" {
				files[c.To.Name] = true
			}
		}
	}

	for f := range files {
		change.Files = append(change.Files, f)
		if watched(f, prefixes) {
			change.Watched = true
		}
	}
	sort.Strings(change.Files)
	return change, nil
}

func watched(file string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(file, p) {
			return true
		}
	}
	return false
}
