package selfupdate

import (
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/sirupsen/logrus"
)

type Status int

const (
	Skipped Status = iota
	Updated
	Failed
)

func (s Status) String() string {
	switch s {
	case Updated:
		return "updated"
	case Failed:
		return "failed"
	}
	return "skipped"
}

type Result struct {
	Status Status
	// Reason is set for Skipped and Failed.
	Reason string
	Err    error
}

// Updater pulls the checkout the daemon runs from.
type Updater struct {
	RepoPath string
	Remote   string
}

func New(repoPath string) *Updater {
	return &Updater{
		RepoPath: repoPath,
		Remote:   git.DefaultRemoteName,
	}
}

// Pull never returns an error. Callers decide what a Failed result means to them.
func (u *Updater) Pull(enabled bool) Result {
	if !enabled {
		return Result{Status: Skipped, Reason: "disabled"}
	}

	res := u.pull()
	logrus.WithFields(logrus.Fields{
		"repo":   u.RepoPath,
		"status": res.Status.String(),
		"reason": res.Reason,
	}).Debug("selfupdate: git pull")
	return res
}

func (u *Updater) pull() Result {
	repo, err := git.PlainOpenWithOptions(u.RepoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return failed(fmt.Errorf("error opening repository %s: %w", u.RepoPath, err))
	}

	wt, err := repo.Worktree()
	if err != nil {
		return failed(fmt.Errorf("error opening worktree: %w", err))
	}

	err = wt.Pull(&git.PullOptions{RemoteName: u.Remote})
	if errors.Is(err, git.NoErrAlreadyUpToDate) {
		return Result{Status: Skipped, Reason: "already up-to-date"}
	}
	if err != nil {
		return failed(fmt.Errorf("error pulling %s: %w", u.Remote, err))
	}
	return Result{Status: Updated}
}

func failed(err error) Result {
	return Result{Status: Failed, Reason: err.Error(), Err: err}
}
