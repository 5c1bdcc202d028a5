package worker

import (
	"errors"
	"fmt"
	"iter"

	"github.com/wends155/opc-cli-sub000/driver"
	"github.com/wends155/opc-cli-sub000/types"
)

// browseTags discovers fully qualified tag IDs on an open session.
//
// The namespace organization decides the strategy: a flat namespace is
// drained directly at the root; a hierarchical one is first probed for
// server-side flat browsing and falls back to a recursive branch walk when
// the server does not support it. Every discovered ID is pushed into progress
// before being returned, so partial results survive an abandoned wait.
func browseTags(s *state, sess driver.Server, maxTags int, progress *types.Progress) ([]string, error) {
	org, err := sess.QueryOrganization()
	if err != nil {
		return nil, fmt.Errorf("query namespace organization: %w", err)
	}
	s.logger.Debug("namespace organization", "org", org.String())

	if maxTags == 0 {
		return []string{}, nil
	}

	var tags []string
	if org == driver.OrganizationFlat {
		tags, err = browseFlatNamespace(s, sess, maxTags, progress)
	} else {
		tags, err = browseHierarchical(s, sess, maxTags, progress)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.AddTagsDiscovered(len(tags))
	s.logger.Info("browse completed", "tags", len(tags))

	return tags, nil
}

// browseFlatNamespace drains leaf names at the root of a flat namespace.
func browseFlatNamespace(s *state, sess driver.Server, maxTags int, progress *types.Progress) ([]string, error) {
	seq, err := sess.BrowseItemIDs(driver.BrowseLeaf, "")
	if err != nil {
		return nil, fmt.Errorf("browse flat namespace: %w", err)
	}

	tags := make([]string, 0, 64)
	for name, iterErr := range seq {
		if iterErr != nil {
			s.logger.Warn("skipping unreadable item", "error", iterErr)
			continue
		}
		tags = append(tags, resolveLeaf(s, sess, name))
		progress.Add(tags[len(tags)-1])
		if len(tags) >= maxTags {
			break
		}
	}

	return tags, nil
}

// browseHierarchical probes server-side flat browsing of the whole tree and
// falls back to a recursive walk when the server cannot do it.
func browseHierarchical(s *state, sess driver.Server, maxTags int, progress *types.Progress) ([]string, error) {
	tags, ok, err := tryFlatBrowse(s, sess, maxTags, progress)
	if err != nil {
		return nil, err
	}
	if ok {
		return tags, nil
	}

	s.logger.Debug("flat browse unsupported, walking branches")
	tags = make([]string, 0, 64)
	if err := walkBranch(s, sess, 0, maxTags, progress, &tags); err != nil {
		return nil, err
	}

	return tags, nil
}

// tryFlatBrowse attempts a one-pass flat enumeration of a hierarchical
// namespace. It reports ok=false when the server does not support flat
// browsing, either by refusing to start the enumeration or by failing on its
// very first element.
func tryFlatBrowse(s *state, sess driver.Server, maxTags int, progress *types.Progress) (tags []string, ok bool, err error) {
	seq, err := sess.BrowseItemIDs(driver.BrowseFlat, "")
	if err != nil {
		if errors.Is(err, types.ErrNotSupported) {
			return nil, false, nil
		}
		s.logger.Warn("flat browse failed to start, falling back", "error", err)
		return nil, false, nil
	}

	next, stop := iter.Pull2(seq)
	defer stop()

	name, iterErr, valid := next()
	if !valid {
		// Empty enumeration: the server supports flat browsing and the
		// namespace simply has no items.
		return []string{}, true, nil
	}
	if iterErr != nil {
		s.logger.Warn("flat browse failed on first item, falling back", "error", iterErr)
		return nil, false, nil
	}

	tags = make([]string, 0, 64)
	tags = append(tags, name)
	progress.Add(name)

	for len(tags) < maxTags {
		name, iterErr, valid := next()
		if !valid {
			break
		}
		if iterErr != nil {
			s.logger.Warn("skipping unreadable item", "error", iterErr)
			continue
		}
		tags = append(tags, name)
		progress.Add(name)
	}

	return tags, true, nil
}

// walkBranch recursively browses the branch at the session's current
// position, appending discovered IDs to acc.
//
// Errors local to one leaf or branch are logged and skipped. Failing to
// navigate back up out of a branch is fatal: the browse position is no longer
// known and every further result would be attributed to the wrong branch, so
// the whole walk aborts with a PositionCorruptedError.
func walkBranch(s *state, sess driver.Server, depth, maxTags int, progress *types.Progress, acc *[]string) error {
	if leafSeq, err := sess.BrowseItemIDs(driver.BrowseLeaf, ""); err != nil {
		s.logger.Warn("leaf enumeration failed, skipping level", "depth", depth, "error", err)
	} else {
		for name, iterErr := range leafSeq {
			if iterErr != nil {
				s.logger.Warn("skipping unreadable leaf", "depth", depth, "error", iterErr)
				continue
			}
			id := resolveLeaf(s, sess, name)
			*acc = append(*acc, id)
			progress.Add(id)
			if len(*acc) >= maxTags {
				return nil
			}
		}
	}

	if depth >= s.maxDepth {
		s.logger.Warn("max browse depth reached, not descending", "depth", depth)
		return nil
	}

	// Materialize branch names before moving the position: the enumeration
	// is tied to the position it was started at.
	branchSeq, err := sess.BrowseItemIDs(driver.BrowseBranch, "")
	if err != nil {
		s.logger.Warn("branch enumeration failed, skipping level", "depth", depth, "error", err)
		return nil
	}
	var branches []string
	for name, iterErr := range branchSeq {
		if iterErr != nil {
			s.logger.Warn("skipping unreadable branch", "depth", depth, "error", iterErr)
			continue
		}
		branches = append(branches, name)
	}

	for _, branch := range branches {
		if err := sess.ChangeBrowsePosition(driver.BrowseDown, branch); err != nil {
			s.logger.Warn("cannot descend into branch, skipping", "branch", branch, "error", err)
			continue
		}

		walkErr := walkBranch(s, sess, depth+1, maxTags, progress, acc)

		// Navigate back up even when the recursion failed; an un-restored
		// position would poison every subsequent result.
		if upErr := sess.ChangeBrowsePosition(driver.BrowseUp, ""); upErr != nil {
			return &types.PositionCorruptedError{Branch: branch, Cause: upErr}
		}
		if walkErr != nil {
			return walkErr
		}
		if len(*acc) >= maxTags {
			return nil
		}
	}

	return nil
}

// resolveLeaf turns a leaf browse name into a fully qualified item ID,
// falling back to the raw browse name when the server cannot resolve it.
func resolveLeaf(s *state, sess driver.Server, name string) string {
	id, err := sess.ItemID(name)
	if err != nil {
		s.logger.Warn("item id resolution failed, using browse name", "name", name, "error", err)
		return name
	}

	return id
}
