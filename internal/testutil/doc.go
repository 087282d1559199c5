// SPDX-License-Identifier: MPL-2.0

// Package testutil holds test helpers that fail the test instead of
// returning errors.
//
// It covers environment overrides (MustSetenv, SetHomeDir), filesystem setup
// (MustMkdirAll), closing (MustClose, DeferClose) and repository fixtures:
// directory trees (WriteTree), archives (WriteZip) and git history
// (InitGitRepo).
package testutil
