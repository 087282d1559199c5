// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"cmp"
	"maps"
	"slices"

	"github.com/charmbracelet/glamour"
)

type Id int

const (
	ConfigLoadFailedId Id = iota + 1
	RepositoryOpenFailedId
	ArchiveUnreadableId
	RevisionNotFoundId
	InvalidPatternId
	NoMatchId
	ResolveFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The configuration file could not be read or does not match the schema.

## Things you can try:
- Print the effective configuration:
~~~
$ modresolve config show
~~~

- Write a fresh default file and start over:
~~~
$ modresolve config init
~~~

## Example configuration:
~~~cue
repositories: [
	{kind: "dir", path: "./src", ignore_file: ".modignore"},
	{kind: "zip", uri: "file:///opt/deps/lib.jar"},
	{kind: "git", path: "../vendor-modules", revision: "v1.4.0"},
]
resolve: {max_depth: 64, parallel: false}
log_level: "info"
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	repositoryOpenFailedIssue = &Issue{
		id: RepositoryOpenFailedId,
		mdMsg: `
# Could not open repository!

A repository in the chain could not be opened, so nothing was resolved.

## Things you can try:
- Check that the path exists and is a directory (dir), a file (zip) or a
  git work tree (git)
- Pass repositories explicitly to rule out the configuration:
~~~
$ modresolve resolve --repo dir:./src --repo zip:deps.jar 'pkg' '**.src'
~~~`,
	}

	archiveUnreadableIssue = &Issue{
		id: ArchiveUnreadableId,
		mdMsg: `
# Archive is unreadable!

The ZIP or JAR archive could not be indexed. It may be truncated, still being
written, or not an archive at all.

## Things you can try:
- Verify the archive:
~~~
$ unzip -t deps.jar
~~~

- Rebuild or download the archive again`,
	}

	revisionNotFoundIssue = &Issue{
		id: RevisionNotFoundId,
		mdMsg: `
# Revision not found!

The git revision does not name a local branch, remote branch, tag or commit.

## Things you can try:
- List what is available locally:
~~~
$ git branch -a
$ git tag
~~~

- Fetch first; modresolve never accesses the network`,
		extLinks: []HttpLink{"https://git-scm.com/docs/gitrevisions"},
	}

	invalidPatternIssue = &Issue{
		id: InvalidPatternId,
		mdMsg: `
# Invalid pattern!

Each argument is one pattern segment:

| Segment  | Matches                                        |
|----------|------------------------------------------------|
| name     | exactly the child called name                  |
| *        | any single child                               |
| **       | any number of levels below, as one name        |
| **.ext   | like ** but only names ending in .ext          |

A ** segment may only appear last, and a segment may not be empty.`,
	}

	noMatchIssue = &Issue{
		id: NoMatchId,
		mdMsg: `
# Nothing matched!

No repository in the chain holds an entry for this pattern. Directories are
never matched; the last segment must name a file.

## Things you can try:
- Widen the last segment:
~~~
$ modresolve resolve pkg '**'
~~~

- Show which repositories were searched with --verbose`,
	}

	resolveFailedIssue = &Issue{
		id: ResolveFailedId,
		mdMsg: `
# Resolution stopped!

A repository failed while it was being read, so the result would have been
incomplete. Entries that do not exist are not errors; this is an I/O failure,
a closed repository or a cancelled request.

## Things you can try:
- Re-run with --verbose to see which repository failed
- Check the disk and the archive for damage`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

You don't have permission to read part of a repository, or to write the
archive extraction directory.

## Things you can try:
- Check file and directory permissions
- Point TMPDIR at a directory you own`,
	}

	issues = map[Id]*Issue{
		configLoadFailedIssue.Id():     configLoadFailedIssue,
		repositoryOpenFailedIssue.Id(): repositoryOpenFailedIssue,
		archiveUnreadableIssue.Id():    archiveUnreadableIssue,
		revisionNotFoundIssue.Id():     revisionNotFoundIssue,
		invalidPatternIssue.Id():       invalidPatternIssue,
		noMatchIssue.Id():              noMatchIssue,
		resolveFailedIssue.Id():        resolveFailedIssue,
		permissionDeniedIssue.Id():     permissionDeniedIssue,
	}
)

// Values returns every catalog issue ordered by Id.
func Values() []*Issue {
	return slices.SortedFunc(maps.Values(issues), func(a, b *Issue) int {
		return cmp.Compare(a.id, b.id)
	})
}

func Get(id Id) *Issue {
	return issues[id]
}
