package feed

import "strings"

// Collection path builders. Workspace-scoped collections nest under the
// workspace document; messages are a single global collection filtered by
// workspaceId field, matching how the store indexes them.

func Workspaces() string { return "workspaces" }

func MembersOf(workspaceID string) string {
	return "workspaces/" + workspaceID + "/members"
}

func FoldersOf(workspaceID string) string {
	return "workspaces/" + workspaceID + "/folders"
}

func FilesOf(workspaceID string) string {
	return "workspaces/" + workspaceID + "/files"
}

func Messages() string { return "messages" }

func Users() string { return "users" }

// Doc joins a collection path and document ID into a full document path.
func Doc(collection, docID string) string {
	return collection + "/" + docID
}

// SplitDoc splits a full document path into collection and document ID.
func SplitDoc(path string) (collection, docID string) {
	i := strings.LastIndexByte(path, '/')
	if i < 0 {
		return "", path
	}
	return path[:i], path[i+1:]
}
