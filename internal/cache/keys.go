package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

// Key namespaces. Every key this service writes follows
// <namespace>:<identity>:<hash-or-flag>[:<suffix>] so ops tooling can
// attribute entries without guessing.
const (
	ResponseNamespace = "llm_response"
	ContextNamespace  = "llm_context"
	RecentNamespace   = "recent_queries"
	TaskNamespace     = "chat_task"
)

// Roles used to scope response and context keys. The same query text can
// legitimately return different data per role because of visibility rules,
// so the role is part of the key.
const (
	RoleManager   = "manager"
	RoleAssociate = "associate"
)

// Roles returns every role a context entry can be cached under.
func Roles() []string {
	return []string{RoleManager, RoleAssociate}
}

// ResponseKey builds the key for a (user, query, role) answer:
// llm_response:<username>:<md5 of normalized query>:<role>.
// The query is normalized before hashing so trivially rephrased queries
// map onto the same entry.
func ResponseKey(username, query, role string) string {
	sum := md5.Sum([]byte(Normalize(query)))
	return fmt.Sprintf("%s:%s:%s:%s", ResponseNamespace, username, hex.EncodeToString(sum[:]), role)
}

// ContextKey builds the key for a user's cached visibility context:
// llm_context:<username>:<role>.
func ContextKey(username, role string) string {
	return fmt.Sprintf("%s:%s:%s", ContextNamespace, username, role)
}

// RecentQueriesKey builds the key for a user's recent-query list:
// recent_queries:<username>.
func RecentQueriesKey(username string) string {
	return fmt.Sprintf("%s:%s", RecentNamespace, username)
}

// TaskKey builds the key for an async task record: chat_task:<task id>.
func TaskKey(taskID string) string {
	return fmt.Sprintf("%s:%s", TaskNamespace, taskID)
}

// KeyParts is the decomposed form of a cache key.
type KeyParts struct {
	Namespace string
	Identity  string
	Qualifier string // hash or flag, empty for recent/task keys
	Suffix    string // role for response keys
}

// ParseKey splits a key written by this service back into its parts.
// Returns false for keys that don't follow the format.
func ParseKey(key string) (KeyParts, bool) {
	parts := strings.Split(key, ":")
	if len(parts) < 2 {
		return KeyParts{}, false
	}
	switch parts[0] {
	case ResponseNamespace:
		if len(parts) != 4 {
			return KeyParts{}, false
		}
		return KeyParts{Namespace: parts[0], Identity: parts[1], Qualifier: parts[2], Suffix: parts[3]}, true
	case ContextNamespace:
		if len(parts) != 3 {
			return KeyParts{}, false
		}
		return KeyParts{Namespace: parts[0], Identity: parts[1], Qualifier: parts[2]}, true
	case RecentNamespace, TaskNamespace:
		if len(parts) != 2 {
			return KeyParts{}, false
		}
		return KeyParts{Namespace: parts[0], Identity: parts[1]}, true
	default:
		return KeyParts{}, false
	}
}
