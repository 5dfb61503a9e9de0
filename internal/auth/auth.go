// Package auth resolves chat identities into actors carrying their role.
package auth

import (
	"sort"
	"strconv"
	"strings"
)

type Actor struct {
	ID    int64
	Name  string
	Admin bool
}

// AdminList is the static allow-list of admin user ids. It is passed
// explicitly to whoever resolves actors; nothing reads it from ambient state.
type AdminList struct {
	ids map[int64]struct{}
}

func NewAdminList(ids ...int64) AdminList {
	l := AdminList{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		l.ids[id] = struct{}{}
	}
	return l
}

// ParseAdminIDs reads a comma separated list. Blanks and non-numeric parts
// are skipped rather than rejected.
func ParseAdminIDs(raw string) []int64 {
	var out []int64
	for _, part := range strings.Split(strings.ReplaceAll(raw, " ", ""), ",") {
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id < 0 {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (l AdminList) IsAdmin(id int64) bool {
	_, ok := l.ids[id]
	return ok
}

func (l AdminList) Len() int { return len(l.ids) }

// IDs returns the admins in ascending order, the order notifications go out in.
func (l AdminList) IDs() []int64 {
	out := make([]int64, 0, len(l.ids))
	for id := range l.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (l AdminList) Resolve(id int64, name string) Actor {
	return Actor{ID: id, Name: name, Admin: l.IsAdmin(id)}
}
