// Package policy implements the resource visibility rules shared by every
// project and task use case.  The functions are pure: they evaluate data
// the caller has already fetched and never touch storage, so they are
// safe to call from any goroutine.
package policy

import "github.com/alibekd/taskboard/internal/model"

// Resource is the visibility tuple a protected entity exposes to the
// policy: who owns it, who is a member, and how widely it can be seen.
// Projects satisfy this directly; tasks are checked through their
// project's tuple.
type Resource struct {
	OwnerID    uint64
	MemberIDs  []uint64
	Visibility string
}

// FromProject adapts a project row into its visibility tuple.
func FromProject(p model.Project) Resource {
	return Resource{OwnerID: p.OwnerID, MemberIDs: p.MemberIDs, Visibility: p.Visibility}
}

// CanAccess reports whether the principal may read the resource.
// Admins and owners always may; public resources are open to any
// authenticated principal; team resources require membership.
func CanAccess(r Resource, p model.Principal) bool {
	if p.Role == model.RoleAdmin {
		return true
	}
	if r.OwnerID == p.ID {
		return true
	}
	switch r.Visibility {
	case model.VisibilityPublic:
		return true
	case model.VisibilityTeam:
		return isMember(r, p.ID)
	}
	return false
}

// CanModify is the stricter tier: only the owner or an admin may mutate
// membership, delete the resource, or change its visibility.  Ordinary
// members read via CanAccess and may edit task content, but never the
// project itself.
func CanModify(r Resource, p model.Principal) bool {
	return p.Role == model.RoleAdmin || r.OwnerID == p.ID
}

// CanEditContent reports whether the principal may change task content
// within the resource: owners, admins, and team members.  Public
// visibility grants read access only, not write.
func CanEditContent(r Resource, p model.Principal) bool {
	return CanModify(r, p) || isMember(r, p.ID)
}

func isMember(r Resource, id uint64) bool {
	for _, m := range r.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}
