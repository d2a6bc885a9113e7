package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alibekd/taskboard/internal/model"
)

var (
	owner  = model.Principal{ID: 1, Role: model.RoleUser}
	member = model.Principal{ID: 2, Role: model.RoleUser}
	other  = model.Principal{ID: 3, Role: model.RoleUser}
	admin  = model.Principal{ID: 99, Role: model.RoleAdmin}
)

func teamRes() Resource {
	return Resource{OwnerID: 1, MemberIDs: []uint64{2}, Visibility: model.VisibilityTeam}
}

func TestCanAccess_TeamProject(t *testing.T) {
	t.Parallel()
	r := teamRes()
	assert.True(t, CanAccess(r, owner))
	assert.True(t, CanAccess(r, member))
	assert.True(t, CanAccess(r, admin))
	assert.False(t, CanAccess(r, other))
}

func TestCanAccess_Visibilities(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name       string
		visibility string
		principal  model.Principal
		want       bool
	}{
		{"private denies member", model.VisibilityPrivate, member, false},
		{"private denies stranger", model.VisibilityPrivate, other, false},
		{"private allows owner", model.VisibilityPrivate, owner, true},
		{"team allows member", model.VisibilityTeam, member, true},
		{"team denies stranger", model.VisibilityTeam, other, false},
		{"public allows stranger", model.VisibilityPublic, other, true},
		{"unknown visibility denies", "secret", member, false},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			r := teamRes()
			r.Visibility = tt.visibility
			assert.Equal(t, tt.want, CanAccess(r, tt.principal))
		})
	}
}

func TestCanModify_OwnerAndAdminOnly(t *testing.T) {
	t.Parallel()
	r := teamRes()
	assert.True(t, CanModify(r, owner))
	assert.True(t, CanModify(r, admin))
	assert.False(t, CanModify(r, member))
	assert.False(t, CanModify(r, other))
}

func TestCanEditContent_MembersIncluded(t *testing.T) {
	t.Parallel()
	r := teamRes()
	assert.True(t, CanEditContent(r, owner))
	assert.True(t, CanEditContent(r, member))
	assert.False(t, CanEditContent(r, other))

	// Public read access does not imply content write access.
	r.Visibility = model.VisibilityPublic
	assert.False(t, CanEditContent(r, other))
}

// CanModify must imply CanAccess for every combination of visibility,
// ownership, membership and role.
func TestModifyImpliesAccess(t *testing.T) {
	t.Parallel()
	principals := []model.Principal{owner, member, other, admin}
	for _, vis := range []string{model.VisibilityPrivate, model.VisibilityTeam, model.VisibilityPublic} {
		r := teamRes()
		r.Visibility = vis
		for _, p := range principals {
			if CanModify(r, p) {
				assert.True(t, CanAccess(r, p), "visibility=%s principal=%d", vis, p.ID)
			}
			if CanEditContent(r, p) {
				assert.True(t, CanAccess(r, p), "visibility=%s principal=%d", vis, p.ID)
			}
		}
	}
}
