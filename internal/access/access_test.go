package access

import (
	"context"
	"testing"
	"time"

	"Beacon/internal/topic"
	"Beacon/pkg/cache"
	apperrors "Beacon/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	staff    = Principal{ID: "op-1", Role: RoleStaff}
	owner    = Principal{ID: "u-1", Role: RoleUser}
	stranger = Principal{ID: "u-2", Role: RoleUser}
	anon     = Principal{}
)

func TestCanSubscribe(t *testing.T) {
	cases := []struct {
		name string
		p    Principal
		t    topic.Topic
		want bool
	}{
		{"staff admin feed", staff, topic.AdminAlerts(), true},
		{"staff map", staff, topic.MapAlerts(), true},
		{"staff any alert", staff, topic.Alert("a1"), true},
		{"staff any user", staff, topic.User("u-1"), true},
		{"user admin feed", owner, topic.AdminAlerts(), false},
		{"user dashboard", owner, topic.AdminDashboard(), false},
		{"owner alert", owner, topic.Alert("a1"), true},
		{"owner location", owner, topic.Location("a1"), true},
		{"owner chat", owner, topic.Chat("a1"), true},
		{"stranger alert", stranger, topic.Alert("a1"), false},
		{"stranger chat", stranger, topic.Chat("a1"), false},
		{"self user topic", owner, topic.User("u-1"), true},
		{"other user topic", stranger, topic.User("u-1"), false},
		{"anonymous", anon, topic.User(""), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CanSubscribe(tc.p, tc.t, "u-1"))
		})
	}
}

func TestCanPerform(t *testing.T) {
	assert.True(t, CanPerform(staff, ActionAcknowledge, "u-1"))
	assert.False(t, CanPerform(owner, ActionAcknowledge, "u-1"))
	assert.True(t, CanPerform(owner, ActionCancel, "u-1"))
	assert.False(t, CanPerform(staff, ActionCancel, "u-1"))
	assert.False(t, CanPerform(stranger, ActionCancel, "u-1"))
	assert.True(t, CanPerform(owner, ActionWriteLocation, "u-1"))
	assert.False(t, CanPerform(staff, ActionWriteLocation, "u-1"))
	assert.True(t, CanPerform(staff, ActionWriteChat, "u-1"))
	assert.False(t, CanPerform(stranger, ActionWriteChat, "u-1"))
	assert.False(t, CanPerform(anon, ActionCreate, ""))
	assert.False(t, CanPerform(owner, ActionCancel, ""))
}

func TestEvaluatorAdmit(t *testing.T) {
	calls := 0
	src := OwnerFunc(func(ctx context.Context, id string) (string, error) {
		calls++
		if id == "missing" {
			return "", apperrors.NotFound("alert not found")
		}
		return "u-1", nil
	})
	ev := NewEvaluator(NewCachedOwners(src, cache.NewLocalCache(cache.LocalConfig{MaxSize: 10}), time.Minute))
	ctx := context.Background()

	ownerID, err := ev.Admit(ctx, owner, topic.Alert("a1"))
	require.NoError(t, err)
	assert.Equal(t, "u-1", ownerID)

	_, err = ev.Admit(ctx, stranger, topic.Chat("a1"))
	assert.Equal(t, apperrors.CodeForbidden, apperrors.CodeOf(err))
	assert.Equal(t, 1, calls, "owner lookups are cached")

	_, err = ev.Admit(ctx, anon, topic.AdminAlerts())
	assert.Equal(t, apperrors.CodeUnauthorized, apperrors.CodeOf(err))

	_, err = ev.Admit(ctx, staff, topic.Alert("missing"))
	assert.Equal(t, apperrors.CodeNotFound, apperrors.CodeOf(err))

	_, err = ev.Admit(ctx, owner, topic.AdminDashboard())
	assert.Equal(t, apperrors.CodeForbidden, apperrors.CodeOf(err))
	assert.Equal(t, 2, calls, "global topics never look up an owner")
}
