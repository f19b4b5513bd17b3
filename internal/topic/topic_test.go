package topic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringAndParse(t *testing.T) {
	for _, tp := range []Topic{AdminAlerts(), MapAlerts(), AdminDashboard(), Alert("a1"), Location("a1"), Chat("a1"), User("u1")} {
		parsed, err := Parse(tp.String())
		require.NoError(t, err, tp.String())
		assert.Equal(t, tp, parsed)
	}
	assert.Equal(t, "alert:a1", Alert("a1").String())
	assert.Equal(t, "admin-alerts", AdminAlerts().String())
}

func TestParseRejects(t *testing.T) {
	for _, s := range []string{"", "alerts", "alert", "alert:", "admin-alerts:x", "users:1"} {
		_, err := Parse(s)
		assert.Error(t, err, s)
	}
}

func TestFamilyFlags(t *testing.T) {
	assert.True(t, FamilyMapAlerts.StaffOnly())
	assert.False(t, FamilyUser.StaffOnly())
	assert.True(t, FamilyChat.AlertScoped())
	assert.False(t, FamilyUser.AlertScoped())
	assert.True(t, FamilyUser.Scoped())
}
