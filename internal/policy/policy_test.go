package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

func TestIsBlocked(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		blocked domain.BlockedSet
		want    bool
	}{
		{
			name:    "blocked app in set",
			id:      "com.instagram.android",
			blocked: domain.NewBlockedSet("com.instagram.android"),
			want:    true,
		},
		{
			name:    "app not in set",
			id:      "com.example.notes",
			blocked: domain.NewBlockedSet("com.instagram.android"),
			want:    false,
		},
		{
			name:    "whitelisted app also in set",
			id:      "com.android.dialer",
			blocked: domain.NewBlockedSet("com.android.dialer", "com.instagram.android"),
			want:    false,
		},
		{
			name:    "self app in set",
			id:      DefaultSelfAppID,
			blocked: domain.NewBlockedSet(DefaultSelfAppID),
			want:    false,
		},
		{
			name:    "empty set",
			id:      "com.instagram.android",
			blocked: domain.NewBlockedSet(),
			want:    false,
		},
		{
			name:    "nil set",
			id:      "com.instagram.android",
			blocked: nil,
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsBlocked(tt.id, tt.blocked))
		})
	}
}

// TestIsBlocked_WhitelistAlwaysWins checks every whitelisted id against a set
// that contains all of them.
func TestIsBlocked_WhitelistAlwaysWins(t *testing.T) {
	all := Whitelist()
	for id := range all {
		assert.False(t, IsBlocked(id, all), "whitelisted %s must not be blocked", id)
	}
}

// TestIsBlocked_MatchesSetOutsideWhitelist checks the defaults behave like
// plain set membership.
func TestIsBlocked_MatchesSetOutsideWhitelist(t *testing.T) {
	blocked := DefaultBlockedApps()
	for _, id := range []string{"com.spotify.music", "com.reddit.frontpage", "org.unknown.app"} {
		assert.False(t, IsWhitelisted(id))
		assert.Equal(t, blocked.Contains(id), IsBlocked(id, blocked), id)
	}
}

func TestDefaultBlockedApps(t *testing.T) {
	blocked := DefaultBlockedApps()

	assert.Len(t, blocked, 9)
	assert.True(t, blocked.Contains("com.instagram.android"))
	assert.True(t, blocked.Contains("com.zhiliaoapp.musically"))

	// callers get a copy
	delete(blocked, "com.instagram.android")
	assert.True(t, DefaultBlockedApps().Contains("com.instagram.android"))
}

func TestWhitelist_IsCopy(t *testing.T) {
	wl := Whitelist()
	delete(wl, "com.android.dialer")

	assert.True(t, IsWhitelisted("com.android.dialer"))
}

func TestDefaultKickDelay(t *testing.T) {
	assert.Equal(t, int64(20000), DefaultKickDelay.Milliseconds())
}
