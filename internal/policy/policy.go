// Package policy decides which foreground apps get kicked.
// The decision is a pure function over the configured blocked set and a
// fixed whitelist of essential apps.
package policy

import (
	"time"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// DefaultKickDelay is the grace period before a blocked app is kicked.
const DefaultKickDelay = 20 * time.Second

// DefaultSelfAppID is the package name of the Android companion app.
const DefaultSelfAppID = "com.focuslock"

// defaultBlockedApps is the starter set used until the user saves a list.
var defaultBlockedApps = []string{
	"com.instagram.android",
	"com.google.android.youtube",
	"com.facebook.katana",
	"com.twitter.android",
	"com.snapchat.android",
	"com.zhiliaoapp.musically",
	"com.reddit.frontpage",
	"com.netflix.mediaclient",
	"com.spotify.music",
}

// whitelist holds apps that are never blocked, whatever the blocked set says.
var whitelist = domain.NewBlockedSet(
	"com.android.dialer",
	"com.google.android.dialer",
	"com.android.contacts",
	"com.google.android.contacts",
	"com.android.mms",
	"com.google.android.apps.messaging",
	"com.android.emergency",
	"com.android.settings", // so the service can always be disabled
	DefaultSelfAppID,
)

// DefaultBlockedApps returns a fresh copy of the starter set.
func DefaultBlockedApps() domain.BlockedSet {
	return domain.NewBlockedSet(defaultBlockedApps...)
}

// IsWhitelisted reports whether id can never be blocked.
func IsWhitelisted(id string) bool {
	return whitelist.Contains(id)
}

// Whitelist returns a copy of the whitelist.
func Whitelist() domain.BlockedSet {
	return whitelist.Clone()
}

// IsBlocked reports whether id should be kicked.
// The whitelist wins even when id is also in blocked.
func IsBlocked(id string, blocked domain.BlockedSet) bool {
	if whitelist.Contains(id) {
		return false
	}
	return blocked.Contains(id)
}
