package policy

import "sort"

// KnownApp pairs a package name with a human-readable label.
type KnownApp struct {
	ID   string
	Name string
}

// Catalog maps package names to display names.
// This is the in-memory catalog for the well-known distracting apps.
type Catalog struct {
	apps map[string]KnownApp
}

// NewCatalog creates a catalog with all default apps.
func NewCatalog() *Catalog {
	c := &Catalog{
		apps: make(map[string]KnownApp),
	}

	c.Register(KnownApp{ID: "com.instagram.android", Name: "Instagram"})
	c.Register(KnownApp{ID: "com.google.android.youtube", Name: "YouTube"})
	c.Register(KnownApp{ID: "com.facebook.katana", Name: "Facebook"})
	c.Register(KnownApp{ID: "com.twitter.android", Name: "Twitter (X)"})
	c.Register(KnownApp{ID: "com.snapchat.android", Name: "Snapchat"})
	c.Register(KnownApp{ID: "com.zhiliaoapp.musically", Name: "TikTok"})
	c.Register(KnownApp{ID: "com.reddit.frontpage", Name: "Reddit"})
	c.Register(KnownApp{ID: "com.netflix.mediaclient", Name: "Netflix"})
	c.Register(KnownApp{ID: "com.spotify.music", Name: "Spotify"})

	return c
}

// NewCatalogWithApps creates a catalog with custom entries (for testing).
func NewCatalogWithApps(apps ...KnownApp) *Catalog {
	c := &Catalog{
		apps: make(map[string]KnownApp),
	}
	for _, a := range apps {
		c.Register(a)
	}
	return c
}

// Register adds or replaces an entry.
func (c *Catalog) Register(a KnownApp) {
	c.apps[a.ID] = a
}

// Get returns the entry for id.
func (c *Catalog) Get(id string) (KnownApp, bool) {
	a, ok := c.apps[id]
	return a, ok
}

// DisplayName returns the label for id, or id itself when unknown.
func (c *Catalog) DisplayName(id string) string {
	if a, ok := c.apps[id]; ok {
		return a.Name
	}
	return id
}

// All returns every entry sorted by ID.
func (c *Catalog) All() []KnownApp {
	result := make([]KnownApp, 0, len(c.apps))
	for _, a := range c.apps {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}
