package rewrite

// Patterns are the ordered structural pattern lists the engine tries
// against the host page. The host markup is a moving target under active
// redesign, so every list is preference-ordered (new layout first) and
// centrally replaceable from configuration: when the host ships a new
// card renderer, the fix is one more selector here, not a code change.
type Patterns struct {
	// Containers enumerate candidate video-card fragments: grid, list,
	// search, sidebar/compact and playlist renderers across layouts.
	Containers []string `yaml:"containers"`
	// Title locates the displayed title element inside a fragment.
	Title []string `yaml:"title"`
	// Permalink locates the anchor whose target encodes the video URL.
	Permalink []string `yaml:"permalink"`
	// WatchTitle locates the single now-playing title on a watch page.
	WatchTitle []string `yaml:"watch_title"`
	// Attribution locates the channel byline inside a fragment.
	Attribution []string `yaml:"attribution"`
}

// DefaultPatterns returns the pattern lists for the host page layouts
// currently in the wild.
func DefaultPatterns() Patterns {
	return Patterns{
		Containers: []string{
			"yt-lockup-view-model",
			"ytd-rich-item-renderer",
			"ytd-video-renderer",
			"ytd-grid-video-renderer",
			"ytd-compact-video-renderer",
			"ytd-playlist-video-renderer",
			"ytd-rich-grid-media",
		},
		Title: []string{
			".yt-lockup-metadata-view-model-wiz__title span",
			"#video-title",
			"a#video-title-link yt-formatted-string",
			"yt-formatted-string#video-title",
			"h3 a span",
		},
		Permalink: []string{
			"a.yt-lockup-view-model-wiz__content-image",
			"a#video-title-link",
			"a#video-title",
			"a#thumbnail",
			"a[href]",
		},
		WatchTitle: []string{
			"h1.ytd-watch-metadata yt-formatted-string",
			"h1.title yt-formatted-string",
			"#title h1",
			"h1.watch-title",
		},
		Attribution: []string{
			"ytd-channel-name a",
			"#channel-name a",
			".yt-content-metadata-view-model-wiz__metadata-text a",
			"#byline a",
		},
	}
}

// merged returns p with any empty list filled from the defaults, so a
// config override of one list does not silently blank the others.
func (p Patterns) merged() Patterns {
	def := DefaultPatterns()
	if len(p.Containers) == 0 {
		p.Containers = def.Containers
	}
	if len(p.Title) == 0 {
		p.Title = def.Title
	}
	if len(p.Permalink) == 0 {
		p.Permalink = def.Permalink
	}
	if len(p.WatchTitle) == 0 {
		p.WatchTitle = def.WatchTitle
	}
	if len(p.Attribution) == 0 {
		p.Attribution = def.Attribution
	}
	return p
}
