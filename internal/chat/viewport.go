package chat

// Viewport tracks where the view is scrolled so new messages only force a
// scroll when the user has not deliberately scrolled away.
type Viewport struct {
	threshold   float64
	nearBottom  bool
	overridden  bool
	newMessages bool
}

// NewViewport treats anything within threshold pixels of the bottom as "at
// the bottom".
func NewViewport(threshold int) *Viewport {
	return &Viewport{threshold: float64(threshold), nearBottom: true}
}

// Report records a scroll position. Only user-initiated scrolls can override
// auto-scrolling.
func (v *Viewport) Report(scrollTop, scrollHeight, clientHeight float64, userInitiated bool) {
	v.nearBottom = scrollHeight-scrollTop-clientHeight <= v.threshold
	if userInitiated {
		v.overridden = !v.nearBottom
	}
	if v.nearBottom {
		v.newMessages = false
	}
}

// Observe is called for each new message and reports whether the view must
// scroll to the bottom. Otherwise the "new messages" affordance is raised.
func (v *Viewport) Observe(userAuthored bool) bool {
	if userAuthored || v.nearBottom || !v.overridden {
		v.ScrolledToBottom()
		return true
	}
	v.newMessages = true
	return false
}

// ScrolledToBottom records a programmatic or affordance-driven scroll.
func (v *Viewport) ScrolledToBottom() {
	v.nearBottom = true
	v.overridden = false
	v.newMessages = false
}

func (v *Viewport) NearBottom() bool  { return v.nearBottom }
func (v *Viewport) NewMessages() bool { return v.newMessages }
