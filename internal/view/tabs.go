package view

// Tab is a tab button bound to a content panel
type Tab struct {
	Label  string `json:"label"`
	Target string `json:"target"`
}

// TabSet keeps exactly one tab (and its panel) active at a time.
type TabSet struct {
	tabs   []Tab
	active string
}

// NewTabSet creates a tab set whose initial active panel is the first tab's.
func NewTabSet(tabs ...Tab) *TabSet {
	ts := &TabSet{tabs: tabs}
	if len(tabs) > 0 {
		ts.active = tabs[0].Target
	}
	return ts
}

// Tabs returns the tabs in declaration order.
func (ts *TabSet) Tabs() []Tab {
	return append([]Tab(nil), ts.tabs...)
}

// Active returns the target of the active tab.
func (ts *TabSet) Active() string {
	return ts.active
}

// IsActive reports whether target is the active panel.
func (ts *TabSet) IsActive(target string) bool {
	return ts.active == target
}

// Activate makes target the active tab and panel. Activating the already
// active tab is a no-op; unknown targets are ignored and reported as false.
func (ts *TabSet) Activate(target string) bool {
	if ts.active == target {
		return true
	}
	for _, tab := range ts.tabs {
		if tab.Target == target {
			ts.active = target
			return true
		}
	}
	return false
}
