package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var baseTime = time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC) // Wednesday

func ptrTime(t time.Time) *time.Time { return &t }

func holdable(v bool) *bool { return &v }

func TestEvaluate(t *testing.T) {
	t.Parallel()

	at := func(h, m int) time.Time {
		return time.Date(2025, time.January, 15, h, m, 0, 0, time.UTC)
	}
	quiet := func(p Preferences) Preferences {
		p.QuietHoursEnabled = true
		p.QuietHoursStart = TimeOfDay{Hour: 22}
		p.QuietHoursEnd = TimeOfDay{Hour: 6}
		return p
	}
	withCategory := func(p Preferences, name string, cs ChannelSet) Preferences {
		p.CategoryPreferences = map[string]ChannelSet{name: cs}
		return p
	}
	withFreq := func(p Preferences, f Frequency) Preferences {
		p.EmailDigestFrequency = f
		return p
	}
	withDND := func(p Preferences, until time.Time) Preferences {
		p.DNDEnabled = true
		p.DNDUntil = &until
		return p
	}
	defaults := DefaultPreferences("u1")

	tests := []struct {
		name      string
		event     Event
		prefs     Preferences
		now       time.Time
		decision  Decision
		immediate ChannelSet
		deferred  ChannelSet
		frequency Frequency
		reason    string
	}{
		{
			name:     "notifications disabled drops",
			event:    Event{UserID: "u1", Title: "t", Priority: PriorityUrgent},
			prefs:    func() Preferences { p := defaults; p.NotificationsEnabled = false; return p }(),
			now:      baseTime,
			decision: DecisionDrop,
			reason:   ReasonDisabled,
		},
		{
			name:      "zero preferences behave as defaults",
			event:     Event{UserID: "u1", Title: "t"},
			prefs:     Preferences{},
			now:       baseTime,
			decision:  DecisionInstant,
			immediate: AllChannels,
			reason:    ReasonInstant,
		},
		{
			name:      "urgent bypasses dnd",
			event:     Event{UserID: "u1", Title: "t", Priority: PriorityUrgent},
			prefs:     withDND(withFreq(defaults, FrequencyDaily), baseTime.Add(2*time.Hour)),
			now:       baseTime,
			decision:  DecisionInstant,
			immediate: AllChannels,
			reason:    ReasonDNDUrgent,
		},
		{
			name:     "urgent bypasses dnd even without channels",
			event:    Event{UserID: "u1", Title: "t", Priority: PriorityUrgent, Category: "alerts"},
			prefs:    withCategory(withDND(defaults, baseTime.Add(time.Hour)), "alerts", ChannelSet{}),
			now:      baseTime,
			decision: DecisionInstant,
			reason:   ReasonDNDUrgent,
		},
		{
			name:      "dnd holds non urgent for digest",
			event:     Event{UserID: "u1", Title: "t", Priority: PriorityHigh},
			prefs:     withDND(withFreq(defaults, FrequencyDaily), baseTime.Add(time.Hour)),
			now:       baseTime,
			decision:  DecisionDigest,
			deferred:  ChannelSet{Push: true, Email: true},
			frequency: FrequencyDaily,
			reason:    ReasonDNDHeld,
		},
		{
			name:     "dnd without digest drops",
			event:    Event{UserID: "u1", Title: "t"},
			prefs:    withDND(defaults, baseTime.Add(time.Hour)),
			now:      baseTime,
			decision: DecisionDrop,
			reason:   ReasonDND,
		},
		{
			name:      "expired dnd is ignored",
			event:     Event{UserID: "u1", Title: "t"},
			prefs:     withDND(defaults, baseTime.Add(-time.Minute)),
			now:       baseTime,
			decision:  DecisionInstant,
			immediate: AllChannels,
			reason:    ReasonInstant,
		},
		{
			name:     "category without channels drops",
			event:    Event{UserID: "u1", Title: "t", Category: "marketing"},
			prefs:    withCategory(defaults, "marketing", ChannelSet{}),
			now:      baseTime,
			decision: DecisionDrop,
			reason:   ReasonNoChannels,
		},
		{
			name:     "global switches cap category mapping",
			event:    Event{UserID: "u1", Title: "t", Category: "alerts"},
			prefs:    func() Preferences { p := withCategory(defaults, "alerts", ChannelSet{Push: true}); p.PushEnabled = false; return p }(),
			now:      baseTime,
			decision: DecisionDrop,
			reason:   ReasonNoChannels,
		},
		{
			name:      "quiet hours deliver in-app and hold push",
			event:     Event{UserID: "u1", Title: "t", Category: "alerts"},
			prefs:     quiet(withCategory(defaults, "alerts", ChannelSet{InApp: true, Push: true})),
			now:       at(23, 0),
			decision:  DecisionInstant,
			immediate: ChannelSet{InApp: true},
			deferred:  ChannelSet{Push: true},
			frequency: FrequencyInstant,
			reason:    ReasonQuietHours,
		},
		{
			name:      "quiet hours apply to urgent without dnd",
			event:     Event{UserID: "u1", Title: "t", Priority: PriorityUrgent},
			prefs:     quiet(defaults),
			now:       at(2, 0),
			decision:  DecisionInstant,
			immediate: ChannelSet{InApp: true},
			deferred:  ChannelSet{Push: true, Email: true},
			frequency: FrequencyInstant,
			reason:    ReasonQuietHours,
		},
		{
			name:      "quiet hours drop push for non holdable category",
			event:     Event{UserID: "u1", Title: "t", Category: "security"},
			prefs:     quiet(defaults),
			now:       at(23, 30),
			decision:  DecisionInstant,
			immediate: ChannelSet{InApp: true},
			reason:    ReasonNotHoldable,
		},
		{
			name:     "quiet hours with only email on non holdable category drops",
			event:    Event{UserID: "u1", Title: "t", Category: "security"},
			prefs:    quiet(withCategory(defaults, "security", ChannelSet{Email: true})),
			now:      at(23, 30),
			decision: DecisionDrop,
			reason:   ReasonNotHoldable,
		},
		{
			name:      "quiet hours with digest frequency hold non holdable category",
			event:     Event{UserID: "u1", Title: "t", Category: "security"},
			prefs:     quiet(withFreq(withCategory(defaults, "security", ChannelSet{Email: true}), FrequencyHourly)),
			now:       at(23, 30),
			decision:  DecisionDigest,
			deferred:  ChannelSet{Email: true},
			frequency: FrequencyHourly,
			reason:    ReasonQuietHours,
		},
		{
			name:      "outside quiet hours",
			event:     Event{UserID: "u1", Title: "t"},
			prefs:     quiet(defaults),
			now:       at(12, 0),
			decision:  DecisionInstant,
			immediate: AllChannels,
			reason:    ReasonInstant,
		},
		{
			name:      "digest frequency delivers in-app and holds the rest",
			event:     Event{UserID: "u1", Title: "t", Category: "reports"},
			prefs:     withFreq(defaults, FrequencyHourly),
			now:       baseTime,
			decision:  DecisionDigest,
			immediate: ChannelSet{InApp: true},
			deferred:  ChannelSet{Push: true, Email: true},
			frequency: FrequencyHourly,
			reason:    ReasonDigest,
		},
		{
			name:      "catalog defaults apply to unmapped category",
			event:     Event{UserID: "u1", Title: "t", Category: "digesty"},
			prefs:     defaults,
			now:       baseTime,
			decision:  DecisionInstant,
			immediate: ChannelSet{InApp: true, Email: true},
			reason:    ReasonInstant,
		},
	}

	ev := NewEvaluator(NewCatalog(map[string]CategoryPolicy{
		"security": {Holdable: holdable(false)},
		"digesty":  {Defaults: &ChannelSet{InApp: true, Email: true}},
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ev.Evaluate(tt.event, tt.prefs, tt.now)
			assert.Equal(t, tt.decision, got.Decision)
			assert.Equal(t, tt.immediate, got.Immediate, "immediate")
			assert.Equal(t, tt.deferred, got.Deferred, "deferred")
			assert.Equal(t, tt.frequency, got.Frequency, "frequency")
			assert.Equal(t, tt.reason, got.Reason)
		})
	}
}

func TestEvaluate_DisabledNeverCreatesRecord(t *testing.T) {
	t.Parallel()

	prefs := DefaultPreferences("u1")
	prefs.NotificationsEnabled = false

	for _, priority := range []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent} {
		for _, freq := range []Frequency{FrequencyInstant, FrequencyHourly, FrequencyDaily, FrequencyWeekly} {
			for _, dnd := range []bool{false, true} {
				p := prefs
				p.EmailDigestFrequency = freq
				p.QuietHoursEnabled = true
				if dnd {
					p.DNDEnabled = true
					p.DNDUntil = ptrTime(baseTime.Add(time.Hour))
				}
				got := Evaluate(Event{UserID: "u1", Title: "t", Priority: priority}, p, baseTime)
				assert.False(t, got.CreatesRecord(), "priority=%s freq=%s dnd=%v", priority, freq, dnd)
			}
		}
	}
}

func TestEvaluate_UrgentDuringDNDIsInstant(t *testing.T) {
	t.Parallel()

	until := baseTime.Add(2 * time.Hour)
	for _, freq := range []Frequency{FrequencyInstant, FrequencyHourly, FrequencyDaily, FrequencyWeekly} {
		for _, quietHours := range []bool{false, true} {
			p := DefaultPreferences("u1")
			p.EmailDigestFrequency = freq
			p.DNDEnabled = true
			p.DNDUntil = &until
			p.QuietHoursEnabled = quietHours
			p.QuietHoursStart = TimeOfDay{Hour: 0}
			p.QuietHoursEnd = TimeOfDay{Hour: 23, Minute: 59}

			got := Evaluate(Event{UserID: "u1", Title: "t", Priority: PriorityUrgent}, p, baseTime)
			assert.Equal(t, DecisionInstant, got.Decision, "freq=%s quiet=%v", freq, quietHours)
			assert.Equal(t, AllChannels, got.Immediate)
		}
	}
}
