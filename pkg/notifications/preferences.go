package notifications

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"
)

// Frequency controls how held push/email deliveries are batched.
type Frequency string

const (
	FrequencyInstant Frequency = "instant"
	FrequencyHourly  Frequency = "hourly"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
)

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyInstant, FrequencyHourly, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}

// TimeOfDay is a wall-clock time without a date, encoded as "HH:MM".
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM" in 24h format.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

// MustParseTimeOfDay is like ParseTimeOfDay but panics on malformed input.
func MustParseTimeOfDay(s string) TimeOfDay {
	t, err := ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Valid reports whether the hour and minute are in range.
func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

func (t TimeOfDay) minutes() int {
	return t.Hour*60 + t.Minute
}

// On returns the instant at this time of day on the date of d, in d's location.
func (t TimeOfDay) On(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour, t.Minute, 0, 0, d.Location())
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Preferences holds one user's notification settings.
// A record is created with defaults on first access and never deleted.
type Preferences struct {
	UserID               string                `json:"user_id"`
	NotificationsEnabled bool                  `json:"notifications_enabled"`
	PushEnabled          bool                  `json:"push_enabled"`
	EmailEnabled         bool                  `json:"email_enabled"`
	SoundEnabled         bool                  `json:"sound_enabled"`
	Email                string                `json:"email,omitempty" validate:"omitempty,email"`
	EmailDigestFrequency Frequency             `json:"email_digest_frequency" validate:"oneof=instant hourly daily weekly"`
	DigestTime           TimeOfDay             `json:"digest_time"`
	DigestTimezone       string                `json:"digest_timezone" validate:"omitempty,timezone"`
	CategoryPreferences  map[string]ChannelSet `json:"category_preferences,omitempty"`
	QuietHoursEnabled    bool                  `json:"quiet_hours_enabled"`
	QuietHoursStart      TimeOfDay             `json:"quiet_hours_start"`
	QuietHoursEnd        TimeOfDay             `json:"quiet_hours_end"`
	QuietHoursTimezone   string                `json:"quiet_hours_timezone,omitempty" validate:"omitempty,timezone"`
	DNDEnabled           bool                  `json:"dnd_enabled"`
	DNDUntil             *time.Time            `json:"dnd_until,omitempty"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// DefaultPreferences returns the settings a user starts with.
func DefaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:               userID,
		NotificationsEnabled: true,
		PushEnabled:          true,
		EmailEnabled:         true,
		SoundEnabled:         true,
		EmailDigestFrequency: FrequencyInstant,
		DigestTime:           TimeOfDay{Hour: 9},
		DigestTimezone:       "UTC",
		QuietHoursStart:      TimeOfDay{Hour: 22},
		QuietHoursEnd:        TimeOfDay{Hour: 7},
	}
}

// IsZero reports whether p carries no settings at all, as opposed to a record
// whose switches were deliberately turned off.
func (p Preferences) IsZero() bool {
	return !p.NotificationsEnabled && !p.PushEnabled && !p.EmailEnabled && !p.SoundEnabled &&
		p.EmailDigestFrequency == "" && p.DigestTimezone == "" && p.QuietHoursTimezone == "" &&
		len(p.CategoryPreferences) == 0 && !p.QuietHoursEnabled && !p.DNDEnabled &&
		p.DNDUntil == nil && p.UpdatedAt.IsZero()
}

// Normalized fills in defaults so every input state has a defined outcome.
// An empty record becomes the default record for the same user.
func (p Preferences) Normalized() Preferences {
	if p.IsZero() {
		d := DefaultPreferences(p.UserID)
		d.Email = p.Email
		return d
	}
	if !p.EmailDigestFrequency.Valid() {
		p.EmailDigestFrequency = FrequencyInstant
	}
	if p.DigestTimezone == "" {
		p.DigestTimezone = "UTC"
	}
	return p
}

// Clone returns a deep copy of p.
func (p Preferences) Clone() Preferences {
	c := p
	if p.CategoryPreferences != nil {
		c.CategoryPreferences = maps.Clone(p.CategoryPreferences)
	}
	if p.DNDUntil != nil {
		t := *p.DNDUntil
		c.DNDUntil = &t
	}
	return c
}

// DNDActive reports whether do-not-disturb suppresses delivery at now.
// A DNDUntil in the past means DND is off.
func (p Preferences) DNDActive(now time.Time) bool {
	return p.DNDEnabled && p.DNDUntil != nil && now.Before(*p.DNDUntil)
}

// QuietHoursLocation returns the zone the quiet-hours window is expressed in.
func (p Preferences) QuietHoursLocation() *time.Location {
	if p.QuietHoursTimezone != "" {
		return loadLocation(p.QuietHoursTimezone)
	}
	return loadLocation(p.DigestTimezone)
}

// DigestLocation returns the zone daily and weekly digests are aligned to.
func (p Preferences) DigestLocation() *time.Location {
	return loadLocation(p.DigestTimezone)
}

// InQuietHours reports whether now falls inside [start, end) in the
// quiet-hours zone. A window with start > end wraps midnight; start == end is
// an empty window.
func (p Preferences) InQuietHours(now time.Time) bool {
	if !p.QuietHoursEnabled {
		return false
	}
	local := now.In(p.QuietHoursLocation())
	m := local.Hour()*60 + local.Minute()
	start, end := p.QuietHoursStart.minutes(), p.QuietHoursEnd.minutes()
	switch {
	case start == end:
		return false
	case start < end:
		return m >= start && m < end
	default:
		return m >= start || m < end
	}
}

// ChannelsFor resolves the channel matrix for a category. The user's own
// mapping wins, then the catalog defaults, then the global toggles. The
// result is always capped by the global switches.
func (p Preferences) ChannelsFor(category string, catalog *Catalog) ChannelSet {
	cs, ok := p.CategoryPreferences[category]
	if !ok {
		if def, found := catalog.Defaults(category); found {
			cs = def
		} else {
			cs = AllChannels
		}
	}
	cs.InApp = cs.InApp && p.NotificationsEnabled
	cs.Push = cs.Push && p.PushEnabled
	cs.Email = cs.Email && p.EmailEnabled
	return cs
}

// Validate checks p and returns joined *ConfigurationError values.
func (p Preferences) Validate() error {
	var errs []error
	if err := validate.Struct(p); err != nil {
		errs = append(errs, toConfigurationErrors(err))
	}
	if !p.DigestTime.Valid() {
		errs = append(errs, &ConfigurationError{Field: "digest_time", Reason: "must be a valid HH:MM time"})
	}
	if !p.QuietHoursStart.Valid() {
		errs = append(errs, &ConfigurationError{Field: "quiet_hours_start", Reason: "must be a valid HH:MM time"})
	}
	if !p.QuietHoursEnd.Valid() {
		errs = append(errs, &ConfigurationError{Field: "quiet_hours_end", Reason: "must be a valid HH:MM time"})
	}
	if p.QuietHoursEnabled && p.QuietHoursStart == p.QuietHoursEnd {
		errs = append(errs, &ConfigurationError{Field: "quiet_hours_end", Reason: "must differ from quiet_hours_start"})
	}
	if p.DNDEnabled && p.DNDUntil == nil {
		errs = append(errs, &ConfigurationError{Field: "dnd_until", Reason: "is required when dnd_enabled is true"})
	}
	for name := range p.CategoryPreferences {
		if strings.TrimSpace(name) == "" || len(name) > 64 {
			errs = append(errs, &ConfigurationError{Field: "category_preferences", Reason: fmt.Sprintf("invalid category name %q", name)})
		}
	}
	return errors.Join(errs...)
}

// PreferencesUpdate is a partial preference change. Nil fields are left
// untouched. A nil entry in CategoryPreferences removes that mapping so the
// category falls back to the defaults again.
type PreferencesUpdate struct {
	NotificationsEnabled *bool                  `json:"notifications_enabled,omitempty"`
	PushEnabled          *bool                  `json:"push_enabled,omitempty"`
	EmailEnabled         *bool                  `json:"email_enabled,omitempty"`
	SoundEnabled         *bool                  `json:"sound_enabled,omitempty"`
	Email                *string                `json:"email,omitempty"`
	EmailDigestFrequency *Frequency             `json:"email_digest_frequency,omitempty"`
	DigestTime           *string                `json:"digest_time,omitempty"`
	DigestTimezone       *string                `json:"digest_timezone,omitempty"`
	CategoryPreferences  map[string]*ChannelSet `json:"category_preferences,omitempty"`
	QuietHoursEnabled    *bool                  `json:"quiet_hours_enabled,omitempty"`
	QuietHoursStart      *string                `json:"quiet_hours_start,omitempty"`
	QuietHoursEnd        *string                `json:"quiet_hours_end,omitempty"`
	QuietHoursTimezone   *string                `json:"quiet_hours_timezone,omitempty"`
	DNDEnabled           *bool                  `json:"dnd_enabled,omitempty"`
	DNDUntil             *time.Time             `json:"dnd_until,omitempty"`
}

// Apply returns p with the update merged in, or configuration errors for
// values that cannot be parsed. The result still needs Validate.
func (u PreferencesUpdate) Apply(p Preferences) (Preferences, error) {
	next := p.Clone()
	var errs []error

	setBool := func(dst *bool, v *bool) {
		if v != nil {
			*dst = *v
		}
	}
	setTime := func(field string, dst *TimeOfDay, v *string) {
		if v == nil {
			return
		}
		t, err := ParseTimeOfDay(*v)
		if err != nil {
			errs = append(errs, &ConfigurationError{Field: field, Reason: "must be a valid HH:MM time"})
			return
		}
		*dst = t
	}

	setBool(&next.NotificationsEnabled, u.NotificationsEnabled)
	setBool(&next.PushEnabled, u.PushEnabled)
	setBool(&next.EmailEnabled, u.EmailEnabled)
	setBool(&next.SoundEnabled, u.SoundEnabled)
	setBool(&next.QuietHoursEnabled, u.QuietHoursEnabled)
	setBool(&next.DNDEnabled, u.DNDEnabled)

	if u.Email != nil {
		next.Email = strings.TrimSpace(*u.Email)
	}
	if u.EmailDigestFrequency != nil {
		next.EmailDigestFrequency = *u.EmailDigestFrequency
	}
	if u.DigestTimezone != nil {
		next.DigestTimezone = *u.DigestTimezone
	}
	if u.QuietHoursTimezone != nil {
		next.QuietHoursTimezone = *u.QuietHoursTimezone
	}
	setTime("digest_time", &next.DigestTime, u.DigestTime)
	setTime("quiet_hours_start", &next.QuietHoursStart, u.QuietHoursStart)
	setTime("quiet_hours_end", &next.QuietHoursEnd, u.QuietHoursEnd)

	if u.DNDUntil != nil {
		t := *u.DNDUntil
		next.DNDUntil = &t
	}
	if u.DNDEnabled != nil && !*u.DNDEnabled {
		next.DNDUntil = nil
	}

	if len(u.CategoryPreferences) > 0 {
		if next.CategoryPreferences == nil {
			next.CategoryPreferences = make(map[string]ChannelSet, len(u.CategoryPreferences))
		}
		for name, cs := range u.CategoryPreferences {
			if cs == nil {
				delete(next.CategoryPreferences, name)
				continue
			}
			next.CategoryPreferences[name] = *cs
		}
	}

	if len(errs) > 0 {
		return p, errors.Join(errs...)
	}
	return next, nil
}

var locations sync.Map // zone name -> *time.Location

// loadLocation resolves an IANA zone, falling back to UTC for unknown names
// so evaluation never fails on a stale record.
func loadLocation(name string) *time.Location {
	if name == "" || name == "UTC" {
		return time.UTC
	}
	if loc, ok := locations.Load(name); ok {
		return loc.(*time.Location)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	locations.Store(name, loc)
	return loc
}
