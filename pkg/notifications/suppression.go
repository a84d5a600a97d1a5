package notifications

import "time"

// Decision is the outcome of suppression evaluation.
type Decision string

const (
	// DecisionInstant delivers at least one channel now.
	DecisionInstant Decision = "instant"
	// DecisionDigest records the notification and holds delivery for a digest.
	DecisionDigest Decision = "digest"
	// DecisionDrop discards the event; no record is created.
	DecisionDrop Decision = "drop"
)

// Reasons attached to an Evaluation, mostly for logs and delivery history.
const (
	ReasonDisabled    = "notifications_disabled"
	ReasonDNDUrgent   = "dnd_urgent_bypass"
	ReasonDNDHeld     = "dnd_held"
	ReasonDND         = "dnd"
	ReasonNoChannels  = "no_channels"
	ReasonQuietHours  = "quiet_hours"
	ReasonInstant     = "instant"
	ReasonDigest      = "digest_frequency"
	ReasonNotHoldable = "quiet_hours_not_holdable"
)

// Evaluation is the full suppression result: which channels go out now and
// which are held, and for which digest frequency.
type Evaluation struct {
	Decision  Decision   `json:"decision"`
	Immediate ChannelSet `json:"immediate"`
	Deferred  ChannelSet `json:"deferred"`
	// Frequency is the digest bucket deferred channels are held in.
	// FrequencyInstant denotes the quiet-hours catch-up bucket.
	Frequency Frequency `json:"frequency,omitempty"`
	Reason    string    `json:"reason"`
}

// CreatesRecord reports whether the notification must be persisted.
func (e Evaluation) CreatesRecord() bool {
	return e.Decision != DecisionDrop
}

// Evaluator maps (event, preferences, time) to a suppression decision.
// It is pure and safe for concurrent use.
type Evaluator struct {
	catalog *Catalog
}

// NewEvaluator creates an evaluator. catalog may be nil.
func NewEvaluator(catalog *Catalog) *Evaluator {
	return &Evaluator{catalog: catalog}
}

// Evaluate applies the suppression rules without a category catalog.
func Evaluate(event Event, prefs Preferences, now time.Time) Evaluation {
	return NewEvaluator(nil).Evaluate(event, prefs, now)
}

// Evaluate applies the suppression rules in order; the first match wins.
//
//  1. Notifications disabled globally: drop.
//  2. DND active: urgent bypasses to instant; otherwise hold for the digest,
//     or drop when no digest frequency is configured.
//  3. No channel enabled for the category: drop.
//  4. Quiet hours: in-app goes out now, push/email are held (or dropped when
//     there is no digest and the category cannot be held).
//  5. Instant frequency delivers everything now; any other frequency delivers
//     in-app now and holds push/email.
func (ev *Evaluator) Evaluate(event Event, prefs Preferences, now time.Time) Evaluation {
	p := prefs.Normalized()
	event = event.withDefaults()

	if !p.NotificationsEnabled {
		return Evaluation{Decision: DecisionDrop, Reason: ReasonDisabled}
	}

	channels := p.ChannelsFor(event.Category, ev.catalog)
	freq := p.EmailDigestFrequency

	if p.DNDActive(now) {
		if event.Priority == PriorityUrgent {
			return Evaluation{Decision: DecisionInstant, Immediate: channels, Reason: ReasonDNDUrgent}
		}
		if freq != FrequencyInstant {
			return Evaluation{
				Decision:  DecisionDigest,
				Deferred:  channels.Without(ChannelInApp),
				Frequency: freq,
				Reason:    ReasonDNDHeld,
			}
		}
		return Evaluation{Decision: DecisionDrop, Reason: ReasonDND}
	}

	if channels.Empty() {
		return Evaluation{Decision: DecisionDrop, Reason: ReasonNoChannels}
	}

	if p.InQuietHours(now) {
		immediate := channels.Only(ChannelInApp)
		deferred := channels.Without(ChannelInApp)
		reason := ReasonQuietHours
		if !deferred.Empty() && freq == FrequencyInstant && !ev.catalog.Holdable(event.Category) {
			deferred = ChannelSet{}
			reason = ReasonNotHoldable
		}
		out := Evaluation{Immediate: immediate, Deferred: deferred, Reason: reason}
		if !deferred.Empty() {
			out.Frequency = freq
		}
		switch {
		case immediate.InApp:
			out.Decision = DecisionInstant
		case !deferred.Empty():
			out.Decision = DecisionDigest
		default:
			out.Decision = DecisionDrop
		}
		return out
	}

	if freq == FrequencyInstant {
		return Evaluation{Decision: DecisionInstant, Immediate: channels, Reason: ReasonInstant}
	}
	return Evaluation{
		Decision:  DecisionDigest,
		Immediate: channels.Only(ChannelInApp),
		Deferred:  channels.Without(ChannelInApp),
		Frequency: freq,
		Reason:    ReasonDigest,
	}
}
