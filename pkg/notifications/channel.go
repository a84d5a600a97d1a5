package notifications

// Channel is a delivery medium.
type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelPush  Channel = "push"
	ChannelEmail Channel = "email"
)

// ChannelSet is the per-category channel matrix: which media may carry a
// notification. The zero value has every channel disabled.
type ChannelSet struct {
	InApp bool `json:"in_app" yaml:"in_app"`
	Push  bool `json:"push" yaml:"push"`
	Email bool `json:"email" yaml:"email"`
}

// AllChannels has every channel enabled.
var AllChannels = ChannelSet{InApp: true, Push: true, Email: true}

// Empty reports whether no channel is enabled.
func (s ChannelSet) Empty() bool {
	return !s.InApp && !s.Push && !s.Email
}

// Has reports whether c is enabled.
func (s ChannelSet) Has(c Channel) bool {
	switch c {
	case ChannelInApp:
		return s.InApp
	case ChannelPush:
		return s.Push
	case ChannelEmail:
		return s.Email
	}
	return false
}

// Without returns s with the given channels disabled.
func (s ChannelSet) Without(cs ...Channel) ChannelSet {
	for _, c := range cs {
		switch c {
		case ChannelInApp:
			s.InApp = false
		case ChannelPush:
			s.Push = false
		case ChannelEmail:
			s.Email = false
		}
	}
	return s
}

// Only returns s restricted to the given channels.
func (s ChannelSet) Only(cs ...Channel) ChannelSet {
	var out ChannelSet
	for _, c := range cs {
		switch c {
		case ChannelInApp:
			out.InApp = s.InApp
		case ChannelPush:
			out.Push = s.Push
		case ChannelEmail:
			out.Email = s.Email
		}
	}
	return out
}

// Union returns the channels enabled in either set.
func (s ChannelSet) Union(o ChannelSet) ChannelSet {
	return ChannelSet{
		InApp: s.InApp || o.InApp,
		Push:  s.Push || o.Push,
		Email: s.Email || o.Email,
	}
}

// Channels lists enabled channels in a stable order: in-app, push, email.
func (s ChannelSet) Channels() []Channel {
	out := make([]Channel, 0, 3)
	if s.InApp {
		out = append(out, ChannelInApp)
	}
	if s.Push {
		out = append(out, ChannelPush)
	}
	if s.Email {
		out = append(out, ChannelEmail)
	}
	return out
}
