package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute(t *testing.T) {
	t.Parallel()

	n := Notification{ID: "n1", UserID: "u1", Title: "hello"}
	active := PushSubscription{ID: "s1", UserID: "u1", Endpoint: "https://push/1", IsActive: true}
	inactive := PushSubscription{ID: "s2", UserID: "u1", Endpoint: "https://push/2"}
	second := PushSubscription{ID: "s3", UserID: "u1", Endpoint: "https://push/3", IsActive: true}

	tests := []struct {
		name     string
		channels ChannelSet
		rcpt     Recipient
		want     []string // channel:address
	}{
		{
			name:     "one request per address",
			channels: AllChannels,
			rcpt: Recipient{
				UserID:        "u1",
				Email:         "u1@example.com",
				Subscriptions: []PushSubscription{active, inactive, second},
				Sessions:      []string{"sess-a", "sess-b"},
			},
			want: []string{"in_app:sess-a", "in_app:sess-b", "push:s1", "push:s3", "email:u1@example.com"},
		},
		{
			name:     "no session yields addressless in-app request",
			channels: ChannelSet{InApp: true},
			rcpt:     Recipient{UserID: "u1"},
			want:     []string{"in_app:"},
		},
		{
			name:     "missing addresses yield no push or email request",
			channels: ChannelSet{Push: true, Email: true},
			rcpt:     Recipient{UserID: "u1", Subscriptions: []PushSubscription{inactive}},
			want:     nil,
		},
		{
			name:     "disabled channels are not routed",
			channels: ChannelSet{Email: true},
			rcpt:     Recipient{UserID: "u1", Email: "u1@example.com", Subscriptions: []PushSubscription{active}, Sessions: []string{"s"}},
			want:     []string{"email:u1@example.com"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			reqs := Route(n, tt.channels, tt.rcpt)
			var got []string
			for _, r := range reqs {
				addr := r.Address
				if r.Channel == ChannelPush {
					require.NotNil(t, r.Subscription)
					addr = r.Subscription.ID
				}
				got = append(got, string(r.Channel)+":"+addr)
				assert.Equal(t, PayloadNotification, r.Payload.Kind)
				assert.Equal(t, "n1", r.Payload.ReferenceID())
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouteDigest(t *testing.T) {
	t.Parallel()

	d := Digest{
		Preview:  DigestPreview{ID: "d1", UserID: "u1", Total: 3},
		Channels: AllChannels,
	}
	rcpt := Recipient{
		UserID:        "u1",
		Email:         "u1@example.com",
		Subscriptions: []PushSubscription{{ID: "s1", IsActive: true}},
		Sessions:      []string{"sess"},
	}

	reqs := RouteDigest(d, rcpt)
	require.Len(t, reqs, 2)
	assert.Equal(t, ChannelPush, reqs[0].Channel)
	assert.Equal(t, ChannelEmail, reqs[1].Channel)
	for _, r := range reqs {
		assert.Equal(t, PayloadDigest, r.Payload.Kind)
		assert.Equal(t, "d1", r.Payload.ReferenceID())
		assert.Equal(t, "u1", r.Payload.UserID())
	}
}
