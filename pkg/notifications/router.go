package notifications

// Recipient carries the addressing resolved for one user at delivery time.
type Recipient struct {
	UserID        string
	Email         string
	Subscriptions []PushSubscription
	Sessions      []string
}

// DeliveryRequest is one delivery through one channel to one address.
type DeliveryRequest struct {
	Channel Channel
	Payload Payload
	// Address is the email address for email and the session id for
	// in-app. An in-app request with an empty address means no session
	// was connected and live delivery is skipped.
	Address string
	// Subscription is set for push requests.
	Subscription *PushSubscription
}

// Route builds delivery requests for a notification. It is pure: one push
// request per active subscription, one email request when an address is
// known, one in-app request per connected session (or a single addressless
// one when the user has no session open).
func Route(n Notification, channels ChannelSet, rcpt Recipient) []DeliveryRequest {
	return route(NotificationPayload(n), channels, rcpt)
}

// RouteDigest builds delivery requests for a closed digest window.
// Digests never go to in-app: the held notifications are already stored.
func RouteDigest(d Digest, rcpt Recipient) []DeliveryRequest {
	return route(DigestPayload(d.Preview), d.Channels.Without(ChannelInApp), rcpt)
}

func route(payload Payload, channels ChannelSet, rcpt Recipient) []DeliveryRequest {
	var reqs []DeliveryRequest

	if channels.InApp {
		if len(rcpt.Sessions) == 0 {
			reqs = append(reqs, DeliveryRequest{Channel: ChannelInApp, Payload: payload})
		}
		for _, sid := range rcpt.Sessions {
			reqs = append(reqs, DeliveryRequest{Channel: ChannelInApp, Payload: payload, Address: sid})
		}
	}

	if channels.Push {
		for i := range rcpt.Subscriptions {
			sub := rcpt.Subscriptions[i]
			if !sub.IsActive {
				continue
			}
			reqs = append(reqs, DeliveryRequest{Channel: ChannelPush, Payload: payload, Subscription: &sub})
		}
	}

	if channels.Email && rcpt.Email != "" {
		reqs = append(reqs, DeliveryRequest{Channel: ChannelEmail, Payload: payload, Address: rcpt.Email})
	}

	return reqs
}
