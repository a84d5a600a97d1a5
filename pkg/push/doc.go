// Package push delivers notifications to browsers and mobile devices.
//
// WebPushSender implements the Web Push protocol with VAPID signing and
// payload encryption. FCMSender sends through Firebase Cloud Messaging,
// using the subscription endpoint as the device registration token. Router
// selects between them by notifications.PushProvider:
//
//	router := push.NewRouter().
//	    Handle(notifications.ProviderWebPush, webSender).
//	    Handle(notifications.ProviderFCM, fcmSender)
//
// Both senders report expired endpoints (HTTP 404/410, FCM "unregistered")
// and unusable browser keys as notifications.ErrSubscriptionExpired, the
// only error the dispatcher deactivates a subscription for. Other rejections
// are notifications.ErrPermanentDelivery. Rate limiting and 5xx answers are
// notifications.ErrTransientDelivery and are retried.
package push
