package notify

import (
	"context"
	"log"
	"sync"
)

// Broadcaster is the live websocket channel to a connected device.
type Broadcaster interface {
	BroadcastToUser(userID string, data interface{})
}

// Pusher delivers FCM push notifications for devices without an open socket.
type Pusher interface {
	SendViolationNotification(token, title, body string) error
}

// PushNotifier implements Notifier for one driver over the websocket hub,
// with FCM as the wake-up channel when the app is backgrounded. Speech is
// rendered on-device from the text we send.
type PushNotifier struct {
	driverID string
	hub      Broadcaster
	push     Pusher // nil when FCM is not configured
	acks     *AckRegistry

	mu       sync.Mutex
	fcmToken string
}

func NewPushNotifier(driverID string, hub Broadcaster, push Pusher, acks *AckRegistry) *PushNotifier {
	return &PushNotifier{driverID: driverID, hub: hub, push: push, acks: acks}
}

// SetFCMToken records the device's current registration token, refreshed from
// the driver document on every snapshot.
func (n *PushNotifier) SetFCMToken(token string) {
	n.mu.Lock()
	n.fcmToken = token
	n.mu.Unlock()
}

func (n *PushNotifier) Speak(text string) {
	n.hub.BroadcastToUser(n.driverID, map[string]interface{}{
		"type": "speak",
		"text": text,
	})
}

func (n *PushNotifier) Alert(title, body string) {
	n.hub.BroadcastToUser(n.driverID, map[string]interface{}{
		"type":  "alert",
		"title": title,
		"body":  body,
	})
	n.pushNotice(title, body)
}

func (n *PushNotifier) PresentBlockingModal(ctx context.Context, title, body string) error {
	ch := n.acks.wait(n.driverID)

	n.hub.BroadcastToUser(n.driverID, map[string]interface{}{
		"type":       "violation_modal",
		"title":      title,
		"body":       body,
		"cancelable": false,
	})
	n.pushNotice(title, body)

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		n.acks.drop(n.driverID, ch)
		return ctx.Err()
	}
}

func (n *PushNotifier) pushNotice(title, body string) {
	if n.push == nil {
		return
	}
	n.mu.Lock()
	token := n.fcmToken
	n.mu.Unlock()
	if token == "" {
		return
	}
	if err := n.push.SendViolationNotification(token, title, body); err != nil {
		log.Printf("⚠️  FCM push failed for %s: %v", n.driverID, err)
	}
}
