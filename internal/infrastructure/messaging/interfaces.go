// Package messaging defines interfaces for real-time communication.
package messaging

import "github.com/AuroraHealth/aurora-go/internal/domain/analytics"

// LiveFeed defines the interface for pushing funnel events to connected
// admin dashboards.
type LiveFeed interface {
	Register(client *LiveClient)
	Unregister(client *LiveClient)
	Broadcast(event *analytics.Event)
	ConnectionCount() int
}
