package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/davemarrero/learnhub-backend/pkg/logger"
	"github.com/davemarrero/learnhub-backend/pkg/metrics"
)

// Registry tracks live websocket connections bucketed by user and by
// course subscription. All maps are guarded by one mutex; sends never
// block under it because each client owns a buffered outbound channel.
type Registry struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]map[*Client]struct{}
	courses map[uuid.UUID]map[*Client]struct{}

	logg    *logger.Logger
	metrics *metrics.RealtimeMetrics
}

// NewRegistry builds an empty connection registry.
func NewRegistry(logg *logger.Logger, m *metrics.RealtimeMetrics) *Registry {
	return &Registry{
		users:   make(map[uuid.UUID]map[*Client]struct{}),
		courses: make(map[uuid.UUID]map[*Client]struct{}),
		logg:    logg,
		metrics: m,
	}
}

// Register adds the client to its user bucket.
func (r *Registry) Register(c *Client) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.users[c.userID]
	if !ok {
		bucket = make(map[*Client]struct{})
		r.users[c.userID] = bucket
	}
	bucket[c] = struct{}{}
	r.metrics.IncConnections()
}

// Unregister removes the client from its user bucket and every course
// room it joined. Safe to call more than once.
func (r *Registry) Unregister(c *Client) {
	if c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(c)
}

func (r *Registry) removeLocked(c *Client) {
	bucket, ok := r.users[c.userID]
	if ok {
		if _, present := bucket[c]; present {
			delete(bucket, c)
			r.metrics.DecConnections()
		}
		if len(bucket) == 0 {
			delete(r.users, c.userID)
		}
	}
	for courseID, subs := range r.courses {
		if _, present := subs[c]; present {
			delete(subs, c)
			if len(subs) == 0 {
				delete(r.courses, courseID)
			}
		}
	}
}

// SubscribeCourse adds the client to a course room.
func (r *Registry) SubscribeCourse(c *Client, courseID uuid.UUID) {
	if c == nil || courseID == uuid.Nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.courses[courseID]
	if !ok {
		subs = make(map[*Client]struct{})
		r.courses[courseID] = subs
	}
	subs[c] = struct{}{}
}

// UnsubscribeCourse removes the client from a course room.
func (r *Registry) UnsubscribeCourse(c *Client, courseID uuid.UUID) {
	if c == nil || courseID == uuid.Nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	subs, ok := r.courses[courseID]
	if !ok {
		return
	}
	delete(subs, c)
	if len(subs) == 0 {
		delete(r.courses, courseID)
	}
}

// SendToUser delivers the message to every connection the user has
// open. Delivery is best effort: clients whose buffers are full are
// dropped and pruned so one slow consumer cannot stall the rest.
func (r *Registry) SendToUser(ctx context.Context, userID uuid.UUID, msg OutboundMessage) int {
	raw, err := json.Marshal(msg)
	if err != nil {
		if r.logg != nil {
			r.logg.Error(ctx, "realtime: marshal outbound message", err)
		}
		return 0
	}

	r.mu.RLock()
	targets := make([]*Client, 0, len(r.users[userID]))
	for c := range r.users[userID] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	return r.deliver(ctx, targets, msg.Type, raw)
}

// BroadcastToCourse delivers the message to every subscriber of the
// course room.
func (r *Registry) BroadcastToCourse(ctx context.Context, courseID uuid.UUID, msg OutboundMessage) int {
	raw, err := json.Marshal(msg)
	if err != nil {
		if r.logg != nil {
			r.logg.Error(ctx, "realtime: marshal outbound message", err)
		}
		return 0
	}

	r.mu.RLock()
	targets := make([]*Client, 0, len(r.courses[courseID]))
	for c := range r.courses[courseID] {
		targets = append(targets, c)
	}
	r.mu.RUnlock()

	return r.deliver(ctx, targets, msg.Type, raw)
}

// Broadcast delivers the message to every open connection regardless
// of user or course. Used for platform-wide announcements.
func (r *Registry) Broadcast(ctx context.Context, msg OutboundMessage) int {
	raw, err := json.Marshal(msg)
	if err != nil {
		if r.logg != nil {
			r.logg.Error(ctx, "realtime: marshal outbound message", err)
		}
		return 0
	}

	r.mu.RLock()
	var targets []*Client
	for _, bucket := range r.users {
		for c := range bucket {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	return r.deliver(ctx, targets, msg.Type, raw)
}

func (r *Registry) deliver(ctx context.Context, targets []*Client, msgType string, raw []byte) int {
	delivered := 0
	var dead []*Client
	for _, c := range targets {
		if c.trySend(raw) {
			delivered++
			r.metrics.IncDelivered(msgType)
			continue
		}
		r.metrics.IncDropped()
		dead = append(dead, c)
	}

	if len(dead) > 0 {
		r.mu.Lock()
		for _, c := range dead {
			r.removeLocked(c)
		}
		r.mu.Unlock()
		for _, c := range dead {
			c.closeSlow()
		}
		if r.logg != nil {
			r.logg.Warn(r.logg.WithField(ctx, "pruned", len(dead)), "realtime: pruned unresponsive connections")
		}
	}
	return delivered
}

// UserConnectionCount reports how many connections a user has open.
func (r *Registry) UserConnectionCount(userID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID])
}

// CourseSubscriberCount reports how many clients joined a course room.
func (r *Registry) CourseSubscriberCount(courseID uuid.UUID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.courses[courseID])
}
