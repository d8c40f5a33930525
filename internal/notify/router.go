package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Transport sends one event to one subscriber group. Delivery is best effort.
type Transport interface {
	SendToGroup(ctx context.Context, group, event string, payload interface{}) error
}

// Publisher is what mutating handlers depend on to announce committed changes.
type Publisher interface {
	Publish(ctx context.Context, events ...Event)
}

// Router dispatches entity-change events to their audiences.
type Router struct {
	store    AudienceStore
	entities Transport
	unread   Transport
	logger   *zap.Logger
	limit    int
	timeout  time.Duration
}

// NewRouter builds a Router. entities carries change events, unread carries per-user unread counts.
func NewRouter(store AudienceStore, entities, unread Transport, logger *zap.Logger, maxConcurrent int, sendTimeout time.Duration) *Router {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Router{
		store:    store,
		entities: entities,
		unread:   unread,
		logger:   logger,
		limit:    maxConcurrent,
		timeout:  sendTimeout,
	}
}

type send struct {
	transport Transport
	channel   string
	group     string
	event     string
	payload   interface{}
}

// Publish computes the audience of every event and awaits all sends. Unread counts are
// recomputed once per (exhibit, user) across the whole batch.
// Transport and audience lookup failures are logged and never returned to the caller.
func (r *Router) Publish(ctx context.Context, events ...Event) {
	var (
		sends   []send
		targets []unreadTarget
		seen    = make(map[unreadTarget]struct{})
	)
	for _, ev := range events {
		evSends, evTargets := r.plan(ctx, ev)
		sends = append(sends, evSends...)
		for _, t := range evTargets {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			targets = append(targets, t)
		}
	}
	sends = append(sends, r.unreadSends(ctx, targets)...)
	if len(sends) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(r.limit)
	for _, s := range sends {
		s := s
		g.Go(func() error {
			r.deliver(gctx, s)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Router) deliver(ctx context.Context, s send) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := s.transport.SendToGroup(ctx, s.group, s.event, s.payload); err != nil {
		sendFailuresTotal.WithLabelValues(s.channel).Inc()
		r.logger.Warn("notification send failed",
			zap.String("channel", s.channel),
			zap.String("group", s.group),
			zap.String("event", s.event),
			zap.Error(err),
		)
		return
	}
	sendsTotal.WithLabelValues(s.channel, s.event).Inc()
}

// plan turns one event into its deduplicated entity sends and the unread counts it invalidates.
func (r *Router) plan(ctx context.Context, ev Event) ([]send, []unreadTarget) {
	rule, ok := rules[ev.Type]
	if !ok {
		r.logger.Warn("no audience rule for entity", zap.String("type", string(ev.Type)))
		return nil, nil
	}
	aud, err := rule(ctx, r.store, ev)
	aud.addUsers(ev.Users)
	if err != nil {
		r.logger.Warn("audience lookup failed",
			zap.String("event", ev.Name()),
			zap.String("id", ev.ID.String()),
			zap.Error(err),
		)
	}

	var sends []send
	if aud.suppress {
		suppressedTotal.Inc()
	} else {
		name, payload := ev.Name(), ev.Payload()
		for _, group := range dedupe(aud.groups) {
			sends = append(sends, send{transport: r.entities, channel: "entity", group: group, event: name, payload: payload})
		}
	}
	return sends, aud.unread
}

func (r *Router) unreadSends(ctx context.Context, targets []unreadTarget) []send {
	var sends []send
	for _, t := range targets {
		count, err := r.store.UnreadCount(ctx, t.exhibitID, t.userID)
		if err != nil {
			r.logger.Warn("unread count failed",
				zap.String("exhibit_id", t.exhibitID.String()),
				zap.String("user_id", t.userID.String()),
				zap.Error(err),
			)
			continue
		}
		sends = append(sends, send{
			transport: r.unread,
			channel:   "unread",
			group:     t.userID.String(),
			event:     EventUnreadCount,
			payload:   UnreadPayload{ExhibitID: t.exhibitID, Count: count},
		})
	}
	return sends
}

// Audience returns the entity-change groups ev would be sent to, without sending.
func (r *Router) Audience(ctx context.Context, ev Event) ([]string, error) {
	rule, ok := rules[ev.Type]
	if !ok {
		return nil, nil
	}
	aud, err := rule(ctx, r.store, ev)
	aud.addUsers(ev.Users)
	if aud.suppress {
		return nil, err
	}
	return dedupe(aud.groups), err
}

func dedupe(groups []string) []string {
	seen := make(map[string]struct{}, len(groups))
	out := make([]string, 0, len(groups))
	for _, g := range groups {
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}
