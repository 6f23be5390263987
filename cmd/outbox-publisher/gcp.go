package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

// orderedPublisher adapts a Pub/Sub publisher with message ordering enabled.
// A failed publish pauses its ordering key inside the client; the key is
// resumed once the failure is observed so the next round can retry it.
type orderedPublisher struct {
	p *gcppubsub.Publisher
}

func newOrderedPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return &orderedPublisher{p: p}
}

func (o *orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &orderedResult{
		result: o.p.Publish(ctx, msg),
		resume: func() { o.p.ResumePublish(msg.OrderingKey) },
	}
}

type orderedResult struct {
	result *gcppubsub.PublishResult
	resume func()
}

func (r *orderedResult) Get(ctx context.Context) (string, error) {
	if r.result == nil {
		return "", errors.New("publish result is nil")
	}
	id, err := r.result.Get(ctx)
	if err != nil {
		r.resume()
	}
	return id, err
}

// publisherCache hands out one ordered publisher per topic so batching and
// ordering state survive across rounds.
type publisherCache struct {
	open  func(topic string) *gcppubsub.Publisher
	byKey map[string]publisher
}

func newPublisherCache(open func(topic string) *gcppubsub.Publisher) *publisherCache {
	return &publisherCache{open: open, byKey: make(map[string]publisher)}
}

func (c *publisherCache) get(topic string) publisher {
	if p, ok := c.byKey[topic]; ok {
		return p
	}
	p := newOrderedPublisher(c.open(topic))
	if p != nil {
		c.byKey[topic] = p
	}
	return p
}

// stop flushes pending messages of every publisher handed out.
func (c *publisherCache) stop() {
	for _, p := range c.byKey {
		if op, ok := p.(*orderedPublisher); ok {
			op.p.Stop()
		}
	}
}
