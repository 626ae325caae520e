package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CalendarPubSub broadcasts per-resource calendar changes so owner dashboards
// can refresh without polling. Fired after commit; best effort.
type CalendarPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewCalendarPubSub(rdb *redis.Client) *CalendarPubSub {
	return &CalendarPubSub{
		rdb:     rdb,
		channel: ChannelCalendarChanged(),
	}
}

type calendarChangedMsg struct {
	Type       string `json:"type"`
	ResourceID int64  `json:"resource_id"`
	Date       string `json:"date"`
	TsUnix     int64  `json:"ts_unix"`
}

func (p *CalendarPubSub) PublishCalendarChanged(ctx context.Context, resourceID int64, date time.Time) error {
	msg := calendarChangedMsg{
		Type:       "calendar_changed",
		ResourceID: resourceID,
		Date:       date.UTC().Format("2006-01-02"),
		TsUnix:     time.Now().Unix(),
	}

	b, _ := json.Marshal(msg)

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

func (p *CalendarPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, resourceID int64, date string)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev calendarChangedMsg
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil &&
				ev.ResourceID != 0 {
				handler(ctx, ev.ResourceID, ev.Date)
			}
		}
	}
}
