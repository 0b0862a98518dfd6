package transport

import (
	"context"
	"encoding/json"
	"fmt"

	redisSvc "github.com/kwek20/streams/internal/service/redis"

	"github.com/kwek20/streams/internal/model"
	"github.com/kwek20/streams/internal/protocol/link"
)

type (
	// Redis is a transport backed by one redis list per address, so
	// multiple processes share a channel through a redis instance. A
	// second list per channel keeps the publish-order history.
	Redis struct {
		redisService *redisSvc.RedisService
	}
)

func NewRedis(redisSvc *redisSvc.RedisService) *Redis {
	return &Redis{
		redisService: redisSvc,
	}
}

func frameKey(l string) string {
	return fmt.Sprintf("frame: %s", l)
}

func channelKey(base string) string {
	return fmt.Sprintf("channel: %s", base)
}

func (r *Redis) Send(ctx context.Context, msg *model.Message) error {
	l, err := link.Parse(msg.Link)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := r.redisService.RPush(ctx, frameKey(msg.Link), data); err != nil {
		return err
	}
	return r.redisService.RPush(ctx, channelKey(l.Base.String()), data)
}

func (r *Redis) Recv(ctx context.Context, l link.Link) ([]*model.Message, error) {
	return r.list(ctx, frameKey(l.String()))
}

// History returns every frame published to the channel, in publish
// order.
func (r *Redis) History(ctx context.Context, base link.Base) ([]*model.Message, error) {
	return r.list(ctx, channelKey(base.String()))
}

func (r *Redis) list(ctx context.Context, key string) ([]*model.Message, error) {
	vals, err := r.redisService.LRange(ctx, key)
	if err != nil {
		return nil, err
	}

	var res []*model.Message
	for _, v := range vals {
		var m model.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, err
		}
		res = append(res, &m)
	}
	return res, nil
}
