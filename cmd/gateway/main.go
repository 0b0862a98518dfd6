package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ogier/pflag"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/kwek20/streams/internal/service/gateway"
	redisSvc "github.com/kwek20/streams/internal/service/redis"
	"github.com/kwek20/streams/internal/service/transport"
	"github.com/kwek20/streams/internal/utils/log"
)

func main() {
	listen := pflag.StringP("listen", "l", "localhost:8080", "address the gateway serves on")
	redisAddr := pflag.StringP("redis", "r", "", "redis address backing the frame store; in-memory when empty")
	pflag.Parse()
	defer log.Sync()

	srv := gateway.NewHttpServer(*listen, frameStore(*redisAddr))

	go func() {
		log.Info("gateway listening", zap.String("addr", *listen))
		if err := srv.Run(); err != nil {
			log.Fatal("gateway stopped", zap.Error(err))
		}
	}()

	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	<-done
}

func frameStore(addr string) gateway.Store {
	if addr == "" {
		return transport.NewBucket()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: "", // no password by default
		DB:       0,  // use default DB
	})
	return transport.NewRedis(redisSvc.NewRedis(rdb))
}
