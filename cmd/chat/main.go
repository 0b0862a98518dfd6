package main

import (
	"context"
	"time"

	"github.com/ogier/pflag"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	stateRepo "github.com/kwek20/streams/internal/repository/state"
	"github.com/kwek20/streams/internal/service/chat"
	"github.com/kwek20/streams/internal/utils/log"
)

func main() {
	var cfg chat.Config
	pflag.StringVarP(&cfg.Host, "host", "g", "localhost:8080", "gateway address")
	pflag.StringVarP(&cfg.Name, "name", "n", "", "participant name snapshots are stored under")
	pflag.StringVarP(&cfg.Passphrase, "passphrase", "p", "", "passphrase sealing the stored snapshot")
	pflag.StringVarP(&cfg.Role, "role", "r", "subscriber", "author or subscriber")
	pflag.StringVarP(&cfg.Seed, "seed", "s", "", "identity seed")
	pflag.StringVarP(&cfg.Channel, "channel", "c", "", "announcement address to attach to (subscriber)")
	pflag.Uint64Var(&cfg.ChannelIdx, "channel-index", 0, "channel index (author)")
	pflag.BoolVar(&cfg.MultiBranch, "multi-branch", false, "announce a multi-branch channel (author)")
	pflag.StringVar(&cfg.Psk, "psk", "", "pre-shared key seed for reading without subscribing")
	mongoURI := pflag.String("mongo", "mongodb://localhost:27017", "mongo URI for state snapshots")
	pflag.Parse()
	defer log.Sync()

	if cfg.Name == "" || cfg.Seed == "" {
		pflag.Usage()
		log.Fatal("both --name and --seed are required")
	}

	client, err := initMongo(*mongoURI)
	if err != nil {
		log.Fatal("connect to mongo failed", zap.Error(err))
	}
	db := client.Database("streams")

	app := chat.NewApp(stateRepo.NewStateRepo(db), cfg)
	app.Run(context.Background())
	app.Stop()
}

func initMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}
