package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-io/go-mqtt"
	"github.com/golang-io/go-mqtt/packet"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	configPath = flag.String("config", "", "path of the JSON config file")
	debug      = flag.Bool("debug", false, "log every packet")
)

func main() {
	flag.Parse()
	if *debug {
		logrus.SetLevel(logrus.DebugLevel)
	}

	config := &mqtt.Config{
		URL:           "mqtt://127.0.0.1:1883",
		Subscriptions: []mqtt.SubscriptionConfig{{Topic: "+"}, {Topic: "a/b/c"}},
	}
	if *configPath != "" {
		var err error
		if config, err = mqtt.LoadConfig(*configPath); err != nil {
			logrus.Fatal(err)
		}
	}
	opts, err := config.Options()
	if err != nil {
		logrus.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := mqtt.New(opts...)
	c.OnMessage(func(msg *packet.Message) {
		logrus.Infof("on: %s", msg.String())
	})
	group, ctx := errgroup.WithContext(ctx)

	if pub := config.Publish; pub != nil && pub.Topic != "" {
		group.Go(func() error {
			interval := time.Duration(pub.Interval)
			if interval <= 0 {
				interval = time.Second
			}
			tick := time.NewTicker(interval)
			defer tick.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-tick.C:
				}
				if err := c.SubmitMessage(ctx, &packet.Message{
					TopicName: pub.Topic,
					Content:   []byte(time.Now().Format("2006-01-02 15:04:05")),
				}, pub.QoS); err != nil {
					logrus.Debugf("%v", err)
				}
			}
		})
	}

	if config.HTTP != "" {
		group.Go(func() error {
			return mqtt.Httpd(ctx, config.HTTP)
		})
	}

	group.Go(func() error {
		defer cancel()
		ignore := make(chan os.Signal, 1)
		sign := make(chan os.Signal, 1)

		signal.Notify(ignore, syscall.SIGHUP) // 终端挂起或者控制进程终止(hang up)
		signal.Notify(sign, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-ctx.Done():
			logrus.Infof("ctx done")
			return ctx.Err()
		case sig := <-sign:
			return fmt.Errorf("got sign: %s", sig)
		}
	})

	group.Go(func() error {
		return c.ConnectAndSubscribe(ctx)
	})
	if err := group.Wait(); err != nil {
		logrus.Info(err)
	}
}
