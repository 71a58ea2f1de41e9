package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/golang-io/go-mqtt/packet"
	"github.com/golang-io/requests"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

type Options struct {
	URL      string // client used
	ClientID string
	Version  byte

	Username string
	Password []byte

	CleanSession bool
	KeepAlive    uint16 // seconds, 0 means the 60s default
	Will         *packet.Will

	ConnectTimeout time.Duration // transport ready and CONNACK
	AckTimeout     time.Duration // SUBACK, UNSUBACK, PUBACK, PUBREC, PUBCOMP

	Subscriptions     []packet.Subscription
	ConnectProperties *packet.Properties // v5.0
	MaxPacketSize     uint32             // inbound limit, 0 means unlimited

	PublishRate  rate.Limit // 0 means unlimited
	PublishBurst int

	Logger logrus.FieldLogger

	TLSConfig *tls.Config
	Proxy     string // socks5://[user:password@]host[:port]

	keepAliveUnit time.Duration
}

type Option func(*Options)

const defaultKeepAlive = 60

func newOptions(opts ...Option) Options {
	options := Options{
		URL:            "mqtt://127.0.0.1:1883",
		ClientID:       "mqtt-" + requests.GenId(),
		Version:        packet.VERSION311,
		CleanSession:   true,
		KeepAlive:      defaultKeepAlive,
		ConnectTimeout: 10 * time.Second,
		AckTimeout:     30 * time.Second,
		Logger:         logrus.StandardLogger(),
		keepAliveUnit:  time.Second,
	}
	for _, o := range opts {
		o(&options)
	}
	if options.KeepAlive == 0 {
		options.KeepAlive = defaultKeepAlive
	}
	return options
}

func URL(url string) Option {
	return func(o *Options) {
		o.URL = url
	}
}

func ClientID(id string) Option {
	return func(o *Options) {
		o.ClientID = id
	}
}

func Subscription(subscription ...packet.Subscription) Option {
	return func(o *Options) {
		o.Subscriptions = append(o.Subscriptions, subscription...)
	}
}

func Version[T ~string | ~byte](version T) Option {
	return func(o *Options) {
		switch v := any(version).(type) {
		case byte:
			o.Version = v
		case string:
			switch v {
			case "5.0.0", "5.0", "5":
				o.Version = packet.VERSION500
			case "3.1.1", "":
				o.Version = packet.VERSION311
			default:
				panic(fmt.Errorf("version = %s not support", v))
			}
		}
	}
}

// Credentials sets the CONNECT user name and password. An empty password is still sent.
func Credentials(username, password string) Option {
	return func(o *Options) {
		o.Username = username
		o.Password = []byte(password)
	}
}

func CleanSession(clean bool) Option {
	return func(o *Options) {
		o.CleanSession = clean
	}
}

// KeepAlive sets the keep-alive interval in seconds.
func KeepAlive(seconds uint16) Option {
	return func(o *Options) {
		o.KeepAlive = seconds
	}
}

func Will(will *packet.Will) Option {
	return func(o *Options) {
		o.Will = will
	}
}

func ConnectTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.ConnectTimeout = d
	}
}

func AckTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.AckTimeout = d
	}
}

// ConnectProperties sets the v5.0 CONNECT properties.
func ConnectProperties(props *packet.Properties) Option {
	return func(o *Options) {
		o.ConnectProperties = props
	}
}

// MaxPacketSize bounds inbound packets. Under v5.0 it is announced to the server as well.
func MaxPacketSize(size uint32) Option {
	return func(o *Options) {
		o.MaxPacketSize = size
	}
}

// PublishRate limits outbound publishes to r per second with bursts of up to burst messages.
func PublishRate(r rate.Limit, burst int) Option {
	return func(o *Options) {
		o.PublishRate, o.PublishBurst = r, burst
	}
}

func Logger(logger logrus.FieldLogger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

func TLSConfig(conf *tls.Config) Option {
	return func(o *Options) {
		o.TLSConfig = conf
	}
}

func Proxy(url string) Option {
	return func(o *Options) {
		o.Proxy = url
	}
}
