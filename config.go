package mqtt

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/golang-io/go-mqtt/packet"
	"golang.org/x/time/rate"
)

// Duration is a time.Duration written as "1.5s" in JSON.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

type TLS struct {
	CAFile             string `json:"CAFile,omitempty"`
	CertFile           string `json:"CertFile,omitempty"`
	KeyFile            string `json:"KeyFile,omitempty"`
	ServerName         string `json:"ServerName,omitempty"`
	InsecureSkipVerify bool   `json:"InsecureSkipVerify,omitempty"`
}

type WillConfig struct {
	Topic   string `json:"Topic"`
	Message string `json:"Message"`
	QoS     uint8  `json:"QoS,omitempty"`
	Retain  bool   `json:"Retain,omitempty"`
}

type SubscriptionConfig struct {
	Topic string `json:"Topic"`
	QoS   uint8  `json:"QoS,omitempty"`
}

// PublishConfig drives the periodic publisher of cmd/mqtt-client.
type PublishConfig struct {
	Topic    string   `json:"Topic"`
	QoS      uint8    `json:"QoS,omitempty"`
	Interval Duration `json:"Interval,omitempty"`
}

// Config is the JSON form of the client options.
type Config struct {
	URL            string               `json:"URL"`
	ClientID       string               `json:"ClientID,omitempty"`
	Version        string               `json:"Version,omitempty"` // "3.1.1" or "5.0.0"
	Username       string               `json:"Username,omitempty"`
	Password       string               `json:"Password,omitempty"`
	CleanSession   *bool                `json:"CleanSession,omitempty"`
	KeepAlive      uint16               `json:"KeepAlive,omitempty"`
	ConnectTimeout Duration             `json:"ConnectTimeout,omitempty"`
	AckTimeout     Duration             `json:"AckTimeout,omitempty"`
	MaxPacketSize  uint32               `json:"MaxPacketSize,omitempty"`
	PublishRate    float64              `json:"PublishRate,omitempty"`
	PublishBurst   int                  `json:"PublishBurst,omitempty"`
	Proxy          string               `json:"Proxy,omitempty"`
	TLS            *TLS                 `json:"TLS,omitempty"`
	Will           *WillConfig          `json:"Will,omitempty"`
	Subscriptions  []SubscriptionConfig `json:"Subscriptions,omitempty"`
	Publish        *PublishConfig       `json:"Publish,omitempty"`
	HTTP           string               `json:"HTTP,omitempty"` // metrics listen address
}

// LoadConfig reads a JSON config file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	config := &Config{}
	if err := json.Unmarshal(b, config); err != nil {
		return nil, fmt.Errorf("mqtt: config %s: %w", path, err)
	}
	return config, nil
}

// Options converts the config into client options.
func (c *Config) Options() ([]Option, error) {
	switch c.Version {
	case "", "3.1.1", "5.0.0", "5.0", "5":
	default:
		return nil, fmt.Errorf("mqtt: version = %s not support", c.Version)
	}
	opts := []Option{URL(c.URL), Version(c.Version)}
	if c.ClientID != "" {
		opts = append(opts, ClientID(c.ClientID))
	}
	if c.Username != "" || c.Password != "" {
		opts = append(opts, Credentials(c.Username, c.Password))
	}
	if c.CleanSession != nil {
		opts = append(opts, CleanSession(*c.CleanSession))
	}
	if c.KeepAlive != 0 {
		opts = append(opts, KeepAlive(c.KeepAlive))
	}
	if c.ConnectTimeout != 0 {
		opts = append(opts, ConnectTimeout(time.Duration(c.ConnectTimeout)))
	}
	if c.AckTimeout != 0 {
		opts = append(opts, AckTimeout(time.Duration(c.AckTimeout)))
	}
	if c.MaxPacketSize != 0 {
		opts = append(opts, MaxPacketSize(c.MaxPacketSize))
	}
	if c.PublishRate > 0 {
		opts = append(opts, PublishRate(rate.Limit(c.PublishRate), c.PublishBurst))
	}
	if c.Proxy != "" {
		opts = append(opts, Proxy(c.Proxy))
	}
	if w := c.Will; w != nil {
		opts = append(opts, Will(&packet.Will{TopicName: w.Topic, Message: []byte(w.Message), QoS: w.QoS, Retain: w.Retain}))
	}
	for _, sub := range c.Subscriptions {
		opts = append(opts, Subscription(packet.Subscription{TopicFilter: sub.Topic, MaximumQoS: sub.QoS}))
	}
	if c.TLS != nil {
		conf, err := c.TLS.Config()
		if err != nil {
			return nil, err
		}
		opts = append(opts, TLSConfig(conf))
	}
	return opts, nil
}

// Config loads the certificates named by t.
func (t *TLS) Config() (*tls.Config, error) {
	conf := &tls.Config{ServerName: t.ServerName, InsecureSkipVerify: t.InsecureSkipVerify}
	if t.CAFile != "" {
		pem, err := os.ReadFile(t.CAFile)
		if err != nil {
			return nil, err
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("mqtt: no certificates in %s", t.CAFile)
		}
		conf.RootCAs = pool
	}
	if t.CertFile != "" || t.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, err
		}
		conf.Certificates = []tls.Certificate{cert}
	}
	return conf, nil
}
