package mqtt

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/golang-io/go-mqtt/packet"
	"github.com/sirupsen/logrus"
)

// A Client keeps one Session to the server named by its URL and replaces it after failures.
// Clients are safe for concurrent use by multiple goroutines.
type Client struct {
	// URL is the server address. The scheme selects the transport, see Dial.
	URL *url.URL

	// Dial builds the transport for each connection attempt. Nil means Dial(c.URL, options).
	Dial func(u *url.URL, options Options) (Transport, error)

	options Options
	log     logrus.FieldLogger

	mu        sync.RWMutex
	session   *Session
	onMessage func(*packet.Message)
}

func New(opts ...Option) *Client {
	options := newOptions(opts...)
	var err error
	client := &Client{
		options: options,
		log:     options.Logger.WithField("client_id", options.ClientID),
	}
	if client.URL, err = url.Parse(options.URL); err != nil {
		panic(err)
	}
	client.log.WithField("server", options.URL).Debug("client created")
	return client
}

func (c *Client) ID() string {
	if s := c.Session(); s != nil {
		return s.ClientID()
	}
	return c.options.ClientID
}

// Session returns the current session, nil before the first Connect.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Connect dials the server and starts a new session, stopping the previous one.
func (c *Client) Connect(ctx context.Context) (*Session, error) {
	dial := c.Dial
	if dial == nil {
		dial = Dial
	}
	c.log.WithField("server", c.URL.Host).Info("client attempting to connect")
	t, err := dial(c.URL, c.options)
	if err != nil {
		return nil, err
	}

	s := newSession(t, c.options)

	c.mu.Lock()
	prev := c.session
	c.session = s
	s.OnMessage(c.onMessage)
	c.mu.Unlock()
	if prev != nil {
		prev.Stop()
	}

	if err := s.Start(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Subscribe subscribes the current session to the configured subscriptions.
func (c *Client) Subscribe(ctx context.Context) error {
	s := c.Session()
	if s == nil {
		return fmt.Errorf("%w: not connected", ErrState)
	}
	if len(c.options.Subscriptions) == 0 {
		return nil
	}
	_, err := s.Subscribe(ctx, c.options.Subscriptions...)
	return err
}

// ConnectAndSubscribe connects, subscribes and waits for the session to end, retrying every 3 seconds
// until ctx is done.
func (c *Client) ConnectAndSubscribe(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	count := 0
	for {
		select {
		case <-ctx.Done():
			c.log.Info("client context done")
			c.Close()
			return ctx.Err()
		case <-timer.C:
			timer.Reset(3 * time.Second)
		}
		if err := c.connectAndSubscribe(ctx); err != nil {
			count++
			if count == 1 || count%10 == 0 {
				c.log.WithError(err).Errorf("client connect and subscribe error[%d]", count)
			}
		} else {
			count = 0
		}
	}
}

func (c *Client) connectAndSubscribe(ctx context.Context) error {
	s, err := c.Connect(ctx)
	if err != nil {
		return err
	}
	if err := c.Subscribe(ctx); err != nil {
		s.Stop()
		return err
	}
	select {
	case <-ctx.Done():
		s.Stop()
		return nil
	case <-s.Done():
		return s.Err()
	}
}

// OnMessage sets the handler of inbound messages for this and every later session.
func (c *Client) OnMessage(fn func(*packet.Message)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMessage = fn
	if c.session != nil {
		c.session.OnMessage(fn)
	}
}

// SubmitMessage publishes message on the current session.
func (c *Client) SubmitMessage(ctx context.Context, message *packet.Message, qos uint8) error {
	s := c.Session()
	if s == nil {
		return fmt.Errorf("%w: not connected", ErrState)
	}
	log := c.log.WithFields(logrus.Fields{"topic": message.TopicName, "qos": qos})
	if err := s.Publish(ctx, message, qos, false); err != nil {
		log.WithError(err).Warn("client publish failed")
		return err
	}
	log.WithField("size", len(message.Content)).Debug("client publish")
	return nil
}

// Close stops the current session.
func (c *Client) Close() error {
	if s := c.Session(); s != nil {
		s.Stop()
	}
	return nil
}
