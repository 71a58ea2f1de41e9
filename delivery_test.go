package mqtt

import (
	"fmt"
	"testing"
	"time"

	"github.com/golang-io/go-mqtt/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryOrder(t *testing.T) {
	d := newDelivery()
	var got []string
	d.setHandler(func(msg *packet.Message) {
		got = append(got, msg.TopicName)
	})
	for i := range 100 {
		d.push(&packet.Message{TopicName: fmt.Sprint(i)})
	}
	d.close()
	d.push(&packet.Message{TopicName: "late"})

	done := make(chan struct{})
	go func() {
		d.run()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after close")
	}

	require.Len(t, got, 100)
	for i, topic := range got {
		assert.Equal(t, fmt.Sprint(i), topic)
	}
	assert.Zero(t, d.Len())
}

func TestDeliverySlowHandler(t *testing.T) {
	d := newDelivery()
	release := make(chan struct{})
	delivered := make(chan string, 10)
	d.setHandler(func(msg *packet.Message) {
		<-release
		delivered <- msg.TopicName
	})
	go d.run()

	for i := range 10 {
		d.push(&packet.Message{TopicName: fmt.Sprint(i)})
	}
	assert.Eventually(t, func() bool { return d.Len() == 9 }, time.Second, time.Millisecond, "push never waits for the handler")
	close(release)
	for i := range 10 {
		assert.Equal(t, fmt.Sprint(i), <-delivered)
	}
	d.close()
}
