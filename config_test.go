package mqtt

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-io/go-mqtt/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `{
		"URL": "mqtts://broker:8883",
		"ClientID": "sensor-1",
		"Version": "5.0.0",
		"Username": "u",
		"Password": "p",
		"CleanSession": false,
		"KeepAlive": 15,
		"ConnectTimeout": "3s",
		"AckTimeout": "500ms",
		"MaxPacketSize": 65536,
		"PublishRate": 10,
		"PublishBurst": 5,
		"Proxy": "socks5://127.0.0.1:1080",
		"Will": {"Topic": "status", "Message": "gone", "QoS": 1, "Retain": true},
		"Subscriptions": [{"Topic": "a/+", "QoS": 1}, {"Topic": "b/#"}],
		"Publish": {"Topic": "tick", "Interval": "2s"},
		"HTTP": ":8080"
	}`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, Duration(2*time.Second), config.Publish.Interval)
	assert.Equal(t, ":8080", config.HTTP)

	opts, err := config.Options()
	require.NoError(t, err)
	o := newOptions(opts...)
	assert.Equal(t, "mqtts://broker:8883", o.URL)
	assert.Equal(t, "sensor-1", o.ClientID)
	assert.Equal(t, packet.VERSION500, o.Version)
	assert.Equal(t, "u", o.Username)
	assert.Equal(t, []byte("p"), o.Password)
	assert.False(t, o.CleanSession)
	assert.Equal(t, uint16(15), o.KeepAlive)
	assert.Equal(t, 3*time.Second, o.ConnectTimeout)
	assert.Equal(t, 500*time.Millisecond, o.AckTimeout)
	assert.Equal(t, uint32(65536), o.MaxPacketSize)
	assert.Equal(t, rate.Limit(10), o.PublishRate)
	assert.Equal(t, 5, o.PublishBurst)
	assert.Equal(t, "socks5://127.0.0.1:1080", o.Proxy)
	require.NotNil(t, o.Will)
	assert.Equal(t, "status", o.Will.TopicName)
	assert.Equal(t, []byte("gone"), o.Will.Message)
	assert.True(t, o.Will.Retain)
	assert.Equal(t, []packet.Subscription{
		{TopicFilter: "a/+", MaximumQoS: 1},
		{TopicFilter: "b/#"},
	}, o.Subscriptions)
}

func TestConfigDefaults(t *testing.T) {
	opts, err := (&Config{URL: "mqtt://h:1883"}).Options()
	require.NoError(t, err)
	o := newOptions(opts...)
	assert.Equal(t, packet.VERSION311, o.Version)
	assert.True(t, o.CleanSession)
	assert.Equal(t, uint16(60), o.KeepAlive)
	assert.NotEmpty(t, o.ClientID)
	assert.Nil(t, o.TLSConfig)
}

func TestConfigErrors(t *testing.T) {
	_, err := (&Config{Version: "4.0"}).Options()
	assert.ErrorContains(t, err, "not support")

	_, err = (&Config{TLS: &TLS{CAFile: filepath.Join(t.TempDir(), "missing.pem")}}).Options()
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `{"ConnectTimeout": 5}`))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `{"ConnectTimeout": "soon"}`))
	assert.Error(t, err)
}

func TestConfigTLS(t *testing.T) {
	conf, err := (&TLS{ServerName: "broker", InsecureSkipVerify: true}).Config()
	require.NoError(t, err)
	assert.Equal(t, "broker", conf.ServerName)
	assert.True(t, conf.InsecureSkipVerify)

	ca := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(ca, []byte("not a certificate"), 0o600))
	_, err = (&TLS{CAFile: ca}).Config()
	assert.ErrorContains(t, err, "no certificates")
}

func TestDurationJSON(t *testing.T) {
	b, err := json.Marshal(Duration(1500 * time.Millisecond))
	require.NoError(t, err)
	assert.JSONEq(t, `"1.5s"`, string(b))

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1m"`), &d))
	assert.Equal(t, Duration(time.Minute), d)
}
