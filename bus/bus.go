/* Copyright 2025 OOMOL, Inc.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package bus is a thin publish/subscribe abstraction over an MQTT
// broker.  One Conn per session.
package bus

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oomol/oocana/util"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Retry policy for transient publish and subscribe failures.
const (
	RetryBase     = 100 * time.Millisecond
	RetryMax      = 5 * time.Second
	RetryAttempts = 6
)

// Error wraps a broker-level failure after retries are exhausted.
type Error struct {
	Op    string
	Topic string
	Err   error
}

func (e *Error) Error() string {
	return "bus " + e.Op + " " + e.Topic + ": " + e.Err.Error()
}

// Conn is a connection to the broker.
type Conn struct {
	client  mqtt.Client
	Verbose bool
}

// Dial connects to the broker at host:port with the given client id.
func Dial(broker, clientID string) (*Conn, error) {
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.AutoReconnect = true
	opts.CleanSession = true
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		util.Logf("bus connection lost: %v", err)
	}

	c := mqtt.NewClient(opts)
	if t := c.Connect(); t.Wait() && t.Error() != nil {
		return nil, &Error{Op: "connect", Topic: broker, Err: t.Error()}
	}

	return &Conn{client: c}, nil
}

// Logf logs if c.Verbose.
func (c *Conn) Logf(format string, args ...interface{}) {
	if !c.Verbose {
		return
	}
	util.Logf(format, args...)
}

// Publish JSON-encodes the payload and publishes it at QoS 1,
// retrying transient failures with exponential backoff before
// surfacing an error.
func (c *Conn) Publish(topic string, payload interface{}) error {
	var bs []byte
	switch v := payload.(type) {
	case []byte:
		bs = v
	default:
		js, err := json.Marshal(payload)
		if err != nil {
			return &Error{Op: "encode", Topic: topic, Err: err}
		}
		bs = js
	}

	c.Logf("bus pub %s %s", topic, bs)

	var last error
	delay := RetryBase
	for attempt := 0; attempt < RetryAttempts; attempt++ {
		if 0 < attempt {
			time.Sleep(delay)
			delay *= 2
			if RetryMax < delay {
				delay = RetryMax
			}
		}
		t := c.client.Publish(topic, 1, false, bs)
		if t.Wait() && t.Error() == nil {
			return nil
		}
		last = t.Error()
	}
	return &Error{Op: "publish", Topic: topic, Err: last}
}

// Subscribe registers a handler for a topic filter at QoS 1.  The
// handler runs on the client's routing goroutine; keep it short.
func (c *Conn) Subscribe(topic string, f func(topic string, payload []byte)) error {
	handler := func(client mqtt.Client, msg mqtt.Message) {
		f(msg.Topic(), msg.Payload())
	}

	var last error
	delay := RetryBase
	for attempt := 0; attempt < RetryAttempts; attempt++ {
		if 0 < attempt {
			time.Sleep(delay)
			delay *= 2
			if RetryMax < delay {
				delay = RetryMax
			}
		}
		t := c.client.Subscribe(topic, 1, handler)
		if t.Wait() && t.Error() == nil {
			return nil
		}
		last = t.Error()
	}
	return &Error{Op: "subscribe", Topic: topic, Err: last}
}

// Unsubscribe removes a subscription.
func (c *Conn) Unsubscribe(topic string) error {
	if t := c.client.Unsubscribe(topic); t.Wait() && t.Error() != nil {
		return &Error{Op: "unsubscribe", Topic: topic, Err: t.Error()}
	}
	return nil
}

// Close disconnects after the given quiescence.
func (c *Conn) Close(quiesce time.Duration) {
	c.client.Disconnect(uint(quiesce / time.Millisecond))
}

// MatchTopic reports whether a concrete topic matches an MQTT topic
// filter ("+" and "#" wildcards).
func MatchTopic(filter, topic string) bool {
	fs, ts := strings.Split(filter, "/"), strings.Split(topic, "/")
	for i, f := range fs {
		if f == "#" {
			return true
		}
		if len(ts) <= i {
			return false
		}
		if f == "+" {
			continue
		}
		if f != ts[i] {
			return false
		}
	}
	return len(fs) == len(ts)
}

// SessionClientID derives a broker client id for a session.
func SessionClientID(sessionID string) string {
	return fmt.Sprintf("oocana-%s", sessionID)
}
