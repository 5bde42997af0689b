package tele

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/dustnet/dustnet/helpers"
	"github.com/dustnet/dustnet/log2"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
)

func TopicConnect(clientID string) string { return fmt.Sprintf("%s/c", clientID) }
func TopicRecord(clientID string) string  { return fmt.Sprintf("%s/w/r", clientID) }

type transportMqtt struct {
	log     *log2.Log
	m       mqtt.Client
	timeout time.Duration

	topicConnect string
	topicRecord  string
}

func (self *transportMqtt) Init(ctx context.Context, log *log2.Log, config Config) error {
	self.log = log
	mqttLog := log.Clone(log2.LInfo)
	mqtt.ERROR = mqttLog
	mqtt.CRITICAL = mqttLog
	mqtt.WARN = mqttLog
	if config.LogDebug {
		mqtt.DEBUG = mqttLog
	}

	if _, err := url.ParseRequestURI(config.MqttBroker); err != nil {
		return errors.Annotatef(err, "tele mqtt_broker=%s", config.MqttBroker)
	}
	clientID := config.ClientID
	if clientID == "" {
		host, _ := os.Hostname()
		clientID = "dustnet-" + host
	}
	self.topicConnect = TopicConnect(clientID)
	self.topicRecord = TopicRecord(clientID)
	self.timeout = helpers.IntSecondDefault(config.NetworkTimeoutSec, DefaultNetworkTimeout)

	mopt := mqtt.NewClientOptions().
		AddBroker(config.MqttBroker).
		SetClientID(clientID).
		SetUsername(config.MqttUsername).
		SetPassword(config.MqttPassword).
		SetCleanSession(false).
		SetAutoReconnect(true).
		SetKeepAlive(helpers.IntSecondDefault(config.KeepaliveSec, 60*time.Second)).
		SetPingTimeout(helpers.IntSecondDefault(config.PingTimeoutSec, 30*time.Second)).
		SetWill(self.topicConnect, "\x00", 1, true).
		SetOnConnectHandler(self.onConnect).
		SetConnectionLostHandler(self.onConnectionLost)
	self.m = mqtt.NewClient(mopt)
	// network may be absent at start, client reconnects on its own
	go func() {
		if token := self.m.Connect(); token.Wait() && token.Error() != nil {
			self.log.Errorf("tele mqtt connect err=%v", token.Error())
		}
	}()
	return nil
}

func (self *transportMqtt) SendRecord(payload []byte) bool {
	if !self.m.IsConnected() {
		return false
	}
	token := self.m.Publish(self.topicRecord, 1, false, payload)
	if !token.WaitTimeout(self.timeout) {
		self.log.Errorf("tele mqtt publish timeout=%v", self.timeout)
		return false
	}
	if err := token.Error(); err != nil {
		self.log.Errorf("tele mqtt publish err=%v", err)
		return false
	}
	return true
}

func (self *transportMqtt) Close() {
	if self.m == nil {
		return
	}
	self.m.Publish(self.topicConnect, 1, true, []byte{0x00}).WaitTimeout(time.Second)
	self.m.Disconnect(250)
}

func (self *transportMqtt) onConnect(c mqtt.Client) {
	self.log.Infof("tele mqtt connect")
	c.Publish(self.topicConnect, 1, true, []byte{0x01})
}

func (self *transportMqtt) onConnectionLost(c mqtt.Client, err error) {
	self.log.Infof("tele mqtt lost err=%v", err)
}
