package gateway

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/urmzd/zigman/pkg/automation"
	"github.com/urmzd/zigman/pkg/device"
	"github.com/urmzd/zigman/pkg/fastpath"
	"github.com/urmzd/zigman/pkg/mqtt"
)

// Collector exposes the gateway's counters to Prometheus by reading live
// snapshots at scrape time; nothing is double-counted in a second registry.
// The automation engine and MQTT service may be nil.
type Collector struct {
	engine  *device.Engine
	gateway *Gateway
	decoder *fastpath.Decoder
	rules   *automation.Engine
	mqtt    *mqtt.Service

	devices          *prometheus.Desc
	devicesAvailable *prometheus.Desc
	radioConnected   *prometheus.Desc
	queueDropped     *prometheus.Desc

	packets       *prometheus.Desc
	packetBytes   *prometheus.Desc
	packetErrors  *prometheus.Desc
	packetRetries *prometheus.Desc

	fastpathFrames *prometheus.Desc
	fastpathHits   *prometheus.Desc
	fastpathEvents *prometheus.Desc
	fastpathErrors *prometheus.Desc

	automationRules      *prometheus.Desc
	automationEvals      *prometheus.Desc
	automationMatches    *prometheus.Desc
	automationExecutions *prometheus.Desc
	automationFailures   *prometheus.Desc
	automationErrors     *prometheus.Desc

	mqttConnected *prometheus.Desc
	mqttPublished *prometheus.Desc
	mqttErrors    *prometheus.Desc
	mqttCommands  *prometheus.Desc
}

// NewCollector creates the gateway metrics collector.
func NewCollector(engine *device.Engine, gw *Gateway, decoder *fastpath.Decoder, rules *automation.Engine, mqttSvc *mqtt.Service) *Collector {
	return &Collector{
		engine:  engine,
		gateway: gw,
		decoder: decoder,
		rules:   rules,
		mqtt:    mqttSvc,

		devices: prometheus.NewDesc("zigman_devices",
			"Registered Zigbee devices.", nil, nil),
		devicesAvailable: prometheus.NewDesc("zigman_devices_available",
			"Registered Zigbee devices currently available.", nil, nil),
		radioConnected: prometheus.NewDesc("zigman_radio_connected",
			"Whether the coordinator serial link is up.", nil, nil),
		queueDropped: prometheus.NewDesc("zigman_packet_queue_dropped_total",
			"Frames dropped due to packet queue overflow.", nil, nil),

		packets: prometheus.NewDesc("zigman_device_packets_total",
			"Packets per device and direction.", []string{"ieee", "direction"}, nil),
		packetBytes: prometheus.NewDesc("zigman_device_packet_bytes_total",
			"Packet bytes per device and direction.", []string{"ieee", "direction"}, nil),
		packetErrors: prometheus.NewDesc("zigman_device_packet_errors_total",
			"Delivery and parse errors per device.", []string{"ieee"}, nil),
		packetRetries: prometheus.NewDesc("zigman_device_packet_retries_total",
			"Retransmissions per device.", []string{"ieee"}, nil),

		fastpathFrames: prometheus.NewDesc("zigman_fastpath_frames_total",
			"Frames offered to the fast-path decoder.", nil, nil),
		fastpathHits: prometheus.NewDesc("zigman_fastpath_hits_total",
			"Frames decoded on the fast path.", nil, nil),
		fastpathEvents: prometheus.NewDesc("zigman_fastpath_events_total",
			"Fast-path events by kind.", []string{"kind"}, nil),
		fastpathErrors: prometheus.NewDesc("zigman_fastpath_parse_errors_total",
			"Fast-path parse errors.", nil, nil),

		automationRules: prometheus.NewDesc("zigman_automation_rules",
			"Automation rules by state.", []string{"state"}, nil),
		automationEvals: prometheus.NewDesc("zigman_automation_evaluations_total",
			"Rule evaluations.", nil, nil),
		automationMatches: prometheus.NewDesc("zigman_automation_matches_total",
			"Rule evaluations whose conditions all passed.", nil, nil),
		automationExecutions: prometheus.NewDesc("zigman_automation_executions_total",
			"Rule action dispatches.", nil, nil),
		automationFailures: prometheus.NewDesc("zigman_automation_execution_failures_total",
			"Rule action dispatches that failed.", nil, nil),
		automationErrors: prometheus.NewDesc("zigman_automation_errors_total",
			"Rule evaluation errors.", nil, nil),

		mqttConnected: prometheus.NewDesc("zigman_mqtt_connected",
			"Whether the MQTT broker connection is up.", nil, nil),
		mqttPublished: prometheus.NewDesc("zigman_mqtt_published_total",
			"MQTT publishes by kind.", []string{"kind"}, nil),
		mqttErrors: prometheus.NewDesc("zigman_mqtt_publish_errors_total",
			"MQTT publish failures.", nil, nil),
		mqttCommands: prometheus.NewDesc("zigman_mqtt_commands_received_total",
			"Commands received on the MQTT set topics.", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.devices
	ch <- c.devicesAvailable
	ch <- c.radioConnected
	ch <- c.queueDropped
	ch <- c.packets
	ch <- c.packetBytes
	ch <- c.packetErrors
	ch <- c.packetRetries
	ch <- c.fastpathFrames
	ch <- c.fastpathHits
	ch <- c.fastpathEvents
	ch <- c.fastpathErrors
	ch <- c.automationRules
	ch <- c.automationEvals
	ch <- c.automationMatches
	ch <- c.automationExecutions
	ch <- c.automationFailures
	ch <- c.automationErrors
	ch <- c.mqttConnected
	ch <- c.mqttPublished
	ch <- c.mqttErrors
	ch <- c.mqttCommands
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	devices := c.engine.Devices()
	available := 0
	for _, d := range devices {
		if d.Available {
			available++
		}
	}
	ch <- prometheus.MustNewConstMetric(c.devices, prometheus.GaugeValue, float64(len(devices)))
	ch <- prometheus.MustNewConstMetric(c.devicesAvailable, prometheus.GaugeValue, float64(available))
	ch <- prometheus.MustNewConstMetric(c.radioConnected, prometheus.GaugeValue, boolValue(c.engine.Radio().IsConnected()))
	ch <- prometheus.MustNewConstMetric(c.queueDropped, prometheus.CounterValue, float64(c.gateway.Dropped()))

	for ieee, s := range c.engine.Stats().Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.packets, prometheus.CounterValue, float64(s.RxPackets), ieee, "rx")
		ch <- prometheus.MustNewConstMetric(c.packets, prometheus.CounterValue, float64(s.TxPackets), ieee, "tx")
		ch <- prometheus.MustNewConstMetric(c.packetBytes, prometheus.CounterValue, float64(s.RxBytes), ieee, "rx")
		ch <- prometheus.MustNewConstMetric(c.packetBytes, prometheus.CounterValue, float64(s.TxBytes), ieee, "tx")
		ch <- prometheus.MustNewConstMetric(c.packetErrors, prometheus.CounterValue, float64(s.Errors), ieee)
		ch <- prometheus.MustNewConstMetric(c.packetRetries, prometheus.CounterValue, float64(s.Retries), ieee)
	}

	fp := c.decoder.Stats()
	ch <- prometheus.MustNewConstMetric(c.fastpathFrames, prometheus.CounterValue, float64(fp.TotalProcessed))
	ch <- prometheus.MustNewConstMetric(c.fastpathHits, prometheus.CounterValue, float64(fp.FastPathHits))
	ch <- prometheus.MustNewConstMetric(c.fastpathEvents, prometheus.CounterValue, float64(fp.OccupancyEvents), "occupancy")
	ch <- prometheus.MustNewConstMetric(c.fastpathEvents, prometheus.CounterValue, float64(fp.TuyaEvents), "tuya")
	ch <- prometheus.MustNewConstMetric(c.fastpathEvents, prometheus.CounterValue, float64(fp.IASEvents), "ias")
	ch <- prometheus.MustNewConstMetric(c.fastpathErrors, prometheus.CounterValue, float64(fp.ParseErrors))

	if c.rules != nil {
		rs := c.rules.Stats()
		ch <- prometheus.MustNewConstMetric(c.automationRules, prometheus.GaugeValue, float64(rs.TotalRules), "total")
		ch <- prometheus.MustNewConstMetric(c.automationRules, prometheus.GaugeValue, float64(rs.EnabledRules), "enabled")
		ch <- prometheus.MustNewConstMetric(c.automationEvals, prometheus.CounterValue, float64(rs.Evaluations))
		ch <- prometheus.MustNewConstMetric(c.automationMatches, prometheus.CounterValue, float64(rs.Matches))
		ch <- prometheus.MustNewConstMetric(c.automationExecutions, prometheus.CounterValue, float64(rs.Executions))
		ch <- prometheus.MustNewConstMetric(c.automationFailures, prometheus.CounterValue, float64(rs.ExecutionFailures))
		ch <- prometheus.MustNewConstMetric(c.automationErrors, prometheus.CounterValue, float64(rs.Errors))
	}

	if c.mqtt != nil {
		ms := c.mqtt.Stats()
		ch <- prometheus.MustNewConstMetric(c.mqttConnected, prometheus.GaugeValue, boolValue(c.mqtt.IsConnected()))
		ch <- prometheus.MustNewConstMetric(c.mqttPublished, prometheus.CounterValue, float64(ms.StatePublished), "state")
		ch <- prometheus.MustNewConstMetric(c.mqttPublished, prometheus.CounterValue, float64(ms.FastPublished), "fast")
		ch <- prometheus.MustNewConstMetric(c.mqttPublished, prometheus.CounterValue, float64(ms.DiscoveryPublished), "discovery")
		ch <- prometheus.MustNewConstMetric(c.mqttErrors, prometheus.CounterValue, float64(ms.PublishErrors))
		ch <- prometheus.MustNewConstMetric(c.mqttCommands, prometheus.CounterValue, float64(ms.CommandsReceived))
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
