package simulator

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"time"

	"github.com/Shopify/sarama"

	vehicles "fleet-telemetry-cloud/internal/vehicles/domain"
)

// Simulator publishes synthetic sensor readings for a set of devices
// at a fixed interval. Messages are keyed by device id so a partition
// sees each device's readings in order.
type Simulator struct {
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	devices  []string
	logger   *log.Logger

	state map[string]*deviceState
	rng   *rand.Rand
}

type deviceState struct {
	odometer    float64
	engineHours float64
	fuelLevel   string
	location    vehicles.GeoPoint
}

type message struct {
	DeviceID string                  `json:"deviceId"`
	Reading  vehicles.SensorSnapshot `json:"reading"`
}

// New constructs a simulator and its Kafka producer.
func New(brokers []string, topic string, interval time.Duration, devices []string, logger *log.Logger) (*Simulator, error) {
	if len(brokers) == 0 {
		return nil, errors.New("simulator: brokers required")
	}
	if topic == "" {
		return nil, errors.New("simulator: topic required")
	}
	if interval <= 0 {
		return nil, errors.New("simulator: interval must be positive")
	}
	if len(devices) == 0 {
		return nil, errors.New("simulator: at least one device required")
	}
	if logger == nil {
		logger = log.Default()
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Partitioner = sarama.NewHashPartitioner

	producer, err := sarama.NewSyncProducer(brokers, saramaConfig)
	if err != nil {
		return nil, err
	}

	sim := &Simulator{
		producer: producer,
		topic:    topic,
		interval: interval,
		devices:  devices,
		logger:   logger,
		state:    make(map[string]*deviceState, len(devices)),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, device := range devices {
		sim.state[device] = &deviceState{
			fuelLevel: "Full",
			location:  vehicles.GeoPoint{Latitude: 52.52, Longitude: 13.405},
		}
	}
	return sim, nil
}

// Run publishes readings until the context is canceled.
func (s *Simulator) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Printf("simulator: publishing to %s every %s for %d devices", s.topic, s.interval, len(s.devices))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, device := range s.devices {
				if err := s.publish(device); err != nil {
					s.logger.Printf("simulator: publish for device %s: %v", device, err)
				}
			}
		}
	}
}

// Close shuts down the producer.
func (s *Simulator) Close() error {
	return s.producer.Close()
}

func (s *Simulator) publish(device string) error {
	reading := s.nextReading(device)
	payload, err := json.Marshal(message{DeviceID: device, Reading: reading})
	if err != nil {
		return err
	}
	_, _, err = s.producer.SendMessage(&sarama.ProducerMessage{
		Topic: s.topic,
		Key:   sarama.StringEncoder(device),
		Value: sarama.ByteEncoder(payload),
	})
	return err
}

// nextReading drifts the device state forward so odometer and engine
// hours only ever grow, matching real ECU behavior.
func (s *Simulator) nextReading(device string) vehicles.SensorSnapshot {
	state := s.state[device]
	state.odometer += s.rng.Float64() * 2
	state.engineHours += s.rng.Float64() * 0.05
	if s.rng.Float64() > 0.5 {
		state.fuelLevel = "Full"
	} else {
		state.fuelLevel = "Half"
	}
	state.location.Latitude += (s.rng.Float64() - 0.5) * 0.01
	state.location.Longitude += (s.rng.Float64() - 0.5) * 0.01

	return vehicles.SensorSnapshot{
		OdometerReading: state.odometer,
		EngineHours:     state.engineHours,
		FuelLevel:       state.fuelLevel,
		LastLocation:    state.location,
		ObservedAt:      time.Now().UTC(),
	}
}
