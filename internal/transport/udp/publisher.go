// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	applog "eeg/internal/log"
	"eeg/internal/pipeline"
)

// SnapshotProvider supplies the per-channel state to publish.
// *pipeline.Pipeline implements it.
type SnapshotProvider interface {
	Snapshot() []pipeline.ChannelSnapshot
}

// Publisher periodically sends the latest amplitude, mean and RMS of every
// channel as one binary datagram.
type Publisher struct {
	sender   *Sender
	source   SnapshotProvider
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop

	sequenceNum  uint32
	packetBuffer *bytes.Buffer
}

// NewPublisher validates its inputs. An interval <= 0 defaults to 16ms.
func NewPublisher(interval time.Duration, sender *Sender, source SnapshotProvider) (*Publisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDPPublisher: snapshot provider cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}

	applog.Infof("UDPPublisher: Initializing (Interval: %s)", interval)
	return &Publisher{
		sender:       sender,
		source:       source,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Start launches the publishing goroutine. Calling it while running is a
// no-op.
func (p *Publisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Debugf("UDPPublisher: Publisher goroutine started")
		for {
			select {
			case <-ticker.C:
				p.publish()
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop halts publishing and waits for the goroutine to exit. Calling it when
// stopped is a no-op.
func (p *Publisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("UDPPublisher: Stopped after %d packets", p.sequenceNum)
	return nil
}

/*
Packet layout, BigEndian:

	+--------------------+---------+---------------------------------------+
	| Field              | Type    | Notes                                 |
	+--------------------+---------+---------------------------------------+
	| Sequence Number    | uint32  | increases by one per packet           |
	| Timestamp          | int64   | wall clock, nanoseconds since epoch   |
	| Channel Count      | uint16  | N                                     |
	| Channels           | N x 20B | per channel, in electrode order:      |
	|   Sample Time      | float32 |   ms, device clock                    |
	|   Amplitude        | float32 |   filtered value                      |
	|   Mean             | float32 |                                       |
	|   RMS              | float32 |                                       |
	|   Dropped          | uint32  |   non-finite samples skipped          |
	+--------------------+---------+---------------------------------------+
*/

// ChannelRecord is one channel entry of a packet.
type ChannelRecord struct {
	SampleTime float32
	Amplitude  float32
	Mean       float32
	RMS        float32
	Dropped    uint32
}

// Packet is a decoded datagram.
type Packet struct {
	Sequence  uint32
	Timestamp int64
	Channels  []ChannelRecord
}

const headerSize = 4 + 8 + 2

// EncodePacket appends the wire form of pkt to buf.
func EncodePacket(buf *bytes.Buffer, pkt Packet) error {
	if len(pkt.Channels) > 0xffff {
		return fmt.Errorf("too many channels: %d", len(pkt.Channels))
	}
	err := binary.Write(buf, binary.BigEndian, pkt.Sequence)
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, pkt.Timestamp)
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, uint16(len(pkt.Channels)))
	}
	if err == nil {
		err = binary.Write(buf, binary.BigEndian, pkt.Channels)
	}
	return err
}

// DecodePacket parses a datagram produced by EncodePacket.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < headerSize {
		return Packet{}, fmt.Errorf("short packet: %d bytes", len(data))
	}
	r := bytes.NewReader(data)
	var pkt Packet
	var count uint16
	binary.Read(r, binary.BigEndian, &pkt.Sequence)
	binary.Read(r, binary.BigEndian, &pkt.Timestamp)
	binary.Read(r, binary.BigEndian, &count)

	pkt.Channels = make([]ChannelRecord, count)
	if err := binary.Read(r, binary.BigEndian, pkt.Channels); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return Packet{}, fmt.Errorf("truncated packet: %d channels announced, %d bytes", count, len(data))
		}
		return Packet{}, err
	}
	return pkt, nil
}

func (p *Publisher) publish() {
	snap := p.source.Snapshot()
	records := make([]ChannelRecord, len(snap))
	for i, s := range snap {
		records[i] = ChannelRecord{
			SampleTime: float32(s.Last.Timestamp),
			Amplitude:  float32(s.Last.Amplitude),
			Mean:       float32(s.Last.Mean),
			RMS:        float32(s.Last.RMS),
			Dropped:    uint32(s.Dropped),
		}
	}

	p.sequenceNum++
	p.packetBuffer.Reset()
	pkt := Packet{Sequence: p.sequenceNum, Timestamp: time.Now().UnixNano(), Channels: records}
	if err := EncodePacket(p.packetBuffer, pkt); err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return
	}

	if err := p.sender.Send(p.packetBuffer.Bytes()); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	}
}

// Close stops the publisher and closes its sender.
func (p *Publisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

var _ interface{ Close() error } = (*Publisher)(nil)
