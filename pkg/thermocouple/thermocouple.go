// SPDX-License-Identifier: BSD-3-Clause

// Package thermocouple decodes the 32-bit SPI frame produced by a Type-K
// thermocouple-to-digital converter and samples it over a real SPI bus via
// periph.io, or any Source that supplies raw frames (a mock, a recording,
// a test fixture).
package thermocouple

import (
	"encoding/binary"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/kilnctl/kilnctl/pkg/kiln"
)

// MaxClockRate is the fastest SPI clock the wire format tolerates.
const MaxClockRate = 5 * physic.MegaHertz

// Frame is a raw MSB-first 32-bit SPI read.
//
// Bit layout: [31:18] 14-bit two's-complement thermocouple temperature in
// 0.25°C units; [16] composite fault flag; [2:0] fault cause (bit0
// open-circuit, bit1 short-to-GND, bit2 short-to-VCC); [15:4] 12-bit
// two's-complement cold-junction temperature in 0.0625°C units.
type Frame uint32

// Decode extracts the thermocouple and cold-junction temperatures and fault
// bits from a raw frame. If the fault bit is set, TempC and ColdJunctionC
// are left at zero and MUST NOT be consumed by any controller.
func (f Frame) Decode() kiln.ThermocoupleReading {
	var r kiln.ThermocoupleReading

	if f&(1<<16) != 0 {
		if f&0x1 != 0 {
			r.Fault |= kiln.FaultOpenCircuit
		}
		if f&0x2 != 0 {
			r.Fault |= kiln.FaultShortToGND
		}
		if f&0x4 != 0 {
			r.Fault |= kiln.FaultShortToVCC
		}
		if r.Fault == 0 {
			// Fault bit set but no recognized cause bit: treat as open
			// circuit, the converter's own default failure mode.
			r.Fault = kiln.FaultOpenCircuit
		}
		return r
	}

	tcRaw := int32(f) >> 18
	cjRaw := int32(uint32(f)<<16) >> 20

	r.TempC = float64(tcRaw) * 0.25
	r.ColdJunctionC = float64(cjRaw) * 0.0625
	return r
}

// Source supplies one raw frame per call. Implementations do not interpret
// the bits; that is Frame.Decode's job.
type Source interface {
	ReadFrame() (Frame, error)
}

// SPISource reads frames from a physical converter over a periph.io SPI
// port. The driver performs no writes; Tx is called with a nil write
// buffer.
type SPISource struct {
	port spi.PortCloser
	conn spi.Conn
}

// OpenSPI initializes the host's periph.io drivers and opens busName (empty
// selects the first available bus) in SPI mode 0 at the fastest clock the
// wire format allows.
func OpenSPI(busName string) (*SPISource, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("thermocouple: init host: %w", err)
	}
	p, err := spireg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("thermocouple: open spi bus %q: %w", busName, err)
	}
	c, err := p.Connect(MaxClockRate, spi.Mode0, 8)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("thermocouple: connect: %w", err)
	}
	return &SPISource{port: p, conn: c}, nil
}

// ReadFrame performs one 32-bit read-only SPI transfer.
func (s *SPISource) ReadFrame() (Frame, error) {
	var rx [4]byte
	if err := s.conn.Tx(nil, rx[:]); err != nil {
		return 0, fmt.Errorf("thermocouple: spi transfer: %w", err)
	}
	return Frame(binary.BigEndian.Uint32(rx[:])), nil
}

// Close releases the underlying SPI port.
func (s *SPISource) Close() error {
	return s.port.Close()
}

// Sampler pairs a Source with a monotonic clock, producing decoded readings
// with strictly increasing timestamps.
type Sampler struct {
	source Source
	now    func() time.Time
}

// NewSampler builds a Sampler. A nil now defaults to time.Now.
func NewSampler(source Source, now func() time.Time) *Sampler {
	if now == nil {
		now = time.Now
	}
	return &Sampler{source: source, now: now}
}

// Sample reads and decodes one frame, stamping it with the sampler's clock.
func (s *Sampler) Sample() (kiln.ThermocoupleReading, error) {
	f, err := s.source.ReadFrame()
	if err != nil {
		return kiln.ThermocoupleReading{}, err
	}
	r := f.Decode()
	r.Timestamp = s.now()
	return r, nil
}
