//go:build tinygo

//go:generate tinygo flash -target=arduino

// Firmware adcbridge streams raw transducer samples to the host daemon over
// the USB serial console, one decimal sample per line.
package main

import (
	"machine"
	"time"
)

const (
	// Transducer input
	PIN_SENSOR = machine.ADC0

	// machine.ADC.Get scales every reading to 16 bits; the host expects 10.
	ADC_SHIFT = 16 - 10

	// One sample per millisecond is ~6 bytes/ms, within 115200 baud.
	SAMPLE_INTERVAL = time.Millisecond

	UART_BAUD_RATE = 115200
)

func main() {
	machine.Serial.Configure(machine.UARTConfig{BaudRate: UART_BAUD_RATE})

	machine.InitADC()
	sensor := machine.ADC{Pin: PIN_SENSOR}
	sensor.Configure(machine.ADCConfig{})

	last := time.Now()
	for {
		now := time.Now()
		if now.Sub(last) >= SAMPLE_INTERVAL {
			println(sensor.Get() >> ADC_SHIFT)
			last = now
		}
		// Small delay to avoid a hot loop
		time.Sleep(100 * time.Microsecond)
	}
}
