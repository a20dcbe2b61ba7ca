//go:build tinygo

//go:generate tinygo flash -target=arduino

// Firmware follower runs the relay controller directly on the microcontroller,
// without the host daemon. Diagnostics go to the serial console.
package main

import (
	"machine"
	"time"

	"github.com/sweeney/amperage-follower/internal/clock"
	"github.com/sweeney/amperage-follower/internal/current"
	"github.com/sweeney/amperage-follower/internal/logic"
)

// adcSampler adapts machine.ADC to current.Sampler.
type adcSampler struct {
	adc machine.ADC
}

func (s adcSampler) Read() (uint16, error) {
	return s.adc.Get() >> ADC_SHIFT, nil
}

var outputs = [...]machine.Pin{PIN_FOLLOWER_RELAY, PIN_FOLLOWER_LED, PIN_EVENT_RELAY, PIN_EVENT_LED}

func main() {
	// All outputs start low
	for _, p := range outputs {
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
		p.Low()
	}

	machine.InitADC()
	sensor := machine.ADC{Pin: PIN_SENSOR}
	sensor.Configure(machine.ADCConfig{})

	clk := clock.NewMonotonic()
	est := current.NewEstimator(current.DefaultConfig(), adcSampler{adc: sensor}, clk)
	ctl := logic.NewController(logic.DefaultConfig(), clk.Now())

	for {
		now := clk.Now()
		report(ctl.Tick(now))

		if ctl.CheckDue(now) {
			m := est.Measure()
			println("min:", m.Min, "max:", m.Max, "samples:", m.Samples)
			println("measured milliamps:", m.Milliamps)
			report(ctl.Measure(m.Milliamps, now))
		}

		write(ctl.Outputs(now))
		time.Sleep(POLL_INTERVAL)
	}
}

func write(out logic.Outputs) {
	PIN_FOLLOWER_RELAY.Set(out.FollowerRelay)
	PIN_FOLLOWER_LED.Set(out.FollowerLED)
	PIN_EVENT_RELAY.Set(out.EventRelay)
	PIN_EVENT_LED.Set(out.EventLED)
}

func report(events []logic.Event) {
	for _, e := range events {
		println(string(e.Type), "at", uint32(e.Timestamp))
	}
}
