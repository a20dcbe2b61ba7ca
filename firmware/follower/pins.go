//go:build tinygo

package main

import (
	"machine"
	"time"
)

const (
	// Output pins, wired as on the original board
	PIN_FOLLOWER_RELAY = machine.D3
	PIN_FOLLOWER_LED   = machine.D2
	PIN_EVENT_RELAY    = machine.D4
	PIN_EVENT_LED      = machine.D5

	// Current transducer input
	PIN_SENSOR = machine.ADC0

	// machine.ADC.Get scales every reading to 16 bits; the estimator expects 10.
	ADC_SHIFT = 16 - 10

	// Scheduler tick
	POLL_INTERVAL = 10 * time.Millisecond
)
