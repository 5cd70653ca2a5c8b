// Copyright 2018 Denis Bernard <db047h@gmail.com>
// Licensed under the MIT license. See license text in the LICENSE file.

package controller

import "time"

// NumSpeedUnits is the number of speed settings. Speeds range from 1 to
// NumSpeedUnits.
//
const NumSpeedUnits = 5

// InitialSpeed is the default speed setting.
//
const InitialSpeed = 3

const (
	maxDelayMS = 2500
	minDelayMS = 25
)

var (
	speedFunction = [NumSpeedUnits]float64{0, .35, .63, .87, 1}
	// number of steps between pauses in fast forward mode.
	ffBursts = [NumSpeedUnits]int{500, 1000, 2000, 4000, 15000}
)

func validSpeed(speed int) bool {
	return speed >= 1 && speed <= NumSpeedUnits
}

// Delay returns the period between two steps in animated fast forward mode
// for the given speed.
//
func Delay(speed int) time.Duration {
	if !validSpeed(speed) {
		speed = InitialSpeed
	}
	ms := int(maxDelayMS - speedFunction[speed-1]*float64(maxDelayMS-minDelayMS))
	return time.Duration(ms) * time.Millisecond
}

// Burst returns the number of steps executed between two pauses in non
// animated fast forward mode for the given speed.
//
func Burst(speed int) int {
	if !validSpeed(speed) {
		speed = InitialSpeed
	}
	return ffBursts[speed-1]
}
